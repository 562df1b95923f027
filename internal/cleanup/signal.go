package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/metrics"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/notify"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// 信号未被处理的原因
const (
	ReasonNotThumbsUp         = "not_thumbs_up"
	ReasonUnknownRoom         = "unknown_room"
	ReasonNotAckTarget        = "not_ack_target"
	ReasonNotFinalReplyTarget = "not_final_reply_target"
	ReasonWrongState          = "wrong_state"
	ReasonAlreadyTriggered    = "already_triggered"
	ReasonDuplicate           = "duplicate"
)

// Signal 外部确认信号（如对某条消息的回应）
type Signal struct {
	Room      string     // 信号所在频道
	TargetRef string     // 被回应的消息引用
	Key       string     // 回应内容
	Actor     string     // 发出信号的用户
	EventRef  string     // 信号自身的事件引用，可为空
	CaseID    *uuid.UUID // 调用方已知病例时填写，需与目标消息一致
}

// Result 信号处理结果
type Result struct {
	Processed bool      `json:"processed"`
	Reason    string    `json:"reason,omitempty"`
	CaseID    uuid.UUID `json:"case_id,omitempty"`
}

// Deduper 短窗口去重，仅用于减少重复处理；正确性由 CAS 保证
type Deduper interface {
	// FirstSeen key 在 ttl 窗口内首次出现时返回 true
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget 删除 key，处理失败时释放去重标记以便重试
	Forget(ctx context.Context, key string) error
}

// SignalDeps 信号处理依赖
type SignalDeps struct {
	Cases     repository.CaseStore
	Messages  repository.MessageStore
	Trigger   *Trigger
	Recorder  *audit.Recorder
	Rooms     notify.Rooms
	Deduper   Deduper // 可为 nil
	DedupeTTL time.Duration
}

// SignalHandler 对外部信号分类，符合条件的主频道信号交给 Trigger
type SignalHandler struct {
	cases     repository.CaseStore
	messages  repository.MessageStore
	trigger   *Trigger
	audit     *audit.Recorder
	rooms     notify.Rooms
	dedupe    Deduper
	dedupeTTL time.Duration
	log       zerolog.Logger
}

func NewSignalHandler(d SignalDeps, log zerolog.Logger) *SignalHandler {
	ttl := d.DedupeTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &SignalHandler{
		cases:     d.Cases,
		messages:  d.Messages,
		trigger:   d.Trigger,
		audit:     d.Recorder,
		rooms:     d.Rooms,
		dedupe:    d.Deduper,
		dedupeTTL: ttl,
		log:       log,
	}
}

var acceptedKeys = map[string]struct{}{
	"👍": {},
	"✅": {},
}

// NormalizeKey 去掉变体选择符（U+FE0E/U+FE0F）与首尾空白
func NormalizeKey(key string) string {
	key = strings.ReplaceAll(key, "\uFE0E", "")
	key = strings.ReplaceAll(key, "\uFE0F", "")
	return strings.TrimSpace(key)
}

// IsThumbsUp 是否为确认类回应
func IsThumbsUp(key string) bool {
	_, ok := acceptedKeys[NormalizeKey(key)]
	return ok
}

// OnExternalSignal 分类并处理外部信号。
// 未被处理的信号不是错误，通过 Result.Reason 说明原因。
func (h *SignalHandler) OnExternalSignal(ctx context.Context, s Signal) (res Result, err error) {
	room := h.roomLabel(s.Room)
	var dedupeKey string
	defer func() {
		if err != nil {
			metrics.RecordError("signal", "process")
			h.forget(ctx, dedupeKey)
			return
		}
		reason := res.Reason
		if res.Processed {
			reason = "processed"
		}
		metrics.RecordSignal(room, reason)
	}()

	if !IsThumbsUp(s.Key) {
		return Result{Reason: ReasonNotThumbsUp}, nil
	}
	if room == roomUnknown {
		return Result{Reason: ReasonUnknownRoom}, nil
	}
	var dup bool
	if dedupeKey, dup = h.isDuplicate(ctx, s); dup {
		dedupeKey = ""
		return Result{Reason: ReasonDuplicate}, nil
	}

	switch room {
	case roomPrimary:
		return h.onFinalReplySignal(ctx, s)
	case roomDecision:
		return h.onAckSignal(ctx, s, repository.MessageKindRoom2DecisionAck, audit.EventRoom2AckThumbsUpReceived)
	default:
		return h.onAckSignal(ctx, s, repository.MessageKindRoom3Ack, audit.EventRoom3AckThumbsUpReceived)
	}
}

func (h *SignalHandler) onFinalReplySignal(ctx context.Context, s Signal) (Result, error) {
	c, err := h.cases.GetByFinalReplyRef(ctx, s.TargetRef)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && s.CaseID != nil && *s.CaseID != c.CaseID) {
		return Result{Reason: ReasonNotFinalReplyTarget}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("find case by final reply: %w", err)
	}

	log := h.log.With().Str("case_id", c.CaseID.String()).Str("actor", s.Actor).Logger()
	h.record(ctx, c.CaseID, s, audit.EventRoom1ThumbsUpReceived, map[string]any{
		"message_ref": s.TargetRef,
		"signal_ref":  s.EventRef,
		"key":         NormalizeKey(s.Key),
	})

	if c.Status != model.CaseStatusWaitR1CleanupThumbs {
		h.record(ctx, c.CaseID, s, audit.EventRoom1ThumbsUpWrongState, map[string]any{"status": c.Status})
		log.Info().Str("status", string(c.Status)).Msg("病例状态不接受确认信号")
		return Result{Reason: ReasonWrongState, CaseID: c.CaseID}, nil
	}

	won, err := h.trigger.MaybeTrigger(ctx, c.CaseID, s.Actor)
	if err != nil && !won {
		return Result{}, err
	}
	if !won {
		h.record(ctx, c.CaseID, s, audit.EventRoom1ThumbsUpAlreadyTrigger, nil)
		return Result{Reason: ReasonAlreadyTriggered, CaseID: c.CaseID}, nil
	}

	h.record(ctx, c.CaseID, s, audit.EventRoom1ThumbsUpTriggerCleanup, map[string]any{"message_ref": s.TargetRef})
	if err != nil {
		// 清理已触发，入队由补偿扫描兜底
		log.Warn().Err(err).Msg("清理已触发但入队失败")
	}
	return Result{Processed: true, CaseID: c.CaseID}, nil
}

func (h *SignalHandler) onAckSignal(ctx context.Context, s Signal, kind, eventType string) (Result, error) {
	msg, err := h.messages.GetByRoomRef(ctx, s.Room, s.TargetRef)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{Reason: ReasonNotAckTarget}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("find message: %w", err)
	}
	if msg.Kind != kind || (s.CaseID != nil && *s.CaseID != msg.CaseID) {
		return Result{Reason: ReasonNotAckTarget}, nil
	}

	h.record(ctx, msg.CaseID, s, eventType, map[string]any{
		"message_ref": s.TargetRef,
		"signal_ref":  s.EventRef,
		"key":         NormalizeKey(s.Key),
	})
	return Result{Processed: true, CaseID: msg.CaseID}, nil
}

// isDuplicate Redis 去重；去重器不可用时按非重复处理。
// 返回本次写入的 key（未写入时为空）
func (h *SignalHandler) isDuplicate(ctx context.Context, s Signal) (string, bool) {
	if h.dedupe == nil || s.TargetRef == "" || s.Actor == "" {
		return "", false
	}
	key := fmt.Sprintf("signal:%s:%s:%s", s.Room, s.TargetRef, s.Actor)
	first, err := h.dedupe.FirstSeen(ctx, key, h.dedupeTTL)
	if err != nil {
		metrics.RecordError("signal", "dedupe")
		h.log.Warn().Err(err).Str("key", key).Msg("信号去重失败，继续处理")
		return "", false
	}
	return key, !first
}

func (h *SignalHandler) forget(ctx context.Context, key string) {
	if key == "" {
		return
	}
	// 请求可能已取消，删除不跟随
	if err := h.dedupe.Forget(context.WithoutCancel(ctx), key); err != nil {
		metrics.RecordError("signal", "dedupe")
		h.log.Warn().Err(err).Str("key", key).Msg("释放信号去重标记失败")
	}
}

func (h *SignalHandler) record(ctx context.Context, caseID uuid.UUID, s Signal, eventType string, payload any) {
	_ = h.audit.Record(ctx, audit.Entry{
		CaseID:    caseID,
		ActorType: repository.ActorHuman,
		ActorRef:  s.Actor,
		EventType: eventType,
		Payload:   payload,
	})
}

const (
	roomPrimary  = "room1"
	roomDecision = "room2"
	roomSchedule = "room3"
	roomUnknown  = "unknown"
)

func (h *SignalHandler) roomLabel(room string) string {
	switch {
	case room == "":
		return roomUnknown
	case room == h.rooms.Room1:
		return roomPrimary
	case room == h.rooms.Room2:
		return roomDecision
	case room == h.rooms.Room3:
		return roomSchedule
	default:
		return roomUnknown
	}
}
