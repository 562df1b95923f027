package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/casestate"
	"github.com/azhengyongqin/caseflow/internal/logger"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
	workers "github.com/azhengyongqin/caseflow/internal/worker"
)

// Rooms 外部频道标识
type Rooms struct {
	Room1 string // 主频道
	Room2 string // 医生决策频道
	Room3 string // 预约频道
}

// Deps 处理函数依赖
type Deps struct {
	Cases     repository.CaseStore
	Messages  repository.MessageStore
	Messenger Messenger
	Recorder  *audit.Recorder
	Rooms     Rooms
}

// Handlers 发送类作业的处理函数集合
type Handlers struct {
	cases        repository.CaseStore
	messages     repository.MessageStore
	messenger    Messenger
	transitioner *casestate.Transitioner
	audit        *audit.Recorder
	rooms        Rooms
	log          zerolog.Logger
}

func NewHandlers(d Deps, log zerolog.Logger) *Handlers {
	return &Handlers{
		cases:        d.Cases,
		messages:     d.Messages,
		messenger:    d.Messenger,
		transitioner: casestate.NewTransitioner(d.Cases),
		audit:        d.Recorder,
		rooms:        d.Rooms,
		log:          log,
	}
}

// finalReply 最终回复的一种变体
type finalReply struct {
	allowed []model.CaseStatus
	render  func(caseID uuid.UUID, raw json.RawMessage) (string, error)
}

var finalReplies = map[string]finalReply{
	model.JobTypePostRoom1FinalFailure: {
		allowed: []model.CaseStatus{model.CaseStatusFailed},
		render: func(caseID uuid.UUID, raw json.RawMessage) (string, error) {
			p, err := decodePayload[FailurePayload](raw)
			return FailureMessage(caseID, p), err
		},
	},
	model.JobTypePostRoom1FinalDenied: {
		allowed: []model.CaseStatus{model.CaseStatusDoctorDenied, model.CaseStatusApptDenied},
		render: func(caseID uuid.UUID, raw json.RawMessage) (string, error) {
			p, err := decodePayload[DeniedPayload](raw)
			return DeniedMessage(caseID, p), err
		},
	},
	model.JobTypePostRoom1FinalAccepted: {
		allowed: []model.CaseStatus{model.CaseStatusApptConfirmed},
		render: func(caseID uuid.UUID, raw json.RawMessage) (string, error) {
			p, err := decodePayload[AcceptedPayload](raw)
			return AcceptedMessage(caseID, p), err
		},
	},
}

// Register 把发送类处理函数注册到 registry
func (h *Handlers) Register(reg *workers.Registry) error {
	for _, jobType := range []string{
		model.JobTypePostRoom1FinalFailure,
		model.JobTypePostRoom1FinalDenied,
		model.JobTypePostRoom1FinalAccepted,
	} {
		if err := reg.Register(jobType, h.FinalReply(jobType)); err != nil {
			return err
		}
	}
	return reg.Register(model.JobTypePostRoom3Request, h.PostRoom3Request)
}

// FinalReply 返回指定最终回复作业类型的处理函数
func (h *Handlers) FinalReply(jobType string) workers.Handler {
	v, ok := finalReplies[jobType]
	if !ok {
		panic(fmt.Sprintf("unknown final reply job type %q", jobType))
	}
	return func(ctx context.Context, job *repository.Job) workers.Result {
		return workers.FromError(h.postFinalReply(ctx, job, v))
	}
}

// postFinalReply 在主频道回复病例原始消息，记录回复引用后进入 WAIT_R1_CLEANUP_THUMBS
func (h *Handlers) postFinalReply(ctx context.Context, job *repository.Job, v finalReply) error {
	c, err := h.loadCase(ctx, job)
	if err != nil {
		return err
	}
	log := logger.WithJob(h.log, job.ID, job.JobType).With().Str("case_id", c.CaseID.String()).Logger()

	if c.FinalReplyRef != "" {
		if slices.Contains(v.allowed, c.Status) {
			// 回复已发出但状态迁移未完成
			return h.transition(ctx, c.CaseID, c.Status, model.CaseStatusWaitR1CleanupThumbs, job.JobType)
		}
		log.Info().Str("final_reply_ref", c.FinalReplyRef).Msg("最终回复已发送，跳过")
		return nil
	}
	if !slices.Contains(v.allowed, c.Status) {
		return workers.Permanent(fmt.Errorf("case status %s does not allow %s", c.Status, job.JobType))
	}

	body, err := v.render(c.CaseID, job.Payload)
	if err != nil {
		return workers.Permanent(err)
	}
	ref, err := h.messenger.PostReply(ctx, h.rooms.Room1, c.OriginRef, body)
	if err != nil {
		return fmt.Errorf("post room1 final reply: %w", err)
	}
	if err := h.cases.SetFinalReplyRef(ctx, c.CaseID, ref); err != nil {
		return fmt.Errorf("set final reply ref: %w", err)
	}
	if err := h.messages.Add(ctx, repository.CaseMessage{
		CaseID:     c.CaseID,
		Room:       h.rooms.Room1,
		MessageRef: ref,
		Kind:       repository.MessageKindRoom1Final,
	}); err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	_ = h.audit.Record(ctx, audit.Entry{
		CaseID:    c.CaseID,
		ActorType: repository.ActorBot,
		EventType: audit.EventRoom1FinalReplyPosted,
		Payload: map[string]any{
			"job_type":    job.JobType,
			"message_ref": ref,
			"reply_to":    c.OriginRef,
		},
	})
	log.Info().Str("message_ref", ref).Msg("最终回复已发送")

	return h.transition(ctx, c.CaseID, c.Status, model.CaseStatusWaitR1CleanupThumbs, job.JobType)
}

// PostRoom3Request 在预约频道发布预约申请与登记回执：
// DOCTOR_ACCEPTED -> R3_POST_REQUEST -> WAIT_APPT
func (h *Handlers) PostRoom3Request(ctx context.Context, job *repository.Job) workers.Result {
	return workers.FromError(h.postRoom3Request(ctx, job))
}

func (h *Handlers) postRoom3Request(ctx context.Context, job *repository.Job) error {
	c, err := h.loadCase(ctx, job)
	if err != nil {
		return err
	}
	log := logger.WithJob(h.log, job.ID, job.JobType).With().Str("case_id", c.CaseID.String()).Logger()

	switch c.Status {
	case model.CaseStatusWaitAppt:
		log.Info().Msg("预约申请已发布，跳过")
		return nil
	case model.CaseStatusDoctorAccepted:
		if err := h.transition(ctx, c.CaseID, c.Status, model.CaseStatusR3PostRequest, job.JobType); err != nil {
			return err
		}
	case model.CaseStatusR3PostRequest:
	default:
		return workers.Permanent(fmt.Errorf("case status %s does not allow %s", c.Status, job.JobType))
	}

	payload, err := decodePayload[Room3RequestPayload](job.Payload)
	if err != nil {
		return workers.Permanent(err)
	}

	requestRef, err := h.postOnce(ctx, c.CaseID, h.rooms.Room3, repository.MessageKindRoom3Request,
		Room3RequestMessage(c.CaseID, payload))
	if err != nil {
		return err
	}
	ackRef, err := h.postOnce(ctx, c.CaseID, h.rooms.Room3, repository.MessageKindRoom3Ack,
		Room3AckMessage(c.CaseID))
	if err != nil {
		return err
	}
	if requestRef != "" || ackRef != "" {
		_ = h.audit.Record(ctx, audit.Entry{
			CaseID:    c.CaseID,
			ActorType: repository.ActorBot,
			EventType: audit.EventRoom3RequestPosted,
			Payload: map[string]any{
				"request_message_ref": requestRef,
				"ack_message_ref":     ackRef,
			},
		})
		log.Info().Str("request_ref", requestRef).Str("ack_ref", ackRef).Msg("预约申请已发布")
	}

	return h.transition(ctx, c.CaseID, model.CaseStatusR3PostRequest, model.CaseStatusWaitAppt, job.JobType)
}

// postOnce 病例在 room 中尚无 kind 类型消息时发送并记录；已存在时返回空引用
func (h *Handlers) postOnce(ctx context.Context, caseID uuid.UUID, room, kind, body string) (string, error) {
	exists, err := h.messages.HasKind(ctx, caseID, room, kind)
	if err != nil {
		return "", fmt.Errorf("check %s message: %w", kind, err)
	}
	if exists {
		return "", nil
	}
	ref, err := h.messenger.Post(ctx, room, body)
	if err != nil {
		return "", fmt.Errorf("post %s message: %w", kind, err)
	}
	if err := h.messages.Add(ctx, repository.CaseMessage{
		CaseID:     caseID,
		Room:       room,
		MessageRef: ref,
		Kind:       kind,
	}); err != nil {
		return "", fmt.Errorf("record %s message: %w", kind, err)
	}
	return ref, nil
}

// transition 校验并写入状态迁移，成功后记录审计
func (h *Handlers) transition(ctx context.Context, caseID uuid.UUID, from, to model.CaseStatus, jobType string) error {
	if err := h.transitioner.TransitionFrom(ctx, caseID, from, to); err != nil {
		return err
	}
	h.audit.System(ctx, caseID, audit.EventCaseTransition, map[string]any{
		"from_status": from,
		"to_status":   to,
		"job_type":    jobType,
	})
	return nil
}

func (h *Handlers) loadCase(ctx context.Context, job *repository.Job) (*repository.Case, error) {
	if job.CaseID == nil {
		return nil, workers.Permanent(errors.New("job has no case_id"))
	}
	c, err := h.cases.Get(ctx, *job.CaseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, workers.Permanent(fmt.Errorf("case %s: %w", *job.CaseID, err))
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

// decodePayload 解析作业载荷；空载荷返回零值
func decodePayload[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
