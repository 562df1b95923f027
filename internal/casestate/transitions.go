package casestate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/azhengyongqin/caseflow/internal/model"
)

var (
	// ErrIllegalTransition 非法状态迁移
	ErrIllegalTransition = errors.New("illegal case status transition")

	// ErrStaleStatus 状态在校验与写入之间被其他流程修改
	ErrStaleStatus = errors.New("case status changed concurrently")
)

// IllegalTransitionError 携带迁移两端状态，便于诊断
type IllegalTransitionError struct {
	From model.CaseStatus
	To   model.CaseStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal case status transition: %s -> %s", e.From, e.To)
}

// Is 使 errors.Is(err, ErrIllegalTransition) 成立
func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

type statusSet map[model.CaseStatus]struct{}

func set(statuses ...model.CaseStatus) statusSet {
	s := make(statusSet, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

// allowedTransitions 静态迁移图：每条合法边都必须在这里字面列出。
// 清理阶段之前的每个业务状态都有 -> FAILED 边，作业 dead 后病例总能落到终止失败状态。
var allowedTransitions = map[model.CaseStatus]statusSet{
	model.CaseStatusNew:             set(model.CaseStatusR1AckProcessing, model.CaseStatusFailed),
	model.CaseStatusR1AckProcessing: set(model.CaseStatusExtracting, model.CaseStatusFailed),
	model.CaseStatusExtracting:      set(model.CaseStatusLLMStruct, model.CaseStatusFailed),
	model.CaseStatusLLMStruct:       set(model.CaseStatusLLMSuggest, model.CaseStatusFailed),
	model.CaseStatusLLMSuggest:      set(model.CaseStatusR2PostWidget, model.CaseStatusFailed),
	model.CaseStatusR2PostWidget:    set(model.CaseStatusWaitDoctor, model.CaseStatusFailed),
	model.CaseStatusWaitDoctor:      set(model.CaseStatusDoctorDenied, model.CaseStatusDoctorAccepted, model.CaseStatusFailed),
	model.CaseStatusDoctorDenied:    set(model.CaseStatusWaitR1CleanupThumbs, model.CaseStatusFailed),
	model.CaseStatusDoctorAccepted:  set(model.CaseStatusR3PostRequest, model.CaseStatusFailed),
	model.CaseStatusR3PostRequest:   set(model.CaseStatusWaitAppt, model.CaseStatusFailed),
	model.CaseStatusWaitAppt:        set(model.CaseStatusApptConfirmed, model.CaseStatusApptDenied, model.CaseStatusFailed),
	model.CaseStatusApptConfirmed:   set(model.CaseStatusWaitR1CleanupThumbs, model.CaseStatusFailed),
	model.CaseStatusApptDenied:      set(model.CaseStatusWaitR1CleanupThumbs, model.CaseStatusFailed),
	model.CaseStatusFailed:          set(model.CaseStatusWaitR1CleanupThumbs),
	// 兼容状态：运行时从最终决定直接进入 WAIT_R1_CLEANUP_THUMBS
	model.CaseStatusR1FinalReplyPosted:  set(model.CaseStatusWaitR1CleanupThumbs),
	model.CaseStatusWaitR1CleanupThumbs: set(model.CaseStatusCleanupRunning),
	model.CaseStatusCleanupRunning:      set(model.CaseStatusCleaned),
	model.CaseStatusCleaned:             set(),
}

// CanTransition 判断迁移是否合法
func CanTransition(from, to model.CaseStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// AssertTransition 校验迁移；非法时返回 *IllegalTransitionError。
// 纯函数，不做任何 I/O。
func AssertTransition(from, to model.CaseStatus) error {
	if !CanTransition(from, to) {
		return &IllegalTransitionError{From: from, To: to}
	}
	return nil
}

// AllowedNext 返回 from 状态允许的下一状态（按字典序）
func AllowedNext(from model.CaseStatus) []model.CaseStatus {
	next := allowedTransitions[from]
	out := make([]model.CaseStatus, 0, len(next))
	for st := range next {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
