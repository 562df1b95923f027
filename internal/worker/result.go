package workers

import (
	"context"
	"errors"

	"github.com/azhengyongqin/caseflow/internal/casestate"
)

// ErrPermanent 标记不可重试的错误
var ErrPermanent = errors.New("permanent failure")

// Outcome 处理结果类型
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetry
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result 处理函数返回值
type Result struct {
	Outcome Outcome
	Err     error
}

// Success 成功
func Success() Result { return Result{Outcome: OutcomeSuccess} }

// Retry 可重试失败，按退避重新排队
func Retry(err error) Result { return Result{Outcome: OutcomeRetry, Err: err} }

// Fatal 不可重试失败，直接进入 dead
func Fatal(err error) Result { return Result{Outcome: OutcomeFatal, Err: err} }

// FromError 将 error 映射为结果：
// nil -> Success；非法状态迁移 / ErrPermanent -> Fatal；超时及其他错误 -> Retry
func FromError(err error) Result {
	switch {
	case err == nil:
		return Success()
	case errors.Is(err, casestate.ErrIllegalTransition), errors.Is(err, ErrPermanent):
		return Fatal(err)
	case errors.Is(err, context.DeadlineExceeded):
		return Retry(err)
	default:
		return Retry(err)
	}
}

// Permanent 包装为不可重试错误
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// errorText 结果的错误描述，写入 last_error
func (r Result) errorText() string {
	if r.Err == nil {
		return r.Outcome.String()
	}
	return r.Err.Error()
}
