package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/azhengyongqin/caseflow/internal/repository"
)

// EnqueueParams 入队参数
type EnqueueParams struct {
	JobType     string
	CaseID      *uuid.UUID
	Payload     any // json.RawMessage / []byte 原样写入，其余类型按 JSON 编码
	MaxAttempts int
	Delay       time.Duration
	RunAt       time.Time

	// Unique 为 true 时，同一病例同一类型已有 queued/running 作业则不再入队
	Unique bool
}

// toInput 转换为仓储入队参数；RunAt 优先于 Delay
func (p EnqueueParams) toInput(now time.Time, defaultMaxAttempts int) (repository.EnqueueInput, error) {
	if p.JobType == "" {
		return repository.EnqueueInput{}, errors.New("job_type 不能为空")
	}
	if p.Unique && p.CaseID == nil {
		return repository.EnqueueInput{}, errors.New("unique 入队需要 case_id")
	}

	payload, err := encodePayload(p.Payload)
	if err != nil {
		return repository.EnqueueInput{}, err
	}

	in := repository.EnqueueInput{
		CaseID:      p.CaseID,
		JobType:     p.JobType,
		Payload:     payload,
		MaxAttempts: p.MaxAttempts,
	}
	if in.MaxAttempts <= 0 {
		in.MaxAttempts = defaultMaxAttempts
	}
	switch {
	case !p.RunAt.IsZero():
		in.RunAfter = p.RunAt
	case p.Delay > 0:
		in.RunAfter = now.Add(p.Delay)
	}
	return in, nil
}

func encodePayload(v any) (json.RawMessage, error) {
	switch p := v.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return p, nil
	case []byte:
		if len(p) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return json.RawMessage(p), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return b, nil
	}
}
