package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/backoff"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository/memory"
)

func TestClient_EnqueueDefaults(t *testing.T) {
	store := memory.NewJobStore(backoff.DefaultPolicy(), nil)
	c := NewClient(store, 3, zerolog.Nop())

	job, enqueued, err := c.Enqueue(context.Background(), EnqueueParams{
		JobType: model.JobTypeExecuteCleanup,
		Payload: map[string]any{"reason": "test"},
	})
	require.NoError(t, err)
	require.True(t, enqueued)
	assert.Equal(t, 3, job.MaxAttempts, "应该使用客户端默认最大尝试次数")
	assert.JSONEq(t, `{"reason":"test"}`, string(job.Payload))
	assert.Equal(t, model.JobStatusQueued, job.Status)
}

func TestClient_EnqueueUnique(t *testing.T) {
	store := memory.NewJobStore(backoff.DefaultPolicy(), nil)
	c := NewClient(store, 0, zerolog.Nop())
	caseID := uuid.New()

	p := EnqueueParams{JobType: model.JobTypePostRoom1FinalFailure, CaseID: &caseID, Unique: true}
	first, enqueued, err := c.Enqueue(context.Background(), p)
	require.NoError(t, err)
	require.True(t, enqueued)
	require.NotNil(t, first)

	second, enqueued, err := c.Enqueue(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, enqueued, "已有活跃作业时不应重复入队")
	assert.Nil(t, second)

	_, _, err = c.Enqueue(context.Background(), EnqueueParams{JobType: "x", Unique: true})
	assert.Error(t, err, "unique 入队缺少 case_id 应该失败")
}

func TestEnqueueParams_ToInput(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		params       EnqueueParams
		wantRunAfter time.Time
		wantPayload  string
		wantErr      bool
	}{
		{
			name:        "immediate",
			params:      EnqueueParams{JobType: "x"},
			wantPayload: `{}`,
		},
		{
			name:         "delay",
			params:       EnqueueParams{JobType: "x", Delay: time.Minute},
			wantRunAfter: now.Add(time.Minute),
			wantPayload:  `{}`,
		},
		{
			name:         "run_at wins over delay",
			params:       EnqueueParams{JobType: "x", Delay: time.Minute, RunAt: now.Add(time.Hour)},
			wantRunAfter: now.Add(time.Hour),
			wantPayload:  `{}`,
		},
		{
			name:        "raw payload",
			params:      EnqueueParams{JobType: "x", Payload: json.RawMessage(`{"a":1}`)},
			wantPayload: `{"a":1}`,
		},
		{
			name:    "missing job type",
			params:  EnqueueParams{},
			wantErr: true,
		},
		{
			name:    "unencodable payload",
			params:  EnqueueParams{JobType: "x", Payload: make(chan int)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := tt.params.toInput(now, 5)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRunAfter, in.RunAfter)
			assert.JSONEq(t, tt.wantPayload, string(in.Payload))
			assert.Equal(t, 5, in.MaxAttempts)
		})
	}
}
