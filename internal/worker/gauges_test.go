package workers

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/backoff"
	"github.com/azhengyongqin/caseflow/internal/metrics"
	"github.com/azhengyongqin/caseflow/internal/repository"
	"github.com/azhengyongqin/caseflow/internal/repository/memory"
)

func TestGaugeRefresher_Refresh(t *testing.T) {
	store := memory.NewJobStore(backoff.DefaultPolicy(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Enqueue(ctx, repository.EnqueueInput{JobType: "x"})
		require.NoError(t, err)
	}
	_, err := store.ClaimBatch(ctx, "w1", 1, time.Now())
	require.NoError(t, err)

	hookCalls := 0
	g := NewGaugeRefresher(store, time.Minute, zerolog.Nop(), func() { hookCalls++ })
	require.NoError(t, g.Refresh(ctx))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.QueueSize.WithLabelValues("queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueueSize.WithLabelValues("running")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.QueueSize.WithLabelValues("dead")))
	assert.Equal(t, 1, hookCalls)
}

func TestGaugeRefresher_RunStopsWithContext(t *testing.T) {
	store := memory.NewJobStore(backoff.DefaultPolicy(), nil)
	g := NewGaugeRefresher(store, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run 未随 ctx 取消返回")
	}
}
