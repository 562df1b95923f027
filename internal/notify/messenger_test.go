package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookMessenger(t *testing.T) {
	var (
		mu  sync.Mutex
		got []webhookRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		got = append(got, req)
		mu.Unlock()

		if req.Room == "!broken" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
			return
		}
		_ = json.NewEncoder(w).Encode(webhookResponse{MessageRef: "$ref-" + req.Action})
	}))
	defer srv.Close()

	m := NewWebhookMessenger(srv.URL, time.Second)
	ctx := context.Background()

	ref, err := m.PostReply(ctx, "!room1", "$origin", "hello")
	require.NoError(t, err)
	assert.Equal(t, "$ref-reply", ref)

	ref, err = m.Post(ctx, "!room3", "hi")
	require.NoError(t, err)
	assert.Equal(t, "$ref-post", ref)

	require.NoError(t, m.Redact(ctx, "!room1", "$ref-reply"))

	_, err = m.Post(ctx, "!broken", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 4)
	assert.Equal(t, webhookRequest{Action: actionReply, Room: "!room1", ReplyTo: "$origin", Body: "hello"}, got[0])
	assert.Equal(t, webhookRequest{Action: actionRedact, Room: "!room1", MessageRef: "$ref-reply"}, got[2])
}

func TestWebhookMessenger_MissingRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewWebhookMessenger(srv.URL, 0).Post(context.Background(), "!room1", "x")
	assert.ErrorContains(t, err, "message_ref")
}

func TestLogMessenger(t *testing.T) {
	m := NewLogMessenger(zerolog.Nop())
	ctx := context.Background()

	a, err := m.Post(ctx, "!room1", "x")
	require.NoError(t, err)
	b, err := m.PostReply(ctx, "!room1", "$origin", "y")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "每条消息引用应该唯一")
	assert.NoError(t, m.Redact(ctx, "!room1", a))
}
