package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/backoff"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
	"github.com/azhengyongqin/caseflow/internal/repository/memory"
)

type sentMessage struct {
	Room    string
	ReplyTo string
	Body    string
	Ref     string
}

// fakeMessenger 记录所有发送与撤回
type fakeMessenger struct {
	mu        sync.Mutex
	seq       int
	failSends int
	replies   []sentMessage
	posts     []sentMessage
	redacted  []string
}

func (m *fakeMessenger) next(room, replyTo, body string) (sentMessage, error) {
	if m.failSends > 0 {
		m.failSends--
		return sentMessage{}, errors.New("gateway unavailable")
	}
	m.seq++
	return sentMessage{Room: room, ReplyTo: replyTo, Body: body, Ref: fmt.Sprintf("$msg-%d", m.seq)}, nil
}

func (m *fakeMessenger) PostReply(_ context.Context, room, replyTo, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.next(room, replyTo, body)
	if err != nil {
		return "", err
	}
	m.replies = append(m.replies, msg)
	return msg.Ref, nil
}

func (m *fakeMessenger) Post(_ context.Context, room, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.next(room, "", body)
	if err != nil {
		return "", err
	}
	m.posts = append(m.posts, msg)
	return msg.Ref, nil
}

func (m *fakeMessenger) Redact(_ context.Context, _, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redacted = append(m.redacted, ref)
	return nil
}

type fixture struct {
	stores    *memory.Stores
	messenger *fakeMessenger
	handlers  *Handlers
}

var testRooms = Rooms{Room1: "!room1", Room2: "!room2", Room3: "!room3"}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	stores := memory.New(backoff.DefaultPolicy(), now)
	m := &fakeMessenger{}
	h := NewHandlers(Deps{
		Cases:     stores.Cases,
		Messages:  stores.Messages,
		Messenger: m,
		Recorder:  audit.NewRecorder(stores.Audit, zerolog.Nop()),
		Rooms:     testRooms,
	}, zerolog.Nop())

	return &fixture{stores: stores, messenger: m, handlers: h}
}

func (f *fixture) createCase(t *testing.T, status model.CaseStatus) *repository.Case {
	t.Helper()
	c, err := f.stores.Cases.Create(context.Background(), repository.CreateCaseInput{
		Status:    status,
		OriginRef: "$origin-" + uuid.NewString()[:8],
	})
	require.NoError(t, err)
	return c
}

func jobFor(c *repository.Case, jobType, payload string) *repository.Job {
	id := c.CaseID
	j := &repository.Job{ID: 1, CaseID: &id, JobType: jobType, Status: model.JobStatusRunning}
	if payload != "" {
		j.Payload = []byte(payload)
	}
	return j
}
