package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
	workers "github.com/azhengyongqin/caseflow/internal/worker"
)

func TestFinalReply_PostsAndWaitsForThumbs(t *testing.T) {
	tests := []struct {
		name    string
		jobType string
		status  model.CaseStatus
		payload string
		marker  string
	}{
		{"失败通知", model.JobTypePostRoom1FinalFailure, model.CaseStatusFailed, `{"cause_job_type":"execute_cleanup"}`, "⚠️"},
		{"医生拒绝", model.JobTypePostRoom1FinalDenied, model.CaseStatusDoctorDenied, `{"reason":"资料不全"}`, "资料不全"},
		{"预约拒绝", model.JobTypePostRoom1FinalDenied, model.CaseStatusApptDenied, "", "❌"},
		{"预约确认", model.JobTypePostRoom1FinalAccepted, model.CaseStatusApptConfirmed, `{"location":"三号楼"}`, "三号楼"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			c := f.createCase(t, tt.status)

			res := f.handlers.FinalReply(tt.jobType)(ctx, jobFor(c, tt.jobType, tt.payload))
			require.Equal(t, workers.OutcomeSuccess, res.Outcome, "应该成功: %v", res.Err)

			require.Len(t, f.messenger.replies, 1)
			reply := f.messenger.replies[0]
			assert.Equal(t, testRooms.Room1, reply.Room)
			assert.Equal(t, c.OriginRef, reply.ReplyTo, "应该回复原始消息")
			assert.Contains(t, reply.Body, tt.marker)
			assert.Contains(t, reply.Body, c.CaseID.String())

			got, err := f.stores.Cases.Get(ctx, c.CaseID)
			require.NoError(t, err)
			assert.Equal(t, model.CaseStatusWaitR1CleanupThumbs, got.Status)
			assert.Equal(t, reply.Ref, got.FinalReplyRef)

			msg, err := f.stores.Messages.GetByRoomRef(ctx, testRooms.Room1, reply.Ref)
			require.NoError(t, err)
			assert.Equal(t, repository.MessageKindRoom1Final, msg.Kind)

			assert.Equal(t, []string{audit.EventRoom1FinalReplyPosted, audit.EventCaseTransition},
				f.stores.Audit.EventTypes(c.CaseID))
		})
	}
}

func TestFinalReply_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCase(t, model.CaseStatusFailed)
	h := f.handlers.FinalReply(model.JobTypePostRoom1FinalFailure)

	require.Equal(t, workers.OutcomeSuccess, h(ctx, jobFor(c, model.JobTypePostRoom1FinalFailure, "")).Outcome)
	require.Equal(t, workers.OutcomeSuccess, h(ctx, jobFor(c, model.JobTypePostRoom1FinalFailure, "")).Outcome)

	assert.Len(t, f.messenger.replies, 1, "重复执行不应重复发送")
}

func TestFinalReply_CompletesInterruptedTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCase(t, model.CaseStatusApptConfirmed)
	require.NoError(t, f.stores.Cases.SetFinalReplyRef(ctx, c.CaseID, "$already"))

	res := f.handlers.FinalReply(model.JobTypePostRoom1FinalAccepted)(ctx, jobFor(c, model.JobTypePostRoom1FinalAccepted, ""))
	require.Equal(t, workers.OutcomeSuccess, res.Outcome)

	assert.Empty(t, f.messenger.replies, "已有回复引用时不应再次发送")
	status, err := f.stores.Cases.GetStatus(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusWaitR1CleanupThumbs, status)
}

func TestFinalReply_WrongStatusIsFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCase(t, model.CaseStatusWaitDoctor)

	res := f.handlers.FinalReply(model.JobTypePostRoom1FinalAccepted)(ctx, jobFor(c, model.JobTypePostRoom1FinalAccepted, ""))
	assert.Equal(t, workers.OutcomeFatal, res.Outcome)
	assert.ErrorIs(t, res.Err, workers.ErrPermanent)
	assert.Empty(t, f.messenger.replies)
}

func TestFinalReply_SendErrorIsRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCase(t, model.CaseStatusFailed)
	f.messenger.failSends = 1

	res := f.handlers.FinalReply(model.JobTypePostRoom1FinalFailure)(ctx, jobFor(c, model.JobTypePostRoom1FinalFailure, ""))
	assert.Equal(t, workers.OutcomeRetry, res.Outcome)

	got, err := f.stores.Cases.Get(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusFailed, got.Status, "发送失败时状态不变")
	assert.Empty(t, got.FinalReplyRef)
}

func TestFinalReply_MissingCaseIsFatal(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	job := &repository.Job{ID: 9, CaseID: &id, JobType: model.JobTypePostRoom1FinalFailure}

	res := f.handlers.FinalReply(model.JobTypePostRoom1FinalFailure)(context.Background(), job)
	assert.Equal(t, workers.OutcomeFatal, res.Outcome)
	assert.ErrorIs(t, res.Err, repository.ErrNotFound)

	res = f.handlers.FinalReply(model.JobTypePostRoom1FinalFailure)(context.Background(), &repository.Job{ID: 10})
	assert.Equal(t, workers.OutcomeFatal, res.Outcome, "缺少 case_id 应该直接 dead")
}

func TestFinalReply_InvalidPayloadIsFatal(t *testing.T) {
	f := newFixture(t)
	c := f.createCase(t, model.CaseStatusDoctorDenied)

	res := f.handlers.FinalReply(model.JobTypePostRoom1FinalDenied)(context.Background(), jobFor(c, model.JobTypePostRoom1FinalDenied, `{"reason":1}`))
	assert.Equal(t, workers.OutcomeFatal, res.Outcome)
	assert.Empty(t, f.messenger.replies)
}

func TestPostRoom3Request(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCase(t, model.CaseStatusDoctorAccepted)
	job := jobFor(c, model.JobTypePostRoom3Request, `{"requested_exam":"胃镜"}`)

	res := f.handlers.PostRoom3Request(ctx, job)
	require.Equal(t, workers.OutcomeSuccess, res.Outcome, "应该成功: %v", res.Err)

	require.Len(t, f.messenger.posts, 2, "应该发布申请与回执")
	assert.Contains(t, f.messenger.posts[0].Body, "胃镜")
	for _, p := range f.messenger.posts {
		assert.Equal(t, testRooms.Room3, p.Room)
	}

	ack, err := f.stores.Messages.GetByRoomRef(ctx, testRooms.Room3, f.messenger.posts[1].Ref)
	require.NoError(t, err)
	assert.Equal(t, repository.MessageKindRoom3Ack, ack.Kind)

	status, err := f.stores.Cases.GetStatus(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusWaitAppt, status)
	assert.Equal(t, []string{audit.EventCaseTransition, audit.EventRoom3RequestPosted, audit.EventCaseTransition},
		f.stores.Audit.EventTypes(c.CaseID))

	// 已进入 WAIT_APPT 时重复执行直接成功
	res = f.handlers.PostRoom3Request(ctx, job)
	assert.Equal(t, workers.OutcomeSuccess, res.Outcome)
	assert.Len(t, f.messenger.posts, 2)
}

func TestPostRoom3Request_ResumesAfterPartialPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCase(t, model.CaseStatusR3PostRequest)
	require.NoError(t, f.stores.Messages.Add(ctx, repository.CaseMessage{
		CaseID: c.CaseID, Room: testRooms.Room3, MessageRef: "$req", Kind: repository.MessageKindRoom3Request,
	}))

	res := f.handlers.PostRoom3Request(ctx, jobFor(c, model.JobTypePostRoom3Request, ""))
	require.Equal(t, workers.OutcomeSuccess, res.Outcome)

	require.Len(t, f.messenger.posts, 1, "只补发回执")
	assert.Contains(t, f.messenger.posts[0].Body, "已登记")

	status, err := f.stores.Cases.GetStatus(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusWaitAppt, status)
}

func TestPostRoom3Request_WrongStatusIsFatal(t *testing.T) {
	f := newFixture(t)
	c := f.createCase(t, model.CaseStatusWaitDoctor)

	res := f.handlers.PostRoom3Request(context.Background(), jobFor(c, model.JobTypePostRoom3Request, ""))
	assert.Equal(t, workers.OutcomeFatal, res.Outcome)
	assert.Empty(t, f.messenger.posts)
}

func TestHandlers_Register(t *testing.T) {
	f := newFixture(t)
	reg := workers.NewRegistry()

	require.NoError(t, f.handlers.Register(reg))
	assert.Equal(t, []string{
		model.JobTypePostRoom1FinalAccepted,
		model.JobTypePostRoom1FinalDenied,
		model.JobTypePostRoom1FinalFailure,
		model.JobTypePostRoom3Request,
	}, reg.Types())

	assert.Error(t, f.handlers.Register(reg), "重复注册应该失败")
}
