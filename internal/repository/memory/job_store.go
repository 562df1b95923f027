package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azhengyongqin/caseflow/internal/backoff"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// JobStore 进程内作业队列，语义与 PostgreSQL 实现一致（用于开发模式与测试）
type JobStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*repository.Job // key: job id

	policy backoff.Policy
	now    func() time.Time
}

// NewJobStore 创建内存作业队列；now 为 nil 时使用 time.Now
func NewJobStore(policy backoff.Policy, now func() time.Time) *JobStore {
	if now == nil {
		now = time.Now
	}
	return &JobStore{
		items:  map[int64]*repository.Job{},
		policy: policy.Normalize(),
		now:    now,
	}
}

func (s *JobStore) Enqueue(_ context.Context, in repository.EnqueueInput) (*repository.Job, error) {
	if in.JobType == "" {
		return nil, errors.New("job_type 不能为空")
	}
	if len(in.Payload) == 0 {
		in.Payload = json.RawMessage(`{}`)
	}
	if !json.Valid(in.Payload) {
		return nil, errors.New("payload 不是合法 JSON")
	}
	if in.MaxAttempts <= 0 {
		in.MaxAttempts = repository.DefaultMaxAttempts
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	runAfter := in.RunAfter
	if runAfter.IsZero() {
		runAfter = now
	}

	s.nextID++
	job := &repository.Job{
		ID:          s.nextID,
		CaseID:      copyUUID(in.CaseID),
		JobType:     in.JobType,
		Payload:     append(json.RawMessage(nil), in.Payload...),
		Status:      model.JobStatusQueued,
		MaxAttempts: in.MaxAttempts,
		RunAfter:    runAfter,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.items[job.ID] = job
	return cloneJob(job), nil
}

// ClaimBatch 在同一把锁内完成选取与状态翻转
func (s *JobStore) ClaimBatch(_ context.Context, workerID string, limit int, now time.Time) ([]repository.Job, error) {
	if limit < 1 {
		return []repository.Job{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*repository.Job, 0)
	for _, j := range s.items {
		if j.Status == model.JobStatusQueued && !j.RunAfter.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if due[i].RunAfter.Equal(due[k].RunAfter) {
			return due[i].ID < due[k].ID
		}
		return due[i].RunAfter.Before(due[k].RunAfter)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]repository.Job, 0, len(due))
	for _, j := range due {
		claimedAt := now
		j.Status = model.JobStatusRunning
		j.ClaimedBy = workerID
		j.ClaimedAt = &claimedAt
		j.UpdatedAt = s.now()
		out = append(out, *cloneJob(j))
	}
	return out, nil
}

func (s *JobStore) Complete(_ context.Context, id int64, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if j.Status == model.JobStatusDone {
		return nil
	}
	if err := checkOwner(j, workerID); err != nil {
		return err
	}
	j.Status = model.JobStatusDone
	j.UpdatedAt = s.now()
	return nil
}

func (s *JobStore) Fail(_ context.Context, id int64, workerID, errInfo string) (*repository.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.items[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if err := checkOwner(j, workerID); err != nil {
		return nil, false, err
	}

	now := s.now()
	next := j.Attempts + 1
	j.Attempts = next
	j.LastError = errInfo
	j.UpdatedAt = now

	if next < j.MaxAttempts {
		j.Status = model.JobStatusQueued
		j.RunAfter = now.Add(s.policy.Delay(id, next))
		j.ClaimedBy = ""
		j.ClaimedAt = nil
		return cloneJob(j), false, nil
	}

	j.Status = model.JobStatusDead
	return cloneJob(j), true, nil
}

func (s *JobStore) DeadLetter(_ context.Context, id int64, workerID, errInfo string) (*repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := checkOwner(j, workerID); err != nil {
		return nil, err
	}

	j.Status = model.JobStatusDead
	j.Attempts++
	j.LastError = errInfo
	j.UpdatedAt = s.now()
	return cloneJob(j), nil
}

func (s *JobStore) ReconcileRunning(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := s.now()
	for _, j := range s.items {
		if j.Status != model.JobStatusRunning {
			continue
		}
		j.Status = model.JobStatusQueued
		j.ClaimedBy = ""
		j.ClaimedAt = nil
		j.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *JobStore) HasActiveJob(_ context.Context, caseID uuid.UUID, jobType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.items {
		if j.CaseID != nil && *j.CaseID == caseID && j.JobType == jobType && j.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *JobStore) Get(_ context.Context, id int64) (*repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *JobStore) List(_ context.Context, f repository.ListJobsFilter) ([]repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*repository.Job, 0)
	for _, j := range s.items {
		if f.Status != "" && string(j.Status) != f.Status {
			continue
		}
		if f.JobType != "" && j.JobType != f.JobType {
			continue
		}
		if f.CaseID != nil && (j.CaseID == nil || *j.CaseID != *f.CaseID) {
			continue
		}
		matched = append(matched, j)
	}

	// 按 id 倒序
	sort.Slice(matched, func(i, k int) bool { return matched[i].ID > matched[k].ID })

	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + repository.NormalizeLimit(f.Limit)
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]repository.Job, 0, end-offset)
	for _, j := range matched[offset:end] {
		out = append(out, *cloneJob(j))
	}
	return out, nil
}

func (s *JobStore) CountByStatus(_ context.Context) (map[model.JobStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[model.JobStatus]int)
	for _, j := range s.items {
		out[j.Status]++
	}
	return out, nil
}

// checkOwner 作业必须处于 running 且由 workerID 认领
func checkOwner(j *repository.Job, workerID string) error {
	if j.Status != model.JobStatusRunning {
		return fmt.Errorf("%w: job %d is %s", repository.ErrJobNotRunning, j.ID, j.Status)
	}
	if j.ClaimedBy != workerID {
		return fmt.Errorf("%w: job %d is claimed by %q", repository.ErrJobNotRunning, j.ID, j.ClaimedBy)
	}
	return nil
}

func cloneJob(j *repository.Job) *repository.Job {
	c := *j
	c.CaseID = copyUUID(j.CaseID)
	c.Payload = append(json.RawMessage(nil), j.Payload...)
	if j.ClaimedAt != nil {
		t := *j.ClaimedAt
		c.ClaimedAt = &t
	}
	return &c
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
