package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azhengyongqin/caseflow/internal/backoff"
	"github.com/azhengyongqin/caseflow/internal/model"
)

const jobColumns = `id, case_id, job_type, payload, status, attempts, max_attempts, run_after, coalesce(last_error,''), coalesce(claimed_by,''), claimed_at, created_at, updated_at`

// JobRepo 基于 PostgreSQL 的作业队列
type JobRepo struct {
	pool   *pgxpool.Pool
	policy backoff.Policy
	now    func() time.Time
}

func NewJobRepo(pool *pgxpool.Pool, policy backoff.Policy) *JobRepo {
	return &JobRepo{pool: pool, policy: policy.Normalize(), now: time.Now}
}

func (r *JobRepo) Enqueue(ctx context.Context, in EnqueueInput) (*Job, error) {
	in, err := normalizeEnqueue(in)
	if err != nil {
		return nil, err
	}

	var runAfter *time.Time
	if !in.RunAfter.IsZero() {
		runAfter = &in.RunAfter
	}

	row := r.pool.QueryRow(ctx, `
insert into jobs(case_id, job_type, payload, max_attempts, run_after)
values ($1, $2, $3, $4, coalesce($5::timestamptz, now()))
returning `+jobColumns,
		pgUUIDPtr(in.CaseID), in.JobType, in.Payload, in.MaxAttempts, runAfter)
	return scanJob(row)
}

// ClaimBatch 单条语句完成选取与状态翻转；SKIP LOCKED 保证并发调用方拿到互不相交的集合
func (r *JobRepo) ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]Job, error) {
	if limit < 1 {
		return []Job{}, nil
	}

	rows, err := r.pool.Query(ctx, `
with claim as (
    select id
    from jobs
    where status = 'queued' and run_after <= $2
    order by run_after, id
    for update skip locked
    limit $3
)
update jobs
set status = 'running',
    claimed_by = $1,
    claimed_at = $2,
    updated_at = now()
where id in (select id from claim)
returning `+jobColumns, workerID, now, limit)
	if err != nil {
		return nil, err
	}
	out, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING 不保证顺序
	sort.Slice(out, func(i, j int) bool {
		if out[i].RunAfter.Equal(out[j].RunAfter) {
			return out[i].ID < out[j].ID
		}
		return out[i].RunAfter.Before(out[j].RunAfter)
	})
	return out, nil
}

func (r *JobRepo) Complete(ctx context.Context, id int64, workerID string) error {
	tag, err := r.pool.Exec(ctx, `
update jobs
set status = 'done', updated_at = now()
where id = $1 and status = 'running' and claimed_by = $2
`, id, workerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	status, owner, err := r.claim(ctx, id)
	if err != nil {
		return err
	}
	if status == model.JobStatusDone {
		return nil
	}
	return notOwnedError(id, status, owner)
}

func (r *JobRepo) Fail(ctx context.Context, id int64, workerID, errInfo string) (*Job, bool, error) {
	var (
		out       *Job
		exhausted bool
	)

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			status      string
			owner       *string
			attempts    int
			maxAttempts int
		)
		err := tx.QueryRow(ctx, `select status, claimed_by, attempts, max_attempts from jobs where id = $1 for update`, id).
			Scan(&status, &owner, &attempts, &maxAttempts)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if model.JobStatus(status) != model.JobStatusRunning || owner == nil || *owner != workerID {
			return notOwnedError(id, model.JobStatus(status), deref(owner))
		}

		next := attempts + 1
		if next < maxAttempts {
			runAfter := r.now().Add(r.policy.Delay(id, next))
			out, err = scanJob(tx.QueryRow(ctx, `
update jobs
set status = 'queued',
    attempts = $2,
    run_after = $3,
    last_error = $4,
    claimed_by = null,
    claimed_at = null,
    updated_at = now()
where id = $1
returning `+jobColumns, id, next, runAfter, errInfo))
			return err
		}

		exhausted = true
		out, err = scanJob(tx.QueryRow(ctx, `
update jobs
set status = 'dead',
    attempts = $2,
    last_error = $3,
    updated_at = now()
where id = $1
returning `+jobColumns, id, next, errInfo))
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, exhausted, nil
}

func (r *JobRepo) DeadLetter(ctx context.Context, id int64, workerID, errInfo string) (*Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `
update jobs
set status = 'dead',
    attempts = attempts + 1,
    last_error = $3,
    updated_at = now()
where id = $1 and status = 'running' and claimed_by = $2
returning `+jobColumns, id, workerID, errInfo))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	status, owner, err := r.claim(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, notOwnedError(id, status, owner)
}

func (r *JobRepo) ReconcileRunning(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
update jobs
set status = 'queued',
    claimed_by = null,
    claimed_at = null,
    updated_at = now()
where status = 'running'
`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *JobRepo) HasActiveJob(ctx context.Context, caseID uuid.UUID, jobType string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
select exists(
    select 1 from jobs
    where case_id = $1 and job_type = $2 and status in ('queued', 'running')
)
`, pgUUID(caseID), jobType).Scan(&exists)
	return exists, err
}

func (r *JobRepo) Get(ctx context.Context, id int64) (*Job, error) {
	return scanJob(r.pool.QueryRow(ctx, `select `+jobColumns+` from jobs where id = $1`, id))
}

func (r *JobRepo) List(ctx context.Context, f ListJobsFilter) ([]Job, error) {
	limit := NormalizeLimit(f.Limit)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, `
select `+jobColumns+`
from jobs
where ($1 = '' or status = $1)
  and ($2 = '' or job_type = $2)
  and ($3::uuid is null or case_id = $3)
order by id desc
limit $4 offset $5
`, f.Status, f.JobType, pgUUIDPtr(f.CaseID), limit, offset)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *JobRepo) CountByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	rows, err := r.pool.Query(ctx, `select status, count(*) from jobs group by status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.JobStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[model.JobStatus(status)] = count
	}
	return out, rows.Err()
}

// claim 读取作业状态与当前认领者
func (r *JobRepo) claim(ctx context.Context, id int64) (model.JobStatus, string, error) {
	var (
		status string
		owner  *string
	)
	err := r.pool.QueryRow(ctx, `select status, claimed_by from jobs where id = $1`, id).Scan(&status, &owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return model.JobStatus(status), deref(owner), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// normalizeEnqueue 校验并填充入队参数默认值
func normalizeEnqueue(in EnqueueInput) (EnqueueInput, error) {
	if in.JobType == "" {
		return in, errors.New("job_type 不能为空")
	}
	if len(in.Payload) == 0 {
		in.Payload = json.RawMessage(`{}`)
	}
	if !json.Valid(in.Payload) {
		return in, errors.New("payload 不是合法 JSON")
	}
	if in.MaxAttempts <= 0 {
		in.MaxAttempts = DefaultMaxAttempts
	}
	return in, nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		j       Job
		caseID  pgtype.UUID
		status  string
		payload []byte
	)
	err := row.Scan(&j.ID, &caseID, &j.JobType, &payload, &status, &j.Attempts, &j.MaxAttempts, &j.RunAfter, &j.LastError, &j.ClaimedBy, &j.ClaimedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if caseID.Valid {
		id := uuid.UUID(caseID.Bytes)
		j.CaseID = &id
	}
	j.Status = model.JobStatus(status)
	j.Payload = json.RawMessage(payload)
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]Job, error) {
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgUUIDPtr(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgUUID(*id)
}
