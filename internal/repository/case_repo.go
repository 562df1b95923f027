package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azhengyongqin/caseflow/internal/model"
)

const caseColumns = `case_id, status, origin_ref, coalesce(final_reply_ref,''), cleanup_triggered_at, coalesce(cleanup_triggered_by,''), cleanup_completed_at, created_at, updated_at`

// CaseRepo 基于 PostgreSQL 的病例仓储
type CaseRepo struct {
	pool *pgxpool.Pool
}

func NewCaseRepo(pool *pgxpool.Pool) *CaseRepo {
	return &CaseRepo{pool: pool}
}

func (r *CaseRepo) Create(ctx context.Context, in CreateCaseInput) (*Case, error) {
	if in.CaseID == uuid.Nil {
		in.CaseID = uuid.New()
	}
	if in.Status == "" {
		in.Status = model.CaseStatusNew
	}
	if !in.Status.Valid() {
		return nil, errors.New("无效的病例状态: " + string(in.Status))
	}

	return scanCase(r.pool.QueryRow(ctx, `
insert into cases(case_id, status, origin_ref)
values ($1, $2, $3)
returning `+caseColumns, pgUUID(in.CaseID), string(in.Status), in.OriginRef))
}

func (r *CaseRepo) Get(ctx context.Context, caseID uuid.UUID) (*Case, error) {
	return scanCase(r.pool.QueryRow(ctx, `select `+caseColumns+` from cases where case_id = $1`, pgUUID(caseID)))
}

func (r *CaseRepo) GetStatus(ctx context.Context, caseID uuid.UUID) (model.CaseStatus, error) {
	var status string
	err := r.pool.QueryRow(ctx, `select status from cases where case_id = $1`, pgUUID(caseID)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return model.CaseStatus(status), nil
}

func (r *CaseRepo) GetByFinalReplyRef(ctx context.Context, ref string) (*Case, error) {
	return scanCase(r.pool.QueryRow(ctx, `select `+caseColumns+` from cases where final_reply_ref = $1`, ref))
}

func (r *CaseRepo) SetStatus(ctx context.Context, caseID uuid.UUID, from, to model.CaseStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
update cases
set status = $3, updated_at = now()
where case_id = $1 and status = $2
`, pgUUID(caseID), string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CaseRepo) SetFinalReplyRef(ctx context.Context, caseID uuid.UUID, ref string) error {
	tag, err := r.pool.Exec(ctx, `
update cases
set final_reply_ref = $2, updated_at = now()
where case_id = $1
`, pgUUID(caseID), ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MaybeTriggerCleanup 条件更新即 CAS：只有 cleanup_triggered_at 仍为 NULL 的第一次调用会影响一行
func (r *CaseRepo) MaybeTriggerCleanup(ctx context.Context, caseID uuid.UUID, actor string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
update cases
set cleanup_triggered_at = now(),
    cleanup_triggered_by = $2,
    status = 'CLEANUP_RUNNING',
    updated_at = now()
where case_id = $1
  and status = 'WAIT_R1_CLEANUP_THUMBS'
  and cleanup_triggered_at is null
`, pgUUID(caseID), actor)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CaseRepo) MarkCleaned(ctx context.Context, caseID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
update cases
set status = 'CLEANED',
    cleanup_completed_at = now(),
    updated_at = now()
where case_id = $1 and status = 'CLEANUP_RUNNING'
`, pgUUID(caseID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CaseRepo) ListByStatus(ctx context.Context, statuses []model.CaseStatus, limit int) ([]Case, error) {
	if len(statuses) == 0 {
		return []Case{}, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, `
select `+caseColumns+`
from cases
where status = any($1)
order by created_at
limit $2
`, values, NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCase(row pgx.Row) (*Case, error) {
	var (
		c      Case
		id     pgtype.UUID
		status string
	)
	err := row.Scan(&id, &status, &c.OriginRef, &c.FinalReplyRef, &c.CleanupTriggeredAt, &c.CleanupTriggeredBy, &c.CleanupCompletedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CaseID = uuid.UUID(id.Bytes)
	c.Status = model.CaseStatus(status)
	return &c, nil
}
