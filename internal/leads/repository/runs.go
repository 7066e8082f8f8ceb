package repository

import (
	"context"
	"errors"
	"time"

	"thor_backend/internal/leads/domain"

	"github.com/jackc/pgx/v5"
)

func (r *Repository) CreateRun(ctx context.Context, run domain.DispatchRun) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO thor_dispatch_runs (run_id, user_id, kind, lead_id)
		VALUES ($1, $2, $3, $4)
	`, run.RunID, run.OwnerID, string(run.Kind), run.LeadID)
	return err
}

func (r *Repository) GetRun(ctx context.Context, runID string) (domain.DispatchRun, error) {
	var run domain.DispatchRun
	var kind string
	err := r.pool.QueryRow(ctx, `
		SELECT run_id, user_id, kind, lead_id, outcome, created_at, completed_at
		FROM thor_dispatch_runs
		WHERE run_id = $1
	`, runID).Scan(&run.RunID, &run.OwnerID, &kind, &run.LeadID, &run.Outcome, &run.CreatedAt, &run.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DispatchRun{}, ErrRunNotFound
	}
	run.Kind = domain.JobKind(kind)
	return run, err
}

func (r *Repository) DeleteRun(ctx context.Context, runID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM thor_dispatch_runs WHERE run_id = $1`, runID)
	return err
}

func (r *Repository) CompleteRun(ctx context.Context, runID, outcome string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE thor_dispatch_runs
		SET outcome = $2, completed_at = COALESCE(completed_at, now())
		WHERE run_id = $1
	`, runID, outcome)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// DeleteCompletedRunsBefore removes runs whose callback arrived before cutoff.
func (r *Repository) DeleteCompletedRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM thor_dispatch_runs
		WHERE completed_at IS NOT NULL AND completed_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
