package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"thor_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `id, user_id, search_string, title, category_name, address, phone, website, status, run_id, created_at, updated_at`

// UpdateLeadParams carries a partial lead edit; nil fields are left untouched.
type UpdateLeadParams struct {
	SearchString *string
	Title        *string
	CategoryName *string
	Address      *string
	Phone        *string
	Website      *string
	Status       *domain.Status
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var lead domain.Lead
	var status string
	err := row.Scan(
		&lead.ID, &lead.OwnerID, &lead.SearchString, &lead.Title, &lead.CategoryName,
		&lead.Address, &lead.Phone, &lead.Website, &status, &lead.RunID,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	lead.Status = domain.Status(status)
	return lead, err
}

func (r *Repository) GetLead(ctx context.Context, ownerID, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM thor_leads
		WHERE id = $1 AND user_id = $2
	`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) ListLeads(ctx context.Context, ownerID uuid.UUID) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM thor_leads
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (r *Repository) UpdateLead(ctx context.Context, ownerID, id uuid.UUID, params UpdateLeadParams) (domain.Lead, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	var status string
	if params.Status != nil {
		status = string(*params.Status)
	}

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.SearchString != nil, "search_string", derefString(params.SearchString)},
		{params.Title != nil, "title", derefString(params.Title)},
		{params.CategoryName != nil, "category_name", derefString(params.CategoryName)},
		{params.Address != nil, "address", derefString(params.Address)},
		{params.Phone != nil, "phone", derefString(params.Phone)},
		{params.Website != nil, "website", derefString(params.Website)},
		{params.Status != nil, "status", status},
	}

	for _, field := range fields {
		if !field.enabled {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetLead(ctx, ownerID, id)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id, ownerID)

	query := fmt.Sprintf(`
		UPDATE thor_leads SET %s
		WHERE id = $%d AND user_id = $%d
		RETURNING `+leadColumns, strings.Join(setClauses, ", "), argIdx, argIdx+1)

	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, status domain.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE thor_leads SET status = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, id, ownerID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateStatusUnscoped(ctx context.Context, id uuid.UUID, status domain.Status) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE thor_leads SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) SetStatusByRun(ctx context.Context, runID string, ownerID *uuid.UUID, status domain.Status) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE thor_leads SET status = $2, updated_at = now()
		WHERE run_id = $1 AND ($3::uuid IS NULL OR user_id = $3::uuid)
	`, runID, string(status), ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) DeleteLead(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM thor_leads WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteLeads(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM thor_leads WHERE id = ANY($1) AND user_id = $2`, ids, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
