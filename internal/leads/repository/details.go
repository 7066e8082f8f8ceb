package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"thor_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const detailColumns = `id, lead_id, user_id, client_name, website, emails, linkedin, facebook, instagram, twitter, informe, created_at, updated_at`

// CreateDetailParams seeds a detail row for a lead.
type CreateDetailParams struct {
	OwnerID    uuid.UUID
	LeadID     uuid.UUID
	ClientName *string
	Website    *string
	Emails     []string
}

// UpdateDetailParams carries a partial detail edit; nil fields are left untouched.
type UpdateDetailParams struct {
	ClientName *string
	Website    *string
	Emails     *[]string
	LinkedIn   *string
	Facebook   *string
	Instagram  *string
	Twitter    *string
	Informe    *domain.Informe
}

func scanDetail(row rowScanner) (domain.LeadDetail, error) {
	var d domain.LeadDetail
	var informe []byte
	err := row.Scan(
		&d.ID, &d.LeadID, &d.OwnerID, &d.ClientName, &d.Website, &d.Emails,
		&d.Socials.LinkedIn, &d.Socials.Facebook, &d.Socials.Instagram, &d.Socials.Twitter,
		&informe, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return domain.LeadDetail{}, err
	}
	if d.Emails == nil {
		d.Emails = []string{}
	}
	if len(informe) > 0 && string(informe) != "null" {
		var inf domain.Informe
		if err := json.Unmarshal(informe, &inf); err != nil {
			return domain.LeadDetail{}, fmt.Errorf("decode informe: %w", err)
		}
		d.Informe = &inf
	}
	return d, nil
}

func (r *Repository) GetDetail(ctx context.Context, ownerID, leadID uuid.UUID) (domain.LeadDetail, error) {
	detail, err := scanDetail(r.pool.QueryRow(ctx, `
		SELECT `+detailColumns+`
		FROM thor_lead_details
		WHERE lead_id = $1 AND user_id = $2
	`, leadID, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeadDetail{}, ErrDetailNotFound
	}
	return detail, err
}

func (r *Repository) CreateDetail(ctx context.Context, params CreateDetailParams) (domain.LeadDetail, error) {
	emails := params.Emails
	if emails == nil {
		emails = []string{}
	}
	return scanDetail(r.pool.QueryRow(ctx, `
		INSERT INTO thor_lead_details (lead_id, user_id, client_name, website, emails)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+detailColumns,
		params.LeadID, params.OwnerID, params.ClientName, params.Website, emails,
	))
}

func (r *Repository) UpdateDetail(ctx context.Context, ownerID, leadID uuid.UUID, params UpdateDetailParams) (domain.LeadDetail, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	var emails []string
	if params.Emails != nil {
		emails = *params.Emails
		if emails == nil {
			emails = []string{}
		}
	}
	var informe []byte
	if params.Informe != nil {
		encoded, err := json.Marshal(params.Informe)
		if err != nil {
			return domain.LeadDetail{}, err
		}
		informe = encoded
	}

	fields := []struct {
		enabled bool
		column  string
		value   interface{}
	}{
		{params.ClientName != nil, "client_name", derefString(params.ClientName)},
		{params.Website != nil, "website", derefString(params.Website)},
		{params.Emails != nil, "emails", emails},
		{params.LinkedIn != nil, "linkedin", derefString(params.LinkedIn)},
		{params.Facebook != nil, "facebook", derefString(params.Facebook)},
		{params.Instagram != nil, "instagram", derefString(params.Instagram)},
		{params.Twitter != nil, "twitter", derefString(params.Twitter)},
		{params.Informe != nil, "informe", informe},
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
		return r.GetDetail(ctx, ownerID, leadID)
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, leadID, ownerID)

	query := fmt.Sprintf(`
		UPDATE thor_lead_details SET %s
		WHERE lead_id = $%d AND user_id = $%d
		RETURNING `+detailColumns, strings.Join(setClauses, ", "), argIdx, argIdx+1)

	detail, err := scanDetail(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeadDetail{}, ErrDetailNotFound
	}
	return detail, err
}

func (r *Repository) SaveInforme(ctx context.Context, ownerID, leadID uuid.UUID, informe domain.Informe) error {
	encoded, err := json.Marshal(informe)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE thor_lead_details SET informe = $3, updated_at = now()
		WHERE lead_id = $1 AND user_id = $2
	`, leadID, ownerID, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDetailNotFound
	}
	return nil
}

func (r *Repository) DeleteDetailsForLeads(ctx context.Context, ownerID uuid.UUID, leadIDs []uuid.UUID) (int64, error) {
	if len(leadIDs) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM thor_lead_details WHERE lead_id = ANY($1) AND user_id = $2`, leadIDs, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
