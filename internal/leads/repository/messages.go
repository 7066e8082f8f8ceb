package repository

import (
	"context"
	"encoding/json"
	"errors"

	"thor_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, user_id, lead_id, channel, subject, body, n8n_run_id, external_run_id, provider_message_id, status, meta, created_at, updated_at`

// CreateMessageParams describes an outbound message recorded at dispatch time.
type CreateMessageParams struct {
	OwnerID  uuid.UUID
	LeadID   uuid.UUID
	Channel  string
	Subject  *string
	Body     *string
	N8NRunID string
	Status   domain.MessageStatus
}

// MessageCallbackParams is the delivery update reported by the runner.
type MessageCallbackParams struct {
	Status            domain.MessageStatus
	ProviderMessageID *string
	// Meta is merged into the stored meta object key by key.
	Meta map[string]any
}

func scanMessage(row rowScanner) (domain.OutboundMessage, error) {
	var m domain.OutboundMessage
	var status string
	var meta []byte
	err := row.Scan(
		&m.ID, &m.OwnerID, &m.LeadID, &m.Channel, &m.Subject, &m.Body,
		&m.N8NRunID, &m.ExternalRunID, &m.ProviderMessageID, &status, &meta,
		&m.CreatedAt, &m.UpdatedAt,
	)
	m.Status = domain.MessageStatus(status)
	m.Meta = json.RawMessage(meta)
	return m, err
}

func (r *Repository) CreateMessage(ctx context.Context, params CreateMessageParams) (domain.OutboundMessage, error) {
	status := params.Status
	if status == "" {
		status = domain.MessageSent
	}
	channel := params.Channel
	if channel == "" {
		channel = domain.ChannelEmail
	}
	return scanMessage(r.pool.QueryRow(ctx, `
		INSERT INTO thor_outbound_messages (user_id, lead_id, channel, subject, body, n8n_run_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+messageColumns,
		params.OwnerID, params.LeadID, channel, params.Subject, params.Body, params.N8NRunID, string(status),
	))
}

func (r *Repository) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM thor_outbound_messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *Repository) SetExternalRunID(ctx context.Context, id uuid.UUID, externalRunID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE thor_outbound_messages SET external_run_id = $2, updated_at = now()
		WHERE id = $1
	`, id, externalRunID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *Repository) ApplyMessageCallback(ctx context.Context, runID string, params MessageCallbackParams) ([]domain.OutboundMessage, error) {
	meta := params.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	encodedMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		UPDATE thor_outbound_messages
		SET status = $2,
			provider_message_id = COALESCE($3, provider_message_id),
			meta = COALESCE(meta, '{}'::jsonb) || $4::jsonb,
			updated_at = now()
		WHERE n8n_run_id = $1 OR external_run_id = $1
		RETURNING `+messageColumns,
		runID, string(params.Status), params.ProviderMessageID, encodedMeta,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.OutboundMessage, 0, 1)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) LatestMessage(ctx context.Context, ownerID, leadID uuid.UUID) (*domain.OutboundMessage, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM thor_outbound_messages
		WHERE lead_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, leadID, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
