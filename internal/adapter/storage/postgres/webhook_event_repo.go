package postgres

import (
	"context"
	"fmt"

	"payment-status-relay/internal/core/domain"
)

const maxEventListLimit = 500

// WebhookEventRepo implements ports.WebhookEventRepository.
// webhook_events is append-only: no updates, no uniqueness constraint, no
// foreign key to payments; every delivery attempt is its own row.
type WebhookEventRepo struct {
	pool Pool
}

// NewWebhookEventRepo creates a new WebhookEventRepo.
func NewWebhookEventRepo(pool Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

// Create appends one audit entry.
func (r *WebhookEventRepo) Create(ctx context.Context, e *domain.WebhookEvent) error {
	query := `INSERT INTO webhook_events (id, payment_id, status, error, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.PaymentID, string(e.Status), e.Error, e.Payload, e.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

// List fetches events most-recent-first, limit clamped to 500.
func (r *WebhookEventRepo) List(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	limit = clampLimit(limit, maxEventListLimit)

	query := `SELECT id, payment_id, status, error, payload, received_at
		FROM webhook_events ORDER BY received_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		e := domain.WebhookEvent{}
		var status string
		if err := rows.Scan(&e.ID, &e.PaymentID, &status, &e.Error, &e.Payload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan webhook event row: %w", err)
		}
		e.Status = domain.WebhookEventStatus(status)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook event rows: %w", err)
	}
	return events, nil
}
