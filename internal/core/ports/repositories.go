package ports

import (
	"context"
	"time"

	"payment-status-relay/internal/core/domain"
)

// PaymentRepository defines persistence operations for payment records.
// Implementations must provide atomic per-row upsert semantics: two racing
// callers must not lose each other's updates, created_at is first-write-wins
// and confirmed never regresses from 1 to 0.
type PaymentRepository interface {
	// UpsertOnCreate inserts a record, or merges it into an existing row
	// keyed by payment_id. Empty incoming fields never overwrite stored ones.
	UpsertOnCreate(ctx context.Context, record *domain.PaymentRecord) error

	// ApplyPartialUpdate writes only the fields present in update and always
	// refreshes updated_at. An empty update is a no-op. Returns
	// domain.ErrPaymentNotFound if the row does not exist.
	ApplyPartialUpdate(ctx context.Context, paymentID string, update *domain.StatusUpdate) error

	// Get returns (nil, nil) when the payment does not exist.
	Get(ctx context.Context, paymentID string) (*domain.PaymentRecord, error)

	// List returns records ordered by most-recent-activity-first. The limit
	// is clamped server-side.
	List(ctx context.Context, limit int) ([]domain.PaymentRecord, error)

	// ListStalePending returns non-terminal records whose last activity is
	// older than minAge, oldest first, bounded by limit.
	ListStalePending(ctx context.Context, minAge time.Duration, limit int) ([]domain.PaymentRecord, error)
}

// WebhookEventRepository defines the append-only webhook audit log.
type WebhookEventRepository interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
	// List returns events most-recent-first, limit clamped server-side.
	List(ctx context.Context, limit int) ([]domain.WebhookEvent, error)
}
