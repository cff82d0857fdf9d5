package ports

import (
	"context"
	"io"
	"time"

	"payment-status-relay/internal/core/domain"
)

// ProviderClient queries the upstream payment processor for authoritative
// payment status. The response shape varies between provider versions, so it
// is returned raw and normalized by the caller.
type ProviderClient interface {
	CheckPayment(ctx context.Context, req CheckPaymentRequest) (map[string]any, error)
}

// CheckPaymentRequest identifies a payment at the provider.
type CheckPaymentRequest struct {
	PaymentID string
	Currency  string
	Address   string
}

// WebhookCallback carries one inbound webhook delivery attempt.
type WebhookCallback struct {
	Token      string // shared-secret query token
	PaymentID  string
	Currency   string
	Address    string
	RawPayload string // raw body, stored verbatim in the audit log
}

// ReconcileResult summarizes the stored record after a reconciliation step.
type ReconcileResult struct {
	PaymentID    string
	State        string
	Confirmed    int
	CryptoAmount string
}

// SweepStats counts the outcome of one periodic sweep cycle.
type SweepStats struct {
	Scanned int
	Updated int
	Failed  int
}

// ReconciliationService is the single funnel for all status update sources:
// webhook callbacks, manual rechecks and the periodic sweep.
type ReconciliationService interface {
	// ProcessWebhook validates and processes a callback. Every call writes
	// exactly one audit entry, whatever the outcome.
	ProcessWebhook(ctx context.Context, cb WebhookCallback) (*ReconcileResult, error)

	// Recheck re-queries the provider for a known payment. Fails with a
	// not-found error if the record is absent.
	Recheck(ctx context.Context, paymentID string) (*ReconcileResult, error)

	// SweepOnce reconciles one bounded batch of stale-pending records.
	// Per-record failures are logged and do not abort the batch.
	SweepOnce(ctx context.Context) (SweepStats, error)
}

// ReportingService serves the read-only POS endpoints.
type ReportingService interface {
	ListPayments(ctx context.Context, limit int) ([]domain.PaymentRecord, error)
	GetPayment(ctx context.Context, paymentID string) (*domain.PaymentRecord, error)
	WriteCSV(ctx context.Context, w io.Writer, limit int) error
	ListWebhookEvents(ctx context.Context, limit int) ([]domain.WebhookEvent, error)
}

// SweepLease serializes sweep cycles across instances.
type SweepLease interface {
	// Acquire returns true if this instance holds the lease for the next ttl.
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
}
