package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"payment-status-relay/internal/core/domain"
	"payment-status-relay/internal/core/ports"
	"payment-status-relay/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReconcileServiceImpl implements ports.ReconciliationService. All three
// update sources (webhook, manual recheck, periodic sweep) converge on the
// same check-normalize-apply step. No in-process lock is held across I/O;
// the store's atomic per-row upsert is the only concurrency mechanism.
type ReconcileServiceImpl struct {
	payments    ports.PaymentRepository
	events      ports.WebhookEventRepository
	provider    ports.ProviderClient
	token       string
	sweepMinAge time.Duration
	sweepBatch  int
	log         zerolog.Logger
}

// NewReconcileService creates a new ReconcileServiceImpl. token is the
// shared-secret webhook query token; sweepMinAge/sweepBatch bound each
// sweep cycle.
func NewReconcileService(
	payments ports.PaymentRepository,
	events ports.WebhookEventRepository,
	provider ports.ProviderClient,
	token string,
	sweepMinAge time.Duration,
	sweepBatch int,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	return &ReconcileServiceImpl{
		payments:    payments,
		events:      events,
		provider:    provider,
		token:       token,
		sweepMinAge: sweepMinAge,
		sweepBatch:  sweepBatch,
		log:         log,
	}
}

// ProcessWebhook handles one inbound callback. The payload itself is treated
// as a wake-up signal: monetary and lifecycle fields always come from a fresh
// provider check, never from the webhook body. Exactly one audit entry is
// written per call, whatever the outcome.
func (s *ReconcileServiceImpl) ProcessWebhook(ctx context.Context, cb ports.WebhookCallback) (*ports.ReconcileResult, error) {
	paymentID := optionalID(cb.PaymentID)

	if s.token == "" || subtle.ConstantTimeCompare([]byte(cb.Token), []byte(s.token)) != 1 {
		s.audit(ctx, paymentID, domain.WebhookEventInvalidToken, strPtr("invalid callback token"), cb.RawPayload)
		return nil, apperror.ErrInvalidCallbackToken()
	}

	if missing := missingCallbackFields(cb); len(missing) > 0 {
		detail := "missing: " + strings.Join(missing, ", ")
		s.audit(ctx, paymentID, domain.WebhookEventBadRequest, &detail, cb.RawPayload)
		return nil, apperror.ErrMissingCallbackFields(detail)
	}

	// Make sure the correlation row exists before the provider round-trip,
	// so a webhook for a not-yet-created payment still lands somewhere.
	rec := &domain.PaymentRecord{
		PaymentID: cb.PaymentID,
		Currency:  cb.Currency,
		Address:   cb.Address,
	}
	if err := s.payments.UpsertOnCreate(ctx, rec); err != nil {
		s.audit(ctx, paymentID, domain.WebhookEventError, errPtr(err), cb.RawPayload)
		return nil, apperror.ErrDatabaseError(err)
	}

	raw, err := s.provider.CheckPayment(ctx, ports.CheckPaymentRequest{
		PaymentID: cb.PaymentID,
		Currency:  cb.Currency,
		Address:   cb.Address,
	})
	if err != nil {
		s.audit(ctx, paymentID, domain.WebhookEventError, errPtr(err), cb.RawPayload)
		return nil, apperror.ErrProviderCheckFailed(err)
	}

	update := NormalizeProviderStatus(raw)
	if update.IsEmpty() {
		// Valid delivery, nothing to change.
		s.audit(ctx, paymentID, domain.WebhookEventReceived, nil, cb.RawPayload)
		return s.result(ctx, cb.PaymentID, update), nil
	}

	if err := s.payments.ApplyPartialUpdate(ctx, cb.PaymentID, update); err != nil {
		s.audit(ctx, paymentID, domain.WebhookEventError, errPtr(err), cb.RawPayload)
		return nil, apperror.ErrDatabaseError(err)
	}

	s.audit(ctx, paymentID, domain.WebhookEventUpdated, nil, cb.RawPayload)

	s.log.Info().
		Str("payment_id", cb.PaymentID).
		Msg("webhook reconciliation applied")

	return s.result(ctx, cb.PaymentID, update), nil
}

// Recheck re-queries the provider for a known payment using its stored
// currency and address.
func (s *ReconcileServiceImpl) Recheck(ctx context.Context, paymentID string) (*ports.ReconcileResult, error) {
	rec, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if rec == nil {
		return nil, apperror.ErrPaymentNotFound()
	}

	update, err := s.checkAndApply(ctx, rec)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("payment_id", paymentID).
		Msg("manual recheck applied")

	return s.result(ctx, paymentID, update), nil
}

// SweepOnce reconciles one bounded batch of stale-pending records. A failed
// record is logged and skipped; it stays eligible for the next cycle.
func (s *ReconcileServiceImpl) SweepOnce(ctx context.Context) (ports.SweepStats, error) {
	stats := ports.SweepStats{}

	batch, err := s.payments.ListStalePending(ctx, s.sweepMinAge, s.sweepBatch)
	if err != nil {
		return stats, apperror.ErrDatabaseError(err)
	}
	stats.Scanned = len(batch)

	for i := range batch {
		rec := &batch[i]
		if _, err := s.checkAndApply(ctx, rec); err != nil {
			s.log.Error().Err(err).
				Str("payment_id", rec.PaymentID).
				Msg("sweep: reconcile failed, continuing with next record")
			stats.Failed++
			continue
		}
		stats.Updated++
	}

	return stats, nil
}

// checkAndApply is the shared reconcile step: query the provider, normalize,
// apply. The stored record is only touched after a fully parsed response.
func (s *ReconcileServiceImpl) checkAndApply(ctx context.Context, rec *domain.PaymentRecord) (*domain.StatusUpdate, error) {
	raw, err := s.provider.CheckPayment(ctx, ports.CheckPaymentRequest{
		PaymentID: rec.PaymentID,
		Currency:  rec.Currency,
		Address:   rec.Address,
	})
	if err != nil {
		return nil, apperror.ErrProviderCheckFailed(err)
	}

	update := NormalizeProviderStatus(raw)
	if update.IsEmpty() {
		return update, nil
	}

	if err := s.payments.ApplyPartialUpdate(ctx, rec.PaymentID, update); err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, apperror.ErrPaymentNotFound()
		}
		return nil, apperror.ErrDatabaseError(err)
	}
	return update, nil
}

// result reads back the stored record so the caller sees the post-merge
// state (including a confirmed flag a stale check could not lower). Falls
// back to the update values if the read fails.
func (s *ReconcileServiceImpl) result(ctx context.Context, paymentID string, update *domain.StatusUpdate) *ports.ReconcileResult {
	res := &ports.ReconcileResult{PaymentID: paymentID}

	rec, err := s.payments.Get(ctx, paymentID)
	if err != nil || rec == nil {
		if err != nil {
			s.log.Warn().Err(err).Str("payment_id", paymentID).Msg("result readback failed")
		}
		if update != nil {
			if update.State != nil {
				res.State = *update.State
			}
			if update.Confirmed != nil {
				res.Confirmed = *update.Confirmed
			}
			if update.CryptoAmount != nil {
				res.CryptoAmount = *update.CryptoAmount
			}
		}
		return res
	}

	if rec.State != nil {
		res.State = *rec.State
	}
	res.Confirmed = rec.Confirmed
	if rec.CryptoAmount != nil {
		res.CryptoAmount = *rec.CryptoAmount
	}
	return res
}

// audit appends one webhook event entry. Written synchronously so every
// callback attempt leaves exactly one trace; a failed write is logged but
// never fails the request on its own.
func (s *ReconcileServiceImpl) audit(ctx context.Context, paymentID *string, status domain.WebhookEventStatus, errMsg *string, payload string) {
	event := &domain.WebhookEvent{
		ID:         uuid.New(),
		PaymentID:  paymentID,
		Status:     status,
		Error:      errMsg,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("status", string(status)).
			Msg("failed to persist webhook event")
	}
}

func missingCallbackFields(cb ports.WebhookCallback) []string {
	var missing []string
	if cb.PaymentID == "" {
		missing = append(missing, "payment_id")
	}
	if cb.Currency == "" {
		missing = append(missing, "currency")
	}
	if cb.Address == "" {
		missing = append(missing, "address")
	}
	return missing
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func strPtr(s string) *string { return &s }

func errPtr(err error) *string {
	msg := err.Error()
	return &msg
}
