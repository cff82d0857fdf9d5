package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"payment-status-relay/internal/core/domain"
	"payment-status-relay/internal/core/ports"
)

// --- In-Memory Payment Repo ---

// inMemoryPaymentRepo mirrors the postgres merge semantics: created_at is
// first-write-wins, confirmed only ever goes up, empty incoming values never
// overwrite stored ones.
type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[string]*domain.PaymentRecord
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[string]*domain.PaymentRecord)}
}

func (r *inMemoryPaymentRepo) UpsertOnCreate(ctx context.Context, p *domain.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.payments[p.PaymentID]
	if !ok {
		rec := *p
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = &now
		r.payments[p.PaymentID] = &rec
		return nil
	}

	mergeStr := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	mergePtr := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}

	mergeStr(&existing.OrderID, p.OrderID)
	mergeStr(&existing.InvoiceAmount, p.InvoiceAmount)
	mergeStr(&existing.InvoiceCurrency, p.InvoiceCurrency)
	mergeStr(&existing.Currency, p.Currency)
	mergeStr(&existing.Address, p.Address)
	mergePtr(&existing.CryptoAmount, p.CryptoAmount)
	mergePtr(&existing.Status, p.Status)
	mergePtr(&existing.State, p.State)
	if p.Confirmed > existing.Confirmed {
		existing.Confirmed = p.Confirmed
	}
	mergePtr(&existing.ConfirmedTime, p.ConfirmedTime)
	mergePtr(&existing.AmountExchange, p.AmountExchange)
	mergePtr(&existing.NetworkProcessingFee, p.NetworkProcessingFee)
	mergePtr(&existing.LastTransactionTime, p.LastTransactionTime)
	mergePtr(&existing.InvoiceDate, p.InvoiceDate)
	mergePtr(&existing.PayerID, p.PayerID)
	mergePtr(&existing.CustomerEmail, p.CustomerEmail)
	mergePtr(&existing.PrintString, p.PrintString)
	existing.UpdatedAt = &now
	return nil
}

func (r *inMemoryPaymentRepo) ApplyPartialUpdate(ctx context.Context, paymentID string, u *domain.StatusUpdate) error {
	if u.IsEmpty() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[paymentID]
	if !ok {
		return domain.ErrPaymentNotFound
	}

	apply := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	apply(&p.Status, u.Status)
	apply(&p.State, u.State)
	apply(&p.ConfirmedTime, u.ConfirmedTime)
	apply(&p.CryptoAmount, u.CryptoAmount)
	apply(&p.PrintString, u.PrintString)
	apply(&p.AmountExchange, u.AmountExchange)
	apply(&p.NetworkProcessingFee, u.NetworkProcessingFee)
	apply(&p.LastTransactionTime, u.LastTransactionTime)
	apply(&p.InvoiceDate, u.InvoiceDate)
	apply(&p.PayerID, u.PayerID)
	if u.Confirmed != nil && *u.Confirmed > p.Confirmed {
		p.Confirmed = *u.Confirmed
	}
	now := time.Now().UTC()
	p.UpdatedAt = &now
	return nil
}

func (r *inMemoryPaymentRepo) Get(ctx context.Context, paymentID string) (*domain.PaymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, nil
	}
	rec := *p
	return &rec, nil
}

func (r *inMemoryPaymentRepo) List(ctx context.Context, limit int) ([]domain.PaymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.PaymentRecord
	for _, p := range r.payments {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return lastActivity(&result[i]).After(lastActivity(&result[j]))
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryPaymentRepo) ListStalePending(ctx context.Context, minAge time.Duration, limit int) ([]domain.PaymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-minAge)
	var result []domain.PaymentRecord
	for _, p := range r.payments {
		if p.IsTerminal() {
			continue
		}
		if !lastActivity(p).Before(cutoff) {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func lastActivity(p *domain.PaymentRecord) time.Time {
	if p.UpdatedAt != nil {
		return *p.UpdatedAt
	}
	return p.CreatedAt
}

// --- In-Memory Webhook Event Repo ---

type inMemoryWebhookEventRepo struct {
	mu     sync.RWMutex
	events []domain.WebhookEvent
}

func newInMemoryWebhookEventRepo() *inMemoryWebhookEventRepo {
	return &inMemoryWebhookEventRepo{}
}

func (r *inMemoryWebhookEventRepo) Create(ctx context.Context, e *domain.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *inMemoryWebhookEventRepo) List(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.WebhookEvent, len(r.events))
	copy(result, r.events)
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.After(result[j].ReceivedAt)
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// --- Fake Provider ---

// fakeProvider returns a canned response per payment_id and records calls.
type fakeProvider struct {
	mu        sync.Mutex
	responses map[string]map[string]any
	errs      map[string]error
	calls     []ports.CheckPaymentRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		responses: make(map[string]map[string]any),
		errs:      make(map[string]error),
	}
}

func (f *fakeProvider) setResponse(paymentID string, resp map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[paymentID] = resp
	delete(f.errs, paymentID)
}

func (f *fakeProvider) setError(paymentID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[paymentID] = err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) CheckPayment(ctx context.Context, req ports.CheckPaymentRequest) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err, ok := f.errs[req.PaymentID]; ok {
		return nil, err
	}
	if resp, ok := f.responses[req.PaymentID]; ok {
		return resp, nil
	}
	return map[string]any{"state": "pending"}, nil
}
