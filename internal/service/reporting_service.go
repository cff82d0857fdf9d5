package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"payment-status-relay/internal/core/domain"
	"payment-status-relay/internal/core/ports"
	"payment-status-relay/pkg/apperror"
)

// csvHeader is the column layout of the payments CSV export.
var csvHeader = []string{
	"payment_id", "order_id", "invoice_amount", "invoice_currency",
	"currency", "address", "crypto_amount", "status", "state", "confirmed",
	"confirmed_time", "payer_id", "customer_email", "created_at", "updated_at",
}

// ReportingServiceImpl implements ports.ReportingService.
type ReportingServiceImpl struct {
	payments ports.PaymentRepository
	events   ports.WebhookEventRepository
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(payments ports.PaymentRepository, events ports.WebhookEventRepository) *ReportingServiceImpl {
	return &ReportingServiceImpl{payments: payments, events: events}
}

// ListPayments returns records ordered by most-recent-activity-first.
func (s *ReportingServiceImpl) ListPayments(ctx context.Context, limit int) ([]domain.PaymentRecord, error) {
	records, err := s.payments.List(ctx, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return records, nil
}

// GetPayment returns one record, including the latest printable receipt payload.
func (s *ReportingServiceImpl) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentRecord, error) {
	rec, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if rec == nil {
		return nil, apperror.ErrPaymentNotFound()
	}
	return rec, nil
}

// WriteCSV streams the payment list as CSV. encoding/csv applies standard
// quoting for embedded quotes, commas and newlines.
func (s *ReportingServiceImpl) WriteCSV(ctx context.Context, w io.Writer, limit int) error {
	records, err := s.payments.List(ctx, limit)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return apperror.InternalError(fmt.Errorf("write csv header: %w", err))
	}

	for i := range records {
		p := &records[i]
		row := []string{
			p.PaymentID, p.OrderID, p.InvoiceAmount, p.InvoiceCurrency,
			p.Currency, p.Address, deref(p.CryptoAmount), deref(p.Status),
			deref(p.State), strconv.Itoa(p.Confirmed), deref(p.ConfirmedTime),
			deref(p.PayerID), deref(p.CustomerEmail),
			p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"), formatTime(p),
		}
		if err := cw.Write(row); err != nil {
			return apperror.InternalError(fmt.Errorf("write csv row: %w", err))
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperror.InternalError(fmt.Errorf("flush csv: %w", err))
	}
	return nil
}

// ListWebhookEvents returns audit entries most-recent-first.
func (s *ReportingServiceImpl) ListWebhookEvents(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	events, err := s.events.List(ctx, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return events, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(p *domain.PaymentRecord) string {
	if p.UpdatedAt == nil {
		return ""
	}
	return p.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
}
