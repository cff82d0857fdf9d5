package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-status-relay/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const (
	maxListLimit         = 200
	maxStalePendingLimit = 100
)

// paymentColumns is the canonical column order for payments queries.
const paymentColumns = `payment_id, order_id, invoice_amount, invoice_currency, currency, address,
	crypto_amount, status, state, confirmed, confirmed_time, amount_exchange,
	network_processing_fee, last_transaction_time, invoice_date, payer_id,
	customer_email, print_string, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// UpsertOnCreate inserts a payment record or merges it into the existing row.
// The merge is a single statement, so racing callers cannot lose updates:
// created_at stays first-write-wins, confirmed only ever goes up, and empty
// or NULL incoming values never overwrite stored ones.
func (r *PaymentRepo) UpsertOnCreate(ctx context.Context, p *domain.PaymentRecord) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (payment_id) DO UPDATE SET
			order_id = COALESCE(NULLIF(EXCLUDED.order_id, ''), payments.order_id),
			invoice_amount = COALESCE(NULLIF(EXCLUDED.invoice_amount, ''), payments.invoice_amount),
			invoice_currency = COALESCE(NULLIF(EXCLUDED.invoice_currency, ''), payments.invoice_currency),
			currency = COALESCE(NULLIF(EXCLUDED.currency, ''), payments.currency),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), payments.address),
			crypto_amount = COALESCE(EXCLUDED.crypto_amount, payments.crypto_amount),
			status = COALESCE(EXCLUDED.status, payments.status),
			state = COALESCE(EXCLUDED.state, payments.state),
			confirmed = GREATEST(payments.confirmed, EXCLUDED.confirmed),
			confirmed_time = COALESCE(EXCLUDED.confirmed_time, payments.confirmed_time),
			amount_exchange = COALESCE(EXCLUDED.amount_exchange, payments.amount_exchange),
			network_processing_fee = COALESCE(EXCLUDED.network_processing_fee, payments.network_processing_fee),
			last_transaction_time = COALESCE(EXCLUDED.last_transaction_time, payments.last_transaction_time),
			invoice_date = COALESCE(EXCLUDED.invoice_date, payments.invoice_date),
			payer_id = COALESCE(EXCLUDED.payer_id, payments.payer_id),
			customer_email = COALESCE(EXCLUDED.customer_email, payments.customer_email),
			print_string = COALESCE(EXCLUDED.print_string, payments.print_string),
			updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := r.pool.Exec(ctx, query,
		p.PaymentID, p.OrderID, p.InvoiceAmount, p.InvoiceCurrency, p.Currency, p.Address,
		p.CryptoAmount, p.Status, p.State, p.Confirmed, p.ConfirmedTime, p.AmountExchange,
		p.NetworkProcessingFee, p.LastTransactionTime, p.InvoiceDate, p.PayerID,
		p.CustomerEmail, p.PrintString, createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

// ApplyPartialUpdate writes only the fields present in the update and always
// refreshes updated_at. confirmed is written through GREATEST so a stale
// check can never clear a confirmed payment.
func (r *PaymentRepo) ApplyPartialUpdate(ctx context.Context, paymentID string, u *domain.StatusUpdate) error {
	if u.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	idx := 1

	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
			args = append(args, *v)
			idx++
		}
	}

	add("status", u.Status)
	add("state", u.State)
	add("confirmed_time", u.ConfirmedTime)
	add("crypto_amount", u.CryptoAmount)
	add("print_string", u.PrintString)
	add("amount_exchange", u.AmountExchange)
	add("network_processing_fee", u.NetworkProcessingFee)
	add("last_transaction_time", u.LastTransactionTime)
	add("invoice_date", u.InvoiceDate)
	add("payer_id", u.PayerID)

	if u.Confirmed != nil {
		sets = append(sets, fmt.Sprintf("confirmed = GREATEST(confirmed, $%d)", idx))
		args = append(args, *u.Confirmed)
		idx++
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", idx))
	args = append(args, time.Now().UTC())
	idx++

	query := fmt.Sprintf("UPDATE payments SET %s WHERE payment_id = $%d", strings.Join(sets, ", "), idx)
	args = append(args, paymentID)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply partial update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// Get fetches a payment by its provider-issued id. Returns (nil, nil) when absent.
func (r *PaymentRepo) Get(ctx context.Context, paymentID string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	return r.scanPayment(r.pool.QueryRow(ctx, query, paymentID))
}

// List fetches payments ordered by most-recent-activity-first.
func (r *PaymentRepo) List(ctx context.Context, limit int) ([]domain.PaymentRecord, error) {
	limit = clampLimit(limit, maxListLimit)

	query := `SELECT ` + paymentColumns + ` FROM payments
		ORDER BY COALESCE(updated_at, created_at) DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

// ListStalePending fetches non-terminal records whose last activity is older
// than minAge, oldest first. Feed for the periodic sweep.
func (r *PaymentRepo) ListStalePending(ctx context.Context, minAge time.Duration, limit int) ([]domain.PaymentRecord, error) {
	limit = clampLimit(limit, maxStalePendingLimit)
	cutoff := time.Now().UTC().Add(-minAge)

	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE confirmed = 0
		  AND (state IS NULL OR state IN ('', 'created', 'pending'))
		  AND COALESCE(updated_at, created_at) < $1
		ORDER BY created_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

func collectPayments(rows pgx.Rows) ([]domain.PaymentRecord, error) {
	var records []domain.PaymentRecord
	for rows.Next() {
		p := domain.PaymentRecord{}
		err := rows.Scan(
			&p.PaymentID, &p.OrderID, &p.InvoiceAmount, &p.InvoiceCurrency, &p.Currency, &p.Address,
			&p.CryptoAmount, &p.Status, &p.State, &p.Confirmed, &p.ConfirmedTime, &p.AmountExchange,
			&p.NetworkProcessingFee, &p.LastTransactionTime, &p.InvoiceDate, &p.PayerID,
			&p.CustomerEmail, &p.PrintString, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return records, nil
}

// scanPayment is a helper to scan a single row into a PaymentRecord.
func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.PaymentRecord, error) {
	p := &domain.PaymentRecord{}
	err := row.Scan(
		&p.PaymentID, &p.OrderID, &p.InvoiceAmount, &p.InvoiceCurrency, &p.Currency, &p.Address,
		&p.CryptoAmount, &p.Status, &p.State, &p.Confirmed, &p.ConfirmedTime, &p.AmountExchange,
		&p.NetworkProcessingFee, &p.LastTransactionTime, &p.InvoiceDate, &p.PayerID,
		&p.CustomerEmail, &p.PrintString, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}
