package domain

import (
	"errors"
	"time"
)

// ErrPaymentNotFound is returned by stores when a payment_id has no row.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentState is the coarse machine state of a payment.
// The provider vocabulary is open-ended; anything not recognized as
// terminal is treated as still pending and stays eligible for re-check.
type PaymentState string

const (
	PaymentStateCreated   PaymentState = "created"
	PaymentStatePending   PaymentState = "pending"
	PaymentStateConfirmed PaymentState = "confirmed"
	PaymentStateCancelled PaymentState = "cancelled"
)

// IsTerminalState reports whether a state string ends the payment lifecycle.
func IsTerminalState(state string) bool {
	return state == string(PaymentStateConfirmed) || state == string(PaymentStateCancelled)
}

// PaymentRecord is the local system-of-record row for one provider-issued
// payment_id. Invoice terms are set at creation and immutable; lifecycle
// fields are refreshed by reconciliation updates. created_at is
// first-write-wins, confirmed is monotonic once set to 1.
type PaymentRecord struct {
	PaymentID       string `json:"payment_id"`
	OrderID         string `json:"order_id"`
	InvoiceAmount   string `json:"invoice_amount"`
	InvoiceCurrency string `json:"invoice_currency"`
	Currency        string `json:"currency"` // crypto asset
	Address         string `json:"address"`  // receiving address

	CryptoAmount *string `json:"crypto_amount,omitempty"`
	Status       *string `json:"status,omitempty"` // free-text provider status
	State        *string `json:"state,omitempty"`
	Confirmed    int     `json:"confirmed"`

	ConfirmedTime        *string `json:"confirmed_time,omitempty"`
	AmountExchange       *string `json:"amount_exchange,omitempty"`
	NetworkProcessingFee *string `json:"network_processing_fee,omitempty"`
	LastTransactionTime  *string `json:"last_transaction_time,omitempty"`
	InvoiceDate          *string `json:"invoice_date,omitempty"`
	PayerID              *string `json:"payer_id,omitempty"`
	CustomerEmail        *string `json:"customer_email,omitempty"`
	PrintString          *string `json:"print_string,omitempty"` // receipt payload

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// IsTerminal returns true once the payment needs no further reconciliation.
func (p *PaymentRecord) IsTerminal() bool {
	if p.Confirmed != 0 {
		return true
	}
	return p.State != nil && IsTerminalState(*p.State)
}
