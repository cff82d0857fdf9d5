package dto

import (
	"payment-status-relay/internal/core/domain"
)

// WebhookAck is the body a webhook sender receives on success.
type WebhookAck struct {
	OK bool `json:"ok"`
}

// RecheckResponse is the body for a successful manual recheck.
type RecheckResponse struct {
	OK           bool   `json:"ok"`
	State        string `json:"state"`
	Confirmed    int    `json:"confirmed"`
	CryptoAmount string `json:"crypto_amount,omitempty"`
}

// PaymentResponse is the POS-facing view of a payment record.
type PaymentResponse struct {
	PaymentID       string  `json:"payment_id"`
	OrderID         string  `json:"order_id"`
	InvoiceAmount   string  `json:"invoice_amount"`
	InvoiceCurrency string  `json:"invoice_currency"`
	Currency        string  `json:"currency"`
	Address         string  `json:"address"`
	CryptoAmount    *string `json:"crypto_amount,omitempty"`
	Status          *string `json:"status,omitempty"`
	State           *string `json:"state,omitempty"`
	Confirmed       int     `json:"confirmed"`
	ConfirmedTime   *string `json:"confirmed_time,omitempty"`
	PayerID         *string `json:"payer_id,omitempty"`
	CustomerEmail   *string `json:"customer_email,omitempty"`
	PrintString     *string `json:"print_string,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       *string `json:"updated_at,omitempty"`
}

// WebhookEventResponse is one audit log entry.
type WebhookEventResponse struct {
	ID         string  `json:"id"`
	PaymentID  *string `json:"payment_id,omitempty"`
	Status     string  `json:"status"`
	Error      *string `json:"error,omitempty"`
	Payload    string  `json:"payload"`
	ReceivedAt string  `json:"received_at"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// FromPaymentRecord converts a domain record to its DTO.
func FromPaymentRecord(p *domain.PaymentRecord) PaymentResponse {
	resp := PaymentResponse{
		PaymentID:       p.PaymentID,
		OrderID:         p.OrderID,
		InvoiceAmount:   p.InvoiceAmount,
		InvoiceCurrency: p.InvoiceCurrency,
		Currency:        p.Currency,
		Address:         p.Address,
		CryptoAmount:    p.CryptoAmount,
		Status:          p.Status,
		State:           p.State,
		Confirmed:       p.Confirmed,
		ConfirmedTime:   p.ConfirmedTime,
		PayerID:         p.PayerID,
		CustomerEmail:   p.CustomerEmail,
		PrintString:     p.PrintString,
		CreatedAt:       p.CreatedAt.UTC().Format(timeLayout),
	}
	if p.UpdatedAt != nil {
		s := p.UpdatedAt.UTC().Format(timeLayout)
		resp.UpdatedAt = &s
	}
	return resp
}

// FromWebhookEvent converts a domain audit entry to its DTO.
func FromWebhookEvent(e *domain.WebhookEvent) WebhookEventResponse {
	return WebhookEventResponse{
		ID:         e.ID.String(),
		PaymentID:  e.PaymentID,
		Status:     string(e.Status),
		Error:      e.Error,
		Payload:    e.Payload,
		ReceivedAt: e.ReceivedAt.UTC().Format(timeLayout),
	}
}
