package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEventStatus tags the outcome of one inbound webhook delivery attempt.
type WebhookEventStatus string

const (
	WebhookEventReceived     WebhookEventStatus = "received"
	WebhookEventInvalidToken WebhookEventStatus = "invalid_token"
	WebhookEventBadRequest   WebhookEventStatus = "bad_request"
	WebhookEventUpdated      WebhookEventStatus = "updated"
	WebhookEventError        WebhookEventStatus = "error"
)

// WebhookEvent is an append-only audit entry, one per delivery attempt.
// Duplicates are expected and valid; payment_id may be absent on malformed
// requests and may reference a payment that does not (yet) exist.
type WebhookEvent struct {
	ID         uuid.UUID          `json:"id"`
	PaymentID  *string            `json:"payment_id,omitempty"`
	Status     WebhookEventStatus `json:"status"`
	Error      *string            `json:"error,omitempty"`
	Payload    string             `json:"payload"` // raw inbound body
	ReceivedAt time.Time          `json:"received_at"`
}
