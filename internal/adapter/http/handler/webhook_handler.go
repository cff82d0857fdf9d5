package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"payment-status-relay/internal/adapter/http/dto"
	"payment-status-relay/internal/core/ports"
	"payment-status-relay/pkg/apperror"
	"payment-status-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler handles the inbound provider callback.
type WebhookHandler struct {
	reconcileSvc ports.ReconciliationService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconcileSvc ports.ReconciliationService) *WebhookHandler {
	return &WebhookHandler{reconcileSvc: reconcileSvc}
}

// Callback handles POST /api/forumpay/callback?token=<shared-secret>.
// The body is parsed leniently (JSON or form): a malformed body is not
// rejected here but handed to the service with empty correlation fields so
// the attempt still lands in the audit log as bad_request.
func (h *WebhookHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	fields := parseCallbackBody(c.ContentType(), body)

	_, err = h.reconcileSvc.ProcessWebhook(c.Request.Context(), ports.WebhookCallback{
		Token:      c.Query("token"),
		PaymentID:  fields["payment_id"],
		Currency:   fields["currency"],
		Address:    fields["address"],
		RawPayload: string(body),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAck{OK: true})
}

// parseCallbackBody extracts string fields from a JSON or form-encoded body.
// Unparseable bodies yield an empty map; validation happens downstream.
func parseCallbackBody(contentType string, body []byte) map[string]string {
	fields := make(map[string]string)

	if strings.Contains(contentType, "json") {
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return fields
		}
		for k, v := range decoded {
			switch t := v.(type) {
			case string:
				fields[k] = t
			case nil:
				// skip
			default:
				fields[k] = fmt.Sprintf("%v", t)
			}
		}
		return fields
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return fields
	}
	for k := range values {
		fields[k] = values.Get(k)
	}
	return fields
}
