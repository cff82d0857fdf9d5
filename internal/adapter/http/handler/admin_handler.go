package handler

import (
	"payment-status-relay/internal/adapter/http/dto"
	"payment-status-relay/internal/core/ports"
	"payment-status-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the webhook audit trail.
type AdminHandler struct {
	reportingSvc ports.ReportingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reportingSvc ports.ReportingService) *AdminHandler {
	return &AdminHandler{reportingSvc: reportingSvc}
}

// ListWebhookEvents handles GET /admin/webhook-events?limit=.
func (h *AdminHandler) ListWebhookEvents(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	events, err := h.reportingSvc.ListWebhookEvents(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := make([]dto.WebhookEventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, dto.FromWebhookEvent(&events[i]))
	}
	response.OK(c, resp)
}
