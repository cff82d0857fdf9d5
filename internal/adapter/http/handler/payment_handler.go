package handler

import (
	"net/http"
	"strconv"

	"payment-status-relay/internal/adapter/http/dto"
	"payment-status-relay/internal/core/ports"
	"payment-status-relay/pkg/apperror"
	"payment-status-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

// PaymentHandler handles the POS-facing payment endpoints.
type PaymentHandler struct {
	reconcileSvc ports.ReconciliationService
	reportingSvc ports.ReportingService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(reconcileSvc ports.ReconciliationService, reportingSvc ports.ReportingService) *PaymentHandler {
	return &PaymentHandler{reconcileSvc: reconcileSvc, reportingSvc: reportingSvc}
}

// Recheck handles POST /payments/:payment_id/recheck.
func (h *PaymentHandler) Recheck(c *gin.Context) {
	paymentID := c.Param("payment_id")

	result, err := h.reconcileSvc.Recheck(c.Request.Context(), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RecheckResponse{
		OK:           true,
		State:        result.State,
		Confirmed:    result.Confirmed,
		CryptoAmount: result.CryptoAmount,
	})
}

// Get handles GET /payments/:payment_id.
func (h *PaymentHandler) Get(c *gin.Context) {
	rec, err := h.reportingSvc.GetPayment(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromPaymentRecord(rec))
}

// List handles GET /payments?limit=.
func (h *PaymentHandler) List(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.reportingSvc.ListPayments(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := make([]dto.PaymentResponse, 0, len(records))
	for i := range records {
		resp = append(resp, dto.FromPaymentRecord(&records[i]))
	}
	response.OK(c, resp)
}

// ExportCSV handles GET /reports/payments.csv?limit=.
func (h *PaymentHandler) ExportCSV(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="payments.csv"`)
	c.Status(http.StatusOK)

	if err := h.reportingSvc.WriteCSV(c.Request.Context(), c.Writer, limit); err != nil {
		// Headers are already out; all we can do is log via the error middleware path.
		_ = c.Error(err)
	}
}

// parseLimit reads the limit query parameter. The store applies the final
// server-side clamp.
func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperror.ErrInvalidLimit()
	}
	return limit, nil
}
