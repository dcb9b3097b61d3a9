package httpserver

import (
	"net/http"
	"strings"

	"commerce-backoffice/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type paymentRequest struct {
	Status        string          `json:"status"`
	InvoiceStatus string          `json:"invoiceStatus"`
	InvoiceID     string          `json:"invoiceId"`
	TransactionID string          `json:"transactionId"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
}

func updatePaymentHandler(svc paymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req paymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		raw := req.Status
		if raw == "" {
			raw = req.InvoiceStatus
		}
		status, ok := domain.ParseGatewayStatus(raw)
		if !ok {
			respondError(c, domain.Invalid("unknown payment status %q", raw))
			return
		}
		if req.PaidAmount.IsNegative() {
			respondError(c, domain.Invalid("paidAmount must not be negative"))
			return
		}
		o, err := svc.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), domain.PaymentUpdate{
			Status:          status,
			InvoiceID:       strings.TrimSpace(req.InvoiceID),
			TransactionID:   strings.TrimSpace(req.TransactionID),
			PaidAmountCents: domain.Cents(req.PaidAmount),
			Source:          "admin",
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func paymentWebhookHandler(svc paymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload domain.GatewayPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err)
			return
		}
		o, err := svc.HandleWebhook(c.Request.Context(), payload)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"orderId":       o.ID,
			"orderStatus":   o.Status,
			"paymentStatus": o.PaymentStatus,
		})
	}
}
