package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// GatewayPayload is the webhook body sent by the payment gateway after its
// authenticity has been verified. UserDefinedField carries the order id.
type GatewayPayload struct {
	EventType        string          `json:"eventType"`
	InvoiceID        string          `json:"invoiceId"`
	InvoiceStatus    string          `json:"invoiceStatus"`
	UserDefinedField string          `json:"userDefinedField"`
	TransactionID    string          `json:"transactionId"`
	PaidAmount       decimal.Decimal `json:"paidAmount"`
}

// PaymentUpdate is the normalized form applied by the reconciler.
type PaymentUpdate struct {
	Status          PaymentStatus
	InvoiceID       string
	TransactionID   string
	PaidAmountCents int64
	Source          string
}

// ToUpdate normalizes the gateway's invoice status vocabulary.
func (p GatewayPayload) ToUpdate() (PaymentUpdate, error) {
	status, ok := ParseGatewayStatus(p.InvoiceStatus)
	if !ok {
		return PaymentUpdate{}, Invalid("unknown invoice status %q", p.InvoiceStatus)
	}
	if p.PaidAmount.IsNegative() {
		return PaymentUpdate{}, Invalid("paidAmount must not be negative")
	}
	return PaymentUpdate{
		Status:          status,
		InvoiceID:       strings.TrimSpace(p.InvoiceID),
		TransactionID:   strings.TrimSpace(p.TransactionID),
		PaidAmountCents: Cents(p.PaidAmount),
		Source:          "webhook",
	}, nil
}

func ParseGatewayStatus(s string) (PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "success", "succeeded":
		return PaymentPaid, true
	case "failed", "canceled", "cancelled", "expired", "declined":
		return PaymentFailed, true
	case "pending", "unpaid", "initiated":
		return PaymentPending, true
	}
	return "", false
}
