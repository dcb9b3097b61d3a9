package domain

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderReturned   OrderStatus = "returned"
)

// orderTransitions is the complete table of legal status changes.
// cancelled and returned are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderReturned},
}

// OrderStatuses lists every state in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderPending, OrderConfirmed, OrderProcessing, OrderShipped,
	OrderDelivered, OrderCancelled, OrderReturned,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OrderStatuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentCard, PaymentBankTransfer:
		return true
	}
	return false
}

// PayOnDelivery reports whether delivery implies the order was paid.
func (m PaymentMethod) PayOnDelivery() bool {
	return m == PaymentCashOnDelivery
}

type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// Validate checks the fields an order cannot ship without.
func (a ShippingAddress) Validate() error {
	if strings.TrimSpace(a.FullName) == "" {
		return Invalid("shipping address: fullName required")
	}
	if strings.TrimSpace(a.Street) == "" {
		return Invalid("shipping address: street required")
	}
	if strings.TrimSpace(a.City) == "" {
		return Invalid("shipping address: city required")
	}
	if strings.TrimSpace(a.Country) == "" {
		return Invalid("shipping address: country required")
	}
	return nil
}

// OrderLine is a snapshot of a reserved cart line, decoupled from later
// catalog edits.
type OrderLine struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	ProductName    string `json:"name"`
	SKU            string `json:"sku"`
	Variant        string `json:"variant,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// PaymentResult is stamped when a payment is confirmed.
type PaymentResult struct {
	TransactionID string    `json:"transactionId,omitempty"`
	InvoiceID     string    `json:"invoiceId,omitempty"`
	PaidCents     int64     `json:"paidAmountCents,omitempty"`
	PaidAt        time.Time `json:"paidAt"`
}

type Order struct {
	ID                 string          `json:"id"`
	Number             string          `json:"orderNumber"`
	UserID             string          `json:"userId"`
	Lines              []OrderLine     `json:"items"`
	ShippingAddress    ShippingAddress `json:"shippingAddress"`
	Pricing            OrderPricing    `json:"pricing"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus"`
	PaymentResult      *PaymentResult  `json:"paymentResult,omitempty"`
	Status             OrderStatus     `json:"orderStatus"`
	CouponID           *string         `json:"couponId,omitempty"`
	CouponCode         string          `json:"couponCode,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	ShippedAt          *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt        *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Cancellable reports whether the current status has an outbound cancelled edge.
func (o *Order) Cancellable() bool {
	return CanTransition(o.Status, OrderCancelled)
}

// Transition moves the order to next and applies the entry side effects of
// that state. The order is left unchanged when the move is illegal.
// Stock and coupon compensation for cancelled is the caller's job.
func (o *Order) Transition(next OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, next) {
		return &IllegalTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedAt = now
	switch next {
	case OrderShipped:
		o.ShippedAt = &now
	case OrderDelivered:
		o.DeliveredAt = &now
		if o.PaymentMethod.PayOnDelivery() && o.PaymentStatus != PaymentPaid {
			o.PaymentStatus = PaymentPaid
			if o.PaymentResult == nil {
				o.PaymentResult = &PaymentResult{PaidCents: o.Pricing.TotalCents, PaidAt: now}
			}
		}
	case OrderCancelled:
		o.CancelledAt = &now
	}
	return nil
}

// StatusChange is one row of an order's status history.
type StatusChange struct {
	OrderID string      `json:"orderId"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
	Note    string      `json:"note,omitempty"`
	ActorID string      `json:"actorId,omitempty"`
	At      time.Time   `json:"at"`
}

// OrderFilter narrows the read-only order listing.
type OrderFilter struct {
	UserID string
	Status OrderStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
