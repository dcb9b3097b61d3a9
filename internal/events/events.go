// Package events records order lifecycle events in the outbox table and
// relays them to Kafka.
package events

import (
	"context"
	"time"

	"commerce-backoffice/internal/domain"
	"github.com/oklog/ulid/v2"
)

const (
	OrderCreated        = "order.created"
	OrderStatusChanged  = "order.status_changed"
	OrderCancelled      = "order.cancelled"
	OrderPaymentUpdated = "order.payment_updated"
)

// Event is the JSON payload written to the outbox.
type Event struct {
	ID            string               `json:"id"`
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	OrderNumber   string               `json:"orderNumber"`
	UserID        string               `json:"userId"`
	Status        domain.OrderStatus   `json:"orderStatus"`
	PreviousState domain.OrderStatus   `json:"previousStatus,omitempty"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
	TotalCents    int64                `json:"totalCents"`
	Reason        string               `json:"reason,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

type outboxWriter interface {
	Insert(ctx context.Context, eventID, topic, key string, payload any) error
}

// Publisher writes events into the outbox through the caller's transaction.
type Publisher struct {
	outbox outboxWriter
	topic  string
}

func NewPublisher(outbox outboxWriter, topic string) *Publisher {
	return &Publisher{outbox: outbox, topic: topic}
}

// Discard drops every event. Services built without a publisher use it.
var Discard discard

type discard struct{}

func (discard) Publish(context.Context, string, *domain.Order, domain.OrderStatus) error { return nil }

// Publish records an event of the given type describing o. previous is the
// status before the change and may be empty.
func (p *Publisher) Publish(ctx context.Context, eventType string, o *domain.Order, previous domain.OrderStatus) error {
	if p == nil {
		return nil
	}
	e := Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		UserID:        o.UserID,
		Status:        o.Status,
		PreviousState: previous,
		PaymentStatus: o.PaymentStatus,
		TotalCents:    o.Pricing.TotalCents,
		Reason:        o.CancellationReason,
		OccurredAt:    o.UpdatedAt,
	}
	return p.outbox.Insert(ctx, e.ID, p.topic, o.ID, e)
}
