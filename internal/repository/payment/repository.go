package payment

import (
	"context"
	"time"

	"commerce-backoffice/internal/domain"
)

// Event is one journaled payment notification.
type Event struct {
	ID        string
	OrderID   string
	Update    domain.PaymentUpdate
	Applied   bool
	CreatedAt time.Time
}

type Repository interface {
	// Record journals e. It reports false when an event with the same
	// order, invoice, status and transaction id was already stored.
	Record(ctx context.Context, e Event) (bool, error)
	ListByOrder(ctx context.Context, orderID string) ([]Event, error)
}
