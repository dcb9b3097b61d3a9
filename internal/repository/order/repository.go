package order

import (
	"context"

	"commerce-backoffice/internal/domain"
)

type Repository interface {
	// Create inserts the order header and its line snapshot.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// GetByIDForUpdate locks the order row until the surrounding
	// transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error)
	// Update writes the mutable fields: status, payment, cancellation and
	// lifecycle timestamps.
	Update(ctx context.Context, o *domain.Order) error
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	AppendHistory(ctx context.Context, change domain.StatusChange) error
	History(ctx context.Context, orderID string) ([]domain.StatusChange, error)
}
