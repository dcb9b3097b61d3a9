package customer

import (
	"context"

	"commerce-backoffice/internal/domain"
)

// Repository persists and fetches customers.
type Repository interface {
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	// SetRole promotes or demotes a customer. Used by the seed binary.
	SetRole(ctx context.Context, id, role string) error
}
