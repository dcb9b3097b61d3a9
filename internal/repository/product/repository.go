package product

import (
	"context"

	"commerce-backoffice/internal/domain"
)

// Repository is the product stock ledger. Reserve and Release are the only
// writes to stock and sales_count; each is a single conditional statement.
type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	Reserve(ctx context.Context, id string, quantity int) (*domain.Product, error)
	Release(ctx context.Context, id string, quantity int) error
}
