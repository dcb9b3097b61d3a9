package cart

import (
	"context"

	"commerce-backoffice/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, userID string) (*domain.Cart, error)
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	// Save persists header and lines when cart.Version still matches the
	// stored version, and bumps cart.Version. A stale version yields
	// *domain.ConflictError.
	Save(ctx context.Context, cart *domain.Cart) error
}
