package coupon

import (
	"context"
	"time"

	"commerce-backoffice/internal/domain"
)

// Repository is the coupon ledger. used_count only moves through
// ReserveUsage and ReleaseUsage.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	GetByID(ctx context.Context, id string) (*domain.Coupon, error)
	Upsert(ctx context.Context, c domain.Coupon) (*domain.Coupon, error)
	Deactivate(ctx context.Context, id string) error
	ReserveUsage(ctx context.Context, id string, now time.Time) error
	ReleaseUsage(ctx context.Context, id string) error
}
