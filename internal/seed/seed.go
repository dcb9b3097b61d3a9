package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/service/auth"
	"commerce-backoffice/internal/service/coupon"
)

type productWriter interface {
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type couponWriter interface {
	Upsert(ctx context.Context, in coupon.UpsertInput) (*domain.Coupon, error)
}

type accounts interface {
	Signup(ctx context.Context, in auth.SignupInput) (*domain.Customer, error)
	Promote(ctx context.Context, email string) (*domain.Customer, error)
}

// Deps are the services seed data goes through, so the same validation
// applies as for admin API calls.
type Deps struct {
	Products productWriter
	Coupons  couponWriter
	Accounts accounts
	Logger   *log.Logger
	Now      func() time.Time
}

// Admin is the back-office account created by Apply. Empty Email skips it.
type Admin struct {
	Email    string
	Password string
}

var products = []domain.Product{
	{SKU: "SKU-DEMO-TSHIRT", Name: "Demo T-Shirt", PriceCents: 1999, Stock: 50},
	{SKU: "SKU-DEMO-MUG", Name: "Demo Mug", PriceCents: 1299, DiscountPriceCents: 999, Stock: 25},
	{SKU: "SKU-DEMO-LAMP", Name: "Desk Lamp", PriceCents: 24900, Stock: 5},
	{SKU: "SKU-DEMO-POSTER", Name: "Limited Poster", PriceCents: 4500, Stock: 1},
	{SKU: "SKU-DEMO-CHAIR", Name: "Office Chair", PriceCents: 89900, Status: domain.ProductComingSoon},
}

// Apply inserts demo catalog data, a welcome coupon and an admin account.
// It is idempotent: products and coupons upsert by natural key and an
// existing admin account is only promoted.
func Apply(ctx context.Context, d Deps, admin Admin) error {
	logger := d.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	for _, p := range products {
		if _, err := d.Products.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}
	logger.Printf("seed: products upserted count=%d", len(products))

	limit := 100
	if _, err := d.Coupons.Upsert(ctx, coupon.UpsertInput{
		Code:             "WELCOME10",
		DiscountPercent:  10,
		MinPurchaseCents: 2000,
		ExpiredAt:        now().UTC().AddDate(1, 0, 0),
		UsageLimit:       &limit,
	}); err != nil {
		return fmt.Errorf("upsert coupon: %w", err)
	}

	if admin.Email == "" {
		return nil
	}
	_, err := d.Accounts.Signup(ctx, auth.SignupInput{Email: admin.Email, Password: admin.Password, Name: "Back office"})
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("create admin: %w", err)
	}
	if _, err := d.Accounts.Promote(ctx, admin.Email); err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	logger.Printf("seed: admin ready email=%s", admin.Email)
	return nil
}
