package coupon

import (
	"context"
	"errors"
	"testing"
	"time"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/memstore"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *memstore.Store, time.Time) {
	t.Helper()
	store := memstore.New()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := New(store.Coupons(), nil)
	svc.now = func() time.Time { return now }
	return svc, store, now
}

func TestLookupDeactivatesExpiredCoupon(t *testing.T) {
	svc, store, now := newService(t)
	ctx := context.Background()
	c, err := store.Coupons().Upsert(ctx, domain.Coupon{Code: "old", DiscountPercent: 10, ExpiredAt: now.Add(-time.Hour), IsActive: true})
	require.NoError(t, err)

	got, err := svc.Lookup(ctx, " Old ")
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.False(t, store.Coupon(c.ID).IsActive)
}

func TestValidate(t *testing.T) {
	svc, store, now := newService(t)
	ctx := context.Background()
	limit := 1
	_, err := store.Coupons().Upsert(ctx, domain.Coupon{Code: "SAVE10", DiscountPercent: 10, MinPurchaseCents: 5000, ExpiredAt: now.Add(time.Hour), IsActive: true})
	require.NoError(t, err)
	used, err := store.Coupons().Upsert(ctx, domain.Coupon{Code: "ONCE", DiscountPercent: 5, ExpiredAt: now.Add(time.Hour), IsActive: true, UsageLimit: &limit})
	require.NoError(t, err)
	require.NoError(t, store.Coupons().ReserveUsage(ctx, used.ID, now))

	c, err := svc.Validate(ctx, "save10", 6000)
	require.NoError(t, err)
	require.Equal(t, 10, c.DiscountPercent)

	_, err = svc.Validate(ctx, "save10", 4999)
	require.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.Validate(ctx, "once", 100)
	require.ErrorContains(t, err, "usage limit")

	_, err = svc.Validate(ctx, "missing", 100)
	require.True(t, errors.Is(err, domain.ErrValidation))
}

func TestUpsertValidation(t *testing.T) {
	svc, _, now := newService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, UpsertInput{Code: "X", DiscountPercent: 0, ExpiredAt: now})
	require.True(t, errors.Is(err, domain.ErrValidation))
	_, err = svc.Upsert(ctx, UpsertInput{Code: "X", DiscountPercent: 10})
	require.True(t, errors.Is(err, domain.ErrValidation))

	c, err := svc.Upsert(ctx, UpsertInput{Code: "welcome", DiscountPercent: 15, ExpiredAt: now.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, "WELCOME", c.Code)
	require.True(t, c.IsActive)
}
