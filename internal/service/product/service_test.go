package product

import (
	"context"
	"testing"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/memstore"
	"github.com/stretchr/testify/require"
)

func TestUpsert(t *testing.T) {
	svc := New(memstore.New().Products())
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.Product{SKU: " ", Name: "x"})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Upsert(ctx, domain.Product{SKU: "A", Name: "A", Stock: -1})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Upsert(ctx, domain.Product{SKU: "A", Name: "A", Status: "sold"})
	require.ErrorIs(t, err, domain.ErrValidation)

	p, err := svc.Upsert(ctx, domain.Product{SKU: " A ", Name: "Alpha", PriceCents: 100, Stock: 0})
	require.NoError(t, err)
	require.Equal(t, "A", p.SKU)
	require.Equal(t, domain.ProductOutOfStock, p.Status)

	p, err = svc.Upsert(ctx, domain.Product{SKU: "A", Name: "Alpha", PriceCents: 100, Stock: 3, Status: domain.ProductComingSoon})
	require.NoError(t, err)
	require.Equal(t, domain.ProductComingSoon, p.Status)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.Stock)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
