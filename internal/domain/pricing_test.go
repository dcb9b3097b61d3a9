package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name         string
		items, after int64
		want         OrderPricing
	}{
		{"below threshold", 15000, 15000, OrderPricing{ItemsCents: 15000, ShippingCents: 2500, TaxCents: 2625, TotalCents: 20125}},
		{"free shipping", 25000, 25000, OrderPricing{ItemsCents: 25000, ShippingCents: 0, TaxCents: 3750, TotalCents: 28750}},
		{"threshold inclusive", 20000, 20000, OrderPricing{ItemsCents: 20000, TaxCents: 3000, TotalCents: 23000}},
		{"discount keeps free shipping", 20000, 18000, OrderPricing{ItemsCents: 20000, TaxCents: 2700, DiscountCents: 2000, TotalCents: 20700}},
		{"after above items is clamped", 1000, 5000, OrderPricing{ItemsCents: 1000, ShippingCents: 2500, TaxCents: 525, TotalCents: 4025}},
		{"full discount", 1000, 0, OrderPricing{ItemsCents: 1000, ShippingCents: 2500, TaxCents: 375, DiscountCents: 1000, TotalCents: 2875}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DefaultPricing.Compute(tc.items, tc.after))
		})
	}
}

func TestCompute_TaxRounding(t *testing.T) {
	p := PricingPolicy{VATRate: decimal.RequireFromString("0.15"), FreeShippingThresholdCents: 1 << 40}
	// 0.15 * 3 = 0.45 rounds to 0; 0.15 * 10 = 1.5 rounds half away from zero.
	require.Equal(t, int64(0), p.Compute(3, 3).TaxCents)
	require.Equal(t, int64(2), p.Compute(10, 10).TaxCents)
}

func TestApplyPercent(t *testing.T) {
	require.Equal(t, int64(18000), ApplyPercent(20000, 10))
	require.Equal(t, int64(20000), ApplyPercent(20000, 0))
	require.Equal(t, int64(0), ApplyPercent(20000, 100))
	require.Equal(t, int64(669), ApplyPercent(999, 33))
	require.Equal(t, int64(0), ApplyPercent(0, 50))
}

func TestUnitPrice(t *testing.T) {
	require.Equal(t, int64(700), UnitPrice(1000, 300))
	require.Equal(t, int64(1000), UnitPrice(1000, 0))
	require.Equal(t, int64(1000), UnitPrice(1000, 1000))
	require.Equal(t, int64(1000), UnitPrice(1000, -5))
}

func TestCents(t *testing.T) {
	require.Equal(t, int64(14375), Cents(decimal.RequireFromString("143.75")))
	require.Equal(t, int64(1000), Cents(decimal.NewFromInt(10)))
	require.Equal(t, int64(13), Cents(decimal.RequireFromString("0.125")))
	require.Equal(t, int64(0), Cents(decimal.Zero))
}
