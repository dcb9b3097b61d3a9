package domain

import "github.com/shopspring/decimal"

// PricingPolicy holds the fixed VAT rate and shipping rule. Amounts are cents.
type PricingPolicy struct {
	VATRate                    decimal.Decimal
	FreeShippingThresholdCents int64
	ShippingFeeCents           int64
}

// DefaultPricing is 15% VAT, free shipping from 200.00, otherwise 25.00.
var DefaultPricing = PricingPolicy{
	VATRate:                    decimal.RequireFromString("0.15"),
	FreeShippingThresholdCents: 20000,
	ShippingFeeCents:           2500,
}

// OrderPricing is the computed price breakdown stored on an order.
type OrderPricing struct {
	ItemsCents    int64 `json:"itemsPrice"`
	ShippingCents int64 `json:"shippingPrice"`
	TaxCents      int64 `json:"taxPrice"`
	DiscountCents int64 `json:"discountAmount"`
	TotalCents    int64 `json:"totalPrice"`
}

// UnitPrice applies a catalog discount amount when it is positive and below
// the list price.
func UnitPrice(priceCents, discountCents int64) int64 {
	if discountCents > 0 && discountCents < priceCents {
		return priceCents - discountCents
	}
	return priceCents
}

// Cents converts a money amount in major units to cents, rounding half away
// from zero.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// ApplyPercent returns totalCents reduced by percent, rounded to the cent.
func ApplyPercent(totalCents int64, percent int) int64 {
	if percent <= 0 || totalCents <= 0 {
		return totalCents
	}
	if percent >= 100 {
		return 0
	}
	off := decimal.NewFromInt(totalCents).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return totalCents - off.IntPart()
}

// Compute derives shipping, tax and total from the items subtotal and the
// discounted subtotal. Shipping is decided on the undiscounted subtotal.
func (p PricingPolicy) Compute(itemsCents, afterDiscountCents int64) OrderPricing {
	if afterDiscountCents > itemsCents {
		afterDiscountCents = itemsCents
	}
	if afterDiscountCents < 0 {
		afterDiscountCents = 0
	}
	shipping := p.ShippingFeeCents
	if itemsCents >= p.FreeShippingThresholdCents {
		shipping = 0
	}
	discount := itemsCents - afterDiscountCents
	subtotal := itemsCents - discount + shipping
	tax := decimal.NewFromInt(subtotal).Mul(p.VATRate).Round(0).IntPart()
	return OrderPricing{
		ItemsCents:    itemsCents,
		ShippingCents: shipping,
		TaxCents:      tax,
		DiscountCents: discount,
		TotalCents:    subtotal + tax,
	}
}
