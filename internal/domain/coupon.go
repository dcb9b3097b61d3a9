package domain

import (
	"strings"
	"time"
)

// Coupon is a percentage discount code. UsageLimit nil means unlimited.
type Coupon struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	DiscountPercent  int       `json:"discount"`
	MinPurchaseCents int64     `json:"minPurchaseCents"`
	ExpiredAt        time.Time `json:"expiredAt"`
	IsActive         bool      `json:"isActive"`
	UsedCount        int       `json:"usedCount"`
	UsageLimit       *int      `json:"usageLimit,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NormalizeCouponCode trims and upper-cases a code for lookup.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Expired reports whether the coupon's window has closed at now.
func (c Coupon) Expired(now time.Time) bool {
	return !c.ExpiredAt.After(now)
}

// CheckUsable validates the activity window, usage limit and minimum
// purchase against subtotalCents.
func (c Coupon) CheckUsable(now time.Time, subtotalCents int64) error {
	if !c.IsActive || c.Expired(now) {
		return Invalid("coupon %s is expired or inactive", c.Code)
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return Invalid("coupon %s has reached its usage limit", c.Code)
	}
	if subtotalCents < c.MinPurchaseCents {
		return Invalid("coupon %s requires a minimum purchase of %d cents", c.Code, c.MinPurchaseCents)
	}
	return nil
}
