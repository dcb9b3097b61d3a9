package domain

import "time"

type ProductStatus string

const (
	ProductActive     ProductStatus = "active"
	ProductInactive   ProductStatus = "inactive"
	ProductOutOfStock ProductStatus = "out_of_stock"
	ProductComingSoon ProductStatus = "coming_soon"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductInactive, ProductOutOfStock, ProductComingSoon:
		return true
	}
	return false
}

// Product is the catalog subset the checkout engine reads. Only Stock,
// Status and SalesCount are ever written by the engine, and only through
// the stock ledger's conditional updates.
type Product struct {
	ID                 string        `json:"id"`
	SKU                string        `json:"sku"`
	Name               string        `json:"name"`
	PriceCents         int64         `json:"priceCents"`
	DiscountPriceCents int64         `json:"discountPriceCents"`
	Stock              int           `json:"stock"`
	Status             ProductStatus `json:"status"`
	SalesCount         int           `json:"salesCount"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// UnitPriceCents returns the effective price: a discount amount is applied
// only when it is positive and smaller than the list price.
func (p Product) UnitPriceCents() int64 {
	return UnitPrice(p.PriceCents, p.DiscountPriceCents)
}
