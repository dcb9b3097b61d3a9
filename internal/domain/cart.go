package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the per-user staging area. It is cleared, never deleted, when an
// order is placed. Version guards concurrent saves.
type Cart struct {
	ID                      string      `json:"id"`
	UserID                  string      `json:"userId"`
	Lines                   []CartLine  `json:"lineItems"`
	Coupon                  *CartCoupon `json:"coupon,omitempty"`
	TotalCents              int64       `json:"totalPrice"`
	TotalAfterDiscountCents int64       `json:"totalPriceAfterDiscount"`
	Version                 int         `json:"version"`
	CreatedAt               time.Time   `json:"createdAt"`
	UpdatedAt               time.Time   `json:"updatedAt"`
}

// CartCoupon is the coupon reference held by a cart.
type CartCoupon struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount"`
}

type CartLine struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"productId"`
	ProductName    string    `json:"productName,omitempty"`
	Variant        string    `json:"variant,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	AddedAt        time.Time `json:"addedAt"`
}

func (l CartLine) TotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Line returns the line with the given id.
func (c *Cart) Line(lineID string) (*CartLine, bool) {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

// QuantityOf sums the quantity of every line for a product, across variants.
func (c *Cart) QuantityOf(productID string) int {
	total := 0
	for _, l := range c.Lines {
		if l.ProductID == productID {
			total += l.Quantity
		}
	}
	return total
}

// AddItem adds quantity of p, merging into an existing line for the same
// product and variant. The stock check is advisory; checkout re-checks.
func (c *Cart) AddItem(p Product, quantity int, variant string, now time.Time) error {
	if quantity < 1 {
		return Invalid("quantity must be at least 1")
	}
	if p.Status != ProductActive {
		return Invalid("product %s is not available", p.Name)
	}
	if c.QuantityOf(p.ID)+quantity > p.Stock {
		return &InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock, Requested: c.QuantityOf(p.ID) + quantity}
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == p.ID && c.Lines[i].Variant == variant {
			c.Lines[i].Quantity += quantity
			c.Lines[i].UnitPriceCents = p.UnitPriceCents()
			c.Lines[i].ProductName = p.Name
			return nil
		}
	}
	c.Lines = append(c.Lines, CartLine{
		ID:             uuid.NewString(),
		ProductID:      p.ID,
		ProductName:    p.Name,
		Variant:        variant,
		Quantity:       quantity,
		UnitPriceCents: p.UnitPriceCents(),
		AddedAt:        now,
	})
	return nil
}

// UpdateItem sets the quantity of an existing line.
func (c *Cart) UpdateItem(lineID string, quantity int, p Product) error {
	if quantity < 1 {
		return Invalid("quantity must be at least 1")
	}
	line, ok := c.Line(lineID)
	if !ok {
		return ErrNotFound
	}
	if p.Status != ProductActive {
		return Invalid("product %s is not available", p.Name)
	}
	others := c.QuantityOf(p.ID) - line.Quantity
	if others+quantity > p.Stock {
		return &InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock, Requested: others + quantity}
	}
	line.Quantity = quantity
	return nil
}

func (c *Cart) RemoveItem(lineID string) error {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Clear empties the cart and drops its coupon.
func (c *Cart) Clear() {
	c.Lines = nil
	c.Coupon = nil
	c.TotalCents = 0
	c.TotalAfterDiscountCents = 0
}

// Reprice refreshes unit prices and names from the current catalog.
// Products missing from the map keep their cached price.
func (c *Cart) Reprice(products map[string]Product) {
	for i := range c.Lines {
		p, ok := products[c.Lines[i].ProductID]
		if !ok {
			continue
		}
		c.Lines[i].UnitPriceCents = p.UnitPriceCents()
		c.Lines[i].ProductName = p.Name
	}
}

// Recalculate derives TotalCents and TotalAfterDiscountCents from the lines
// and the applied coupon.
func (c *Cart) Recalculate() {
	var total int64
	for _, l := range c.Lines {
		total += l.TotalCents()
	}
	c.TotalCents = total
	c.TotalAfterDiscountCents = total
	if c.Coupon != nil {
		c.TotalAfterDiscountCents = ApplyPercent(total, c.Coupon.DiscountPercent)
	}
}

// ProductIDs lists the distinct products referenced by the cart.
func (c *Cart) ProductIDs() []string {
	seen := make(map[string]struct{}, len(c.Lines))
	ids := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}
