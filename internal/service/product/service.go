package product

import (
	"context"
	"strings"

	"commerce-backoffice/internal/domain"
	productrepo "commerce-backoffice/internal/repository/product"
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Upsert creates or replaces the catalog entry with the same SKU.
func (s *Service) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	if p.SKU == "" || p.Name == "" {
		return nil, domain.Invalid("sku and name required")
	}
	if p.PriceCents < 0 || p.DiscountPriceCents < 0 {
		return nil, domain.Invalid("prices must not be negative")
	}
	if p.Stock < 0 {
		return nil, domain.Invalid("stock must not be negative")
	}
	if p.Status == "" {
		p.Status = domain.ProductActive
	}
	if !p.Status.Valid() {
		return nil, domain.Invalid("unknown product status %q", p.Status)
	}
	if p.Status == domain.ProductActive && p.Stock == 0 {
		p.Status = domain.ProductOutOfStock
	}
	return s.repo.Upsert(ctx, p)
}
