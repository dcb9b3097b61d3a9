package coupon

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"commerce-backoffice/internal/domain"
)

type couponRepo interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	Upsert(ctx context.Context, c domain.Coupon) (*domain.Coupon, error)
	Deactivate(ctx context.Context, id string) error
}

type Service struct {
	repo   couponRepo
	logger *log.Logger
	now    func() time.Time
}

func New(repo couponRepo, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Lookup fetches a coupon by code. An active coupon whose window has closed
// is deactivated on the way out.
func (s *Service) Lookup(ctx context.Context, code string) (*domain.Coupon, error) {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return nil, domain.Invalid("coupon code required")
	}
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if c.IsActive && c.Expired(s.now()) {
		if err := s.repo.Deactivate(ctx, c.ID); err != nil {
			s.logger.Printf("coupon service: deactivate code=%s error=%v", c.Code, err)
		} else {
			s.logger.Printf("coupon service: deactivated expired code=%s", c.Code)
		}
		c.IsActive = false
	}
	return c, nil
}

// Validate checks that code can be applied to a cart worth subtotalCents.
// It never touches the usage counter.
func (s *Service) Validate(ctx context.Context, code string, subtotalCents int64) (*domain.Coupon, error) {
	c, err := s.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Invalid("coupon %s does not exist", domain.NormalizeCouponCode(code))
		}
		return nil, err
	}
	if err := c.CheckUsable(s.now(), subtotalCents); err != nil {
		return nil, err
	}
	return c, nil
}

// UpsertInput is the admin payload for creating or editing a coupon.
type UpsertInput struct {
	Code             string    `json:"code"`
	DiscountPercent  int       `json:"discount"`
	MinPurchaseCents int64     `json:"minPurchaseCents"`
	ExpiredAt        time.Time `json:"expiredAt"`
	IsActive         *bool     `json:"isActive"`
	UsageLimit       *int      `json:"usageLimit"`
}

func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*domain.Coupon, error) {
	code := domain.NormalizeCouponCode(in.Code)
	if code == "" || strings.ContainsAny(code, " \t") {
		return nil, domain.Invalid("coupon code required without spaces")
	}
	if in.DiscountPercent < 1 || in.DiscountPercent > 100 {
		return nil, domain.Invalid("discount must be between 1 and 100")
	}
	if in.MinPurchaseCents < 0 {
		return nil, domain.Invalid("minPurchaseCents must not be negative")
	}
	if in.ExpiredAt.IsZero() {
		return nil, domain.Invalid("expiredAt required")
	}
	if in.UsageLimit != nil && *in.UsageLimit < 0 {
		return nil, domain.Invalid("usageLimit must not be negative")
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return s.repo.Upsert(ctx, domain.Coupon{
		Code:             code,
		DiscountPercent:  in.DiscountPercent,
		MinPurchaseCents: in.MinPurchaseCents,
		ExpiredAt:        in.ExpiredAt,
		IsActive:         active,
		UsageLimit:       in.UsageLimit,
	})
}
