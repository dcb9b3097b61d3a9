package cart

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"commerce-backoffice/internal/domain"
)

type Service struct {
	repo        cartRepo
	productRepo productRepo
	coupons     couponValidator
	logger      *log.Logger
	now         func() time.Time
}

type cartRepo interface {
	Create(ctx context.Context, userID string) (*domain.Cart, error)
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type couponValidator interface {
	Lookup(ctx context.Context, code string) (*domain.Coupon, error)
	Validate(ctx context.Context, code string, subtotalCents int64) (*domain.Coupon, error)
}

func New(repo cartRepo, productRepo productRepo, coupons couponValidator, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, productRepo: productRepo, coupons: coupons, logger: logger, now: time.Now}
}

// AddItemInput is the payload for adding a product to the cart.
type AddItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

// Get returns the user's cart priced against the current catalog. A user
// without a cart gets an empty one.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.reprice(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Service) AddItem(ctx context.Context, userID string, in AddItemInput) (*domain.Cart, error) {
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return nil, domain.Invalid("productId required")
	}
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		return cart.AddItem(*product, in.Quantity, strings.TrimSpace(in.Variant), s.now())
	})
}

func (s *Service) UpdateItem(ctx context.Context, userID, lineID string, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		line, ok := cart.Line(lineID)
		if !ok {
			return domain.ErrNotFound
		}
		product, err := s.productRepo.GetByID(ctx, line.ProductID)
		if err != nil {
			return err
		}
		return cart.UpdateItem(lineID, quantity, *product)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, lineID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		return cart.RemoveItem(lineID)
	})
}

func (s *Service) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		cart.Clear()
		return nil
	})
}

// ApplyCoupon validates code against the repriced subtotal and attaches it.
// The coupon's usage counter is only charged at checkout.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		if cart.IsEmpty() {
			return domain.ErrCartEmpty
		}
		cart.Recalculate()
		c, err := s.coupons.Validate(ctx, code, cart.TotalCents)
		if err != nil {
			return err
		}
		cart.Coupon = &domain.CartCoupon{ID: c.ID, Code: c.Code, DiscountPercent: c.DiscountPercent}
		return nil
	})
}

func (s *Service) RemoveCoupon(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		cart.Coupon = nil
		return nil
	})
}

// mutate loads the cart, refreshes prices, applies fn and saves with the
// version that was read.
func (s *Service) mutate(ctx context.Context, userID string, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.reprice(ctx, cart); err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	cart.Recalculate()
	if err := s.repo.Save(ctx, cart); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			s.logger.Printf("cart service: save user=%s error=%v", userID, err)
		}
		return nil, err
	}
	return cart, nil
}

func (s *Service) load(ctx context.Context, userID string) (*domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("user required")
	}
	cart, err := s.repo.GetByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.repo.Create(ctx, userID)
	}
	return cart, err
}

func (s *Service) reprice(ctx context.Context, cart *domain.Cart) error {
	if err := s.refreshCoupon(ctx, cart); err != nil {
		return err
	}
	if cart.IsEmpty() {
		cart.Recalculate()
		return nil
	}
	products, err := s.productRepo.GetByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return err
	}
	cart.Reprice(products)
	cart.Recalculate()
	return nil
}

// refreshCoupon reads the applied coupon through the coupon service so an
// expired one is deactivated, and picks up its current percent.
func (s *Service) refreshCoupon(ctx context.Context, cart *domain.Cart) error {
	if cart.Coupon == nil {
		return nil
	}
	c, err := s.coupons.Lookup(ctx, cart.Coupon.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	cart.Coupon.DiscountPercent = c.DiscountPercent
	return nil
}
