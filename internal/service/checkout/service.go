package checkout

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/events"
	"commerce-backoffice/internal/metrics"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type cartRepo interface {
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
}

type stockLedger interface {
	Reserve(ctx context.Context, id string, quantity int) (*domain.Product, error)
}

type couponLedger interface {
	GetByID(ctx context.Context, id string) (*domain.Coupon, error)
	ReserveUsage(ctx context.Context, id string, now time.Time) error
	Deactivate(ctx context.Context, id string) error
}

type orderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	AppendHistory(ctx context.Context, change domain.StatusChange) error
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, o *domain.Order, previous domain.OrderStatus) error
}

// Deps groups the collaborators of the checkout Service.
type Deps struct {
	Tx       txRunner
	Carts    cartRepo
	Products stockLedger
	Coupons  couponLedger
	Orders   orderRepo
	Events   eventPublisher
	Pricing  domain.PricingPolicy
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// Service turns a user's cart into an order in a single transaction.
type Service struct {
	tx       txRunner
	carts    cartRepo
	products stockLedger
	coupons  couponLedger
	orders   orderRepo
	events   eventPublisher
	pricing  domain.PricingPolicy
	metrics  *metrics.Metrics
	logger   *log.Logger
	now      func() time.Time
}

func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard, "", 0)
	}
	if d.Events == nil {
		d.Events = events.Discard
	}
	if d.Pricing.VATRate.IsZero() && d.Pricing.ShippingFeeCents == 0 {
		d.Pricing = domain.DefaultPricing
	}
	return &Service{
		tx:       d.Tx,
		carts:    d.Carts,
		products: d.Products,
		coupons:  d.Coupons,
		orders:   d.Orders,
		events:   d.Events,
		pricing:  d.Pricing,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder reserves stock for every cart line, charges the cart's coupon,
// persists the order and clears the cart. Either all of it commits or none
// of it does, and the cart is left as it was on failure.
func (s *Service) CreateOrder(ctx context.Context, userID string, address domain.ShippingAddress, method domain.PaymentMethod) (*domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("user required")
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}
	if !method.Valid() {
		return nil, domain.Invalid("unsupported payment method %q", method)
	}

	var (
		order   *domain.Order
		expired *domain.Coupon
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		expired = nil
		o, err := s.place(ctx, userID, address, method, &expired)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if expired != nil {
		s.deactivate(ctx, expired)
	}
	s.metrics.CheckoutOutcome(outcome(err))
	if err != nil {
		if domain.IsBusiness(err) {
			s.logger.Printf("checkout: rejected user=%s reason=%v", userID, err)
			return nil, err
		}
		s.logger.Printf("checkout: failed user=%s error=%v", userID, err)
		return nil, &domain.ServerError{Op: "create order", Err: err}
	}
	s.logger.Printf("checkout: placed order=%s number=%s user=%s total=%d", order.ID, order.Number, userID, order.Pricing.TotalCents)
	return order, nil
}

func (s *Service) place(ctx context.Context, userID string, address domain.ShippingAddress, method domain.PaymentMethod, expired **domain.Coupon) (*domain.Order, error) {
	cart, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCartEmpty
		}
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrCartEmpty
	}
	now := s.now()

	reserved, err := s.reserve(ctx, cart.Lines)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.OrderLine, 0, len(cart.Lines))
	var itemsCents int64
	for _, cl := range cart.Lines {
		p := reserved[cl.ProductID]
		line := domain.OrderLine{
			ID:             uuid.NewString(),
			ProductID:      p.ID,
			ProductName:    p.Name,
			SKU:            p.SKU,
			Variant:        cl.Variant,
			Quantity:       cl.Quantity,
			UnitPriceCents: p.UnitPriceCents(),
		}
		itemsCents += line.UnitPriceCents * int64(line.Quantity)
		lines = append(lines, line)
	}

	order := &domain.Order{
		ID:              uuid.NewString(),
		Number:          newOrderNumber(now),
		UserID:          userID,
		Lines:           lines,
		ShippingAddress: address,
		PaymentMethod:   method,
		PaymentStatus:   domain.PaymentPending,
		Status:          domain.OrderPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	afterDiscount := itemsCents
	if cart.Coupon != nil {
		coupon, err := s.chargeCoupon(ctx, cart.Coupon, itemsCents, now)
		if err != nil {
			if coupon != nil && coupon.IsActive && coupon.Expired(now) {
				*expired = coupon
			}
			return nil, err
		}
		afterDiscount = domain.ApplyPercent(itemsCents, coupon.DiscountPercent)
		order.CouponID = &coupon.ID
		order.CouponCode = coupon.Code
	}
	order.Pricing = s.pricing.Compute(itemsCents, afterDiscount)

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	if err := s.orders.AppendHistory(ctx, domain.StatusChange{
		OrderID: order.ID,
		To:      domain.OrderPending,
		Note:    "order placed",
		ActorID: userID,
		At:      now,
	}); err != nil {
		return nil, err
	}
	if err := s.events.Publish(ctx, events.OrderCreated, order, ""); err != nil {
		return nil, err
	}

	cart.Clear()
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return order, nil
}

// reserve decrements stock line by line in ascending product id order so
// concurrent checkouts lock rows in the same sequence. It returns the product
// rows as they were after reservation.
func (s *Service) reserve(ctx context.Context, cartLines []domain.CartLine) (map[string]domain.Product, error) {
	sorted := append([]domain.CartLine(nil), cartLines...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	reserved := make(map[string]domain.Product, len(sorted))
	for _, line := range sorted {
		p, err := s.products.Reserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.Invalid("product %s in cart no longer exists", line.ProductID)
			}
			return nil, err
		}
		reserved[p.ID] = *p
	}
	return reserved, nil
}

// chargeCoupon re-checks the cart's coupon against the ledger and takes one
// use. A coupon that expired or ran out after it was applied fails the
// checkout. The coupon row is returned alongside a usability error.
func (s *Service) chargeCoupon(ctx context.Context, ref *domain.CartCoupon, itemsCents int64, now time.Time) (*domain.Coupon, error) {
	coupon, err := s.coupons.GetByID(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Invalid("coupon %s no longer exists, remove it from the cart and retry", ref.Code)
		}
		return nil, err
	}
	if err := coupon.CheckUsable(now, itemsCents); err != nil {
		return coupon, err
	}
	if err := s.coupons.ReserveUsage(ctx, coupon.ID, now); err != nil {
		return nil, err
	}
	return coupon, nil
}

// deactivate flags a coupon found expired during a checkout. It runs after
// the checkout transaction rolled back so the flag survives the failure.
func (s *Service) deactivate(ctx context.Context, c *domain.Coupon) {
	if err := s.coupons.Deactivate(ctx, c.ID); err != nil {
		s.logger.Printf("checkout: deactivate coupon=%s error=%v", c.Code, err)
		return
	}
	s.logger.Printf("checkout: deactivated expired coupon=%s", c.Code)
}

func newOrderNumber(now time.Time) string {
	return "ORD-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.CheckoutSuccess
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.CheckoutInsufficientStock
	case errors.Is(err, domain.ErrConflict):
		return metrics.CheckoutConflict
	case domain.IsBusiness(err):
		return metrics.CheckoutRejected
	default:
		return metrics.CheckoutError
	}
}
