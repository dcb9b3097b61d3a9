package order

import (
	"context"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/events"
)

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type orderRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	AppendHistory(ctx context.Context, change domain.StatusChange) error
	History(ctx context.Context, orderID string) ([]domain.StatusChange, error)
}

type stockLedger interface {
	Release(ctx context.Context, id string, quantity int) error
}

type couponLedger interface {
	ReleaseUsage(ctx context.Context, id string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, o *domain.Order, previous domain.OrderStatus) error
}

// Deps groups the collaborators of the order Service.
type Deps struct {
	Tx       txRunner
	Orders   orderRepo
	Products stockLedger
	Coupons  couponLedger
	Events   eventPublisher
	Logger   *log.Logger
}

// Service drives orders through their status lifecycle and compensates
// stock and coupon usage when an order is cancelled.
type Service struct {
	tx       txRunner
	orders   orderRepo
	products stockLedger
	coupons  couponLedger
	events   eventPublisher
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
	return &Service{
		tx:       d.Tx,
		orders:   d.Orders,
		products: d.Products,
		coupons:  d.Coupons,
		events:   d.Events,
		logger:   d.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get returns an order visible to actor. Orders of other users look missing
// to non-admins.
func (s *Service) Get(ctx context.Context, actor domain.Identity, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && o.UserID != actor.UserID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// List returns orders matching filter, newest first.
func (s *Service) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if filter.Status != "" {
		if _, ok := domain.ParseOrderStatus(string(filter.Status)); !ok {
			return nil, domain.Invalid("unknown order status %q", filter.Status)
		}
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, domain.Invalid("from must be before to")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, domain.Invalid("limit and offset must not be negative")
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	return s.orders.List(ctx, filter)
}

// History returns the status changes of an order visible to actor.
func (s *Service) History(ctx context.Context, actor domain.Identity, id string) ([]domain.StatusChange, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.orders.History(ctx, id)
}

// UpdateStatus moves an order along the transition table. Moving to
// cancelled runs the same compensation as Cancel.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Identity, orderID string, next domain.OrderStatus, note string) (*domain.Order, error) {
	parsed, ok := domain.ParseOrderStatus(string(next))
	if !ok {
		return nil, domain.Invalid("unknown order status %q", next)
	}
	if parsed == domain.OrderCancelled {
		return s.Cancel(ctx, actor, orderID, note)
	}

	var order *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from := o.Status
		now := s.now()
		if err := o.Transition(parsed, now); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		if err := s.record(ctx, o, from, note, actor.UserID, now); err != nil {
			return err
		}
		if err := s.events.Publish(ctx, events.OrderStatusChanged, o, from); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, s.surface("update order status", orderID, err)
	}
	s.logger.Printf("order service: status order=%s to=%s actor=%s", orderID, order.Status, actor.UserID)
	return order, nil
}

// Cancel cancels an order owned by actor, or any order when actor is an
// admin. Stock for every line and the coupon use are given back in the same
// transaction.
func (s *Service) Cancel(ctx context.Context, actor domain.Identity, orderID, reason string) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)

	var order *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin && o.UserID != actor.UserID {
			return domain.ErrForbidden
		}
		if !o.Cancellable() {
			return &domain.IllegalTransitionError{From: o.Status, To: domain.OrderCancelled}
		}

		if err := s.restock(ctx, o.Lines); err != nil {
			return err
		}
		if o.CouponID != nil {
			if err := s.coupons.ReleaseUsage(ctx, *o.CouponID); err != nil {
				return err
			}
		}

		from := o.Status
		now := s.now()
		if err := o.Transition(domain.OrderCancelled, now); err != nil {
			return err
		}
		o.CancellationReason = reason
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		if err := s.record(ctx, o, from, reason, actor.UserID, now); err != nil {
			return err
		}
		if err := s.events.Publish(ctx, events.OrderCancelled, o, from); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, s.surface("cancel order", orderID, err)
	}
	s.logger.Printf("order service: cancelled order=%s actor=%s admin=%t", orderID, actor.UserID, actor.IsAdmin)
	return order, nil
}

// restock releases lines in ascending product id order, matching the lock
// order used by checkout.
func (s *Service) restock(ctx context.Context, lines []domain.OrderLine) error {
	sorted := append([]domain.OrderLine(nil), lines...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	for _, line := range sorted {
		if err := s.products.Release(ctx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, o *domain.Order, from domain.OrderStatus, note, actorID string, at time.Time) error {
	return s.orders.AppendHistory(ctx, domain.StatusChange{
		OrderID: o.ID,
		From:    from,
		To:      o.Status,
		Note:    note,
		ActorID: actorID,
		At:      at,
	})
}

func (s *Service) surface(op, orderID string, err error) error {
	if domain.IsBusiness(err) {
		return err
	}
	s.logger.Printf("order service: %s order=%s error=%v", op, orderID, err)
	return &domain.ServerError{Op: op, Err: err}
}
