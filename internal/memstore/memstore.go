// Package memstore is an in-memory implementation of the repositories used by
// service tests. Transactions hold one store-wide lock and restore a snapshot
// when the closure fails, so rollback and guarded-update behavior can be
// asserted without Postgres. Guards mirror the SQL in internal/repository.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"commerce-backoffice/internal/domain"
	outboxrepo "commerce-backoffice/internal/repository/outbox"
	paymentrepo "commerce-backoffice/internal/repository/payment"
	"github.com/google/uuid"
)

type txKey struct{}

type state struct {
	products map[string]domain.Product
	coupons  map[string]domain.Coupon
	carts    map[string]domain.Cart
	orders   map[string]domain.Order
	history  []domain.StatusChange
	payments []paymentrepo.Event
	outbox   []outboxrepo.Record
}

// Store holds every table. The zero value is not usable; call New.
type Store struct {
	mu     sync.Mutex
	st     state
	faults map[string]error
	seq    int64
	Now    func() time.Time
}

func New() *Store {
	return &Store{
		st: state{
			products: make(map[string]domain.Product),
			coupons:  make(map[string]domain.Coupon),
			carts:    make(map[string]domain.Cart),
			orders:   make(map[string]domain.Order),
		},
		faults: make(map[string]error),
		Now:    time.Now,
	}
}

// Fail makes the named operation return err until cleared with a nil err.
// Names are "<table>.<method>", e.g. "order.create" or "outbox.insert".
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// RunInTx runs fn with the store locked and rolls every write back when fn
// returns an error. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// with runs fn under the store lock unless ctx already holds it.
func (s *Store) with(ctx context.Context, op string, fn func() error) error {
	if ctx.Value(txKey{}) == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if err := s.faults[op]; err != nil {
		return err
	}
	return fn()
}

func (st state) clone() state {
	out := state{
		products: make(map[string]domain.Product, len(st.products)),
		coupons:  make(map[string]domain.Coupon, len(st.coupons)),
		carts:    make(map[string]domain.Cart, len(st.carts)),
		orders:   make(map[string]domain.Order, len(st.orders)),
		history:  append([]domain.StatusChange(nil), st.history...),
		payments: append([]paymentrepo.Event(nil), st.payments...),
		outbox:   append([]outboxrepo.Record(nil), st.outbox...),
	}
	for k, v := range st.products {
		out.products[k] = v
	}
	for k, v := range st.coupons {
		out.coupons[k] = v
	}
	for k, v := range st.carts {
		out.carts[k] = cloneCart(v)
	}
	for k, v := range st.orders {
		out.orders[k] = cloneOrder(v)
	}
	return out
}

func cloneCart(c domain.Cart) domain.Cart {
	c.Lines = append([]domain.CartLine(nil), c.Lines...)
	if c.Coupon != nil {
		cp := *c.Coupon
		c.Coupon = &cp
	}
	return c
}

func cloneOrder(o domain.Order) domain.Order {
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		o.PaymentResult = &pr
	}
	return o
}

// Product returns the stored product or the zero value.
func (s *Store) Product(id string) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[id]
}

// Coupon returns the stored coupon or the zero value.
func (s *Store) Coupon(id string) domain.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.coupons[id]
}

// Cart returns a copy of the user's stored cart.
func (s *Store) Cart(userID string) (domain.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.carts[userID]
	return cloneCart(c), ok
}

// OrderCount reports how many orders were committed.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

// Outbox returns a copy of every outbox record.
func (s *Store) Outbox() []outboxrepo.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outboxrepo.Record(nil), s.st.outbox...)
}

// PaymentEvents returns a copy of the payment journal.
func (s *Store) PaymentEvents() []paymentrepo.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]paymentrepo.Event(nil), s.st.payments...)
}

// Products is the product repository view.
func (s *Store) Products() *Products { return &Products{s} }

// Coupons is the coupon repository view.
func (s *Store) Coupons() *Coupons { return &Coupons{s} }

// Carts is the cart repository view.
func (s *Store) Carts() *Carts { return &Carts{s} }

// Orders is the order repository view.
func (s *Store) Orders() *Orders { return &Orders{s} }

// Payments is the payment journal view.
func (s *Store) Payments() *Payments { return &Payments{s} }

// OutboxRepo is the outbox repository view.
func (s *Store) OutboxRepo() *Outbox { return &Outbox{s} }

type Products struct{ s *Store }

func (r *Products) List(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := r.s.with(ctx, "product.list", func() error {
		for _, p := range r.s.st.products {
			out = append(out, p)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
		return nil
	})
	return out, err
}

func (r *Products) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var out *domain.Product
	err := r.s.with(ctx, "product.get", func() error {
		p, ok := r.s.st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *Products) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	err := r.s.with(ctx, "product.get", func() error {
		for _, id := range ids {
			if p, ok := r.s.st.products[id]; ok {
				out[id] = p
			}
		}
		return nil
	})
	return out, err
}

func (r *Products) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	err := r.s.with(ctx, "product.upsert", func() error {
		for id, existing := range r.s.st.products {
			if existing.SKU == p.SKU {
				p.ID = id
				p.SalesCount = existing.SalesCount
				p.CreatedAt = existing.CreatedAt
			}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
			p.CreatedAt = r.s.Now()
		}
		if p.Status == "" {
			p.Status = domain.ProductActive
		}
		p.UpdatedAt = r.s.Now()
		r.s.st.products[p.ID] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Products) Reserve(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	var out *domain.Product
	err := r.s.with(ctx, "product.reserve", func() error {
		p, ok := r.s.st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		if p.Status != domain.ProductActive || p.Stock < quantity {
			available := p.Stock
			if p.Status != domain.ProductActive {
				available = 0
			}
			return &domain.InsufficientStockError{ProductID: id, Name: p.Name, Available: available, Requested: quantity}
		}
		p.Stock -= quantity
		p.SalesCount++
		if p.Stock == 0 {
			p.Status = domain.ProductOutOfStock
		}
		r.s.st.products[id] = p
		out = &p
		return nil
	})
	return out, err
}

func (r *Products) Release(ctx context.Context, id string, quantity int) error {
	return r.s.with(ctx, "product.release", func() error {
		p, ok := r.s.st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		p.Stock += quantity
		if p.SalesCount > 0 {
			p.SalesCount--
		}
		if p.Status == domain.ProductOutOfStock {
			p.Status = domain.ProductActive
		}
		r.s.st.products[id] = p
		return nil
	})
}

type Coupons struct{ s *Store }

func (r *Coupons) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = domain.NormalizeCouponCode(code)
	var out *domain.Coupon
	err := r.s.with(ctx, "coupon.get", func() error {
		for _, c := range r.s.st.coupons {
			if c.Code == code {
				out = &c
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r *Coupons) GetByID(ctx context.Context, id string) (*domain.Coupon, error) {
	var out *domain.Coupon
	err := r.s.with(ctx, "coupon.get", func() error {
		c, ok := r.s.st.coupons[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *Coupons) Upsert(ctx context.Context, c domain.Coupon) (*domain.Coupon, error) {
	c.Code = domain.NormalizeCouponCode(c.Code)
	err := r.s.with(ctx, "coupon.upsert", func() error {
		if c.DiscountPercent < 1 || c.DiscountPercent > 100 {
			return domain.Invalid("coupon %s: discount must be between 1 and 100", c.Code)
		}
		for id, existing := range r.s.st.coupons {
			if existing.Code == c.Code {
				c.ID = id
				c.UsedCount = existing.UsedCount
				c.CreatedAt = existing.CreatedAt
			}
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
			c.CreatedAt = r.s.Now()
		}
		r.s.st.coupons[c.ID] = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Coupons) Deactivate(ctx context.Context, id string) error {
	return r.s.with(ctx, "coupon.deactivate", func() error {
		if c, ok := r.s.st.coupons[id]; ok {
			c.IsActive = false
			r.s.st.coupons[id] = c
		}
		return nil
	})
}

func (r *Coupons) ReserveUsage(ctx context.Context, id string, now time.Time) error {
	return r.s.with(ctx, "coupon.reserve", func() error {
		c, ok := r.s.st.coupons[id]
		if !ok {
			return domain.ErrNotFound
		}
		if !c.IsActive || !c.ExpiredAt.After(now) || (c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit) {
			return domain.Invalid("coupon %s is no longer valid, remove it from the cart and retry", c.Code)
		}
		c.UsedCount++
		r.s.st.coupons[id] = c
		return nil
	})
}

func (r *Coupons) ReleaseUsage(ctx context.Context, id string) error {
	return r.s.with(ctx, "coupon.release", func() error {
		c, ok := r.s.st.coupons[id]
		if !ok {
			return domain.ErrNotFound
		}
		if c.UsedCount > 0 {
			c.UsedCount--
		}
		r.s.st.coupons[id] = c
		return nil
	})
}

type Carts struct{ s *Store }

func (r *Carts) Create(ctx context.Context, userID string) (*domain.Cart, error) {
	var out domain.Cart
	err := r.s.with(ctx, "cart.create", func() error {
		c, ok := r.s.st.carts[userID]
		if !ok {
			now := r.s.Now()
			c = domain.Cart{ID: uuid.NewString(), UserID: userID, Version: 1, CreatedAt: now, UpdatedAt: now}
			r.s.st.carts[userID] = c
		}
		out = cloneCart(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Carts) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	var out domain.Cart
	err := r.s.with(ctx, "cart.get", func() error {
		c, ok := r.s.st.carts[userID]
		if !ok {
			return domain.ErrNotFound
		}
		out = cloneCart(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Carts) Save(ctx context.Context, cart *domain.Cart) error {
	return r.s.with(ctx, "cart.save", func() error {
		stored, ok := r.s.st.carts[cart.UserID]
		if !ok || stored.Version != cart.Version {
			return &domain.ConflictError{Op: "save cart", Err: fmt.Errorf("stale cart version %d", cart.Version)}
		}
		cart.Version++
		cart.UpdatedAt = r.s.Now()
		r.s.st.carts[cart.UserID] = cloneCart(*cart)
		return nil
	})
}

type Orders struct{ s *Store }

func (r *Orders) Create(ctx context.Context, o *domain.Order) error {
	return r.s.with(ctx, "order.create", func() error {
		if _, ok := r.s.st.orders[o.ID]; ok {
			return domain.ErrAlreadyExists
		}
		r.s.st.orders[o.ID] = cloneOrder(*o)
		return nil
	})
}

func (r *Orders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var out domain.Order
	err := r.s.with(ctx, "order.get", func() error {
		o, ok := r.s.st.orders[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = cloneOrder(o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Orders) GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *Orders) Update(ctx context.Context, o *domain.Order) error {
	return r.s.with(ctx, "order.update", func() error {
		if _, ok := r.s.st.orders[o.ID]; !ok {
			return domain.ErrNotFound
		}
		r.s.st.orders[o.ID] = cloneOrder(*o)
		return nil
	})
}

func (r *Orders) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	var out []domain.Order
	err := r.s.with(ctx, "order.list", func() error {
		for _, o := range r.s.st.orders {
			if f.UserID != "" && o.UserID != f.UserID {
				continue
			}
			if f.Status != "" && o.Status != f.Status {
				continue
			}
			if f.From != nil && o.CreatedAt.Before(*f.From) {
				continue
			}
			if f.To != nil && !o.CreatedAt.Before(*f.To) {
				continue
			}
			out = append(out, cloneOrder(o))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		if f.Offset > 0 {
			if f.Offset >= len(out) {
				out = nil
			} else {
				out = out[f.Offset:]
			}
		}
		if f.Limit > 0 && len(out) > f.Limit {
			out = out[:f.Limit]
		}
		return nil
	})
	return out, err
}

func (r *Orders) AppendHistory(ctx context.Context, change domain.StatusChange) error {
	return r.s.with(ctx, "order.history", func() error {
		r.s.st.history = append(r.s.st.history, change)
		return nil
	})
}

func (r *Orders) History(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	var out []domain.StatusChange
	err := r.s.with(ctx, "order.history", func() error {
		for _, c := range r.s.st.history {
			if c.OrderID == orderID {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

type Payments struct{ s *Store }

func (r *Payments) Record(ctx context.Context, e paymentrepo.Event) (bool, error) {
	inserted := false
	err := r.s.with(ctx, "payment.record", func() error {
		for _, existing := range r.s.st.payments {
			if existing.OrderID == e.OrderID &&
				existing.Update.InvoiceID == e.Update.InvoiceID &&
				existing.Update.Status == e.Update.Status &&
				existing.Update.TransactionID == e.Update.TransactionID {
				return nil
			}
		}
		e.CreatedAt = r.s.Now()
		r.s.st.payments = append(r.s.st.payments, e)
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *Payments) ListByOrder(ctx context.Context, orderID string) ([]paymentrepo.Event, error) {
	var out []paymentrepo.Event
	err := r.s.with(ctx, "payment.list", func() error {
		for _, e := range r.s.st.payments {
			if e.OrderID == orderID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

type Outbox struct{ s *Store }

func (r *Outbox) Insert(ctx context.Context, eventID, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.s.with(ctx, "outbox.insert", func() error {
		r.s.seq++
		r.s.st.outbox = append(r.s.st.outbox, outboxrepo.Record{
			ID:        r.s.seq,
			EventID:   eventID,
			Topic:     topic,
			Key:       key,
			Payload:   data,
			CreatedAt: r.s.Now(),
		})
		return nil
	})
}

func (r *Outbox) FetchPending(ctx context.Context, limit int) ([]outboxrepo.Record, error) {
	var out []outboxrepo.Record
	err := r.s.with(ctx, "outbox.fetch", func() error {
		for _, rec := range r.s.st.outbox {
			if rec.SentAt == nil {
				out = append(out, rec)
			}
			if len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *Outbox) MarkSent(ctx context.Context, ids []int64) error {
	return r.s.with(ctx, "outbox.mark", func() error {
		now := r.s.Now()
		for _, id := range ids {
			for i := range r.s.st.outbox {
				if r.s.st.outbox[i].ID == id {
					r.s.st.outbox[i].SentAt = &now
				}
			}
		}
		return nil
	})
}
