package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/dbtest"
	"commerce-backoffice/internal/domain"
	"commerce-backoffice/internal/events"
	cartrepo "commerce-backoffice/internal/repository/cart"
	couponrepo "commerce-backoffice/internal/repository/coupon"
	orderrepo "commerce-backoffice/internal/repository/order"
	outboxrepo "commerce-backoffice/internal/repository/outbox"
	productrepo "commerce-backoffice/internal/repository/product"
	cartsvc "commerce-backoffice/internal/service/cart"
	couponsvc "commerce-backoffice/internal/service/coupon"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, *domain.Order, domain.OrderStatus) error {
	return errors.New("broker unavailable")
}

type pgFixture struct {
	pool     *pgxpool.Pool
	products productrepo.Repository
	coupons  couponrepo.Repository
	carts    cartrepo.Repository
	cartSvc  *cartsvc.Service
}

func newPgFixture(ctx context.Context, t *testing.T) *pgFixture {
	t.Helper()
	pool := dbtest.Pool(ctx, t)
	f := &pgFixture{
		pool:     pool,
		products: productrepo.NewPostgres(pool, nil),
		coupons:  couponrepo.NewPostgres(pool, nil),
		carts:    cartrepo.NewPostgres(pool),
	}
	f.cartSvc = cartsvc.New(f.carts, f.products, couponsvc.New(f.coupons, nil), nil)
	return f
}

func (f *pgFixture) service(publisher eventPublisher) *Service {
	return New(Deps{
		Tx:       db.NewTxManager(f.pool, 3, nil),
		Carts:    f.carts,
		Products: f.products,
		Coupons:  f.coupons,
		Orders:   orderrepo.NewPostgres(f.pool, nil),
		Events:   publisher,
	})
}

func (f *pgFixture) orderCount(ctx context.Context, t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n))
	return n
}

func TestPostgres_CreateOrderLateFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newPgFixture(ctx, t)
	userID := dbtest.InsertCustomer(ctx, t, f.pool, "late@example.com")

	p, err := f.products.Upsert(ctx, domain.Product{SKU: "PG-A", Name: "Kettle", PriceCents: 1000, Stock: 5})
	require.NoError(t, err)
	c, err := f.coupons.Upsert(ctx, domain.Coupon{Code: "PG10", DiscountPercent: 10, ExpiredAt: time.Now().Add(time.Hour), IsActive: true})
	require.NoError(t, err)
	_, err = f.cartSvc.AddItem(ctx, userID, cartsvc.AddItemInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = f.cartSvc.ApplyCoupon(ctx, userID, "PG10")
	require.NoError(t, err)
	before, err := f.carts.GetByUser(ctx, userID)
	require.NoError(t, err)

	_, err = f.service(failingPublisher{}).CreateOrder(ctx, userID, address, domain.PaymentCard)
	var serverErr *domain.ServerError
	require.True(t, errors.As(err, &serverErr), "got %v", err)

	stored, err := f.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 5, stored.Stock)
	require.Zero(t, stored.SalesCount)
	coupon, err := f.coupons.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Zero(t, coupon.UsedCount)
	require.Zero(t, f.orderCount(ctx, t))
	after, err := f.carts.GetByUser(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, before.Version, after.Version)
	require.Len(t, after.Lines, 1)
	require.NotNil(t, after.Coupon)

	order, err := f.service(events.NewPublisher(outboxrepo.NewPostgres(f.pool), "order-events")).
		CreateOrder(ctx, userID, address, domain.PaymentCard)
	require.NoError(t, err)
	require.Equal(t, "PG10", order.CouponCode)
	coupon, err = f.coupons.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, coupon.UsedCount)
}

func TestPostgres_CreateOrderNeverOversells(t *testing.T) {
	ctx := context.Background()
	f := newPgFixture(ctx, t)
	const stock, buyers, qty = 7, 10, 2

	p, err := f.products.Upsert(ctx, domain.Product{SKU: "PG-LAST", Name: "Last units", PriceCents: 1000, Stock: stock})
	require.NoError(t, err)
	users := make([]string, buyers)
	for i := range users {
		users[i] = dbtest.InsertCustomer(ctx, t, f.pool, fmt.Sprintf("buyer%d@example.com", i))
		_, err := f.cartSvc.AddItem(ctx, users[i], cartsvc.AddItemInput{ProductID: p.ID, Quantity: qty})
		require.NoError(t, err)
	}
	svc := f.service(events.NewPublisher(outboxrepo.NewPostgres(f.pool), "order-events"))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for _, userID := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := svc.CreateOrder(ctx, userID, address, domain.PaymentCard)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(userID)
	}
	wg.Wait()

	require.Equal(t, stock/qty, success)
	require.Equal(t, buyers-stock/qty, rejected)
	stored, err := f.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, stock%qty, stored.Stock)
	require.Equal(t, success, stored.SalesCount)
	require.Equal(t, success, f.orderCount(ctx, t))
}
