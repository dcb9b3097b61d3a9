package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"commerce-backoffice/internal/dbtest"
	"commerce-backoffice/internal/domain"
	"github.com/google/uuid"
)

func seedOrder(ctx context.Context, t *testing.T, repo Repository, userID, productID string, createdAt time.Time) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:              uuid.NewString(),
		Number:          "ORD-" + uuid.NewString()[:8],
		UserID:          userID,
		ShippingAddress: domain.ShippingAddress{FullName: "Ann", Street: "1 Main", City: "Riga", Country: "LV"},
		Pricing:         domain.OrderPricing{ItemsCents: 3000, ShippingCents: 2500, TaxCents: 825, TotalCents: 6325},
		PaymentMethod:   domain.PaymentCard,
		PaymentStatus:   domain.PaymentPending,
		Status:          domain.OrderPending,
		Lines: []domain.OrderLine{{
			ID: uuid.NewString(), ProductID: productID, ProductName: "Mug", SKU: "MUG", Quantity: 3, UnitPriceCents: 1000,
		}},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return o
}

func TestPostgres_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	userID := dbtest.InsertCustomer(ctx, t, pool, "order@example.com")
	var productID string
	if err := pool.QueryRow(ctx, `INSERT INTO products (sku, name, price_cents, stock) VALUES ('MUG', 'Mug', 1000, 5) RETURNING id::text`).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	repo := NewPostgres(pool, nil)
	o := seedOrder(ctx, t, repo, userID, productID, time.Now().UTC())

	got, err := repo.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Number != o.Number || len(got.Lines) != 1 || got.Lines[0].Quantity != 3 || got.ShippingAddress.City != "Riga" {
		t.Fatalf("unexpected order %+v", got)
	}
	if got.PaymentResult != nil || got.CouponID != nil {
		t.Fatalf("expected empty payment result and coupon, got %+v", got)
	}

	now := time.Now().UTC()
	if err := got.Transition(domain.OrderConfirmed, now); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	got.PaymentStatus = domain.PaymentPaid
	got.PaymentResult = &domain.PaymentResult{TransactionID: "tx-1", PaidCents: 6325, PaidAt: now}
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := repo.AppendHistory(ctx, domain.StatusChange{OrderID: o.ID, From: domain.OrderPending, To: domain.OrderConfirmed, At: now}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	reloaded, err := repo.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != domain.OrderConfirmed || reloaded.PaymentResult == nil || reloaded.PaymentResult.TransactionID != "tx-1" {
		t.Fatalf("unexpected reloaded order %+v", reloaded)
	}
	history, err := repo.History(ctx, o.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].To != domain.OrderConfirmed {
		t.Fatalf("unexpected history %+v", history)
	}

	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgres_ListFilters(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	alice := dbtest.InsertCustomer(ctx, t, pool, "alice@example.com")
	bob := dbtest.InsertCustomer(ctx, t, pool, "bob@example.com")
	var productID string
	if err := pool.QueryRow(ctx, `INSERT INTO products (sku, name, price_cents, stock) VALUES ('MUG', 'Mug', 1000, 5) RETURNING id::text`).Scan(&productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	repo := NewPostgres(pool, nil)
	day := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	seedOrder(ctx, t, repo, alice, productID, day)
	seedOrder(ctx, t, repo, alice, productID, day.AddDate(0, 0, 2))
	seedOrder(ctx, t, repo, bob, productID, day.AddDate(0, 0, 1))

	mine, err := repo.List(ctx, domain.OrderFilter{UserID: alice})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 2 || !mine[0].CreatedAt.After(mine[1].CreatedAt) {
		t.Fatalf("expected alice's 2 orders newest first, got %+v", mine)
	}
	if len(mine[0].Lines) != 1 {
		t.Fatalf("expected lines to be loaded")
	}

	from := day.AddDate(0, 0, 1)
	to := day.AddDate(0, 0, 2)
	ranged, err := repo.List(ctx, domain.OrderFilter{From: &from, To: &to, Status: domain.OrderPending})
	if err != nil {
		t.Fatalf("List range: %v", err)
	}
	if len(ranged) != 1 || ranged[0].UserID != bob {
		t.Fatalf("unexpected ranged result %+v", ranged)
	}
}

func TestPostgres_MalformedIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	repo := NewPostgres(pool, nil)

	if _, err := repo.GetByID(ctx, "abc"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	history, err := repo.History(ctx, "abc")
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history, got %v %v", history, err)
	}
	orders, err := repo.List(ctx, domain.OrderFilter{UserID: "abc"})
	if err != nil || len(orders) != 0 {
		t.Fatalf("expected no orders, got %v %v", orders, err)
	}
}
