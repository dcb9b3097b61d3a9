package product

import (
	"context"
	"errors"
	"sync"
	"testing"

	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/dbtest"
	"commerce-backoffice/internal/domain"
)

func TestPostgres_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	repo := NewPostgres(pool, nil)

	p, err := repo.Upsert(ctx, domain.Product{SKU: "SKU1", Name: "Prod 1", PriceCents: 1000, Stock: 5})
	if err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if p.ID == "" || p.Status != domain.ProductActive {
		t.Fatalf("unexpected product %+v", p)
	}

	updated, err := repo.Upsert(ctx, domain.Product{SKU: "SKU1", Name: "Prod 1b", PriceCents: 1200, Stock: 7})
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if updated.ID != p.ID || updated.Stock != 7 || updated.Name != "Prod 1b" {
		t.Fatalf("unexpected updated product %+v", updated)
	}

	byIDs, err := repo.GetByIDs(ctx, []string{p.ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if _, ok := byIDs[p.ID]; !ok {
		t.Fatalf("expected product in map")
	}
}

func TestPostgres_ReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	repo := NewPostgres(pool, nil)

	p, err := repo.Upsert(ctx, domain.Product{SKU: "SKU2", Name: "Mug", PriceCents: 500, Stock: 2})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reserved, err := repo.Reserve(ctx, p.ID, 2)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if reserved.Stock != 0 || reserved.SalesCount != 1 || reserved.Status != domain.ProductOutOfStock {
		t.Fatalf("unexpected reserved product %+v", reserved)
	}

	_, err = repo.Reserve(ctx, p.ID, 1)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 0 {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if err := repo.Release(ctx, p.ID, 2); err != nil {
		t.Fatalf("Release: %v", err)
	}
	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Stock != 2 || got.SalesCount != 0 || got.Status != domain.ProductActive {
		t.Fatalf("unexpected released product %+v", got)
	}
}

func TestPostgres_ReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	repo := NewPostgres(pool, nil)

	p, err := repo.Upsert(ctx, domain.Product{SKU: "SKU3", Name: "Last units", PriceCents: 100, Stock: 7})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	const buyers, qty = 10, 2
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Reserve(ctx, p.ID, qty); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 3 {
		t.Fatalf("expected 3 successful reservations, got %d", success)
	}
	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Stock != 1 {
		t.Fatalf("expected stock 1, got %d", got.Stock)
	}
}

func TestPostgres_MalformedIDKeepsTransactionUsable(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	repo := NewPostgres(pool, nil)

	p, err := repo.Upsert(ctx, domain.Product{SKU: "SKU4", Name: "Lamp", PriceCents: 100, Stock: 3})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	err = db.NewTxManager(pool, 0, nil).RunInTx(ctx, func(ctx context.Context) error {
		if _, err := repo.Reserve(ctx, "not-a-uuid", 1); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		byIDs, err := repo.GetByIDs(ctx, []string{"not-a-uuid", p.ID})
		if err != nil || len(byIDs) != 1 {
			t.Errorf("GetByIDs: %v %v", byIDs, err)
		}
		_, err = repo.Reserve(ctx, p.ID, 1)
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Stock != 2 {
		t.Fatalf("expected stock 2, got %d", got.Stock)
	}
}
