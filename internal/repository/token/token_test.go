package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"commerce-backoffice/internal/dbtest"
	"commerce-backoffice/internal/domain"
)

func TestPostgres_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	customerID := dbtest.InsertCustomer(ctx, t, pool, "tok@example.com")
	repo := NewPostgres(pool)

	now := time.Now().UTC()
	if err := repo.Create(ctx, Token{Token: "live", CustomerID: customerID, Kind: "access", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Create live: %v", err)
	}
	if err := repo.Create(ctx, Token{Token: "old", CustomerID: customerID, Kind: "access", ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("Create old: %v", err)
	}

	got, err := repo.Get(ctx, "live")
	if err != nil || got.CustomerID != customerID {
		t.Fatalf("Get: %+v %v", got, err)
	}

	n, err := repo.DeleteExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpired: n=%d err=%v", n, err)
	}
	if _, err := repo.Get(ctx, "old"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected old token gone, got %v", err)
	}
	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "live"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
