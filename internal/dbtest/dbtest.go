// Package dbtest opens a migrated, empty Postgres for integration tests.
// Tests are skipped when TEST_DB_DSN is not set.
package dbtest

import (
	"context"
	"os"
	"testing"

	"commerce-backoffice/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Pool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	Reset(ctx, t, pool)
	return pool
}

func Reset(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(ctx, `
TRUNCATE outbox, payment_events, order_status_history, order_lines, orders,
         cart_lines, carts, coupons, products, tokens, customers
RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

// InsertCustomer creates a customer row and returns its id.
func InsertCustomer(ctx context.Context, t *testing.T, pool *pgxpool.Pool, email string) string {
	t.Helper()
	var id string
	if err := pool.QueryRow(ctx, `INSERT INTO customers (email, password_hash) VALUES ($1, 'x') RETURNING id::text`, email).Scan(&id); err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	return id
}
