package cart

import (
	"context"
	"errors"
	"time"

	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, userID string) (*domain.Cart, error) {
	const q = `
INSERT INTO carts (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO NOTHING
`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, q, userID); err != nil {
		return nil, err
	}
	return r.GetByUser(ctx, userID)
}

func (r *postgresRepo) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	const cartQuery = `
SELECT c.id::text, c.user_id::text, c.total_cents, c.total_after_discount_cents, c.version,
       c.created_at, c.updated_at, cp.id::text, cp.code, cp.discount_percent
FROM carts c
LEFT JOIN coupons cp ON cp.id = c.coupon_id
WHERE c.user_id = $1
`
	conn := db.Conn(ctx, r.pool)

	var cart domain.Cart
	var couponID, couponCode *string
	var couponPercent *int
	err := conn.QueryRow(ctx, cartQuery, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.TotalCents,
		&cart.TotalAfterDiscountCents,
		&cart.Version,
		&cart.CreatedAt,
		&cart.UpdatedAt,
		&couponID,
		&couponCode,
		&couponPercent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if couponID != nil {
		cart.Coupon = &domain.CartCoupon{ID: *couponID, Code: deref(couponCode), DiscountPercent: derefInt(couponPercent)}
	}

	const linesQuery = `
SELECT id::text, product_id::text, product_name, variant, quantity, unit_price_cents, added_at
FROM cart_lines
WHERE cart_id = $1
ORDER BY position ASC
`
	rows, err := conn.Query(ctx, linesQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ID,
			&line.ProductID,
			&line.ProductName,
			&line.Variant,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.AddedAt,
		); err != nil {
			return nil, err
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &cart, nil
}

func (r *postgresRepo) Save(ctx context.Context, cart *domain.Cart) error {
	if db.InTx(ctx) {
		return r.save(ctx, db.Conn(ctx, r.pool), cart)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.save(ctx, tx, cart); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) save(ctx context.Context, q db.Querier, cart *domain.Cart) error {
	var couponID *string
	if cart.Coupon != nil {
		couponID = &cart.Coupon.ID
	}

	var version int
	var updatedAt time.Time
	err := q.QueryRow(ctx, `
UPDATE carts
SET coupon_id = $1,
    total_cents = $2,
    total_after_discount_cents = $3,
    version = version + 1,
    updated_at = now()
WHERE id = $4 AND version = $5
RETURNING version, updated_at
`, couponID, cart.TotalCents, cart.TotalAfterDiscountCents, cart.ID, cart.Version).Scan(&version, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.ConflictError{Op: "save cart", Err: errors.New("stale cart version")}
		}
		return err
	}

	if _, err := q.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cart.ID); err != nil {
		return err
	}
	for i, line := range cart.Lines {
		if _, err := q.Exec(ctx, `
INSERT INTO cart_lines (id, cart_id, product_id, product_name, variant, quantity, unit_price_cents, position, added_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, line.ID, cart.ID, line.ProductID, line.ProductName, line.Variant, line.Quantity, line.UnitPriceCents, i, line.AddedAt); err != nil {
			return err
		}
	}

	cart.Version = version
	cart.UpdatedAt = updatedAt
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
