package coupon

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const couponColumns = `id::text, code, discount_percent, min_purchase_cents, expired_at, is_active, used_count, usage_limit, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return r.get(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, domain.NormalizeCouponCode(code))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Coupon, error) {
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	return r.get(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id)
}

func (r *postgresRepo) get(ctx context.Context, q string, arg string) (*domain.Coupon, error) {
	c, err := scanCoupon(db.Conn(ctx, r.pool).QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("coupon repo: get arg=%s error=%v", arg, err)
		return nil, err
	}
	return c, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, c domain.Coupon) (*domain.Coupon, error) {
	const q = `
INSERT INTO coupons (code, discount_percent, min_purchase_cents, expired_at, is_active, usage_limit)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code) DO UPDATE SET
    discount_percent = EXCLUDED.discount_percent,
    min_purchase_cents = EXCLUDED.min_purchase_cents,
    expired_at = EXCLUDED.expired_at,
    is_active = EXCLUDED.is_active,
    usage_limit = EXCLUDED.usage_limit
RETURNING ` + couponColumns
	out, err := scanCoupon(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		domain.NormalizeCouponCode(c.Code),
		c.DiscountPercent,
		c.MinPurchaseCents,
		c.ExpiredAt,
		c.IsActive,
		c.UsageLimit,
	))
	if err != nil {
		if db.IsCheckViolation(err) {
			return nil, domain.Invalid("coupon %s: discount must be between 1 and 100", c.Code)
		}
		r.logger.Printf("coupon repo: upsert code=%s error=%v", c.Code, err)
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) Deactivate(ctx context.Context, id string) error {
	if !db.ValidID(id) {
		return domain.ErrNotFound
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE coupons SET is_active = false WHERE id = $1 AND is_active`, id)
	if err != nil {
		r.logger.Printf("coupon repo: deactivate id=%s error=%v", id, err)
	}
	return err
}

// ReserveUsage increments used_count only while the coupon is active,
// unexpired and under its usage limit.
func (r *postgresRepo) ReserveUsage(ctx context.Context, id string, now time.Time) error {
	const q = `
UPDATE coupons
SET used_count = used_count + 1
WHERE id = $1
  AND is_active
  AND expired_at > $2
  AND (usage_limit IS NULL OR used_count < usage_limit)
RETURNING code
`
	if !db.ValidID(id) {
		return domain.ErrNotFound
	}
	conn := db.Conn(ctx, r.pool)
	var code string
	err := conn.QueryRow(ctx, q, id, now).Scan(&code)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Printf("coupon repo: reserve usage id=%s error=%v", id, err)
		return err
	}
	current, err := scanCoupon(conn.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return domain.Invalid("coupon %s is no longer valid, remove it from the cart and retry", current.Code)
}

func (r *postgresRepo) ReleaseUsage(ctx context.Context, id string) error {
	if !db.ValidID(id) {
		return domain.ErrNotFound
	}
	cmd, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE coupons SET used_count = GREATEST(used_count - 1, 0) WHERE id = $1`, id)
	if err != nil {
		r.logger.Printf("coupon repo: release usage id=%s error=%v", id, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	if err := row.Scan(
		&c.ID,
		&c.Code,
		&c.DiscountPercent,
		&c.MinPurchaseCents,
		&c.ExpiredAt,
		&c.IsActive,
		&c.UsedCount,
		&c.UsageLimit,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
