package product

import (
	"context"
	"errors"
	"io"
	"log"

	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `id::text, sku, name, price_cents, discount_price_cents, stock, status, sales_count, created_at, updated_at`

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

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		r.logger.Printf("product repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("product repo: list rows error=%v", err)
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	p, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	valid := ids[:0:0]
	for _, id := range ids {
		if db.ValidID(id) {
			valid = append(valid, id)
		}
	}
	ids = valid
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		r.logger.Printf("product repo: get many count=%d error=%v", len(ids), err)
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = *p
	}
	return out, rows.Err()
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (sku, name, price_cents, discount_price_cents, stock, status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    price_cents = EXCLUDED.price_cents,
    discount_price_cents = EXCLUDED.discount_price_cents,
    stock = EXCLUDED.stock,
    status = EXCLUDED.status,
    updated_at = now()
RETURNING ` + productColumns
	status := product.Status
	if status == "" {
		status = domain.ProductActive
	}
	p, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, q,
		product.SKU,
		product.Name,
		product.PriceCents,
		product.DiscountPriceCents,
		product.Stock,
		status,
	))
	if err != nil {
		r.logger.Printf("product repo: upsert sku=%s error=%v", product.SKU, err)
		return nil, err
	}
	r.logger.Printf("product repo: upserted sku=%s id=%s stock=%d", p.SKU, p.ID, p.Stock)
	return p, nil
}

// Reserve decrements stock by quantity and bumps sales_count in one guarded
// statement. Two concurrent reservations of the last unit serialize on the
// row lock and the loser re-evaluates the guard against the new row.
func (r *postgresRepo) Reserve(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	const q = `
UPDATE products
SET stock = stock - $2,
    sales_count = sales_count + 1,
    status = CASE WHEN stock - $2 = 0 THEN 'out_of_stock' ELSE status END,
    updated_at = now()
WHERE id = $1 AND stock >= $2 AND status = 'active'
RETURNING ` + productColumns
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	conn := db.Conn(ctx, r.pool)
	p, err := scanProduct(conn.QueryRow(ctx, q, id, quantity))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Printf("product repo: reserve id=%s qty=%d error=%v", id, quantity, err)
		return nil, err
	}

	// The guard failed. Read the row only to build the error message.
	current, err := scanProduct(conn.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	available := current.Stock
	if current.Status != domain.ProductActive {
		available = 0
	}
	r.logger.Printf("product repo: reserve rejected id=%s qty=%d stock=%d status=%s", id, quantity, current.Stock, current.Status)
	return nil, &domain.InsufficientStockError{ProductID: id, Name: current.Name, Available: available, Requested: quantity}
}

// Release is the inverse of Reserve.
func (r *postgresRepo) Release(ctx context.Context, id string, quantity int) error {
	const q = `
UPDATE products
SET stock = stock + $2,
    sales_count = GREATEST(sales_count - 1, 0),
    status = CASE WHEN status = 'out_of_stock' THEN 'active' ELSE status END,
    updated_at = now()
WHERE id = $1
`
	if !db.ValidID(id) {
		return domain.ErrNotFound
	}
	cmd, err := db.Conn(ctx, r.pool).Exec(ctx, q, id, quantity)
	if err != nil {
		r.logger.Printf("product repo: release id=%s qty=%d error=%v", id, quantity, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var status string
	if err := row.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.PriceCents,
		&p.DiscountPriceCents,
		&p.Stock,
		&status,
		&p.SalesCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = domain.ProductStatus(status)
	return &p, nil
}
