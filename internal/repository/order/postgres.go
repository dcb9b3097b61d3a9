package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id::text, number, user_id::text, shipping_address, items_cents, shipping_cents,
       tax_cents, discount_cents, total_cents, payment_method, payment_status, payment_result,
       order_status, coupon_id::text, coupon_code, cancellation_reason, shipped_at, delivered_at,
       cancelled_at, created_at, updated_at`

const defaultListLimit = 50

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

func (r *postgresRepo) Create(ctx context.Context, o *domain.Order) error {
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	result, err := marshalResult(o.PaymentResult)
	if err != nil {
		return err
	}

	conn := db.Conn(ctx, r.pool)
	_, err = conn.Exec(ctx, `
INSERT INTO orders (
    id, number, user_id, shipping_address, items_cents, shipping_cents, tax_cents,
    discount_cents, total_cents, payment_method, payment_status, payment_result,
    order_status, coupon_id, coupon_code, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`,
		o.ID, o.Number, o.UserID, address,
		o.Pricing.ItemsCents, o.Pricing.ShippingCents, o.Pricing.TaxCents,
		o.Pricing.DiscountCents, o.Pricing.TotalCents,
		o.PaymentMethod, o.PaymentStatus, result,
		o.Status, o.CouponID, o.CouponCode, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		r.logger.Printf("order repo: create id=%s error=%v", o.ID, err)
		return err
	}

	for i, line := range o.Lines {
		if _, err := conn.Exec(ctx, `
INSERT INTO order_lines (id, order_id, product_id, product_name, sku, variant, quantity, unit_price_cents, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, line.ID, o.ID, line.ProductID, line.ProductName, line.SKU, line.Variant, line.Quantity, line.UnitPriceCents, i); err != nil {
			r.logger.Printf("order repo: create line order=%s product=%s error=%v", o.ID, line.ProductID, err)
			return err
		}
	}
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *postgresRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresRepo) get(ctx context.Context, query, id string) (*domain.Order, error) {
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	conn := db.Conn(ctx, r.pool)
	o, err := scanOrder(conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidText(err) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("order repo: get id=%s error=%v", id, err)
		return nil, err
	}
	lines, err := r.lines(ctx, conn, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func (r *postgresRepo) Update(ctx context.Context, o *domain.Order) error {
	result, err := marshalResult(o.PaymentResult)
	if err != nil {
		return err
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
UPDATE orders
SET order_status = $2,
    payment_status = $3,
    payment_result = $4,
    cancellation_reason = $5,
    shipped_at = $6,
    delivered_at = $7,
    cancelled_at = $8,
    updated_at = $9
WHERE id = $1
`, o.ID, o.Status, o.PaymentStatus, result, o.CancellationReason, o.ShippedAt, o.DeliveredAt, o.CancelledAt, o.UpdatedAt)
	if err != nil {
		r.logger.Printf("order repo: update id=%s error=%v", o.ID, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		if !db.ValidID(filter.UserID) {
			return nil, nil
		}
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("order_status = $%d", filter.Status)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	conn := db.Conn(ctx, r.pool)
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		r.logger.Printf("order repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	lines, err := r.lines(ctx, conn, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (r *postgresRepo) lines(ctx context.Context, conn db.Querier, orderIDs []string) (map[string][]domain.OrderLine, error) {
	rows, err := conn.Query(ctx, `
SELECT order_id::text, id::text, product_id::text, product_name, sku, variant, quantity, unit_price_cents
FROM order_lines
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, position
`, orderIDs)
	if err != nil {
		r.logger.Printf("order repo: lines count=%d error=%v", len(orderIDs), err)
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var orderID string
		var line domain.OrderLine
		if err := rows.Scan(
			&orderID,
			&line.ID,
			&line.ProductID,
			&line.ProductName,
			&line.SKU,
			&line.Variant,
			&line.Quantity,
			&line.UnitPriceCents,
		); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], line)
	}
	return out, rows.Err()
}

func (r *postgresRepo) AppendHistory(ctx context.Context, change domain.StatusChange) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
INSERT INTO order_status_history (order_id, from_status, to_status, note, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, change.OrderID, change.From, change.To, change.Note, change.ActorID, change.At)
	if err != nil {
		r.logger.Printf("order repo: append history order=%s error=%v", change.OrderID, err)
	}
	return err
}

func (r *postgresRepo) History(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	if !db.ValidID(orderID) {
		return nil, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
SELECT order_id::text, from_status, to_status, note, actor_id, created_at
FROM order_status_history
WHERE order_id = $1
ORDER BY id
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.OrderID, &c.From, &c.To, &c.Note, &c.ActorID, &c.At); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o       domain.Order
		address []byte
		result  []byte
	)
	if err := row.Scan(
		&o.ID,
		&o.Number,
		&o.UserID,
		&address,
		&o.Pricing.ItemsCents,
		&o.Pricing.ShippingCents,
		&o.Pricing.TaxCents,
		&o.Pricing.DiscountCents,
		&o.Pricing.TotalCents,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&result,
		&o.Status,
		&o.CouponID,
		&o.CouponCode,
		&o.CancellationReason,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.CancelledAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if len(result) > 0 {
		o.PaymentResult = &domain.PaymentResult{}
		if err := json.Unmarshal(result, o.PaymentResult); err != nil {
			return nil, fmt.Errorf("decode payment result: %w", err)
		}
	}
	return &o, nil
}

func marshalResult(result *domain.PaymentResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	return json.Marshal(result)
}
