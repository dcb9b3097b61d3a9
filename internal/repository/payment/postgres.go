package payment

import (
	"context"
	"io"
	"log"

	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

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

func (r *postgresRepo) Record(ctx context.Context, e Event) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
INSERT INTO payment_events (id, order_id, invoice_id, status, transaction_id, paid_cents, source, applied)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (order_id, invoice_id, status, transaction_id) DO NOTHING
`, e.ID, e.OrderID, e.Update.InvoiceID, e.Update.Status, e.Update.TransactionID, e.Update.PaidAmountCents, e.Update.Source, e.Applied)
	if err != nil {
		r.logger.Printf("payment repo: record order=%s error=%v", e.OrderID, err)
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresRepo) ListByOrder(ctx context.Context, orderID string) ([]Event, error) {
	if !db.ValidID(orderID) {
		return nil, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
SELECT id, order_id::text, invoice_id, status, transaction_id, paid_cents, source, applied, created_at
FROM payment_events
WHERE order_id = $1
ORDER BY created_at, id
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e      Event
			status string
		)
		if err := rows.Scan(
			&e.ID,
			&e.OrderID,
			&e.Update.InvoiceID,
			&status,
			&e.Update.TransactionID,
			&e.Update.PaidAmountCents,
			&e.Update.Source,
			&e.Applied,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Update.Status = domain.PaymentStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
