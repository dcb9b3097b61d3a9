package customer

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"commerce-backoffice/internal/db"
	"commerce-backoffice/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const customerColumns = `id::text, email, password_hash, name, role, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	role := c.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	const q = `
INSERT INTO customers (email, password_hash, name, role)
VALUES ($1, $2, $3, $4)
RETURNING ` + customerColumns
	return r.scanCustomer(db.Conn(ctx, r.pool).QueryRow(ctx, q, strings.ToLower(c.Email), c.PasswordHash, c.Name, role))
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	const q = `SELECT ` + customerColumns + ` FROM customers WHERE lower(email) = lower($1) LIMIT 1`
	return r.scanCustomer(db.Conn(ctx, r.pool).QueryRow(ctx, q, email))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const q = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 LIMIT 1`
	if !db.ValidID(id) {
		return nil, domain.ErrNotFound
	}
	return r.scanCustomer(db.Conn(ctx, r.pool).QueryRow(ctx, q, id))
}

func (r *postgresRepo) SetRole(ctx context.Context, id, role string) error {
	if !db.ValidID(id) {
		return domain.ErrNotFound
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE customers SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		if db.IsCheckViolation(err) {
			return domain.Invalid("unknown role %q", role)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.PasswordHash,
		&c.Name,
		&c.Role,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Printf("customer repo: scan error=%v", err)
		return nil, err
	}
	return &c, nil
}
