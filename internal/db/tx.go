package db

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"commerce-backoffice/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Conn returns the transaction carried by ctx, or the pool when there is none.
// Repositories use it so that they join a unit of work opened by RunInTx.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// TxManager runs closures as a single database transaction.
type TxManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	backoff    time.Duration
	logger     *log.Logger
}

func NewTxManager(pool *pgxpool.Pool, maxRetries int, logger *log.Logger) *TxManager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TxManager{pool: pool, maxRetries: maxRetries, backoff: 20 * time.Millisecond, logger: logger}
}

// RunInTx executes fn inside one transaction. Any error from fn rolls the
// whole transaction back. Serialization failures and deadlocks re-run fn
// from scratch up to maxRetries times, after which a *domain.ConflictError
// is returned. A ctx that already carries a transaction joins it.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.backoff * time.Duration(attempt)):
			}
		}
		err := m.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		m.logger.Printf("tx: retryable failure attempt=%d error=%v", attempt+1, err)
	}
	return &domain.ConflictError{Op: "transaction", Err: lastErr}
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// IsRetryable reports whether err is a transient transaction failure.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsInvalidText reports whether Postgres rejected a parameter's text form,
// for example a malformed uuid.
func IsInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// ValidID reports whether id can be compared against a uuid column. An
// invalid id fails the statement and aborts the surrounding transaction, so
// repositories check it before querying and answer ErrNotFound instead.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// IsCheckViolation reports whether err is a check constraint violation.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}
