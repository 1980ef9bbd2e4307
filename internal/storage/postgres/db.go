package postgres

import (
	"context"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse dsn")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool")
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) Ready(ctx context.Context) error {
	var one int
	return db.Pool.QueryRow(ctx, "select 1").Scan(&one)
}

// RunMigration executes a single idempotent SQL file.
func (db *DB) RunMigration(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open migration")
	}
	defer f.Close()
	sqlBytes, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "read migration")
	}
	if _, err := db.Pool.Exec(ctx, string(sqlBytes)); err != nil {
		return errors.Wrap(err, "exec migration")
	}
	return nil
}

const uniqueViolation = "23505"

// storeErr wraps err as a persistence failure, mapping unique violations
// to domain.ErrDuplicate.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		err = errors.Wrap(domain.ErrDuplicate, pgErr.Detail)
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
