// Package database provides the PostgreSQL persistence backend for hemocheck.
// Tables are created when missing and never migrated.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"hemocheck/internal/records"
)

// uniqueViolation is the PostgreSQL error code for a UNIQUE constraint failure.
const uniqueViolation = "23505"

// DB represents a database connection. It implements records.Store.
type DB struct {
	*sql.DB
	hasher records.Hasher
}

var _ records.Store = (*DB)(nil)

// ConnectOptions bounds the initial connection attempts.
type ConnectOptions struct {
	MaxElapsedTime time.Duration
	MaxOpenConns   int
}

// New opens dsn, retrying the first ping with exponential backoff, and
// creates the tables if they do not exist.
func New(ctx context.Context, dsn string, hasher records.Hasher, opts ConnectOptions) (*DB, error) {
	if opts.MaxElapsedTime == 0 {
		opts.MaxElapsedTime = 30 * time.Second
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	operation := func() error {
		if err := db.PingContext(ctx); err != nil {
			log.Warn().Err(err).Msg("database not reachable, retrying")
			return err
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = opts.MaxElapsedTime

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, hasher: hasher}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id),
			hemoglobin_level DOUBLE PRECISION NOT NULL,
			result TEXT NOT NULL,
			test_date TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS predictions_user_date_idx
			ON predictions (user_id, test_date, id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
