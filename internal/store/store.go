// Package store provides database access for mailfold.
package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaFS embed.FS

// Querier is the subset of pgx operations the store and query layers use.
// Both *pgxpool.Pool and pgx.Tx satisfy it, so every operation can run
// either on the shared pool or inside an explicit transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store provides database operations for mailfold.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the Postgres database at the given URL.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// DB returns the underlying pool for query-layer use.
func (s *Store) DB() *pgxpool.Pool {
	return s.pool
}

// WithTx executes fn within a database transaction. If fn returns an error,
// the transaction is rolled back; otherwise it is committed.
func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// InitSchema creates the tables, triggers and indexes if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("execute schema.sql: %w", err)
	}
	return nil
}

// Stats holds database statistics.
type Stats struct {
	MessageCount int64
	ThreadCount  int64
	LabelCount   int64
	StorageCount int64
}

// GetStats returns statistics about the database.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM emails", &stats.MessageCount},
		{"SELECT COUNT(DISTINCT thrid) FROM emails", &stats.ThreadCount},
		{"SELECT COUNT(DISTINCT l) FROM emails, unnest(labels) AS l", &stats.LabelCount},
		{"SELECT COUNT(*) FROM storage", &stats.StorageCount},
	}

	for _, q := range queries {
		if err := s.pool.QueryRow(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("get stats %q: %w", q.query, err)
		}
	}

	return stats, nil
}
