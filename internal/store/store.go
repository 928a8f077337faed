// Package store implements the Postgres-backed persistence layer: search
// profiles (read-only), listings (dedup boundary) and analysis results.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a requested row is missing.
var ErrNotFound = fmt.Errorf("not found")

// ErrStatusConflict is returned when a guarded status update matched no row:
// the listing is missing or was concurrently advanced past the expected
// status. Callers treat it as "already handled", not a failure.
var ErrStatusConflict = fmt.Errorf("listing status conflict")

// EnsureSchema applies the embedded DDL statement by statement. Every
// statement is idempotent, so running it on every boot is safe.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
