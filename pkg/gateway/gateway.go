// Package gateway is the thin adapter around the backing SQL connection.
// It runs in autocommit mode (every statement is its own commit), issues
// parameterized statements, and exposes row-fetch helpers with single-row
// and unique-row enforcement. Nothing above this package talks to pgx
// directly.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/udavfs3/internal/logger"
)

// NoSuchRow is returned by OneRow when zero rows match the query.
var NoSuchRow = errors.New("gateway: no such row")

// NotUnique is returned by UniqueRow when more than one row matches a query
// that the caller asserts is uniquely keyed. OneRow does not check for a
// second row and never returns it. This is an internal invariant
// violation and is never expected under correct operation.
var NotUnique = errors.New("gateway: row is not unique")

// Gateway wraps a pgxpool.Pool in autocommit mode: every Exec/Query call is
// its own implicit transaction. No higher-level transaction abstraction is
// exposed, matching the core's atomicity-per-statement model.
type Gateway struct {
	pool *pgxpool.Pool
}

// Config controls pool construction.
type Config struct {
	ConnString      string
	MaxConns        int32
	MinConns        int32
	QueryTimeoutSec int
}

// Open parses cfg.ConnString, appends sslmode=require when the string names
// no sslmode (an sslmode already present is kept as given), builds a
// connection pool and verifies connectivity with a ping.
func Open(ctx context.Context, cfg Config) (*Gateway, error) {
	poolConfig, err := pgxpool.ParseConfig(withRequiredSSL(cfg.ConnString))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.QueryTimeoutSec > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%dms", cfg.QueryTimeoutSec*1000)
	}

	logger.Info("opening storage gateway connection pool",
		"max_conns", poolConfig.MaxConns, "min_conns", poolConfig.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("gateway: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("gateway: ping: %w", err)
	}
	return &Gateway{pool: pool}, nil
}

// Close releases the underlying pool. Safe to call on a nil Gateway.
func (g *Gateway) Close() {
	if g == nil || g.pool == nil {
		return
	}
	logger.Info("closing storage gateway connection pool")
	g.pool.Close()
}

// Pool exposes the underlying pgxpool.Pool for components (pkg/schema)
// that need to issue DDL directly.
func (g *Gateway) Pool() *pgxpool.Pool {
	return g.pool
}

// withRequiredSSL appends sslmode=require to connString unless it already
// specifies an sslmode, per spec.md §6's "forced to sslmode=require".
func withRequiredSSL(connString string) string {
	if strings.Contains(connString, "sslmode=") {
		return connString
	}
	sep := "?"
	if strings.Contains(connString, "?") {
		sep = "&"
	}
	return connString + sep + "sslmode=require"
}

// Exec runs a statement and discards the result, autocommitted.
func (g *Gateway) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := g.pool.Exec(ctx, sql, args...)
	if err != nil {
		return tag, MapError(err)
	}
	return tag, nil
}

// Row is a generic row-fetch target: callers supply a scan function that
// pulls columns off a pgx.Row/pgx.Rows into their own result type.
type Row = pgx.Row
type Rows = pgx.Rows

// OneRow runs a query expected to match exactly one row and invokes scan
// against it. Returns NoSuchRow if the query matches zero rows.
func (g *Gateway) OneRow(ctx context.Context, sql string, args []any, scan func(Row) error) error {
	row := g.pool.QueryRow(ctx, sql, args...)
	if err := scan(row); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NoSuchRow
		}
		return MapError(err)
	}
	return nil
}

// AllRows runs a query and invokes scan once per matching row, in result
// order. The scan callback is expected to append into caller-owned state.
func (g *Gateway) AllRows(ctx context.Context, sql string, args []any, scan func(Rows) error) error {
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return MapError(err)
		}
	}
	if err := rows.Err(); err != nil {
		return MapError(err)
	}
	return nil
}

// UniqueRow behaves like OneRow but additionally asserts the caller's query
// is keyed uniquely: if counting logic upstream ever produces more than one
// row for a supposedly-unique key, scan is invoked on the first row and
// NotUnique is returned after a second Next() succeeds. Most callers use
// OneRow; UniqueRow exists for queries where a NotUnique violation is a
// meaningful signal distinct from a wrapped pgx error.
func (g *Gateway) UniqueRow(ctx context.Context, sql string, args []any, scan func(Rows) error) error {
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return MapError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return MapError(err)
		}
		return NoSuchRow
	}
	if err := scan(rows); err != nil {
		return MapError(err)
	}
	if rows.Next() {
		return NotUnique
	}
	return rows.Err()
}
