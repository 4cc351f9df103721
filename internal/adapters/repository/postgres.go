package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/okian/scorefix/internal/domain/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools
// satisfy it too.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store on a Postgres table.
type PostgresStore struct {
	pool  Pool
	table string
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres connects a pool, pings it, and migrates the collection table.
func NewPostgres(ctx context.Context, connString, table string, poolCfg *PoolConfig) (*PostgresStore, error) {
	table, err := checkTable(table)
	if err != nil {
		return nil, err
	}
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Reconciliation is sequential, so a small pool is enough.
	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	s := NewPostgresWithPool(pool, table)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithPool wraps an existing pool. The table name must already
// be validated or empty.
func NewPostgresWithPool(pool Pool, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{pool: pool, table: table}
}

// Migrate creates the collection table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	doc_key        TEXT PRIMARY KEY,
	wallet_address TEXT NOT NULL DEFAULT '',
	score          BIGINT,
	recorded_at    TIMESTAMPTZ,
	display_name   TEXT NOT NULL DEFAULT '',
	ip_address     TEXT NOT NULL DEFAULT '',
	merged_from    TEXT[],
	merged_at      TIMESTAMPTZ
)`, s.table))
	return eris.Wrap(err, "postgres: migrate")
}

// Enumerate reads the whole table in byte order of the key.
func (s *PostgresStore) Enumerate(ctx context.Context) ([]model.ScoreRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT doc_key, wallet_address, COALESCE(score, 0), recorded_at, display_name, ip_address, merged_from, merged_at FROM %s ORDER BY doc_key COLLATE "C"`,
		s.table))
	if err != nil {
		return nil, &ReadError{Err: eris.Wrap(err, "postgres: query scores")}
	}
	defer rows.Close()

	var out []model.ScoreRecord
	for rows.Next() {
		var rec model.ScoreRecord
		if err := rows.Scan(&rec.Key, &rec.WalletAddress, &rec.Score, &rec.Timestamp,
			&rec.DisplayName, &rec.IPAddress, &rec.MergedFrom, &rec.MergedAt); err != nil {
			return nil, &ReadError{Err: eris.Wrap(err, "postgres: scan score")}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &ReadError{Err: eris.Wrap(err, "postgres: iterate scores")}
	}
	return out, nil
}

// Put upserts every column so the row is fully replaced.
func (s *PostgresStore) Put(ctx context.Context, key string, rec model.ScoreRecord) error {
	var mergedFrom []string
	if len(rec.MergedFrom) > 0 {
		mergedFrom = rec.MergedFrom
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (doc_key, wallet_address, score, recorded_at, display_name, ip_address, merged_from, merged_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (doc_key) DO UPDATE SET
	wallet_address = EXCLUDED.wallet_address,
	score          = EXCLUDED.score,
	recorded_at    = EXCLUDED.recorded_at,
	display_name   = EXCLUDED.display_name,
	ip_address     = EXCLUDED.ip_address,
	merged_from    = EXCLUDED.merged_from,
	merged_at      = EXCLUDED.merged_at`, s.table),
		key, rec.WalletAddress, rec.Score, rec.Timestamp, rec.DisplayName, rec.IPAddress, mergedFrom, rec.MergedAt)
	if err != nil {
		return &WriteError{Key: key, Err: eris.Wrap(err, "postgres: upsert score")}
	}
	return nil
}

// Delete removes the row for key; a missing row is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_key = $1`, s.table), key)
	if err != nil {
		return &DeleteError{Key: key, Err: eris.Wrap(err, "postgres: delete score")}
	}
	return nil
}

// Now returns the server's transaction time.
func (s *PostgresStore) Now(ctx context.Context) (time.Time, error) {
	var t time.Time
	if err := s.pool.QueryRow(ctx, `SELECT now()`).Scan(&t); err != nil {
		return time.Time{}, eris.Wrap(err, "postgres: now")
	}
	return t.UTC(), nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
