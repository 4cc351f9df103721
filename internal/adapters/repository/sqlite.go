package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/okian/scorefix/internal/domain/model"
)

// DefaultTable is the collection table used when none is configured.
const DefaultTable = "scores"

// sqliteTimeLayout is the text form used for timestamp columns.
const sqliteTimeLayout = time.RFC3339Nano

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func checkTable(table string) (string, error) {
	if table == "" {
		return DefaultTable, nil
	}
	if !tableNameRE.MatchString(table) {
		return "", eris.Wrapf(ErrBadTable, "table %q", table)
	}
	return table, nil
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLite opens a SQLite database at dsn, configures WAL mode, and
// creates the collection table when missing.
func NewSQLite(ctx context.Context, dsn, table string) (*SQLiteStore, error) {
	table, err := checkTable(table)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db, table: table}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the collection table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	doc_key        TEXT PRIMARY KEY,
	wallet_address TEXT NOT NULL DEFAULT '',
	score          INTEGER,
	recorded_at    TEXT,
	display_name   TEXT NOT NULL DEFAULT '',
	ip_address     TEXT NOT NULL DEFAULT '',
	merged_from    TEXT,
	merged_at      TEXT
)`, s.table))
	return eris.Wrap(err, "sqlite: migrate")
}

// Enumerate reads the whole table ordered by key.
func (s *SQLiteStore) Enumerate(ctx context.Context) ([]model.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT doc_key, wallet_address, score, recorded_at, display_name, ip_address, merged_from, merged_at FROM %s ORDER BY doc_key`,
		s.table))
	if err != nil {
		return nil, &ReadError{Err: eris.Wrap(err, "sqlite: query scores")}
	}
	defer rows.Close()

	var out []model.ScoreRecord
	for rows.Next() {
		var (
			rec        model.ScoreRecord
			score      sql.NullInt64
			ts         sql.NullString
			mergedFrom sql.NullString
			mergedAt   sql.NullString
		)
		if err := rows.Scan(&rec.Key, &rec.WalletAddress, &score, &ts, &rec.DisplayName, &rec.IPAddress, &mergedFrom, &mergedAt); err != nil {
			return nil, &ReadError{Err: eris.Wrap(err, "sqlite: scan score")}
		}
		rec.Score = score.Int64
		if rec.Timestamp, err = parseSQLiteTime(ts); err != nil {
			return nil, &ReadError{Err: eris.Wrapf(err, "sqlite: timestamp of %q", rec.Key)}
		}
		if rec.MergedAt, err = parseSQLiteTime(mergedAt); err != nil {
			return nil, &ReadError{Err: eris.Wrapf(err, "sqlite: merged_at of %q", rec.Key)}
		}
		if mergedFrom.Valid && mergedFrom.String != "" {
			if err := json.Unmarshal([]byte(mergedFrom.String), &rec.MergedFrom); err != nil {
				return nil, &ReadError{Err: eris.Wrapf(err, "sqlite: merged_from of %q", rec.Key)}
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &ReadError{Err: eris.Wrap(err, "sqlite: iterate scores")}
	}
	return out, nil
}

// Put upserts every column so the row is fully replaced.
func (s *SQLiteStore) Put(ctx context.Context, key string, rec model.ScoreRecord) error {
	var mergedFrom any
	if len(rec.MergedFrom) > 0 {
		b, err := json.Marshal(rec.MergedFrom)
		if err != nil {
			return &WriteError{Key: key, Err: eris.Wrap(err, "sqlite: marshal merged_from")}
		}
		mergedFrom = string(b)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (doc_key, wallet_address, score, recorded_at, display_name, ip_address, merged_from, merged_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(doc_key) DO UPDATE SET
	wallet_address = excluded.wallet_address,
	score          = excluded.score,
	recorded_at    = excluded.recorded_at,
	display_name   = excluded.display_name,
	ip_address     = excluded.ip_address,
	merged_from    = excluded.merged_from,
	merged_at      = excluded.merged_at`, s.table),
		key, rec.WalletAddress, rec.Score, formatSQLiteTime(rec.Timestamp),
		rec.DisplayName, rec.IPAddress, mergedFrom, formatSQLiteTime(rec.MergedAt))
	if err != nil {
		return &WriteError{Key: key, Err: eris.Wrap(err, "sqlite: upsert score")}
	}
	return nil
}

// Delete removes the row for key; a missing row is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_key = ?`, s.table), key)
	if err != nil {
		return &DeleteError{Key: key, Err: eris.Wrap(err, "sqlite: delete score")}
	}
	return nil
}

// Now asks SQLite for the current UTC time.
func (s *SQLiteStore) Now(ctx context.Context) (time.Time, error) {
	var raw string
	if err := s.db.QueryRowContext(ctx, `SELECT strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`).Scan(&raw); err != nil {
		return time.Time{}, eris.Wrap(err, "sqlite: now")
	}
	t, err := time.Parse("2006-01-02T15:04:05.000Z", raw)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "sqlite: parse now")
	}
	return t.UTC(), nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatSQLiteTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
