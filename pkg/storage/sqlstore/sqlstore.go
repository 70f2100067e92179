// Package sqlstore provides a database-agnostic storage driver over
// database/sql. It is embedded by the SQLite and PostgreSQL drivers, which
// supply the connection and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/sketchtable/pkg/storage"
)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	Name string

	// Schema is executed once when the store is opened.
	Schema string

	// Numbered placeholders ($1, $2) instead of ?.
	Numbered bool
}

// SQLite is the dialect used by github.com/mattn/go-sqlite3.
var SQLite = Dialect{
	Name: "sqlite3",
	Schema: `CREATE TABLE IF NOT EXISTS analyses (
	id           TEXT PRIMARY KEY,
	image_path   TEXT NOT NULL DEFAULT '',
	prompt       TEXT NOT NULL DEFAULT '',
	model        TEXT NOT NULL DEFAULT '',
	endpoint     TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	text         TEXT NOT NULL DEFAULT '',
	table_header TEXT NOT NULL DEFAULT 'null',
	table_rows   TEXT NOT NULL DEFAULT 'null',
	tokens       INTEGER NOT NULL DEFAULT 0,
	cost_usd     REAL NOT NULL DEFAULT 0,
	deltas       INTEGER NOT NULL DEFAULT 0,
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_started_at ON analyses (started_at);`,
}

// Postgres is the dialect used by github.com/jackc/pgx/v5/stdlib.
var Postgres = Dialect{
	Name: "pgx",
	Schema: `CREATE TABLE IF NOT EXISTS analyses (
	id           TEXT PRIMARY KEY,
	image_path   TEXT NOT NULL DEFAULT '',
	prompt       TEXT NOT NULL DEFAULT '',
	model        TEXT NOT NULL DEFAULT '',
	endpoint     TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	text         TEXT NOT NULL DEFAULT '',
	table_header TEXT NOT NULL DEFAULT 'null',
	table_rows   TEXT NOT NULL DEFAULT 'null',
	tokens       BIGINT NOT NULL DEFAULT 0,
	cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	deltas       BIGINT NOT NULL DEFAULT 0,
	started_at   BIGINT NOT NULL,
	finished_at  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS analyses_started_at ON analyses (started_at);`,
	Numbered: true,
}

const columns = `id, image_path, prompt, model, endpoint, state, error, text,
	table_header, table_rows, tokens, cost_usd, deltas, started_at, finished_at`

// Store implements storage.Driver on a *sql.DB.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

// Open wraps db and creates the schema.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{DB: db, Dialect: dialect}

	for stmt := range strings.SplitSeq(dialect.Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return s, nil
}

// Put stores a record. Returns false if the ID already exists.
func (s *Store) Put(ctx context.Context, rec *storage.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}

	header, err := json.Marshal(rec.TableHeader)
	if err != nil {
		return false, fmt.Errorf("failed to marshal table header: %w", err)
	}
	rows, err := json.Marshal(rec.TableRows)
	if err != nil {
		return false, fmt.Errorf("failed to marshal table rows: %w", err)
	}

	query := s.rebind(`INSERT INTO analyses (` + columns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`)

	res, err := s.DB.ExecContext(ctx, query,
		rec.ID, rec.ImagePath, rec.Prompt, rec.Model, rec.Endpoint,
		rec.State, rec.Error, rec.Text,
		string(header), string(rows),
		rec.Tokens, rec.CostUSD, rec.Deltas,
		unixNano(rec.StartedAt), unixNano(rec.FinishedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return n > 0, nil
}

// Get retrieves a record by its ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.Record, error) {
	row := s.DB.QueryRowContext(ctx,
		s.rebind(`SELECT `+columns+` FROM analyses WHERE id = ?`), id)

	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Has checks if a record exists by its ID.
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		s.rebind(`SELECT 1 FROM analyses WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return true, nil
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*storage.Record, error) {
	query := `SELECT ` + columns + ` FROM analyses ORDER BY started_at DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}

// Delete removes a record by its ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, s.rebind(`DELETE FROM analyses WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: id}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.Dialect.Numbered {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*storage.Record, error) {
	var (
		rec               storage.Record
		header, rows      string
		started, finished int64
	)

	err := row.Scan(
		&rec.ID, &rec.ImagePath, &rec.Prompt, &rec.Model, &rec.Endpoint,
		&rec.State, &rec.Error, &rec.Text,
		&header, &rows,
		&rec.Tokens, &rec.CostUSD, &rec.Deltas,
		&started, &finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	if err := json.Unmarshal([]byte(header), &rec.TableHeader); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table header: %w", err)
	}
	if err := json.Unmarshal([]byte(rows), &rec.TableRows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table rows: %w", err)
	}

	rec.StartedAt = fromUnixNano(started)
	rec.FinishedAt = fromUnixNano(finished)

	return &rec, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
