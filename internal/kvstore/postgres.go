package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is the subset of *sql.DB used by Postgres.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS kv_store (
	namespace  TEXT PRIMARY KEY,
	value      JSONB,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectSQL = `SELECT value FROM kv_store WHERE namespace = $1`
	upsertSQL = `INSERT INTO kv_store (namespace, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (namespace) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

// Postgres stores JSON documents in a JSONB column.
type Postgres struct {
	db DBTX
}

// NewPostgres wraps an existing connection.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres opens and pings a lib/pq connection.
func OpenPostgres(ctx context.Context, connStr string) (*Postgres, *sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return NewPostgres(db), db, nil
}

// EnsureSchema creates the kv_store table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("ensure kv_store schema: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, namespace string) ([]byte, bool, error) {
	var raw pqtype.NullRawMessage
	err := p.db.QueryRowContext(ctx, selectSQL, namespace).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", namespace, err)
	}
	if !raw.Valid {
		return nil, false, nil
	}
	return []byte(raw.RawMessage), true, nil
}

func (p *Postgres) Set(ctx context.Context, namespace string, value []byte) error {
	if !json.Valid(value) {
		return ErrNotJSON
	}
	val := pqtype.NullRawMessage{RawMessage: value, Valid: true}
	if _, err := p.db.ExecContext(ctx, upsertSQL, namespace, val); err != nil {
		return fmt.Errorf("upsert %s: %w", namespace, err)
	}
	return nil
}
