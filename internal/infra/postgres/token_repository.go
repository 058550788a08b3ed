package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"md2pdf/internal/tokens"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS tokens (
	token TEXT PRIMARY KEY,
	rate_limit INTEGER NOT NULL DEFAULT 60,
	scope JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	comment TEXT
);`

const indexDDL = `CREATE INDEX IF NOT EXISTS idx_tokens_created_at ON tokens (created_at);`

const schemaTimeout = 5 * time.Second

func verifySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create tokens table: %w", err)
	}
	if _, err := db.ExecContext(ctx, indexDDL); err != nil {
		return fmt.Errorf("create tokens index: %w", err)
	}
	return nil
}

// TokenRepository reads API tokens from the tokens table.
type TokenRepository struct {
	DB  *DB
	DSN string

	schemaReady atomic.Bool
}

func NewTokenRepository(db *DB, dsn string) *TokenRepository {
	return &TokenRepository{DB: db, DSN: dsn}
}

// VerifySchema creates the tokens table and its index when missing. Once it
// has succeeded, LoadTokens no longer touches the schema.
func (r *TokenRepository) VerifySchema(ctx context.Context) error {
	db, err := r.DB.Get(r.DSN)
	if err != nil {
		return fmt.Errorf("open token db: %w", err)
	}
	return r.verify(ctx, db)
}

func (r *TokenRepository) verify(ctx context.Context, db *sql.DB) error {
	if r.schemaReady.Load() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()
	if err := verifySchema(ctx, db); err != nil {
		return err
	}
	r.schemaReady.Store(true)
	return nil
}

// LoadTokens returns every token with its rate limit and scope.
func (r *TokenRepository) LoadTokens(ctx context.Context) (map[string]tokens.Entry, error) {
	db, err := r.DB.Get(r.DSN)
	if err != nil {
		return nil, fmt.Errorf("open token db: %w", err)
	}
	if err := r.verify(ctx, db); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit, scope FROM tokens;`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	out := make(map[string]tokens.Entry)
	for rows.Next() {
		var (
			token string
			limit int
			raw   []byte
		)
		if err := rows.Scan(&token, &limit, &raw); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		var scope tokens.Scope
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &scope); err != nil {
				return nil, fmt.Errorf("decode token scope: %w", err)
			}
		}
		out[token] = tokens.Entry{RateLimit: limit, Scope: scope}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
