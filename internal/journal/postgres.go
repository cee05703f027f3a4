package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

const ddlTurns = `
CREATE TABLE IF NOT EXISTS gateway_turns (
    id           BIGSERIAL    PRIMARY KEY,
    session_id   TEXT         NOT NULL,
    kind         TEXT         NOT NULL,
    language     TEXT         NOT NULL DEFAULT '',
    voice        TEXT         NOT NULL DEFAULT '',
    text         TEXT         NOT NULL DEFAULT '',
    audio_bytes  BIGINT       NOT NULL DEFAULT 0,
    duration_ns  BIGINT       NOT NULL DEFAULT 0,
    error        TEXT         NOT NULL DEFAULT '',
    at           TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_gateway_turns_session_id
    ON gateway_turns (session_id);

CREATE INDEX IF NOT EXISTS idx_gateway_turns_at
    ON gateway_turns (at);
`

// PostgresStore writes turns to the gateway_turns table.
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database at dsn and runs [Migrate].
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("journal: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the gateway_turns table and its indexes. It is idempotent
// and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlTurns); err != nil {
		return fmt.Errorf("journal migrate: %w", err)
	}
	return nil
}

// Record implements [Store].
func (s *PostgresStore) Record(ctx context.Context, turn Turn) error {
	const q = `
		INSERT INTO gateway_turns
		    (session_id, kind, language, voice, text, audio_bytes, duration_ns, error, at)
		VALUES (@session_id, @kind, @language, @voice, @text, @audio_bytes, @duration_ns, @error, @at)`

	_, err := s.pool.Exec(ctx, q, pgx.NamedArgs{
		"session_id":  turn.SessionID,
		"kind":        turn.Kind,
		"language":    turn.Language,
		"voice":       turn.Voice,
		"text":        turn.Text,
		"audio_bytes": turn.AudioBytes,
		"duration_ns": turn.Duration.Nanoseconds(),
		"error":       turn.Err,
		"at":          turn.At,
	})
	if err != nil {
		return fmt.Errorf("journal: record turn: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
