// Package postgres provides a PostgreSQL implementation of transcript.Store.
// It uses pgx/v5 for connection pooling and JSONB for archived messages.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/transcript"
)

// Store is a PostgreSQL-backed transcript store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transcript.Store at compile time.
var _ transcript.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Archive inserts rec. A duplicate (session_id, seq) returns
// transcript.ErrConflict.
func (s *Store) Archive(ctx context.Context, rec transcript.Record) error {
	messagesJSON, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("marshaling messages: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO transcripts (session_id, seq, kind, summary, messages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		rec.SessionID, rec.Seq, string(rec.Kind), nullString(rec.Summary), messagesJSON, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return transcript.ErrConflict
		}
		return fmt.Errorf("inserting transcript record: %w", err)
	}

	return nil
}

// Records returns a session's records ordered by seq.
func (s *Store) Records(ctx context.Context, sessionID string) ([]transcript.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, kind, summary, messages, created_at
		FROM transcripts
		WHERE session_id = $1
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying transcript records: %w", err)
	}
	defer rows.Close()

	records := []transcript.Record{}
	for rows.Next() {
		var (
			rec          transcript.Record
			kind         string
			summary      *string
			messagesJSON []byte
		)
		if err := rows.Scan(&rec.Seq, &kind, &summary, &messagesJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transcript record: %w", err)
		}

		rec.SessionID = sessionID
		rec.Kind = transcript.Kind(kind)
		if summary != nil {
			rec.Summary = *summary
		}

		var msgs []api.Message
		if err := json.Unmarshal(messagesJSON, &msgs); err != nil {
			return nil, fmt.Errorf("unmarshaling messages for seq %d: %w", rec.Seq, err)
		}
		rec.Messages = msgs

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transcript records: %w", err)
	}

	return records, nil
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKey reports a unique_violation (SQLSTATE 23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
