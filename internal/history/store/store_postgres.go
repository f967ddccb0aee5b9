package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"procverify/internal/decision"
	"procverify/internal/history"
	txcontext "procverify/pkg/platform/tx"
)

// PostgresStore persists history in verification_history. Policy ids are
// stored as a JSON array in a text column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS verification_history (
		id             UUID PRIMARY KEY,
		process_number TEXT NOT NULL,
		outcome        TEXT NOT NULL,
		policy_ids     TEXT NOT NULL,
		confidence     DOUBLE PRECISION NOT NULL,
		latency_us     BIGINT NOT NULL,
		cache_hit      BOOLEAN NOT NULL,
		fingerprint    TEXT NOT NULL,
		request_id     TEXT NOT NULL DEFAULT '',
		recorded_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_verification_history_process
		ON verification_history (process_number, recorded_at)`,
}

// EnsureSchema creates the table and index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		for _, stmt := range schema {
			if _, err := s.execer(ctx).ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure history schema: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Append(ctx context.Context, r history.Record) error {
	ids := r.PolicyIDs
	if ids == nil {
		ids = []string{}
	}
	policyIDs, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal policy ids: %w", err)
	}

	query := `
		INSERT INTO verification_history (
			id, process_number, outcome, policy_ids, confidence,
			latency_us, cache_hit, fingerprint, request_id, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		r.ID,
		r.ProcessNumber,
		string(r.Outcome),
		string(policyIDs),
		r.Confidence,
		r.Latency.Microseconds(),
		r.CacheHit,
		r.Fingerprint,
		r.RequestID,
		r.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, process_number, outcome, policy_ids, confidence,
		latency_us, cache_hit, fingerprint, request_id, recorded_at
	FROM verification_history
`

func (s *PostgresStore) ListByProcess(ctx context.Context, processNumber string) ([]history.Record, error) {
	return s.list(ctx, selectColumns+` WHERE process_number = $1 ORDER BY recorded_at, id`, processNumber)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]history.Record, error) {
	return s.list(ctx, selectColumns+` ORDER BY recorded_at, id`)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]history.Record, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []history.Record{}
	for rows.Next() {
		var (
			r         history.Record
			id        uuid.UUID
			outcome   string
			policyIDs string
			latencyUS int64
		)
		if err := rows.Scan(&id, &r.ProcessNumber, &outcome, &policyIDs, &r.Confidence,
			&latencyUS, &r.CacheHit, &r.Fingerprint, &r.RequestID, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		if err := json.Unmarshal([]byte(policyIDs), &r.PolicyIDs); err != nil {
			return nil, fmt.Errorf("decode policy ids for %s: %w", id, err)
		}
		r.ID = id
		r.Outcome = decision.Outcome(outcome)
		r.Latency = time.Duration(latencyUS) * time.Microsecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
