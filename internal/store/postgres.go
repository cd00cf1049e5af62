package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-extract/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock implements it
// for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool, for deployments where run
// history is shared across machines.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
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
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	ai_used    BOOLEAN NOT NULL DEFAULT FALSE,
	escalated  BOOLEAN NOT NULL DEFAULT FALSE,
	resolved   INTEGER NOT NULL,
	issues     INTEGER NOT NULL,
	elapsed_ms BIGINT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, res *model.ExtractionResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, ai_used, escalated, resolved, issues, elapsed_ms, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.RunID, res.Source, res.AIUsed, res.Metrics.Escalate,
		res.Record.ResolvedCount(), len(res.Issues), res.Elapsed.Milliseconds(),
		res, res.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ExtractionResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT result, elapsed_ms FROM runs WHERE id = $1`, runID,
	)
	var resultJSON []byte
	var elapsedMS int64
	err := row.Scan(&resultJSON, &elapsedMS)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	var res model.ExtractionResult
	if err := json.Unmarshal(resultJSON, &res); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	res.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &res, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `SELECT id, source, ai_used, escalated, resolved, issues, elapsed_ms, created_at FROM runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.Source != "" {
		query += ` AND source = ` + arg(filter.Source)
	}
	if filter.AIOnly {
		query += ` AND ai_used = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Source, &r.AIUsed, &r.Escalated, &r.Resolved, &r.Issues, &r.ElapsedMS, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
