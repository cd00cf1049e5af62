package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contract-extract/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	ai_used    INTEGER NOT NULL DEFAULT 0,
	escalated  INTEGER NOT NULL DEFAULT 0,
	resolved   INTEGER NOT NULL,
	issues     INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, res *model.ExtractionResult) error {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, ai_used, escalated, resolved, issues, elapsed_ms, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Source, boolInt(res.AIUsed), boolInt(res.Metrics.Escalate),
		res.Record.ResolvedCount(), len(res.Issues), res.Elapsed.Milliseconds(),
		string(resultJSON), res.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ExtractionResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT result, elapsed_ms FROM runs WHERE id = ?`, runID,
	)
	var resultJSON string
	var elapsedMS int64
	err := row.Scan(&resultJSON, &elapsedMS)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	var res model.ExtractionResult
	if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	res.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &res, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `SELECT id, source, ai_used, escalated, resolved, issues, elapsed_ms, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.AIOnly {
		query += ` AND ai_used = 1`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var aiUsed, escalated int
		if err := rows.Scan(&r.ID, &r.Source, &aiUsed, &escalated, &r.Resolved, &r.Issues, &r.ElapsedMS, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.AIUsed = aiUsed != 0
		r.Escalated = escalated != 0
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
