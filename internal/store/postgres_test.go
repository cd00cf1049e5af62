package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	res := sampleResult("run-pg")

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-pg", "contract-001.png", true, true, 3, 1, int64(1500), res, res.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveRun(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	res := sampleResult("run-pg")
	resultJSON, err := json.Marshal(res)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT result, elapsed_ms FROM runs WHERE id = \$1`).
		WithArgs("run-pg").
		WillReturnRows(pgxmock.NewRows([]string{"result", "elapsed_ms"}).AddRow(resultJSON, int64(1500)))

	got, err := s.GetRun(context.Background(), "run-pg")
	require.NoError(t, err)
	assert.Equal(t, "run-pg", got.RunID)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
	assert.Equal(t, "Maria Santos", got.Record["buyer_name"].Text())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT result, elapsed_ms FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, source, ai_used, escalated, resolved, issues, elapsed_ms, created_at FROM runs`).
		WithArgs("contract-001.png", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "ai_used", "escalated", "resolved", "issues", "elapsed_ms", "created_at"}).
			AddRow("run-1", "contract-001.png", true, true, 18, 2, int64(900), now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Source: "contract-001.png"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, 18, runs[0].Resolved)
	assert.True(t, runs[0].Escalated)
	assert.NoError(t, mock.ExpectationsWereMet())
}
