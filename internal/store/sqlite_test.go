package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/schema"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleResult(id string) *model.ExtractionResult {
	rec := schema.NewRecord()
	rec["buyer_name"] = schema.TextValue(schema.KindText, "Maria Santos")
	rec["amount_financed"] = schema.DecimalValue(schema.KindCurrency, decimal.RequireFromString("3644.28"))
	rec["buyer_phone"] = schema.TextValue(schema.KindPhone, "843-333-4540")

	return &model.ExtractionResult{
		RunID:  id,
		Source: "contract-001.png",
		Record: rec,
		Provenance: map[string]model.Provenance{
			"buyer_name":      model.ProvenanceDeterministic,
			"amount_financed": model.ProvenanceEnhanced,
		},
		Metrics: model.ConfidenceMetrics{TokenMean: 0.79, Escalate: true, Reason: "token mean 0.790 below 0.85"},
		Issues: []model.ValidationIssue{
			{Kind: model.IssueAddressTooShort, Severity: model.SeverityHigh, Fields: []string{"buyer_address"}, Description: "too short"},
		},
		Stages: map[string]model.StageState{
			"resolve": model.StageCompleted,
			"enhance": model.StageCompleted,
		},
		AIUsed:    true,
		Elapsed:   1500 * time.Millisecond,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteStore_SaveAndGetRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	res := sampleResult("run-1")
	require.NoError(t, s.SaveRun(ctx, res))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "contract-001.png", got.Source)
	assert.True(t, got.AIUsed)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
	assert.Equal(t, model.ProvenanceEnhanced, got.Provenance["amount_financed"])
	require.Len(t, got.Issues, 1)
	assert.Equal(t, model.IssueAddressTooShort, got.Issues[0].Kind)

	// Record round-trips with types and nulls intact.
	assert.Equal(t, "Maria Santos", got.Record["buyer_name"].Text())
	assert.True(t, got.Record["amount_financed"].Decimal().Equal(decimal.RequireFromString("3644.28")))
	assert.Equal(t, "843-333-4540", got.Record["buyer_phone"].Text())
	assert.True(t, got.Record["co_buyer_name"].IsNull())
	assert.Len(t, got.Record, len(schema.FieldNames()))
}

func TestSQLiteStore_GetRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a := sampleResult("run-a")
	b := sampleResult("run-b")
	b.Source = "contract-002.png"
	b.AIUsed = false
	b.CreatedAt = a.CreatedAt.Add(time.Minute)
	require.NoError(t, s.SaveRun(ctx, a))
	require.NoError(t, s.SaveRun(ctx, b))

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first.
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, 3, runs[0].Resolved)

	runs, err = s.ListRuns(ctx, RunFilter{Source: "contract-001.png"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-a", runs[0].ID)

	runs, err = s.ListRuns(ctx, RunFilter{AIOnly: true})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].AIUsed)

	runs, err = s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
