// Package store persists extraction run history.
package store

import (
	"context"
	"time"

	"github.com/sells-group/contract-extract/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Source string `json:"source,omitempty"`
	AIOnly bool   `json:"ai_only,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// RunSummary is the list view of one stored run.
type RunSummary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	AIUsed    bool      `json:"ai_used"`
	Escalated bool      `json:"escalated"`
	Resolved  int       `json:"resolved"`
	Issues    int       `json:"issues"`
	ElapsedMS int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface for extraction runs.
type Store interface {
	SaveRun(ctx context.Context, res *model.ExtractionResult) error
	GetRun(ctx context.Context, runID string) (*model.ExtractionResult, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
