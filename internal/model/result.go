package model

import (
	"time"

	"github.com/sells-group/contract-extract/internal/schema"
)

// Provenance identifies which stage produced a field's final value.
type Provenance string

const (
	ProvenanceDeterministic Provenance = "deterministic"
	ProvenanceEnhanced      Provenance = "ai_enhanced"
	ProvenanceCorrected     Provenance = "ai_corrected"
	ProvenanceUnresolved    Provenance = "unresolved"
)

// StageState reports the outcome of one pipeline stage for a run.
type StageState string

const (
	StageCompleted StageState = "completed"
	StageSkipped   StageState = "skipped"
	StageFailed    StageState = "failed"
)

// ConfidenceMetrics summarizes recognizer confidence over a document and
// carries the escalation decision derived from it.
type ConfidenceMetrics struct {
	TokenMean       float64 `json:"token_mean"`
	TokenMin        float64 `json:"token_min"`
	BlockMean       float64 `json:"block_mean"`
	LowTokenRatio   float64 `json:"low_token_ratio"`
	TokenCount      int     `json:"token_count"`
	WarningsPresent bool    `json:"warnings_present"`
	Escalate        bool    `json:"escalate"`
	Reason          string  `json:"reason,omitempty"`
}

// Candidate is a value found near a field's anchor label, before resolution.
type Candidate struct {
	Field      string  `json:"field"`
	Text       string  `json:"text"`
	Anchor     string  `json:"anchor"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
	TokenIndex int     `json:"token_index"`
}

// Correction records one field value changed by the correction stage.
type Correction struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
	Reason string `json:"reason"`
}

// ExtractionResult is the complete outcome of one document run. The Record
// always carries every schema field, null where nothing resolved.
type ExtractionResult struct {
	RunID       string                    `json:"run_id"`
	Source      string                    `json:"source"`
	Record      schema.Record             `json:"record"`
	Provenance  map[string]Provenance     `json:"provenance"`
	Candidates  map[string][]Candidate    `json:"-"`
	Metrics     ConfidenceMetrics         `json:"metrics"`
	Issues      []ValidationIssue         `json:"issues,omitempty"`
	Corrections []Correction              `json:"corrections,omitempty"`
	Stages      map[string]StageState     `json:"stages"`
	AIUsed      bool                      `json:"ai_used"`
	Elapsed     time.Duration             `json:"-"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// ToMap flattens the result for JSON output: the extracted record plus a
// metadata block describing how the run went.
func (r *ExtractionResult) ToMap() map[string]any {
	issues := make([]map[string]any, 0, len(r.Issues))
	for _, is := range r.Issues {
		issues = append(issues, map[string]any{
			"kind":        string(is.Kind),
			"severity":    string(is.Severity),
			"fields":      is.Fields,
			"description": is.Description,
		})
	}
	return map[string]any{
		"extracted_data": r.Record.ToMap(),
		"metadata": map[string]any{
			"run_id":          r.RunID,
			"source":          r.Source,
			"elapsed_seconds": r.Elapsed.Seconds(),
			"ai_used":         r.AIUsed,
			"stages":          r.Stages,
			"confidence":      r.Metrics,
			"provenance":      r.Provenance,
			"issues":          issues,
			"corrections":     r.Corrections,
			"created_at":      r.CreatedAt,
		},
	}
}
