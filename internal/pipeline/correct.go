package pipeline

import (
	"context"
	"strings"

	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/schema"
)

// correct asks the model to fix the specific problems the issue detector
// found. Changes come back as Correction records tagged with the issue
// kinds that prompted them.
func (e *Engine) correct(ctx context.Context, fullText string, rec schema.Record, issues []model.ValidationIssue) (schema.Record, []model.Correction, error) {
	resp, err := e.callModel(ctx, correctionSystemPrompt, buildCorrectionPrompt(fullText, rec, issues), "correct")
	if err != nil {
		return rec, nil, err
	}
	merged, changes := mergeResponse(rec, resp, e.specs)

	corrections := make([]model.Correction, 0, len(changes))
	for _, ch := range changes {
		corrections = append(corrections, model.Correction{
			Field:  ch.Field,
			Before: ch.Before,
			After:  ch.After,
			Reason: correctionReason(ch.Field, issues),
		})
	}
	return merged, corrections, nil
}

func correctionReason(field string, issues []model.ValidationIssue) string {
	var kinds []string
	for _, is := range issues {
		for _, f := range is.Fields {
			if f == field {
				kinds = append(kinds, string(is.Kind))
				break
			}
		}
	}
	if len(kinds) == 0 {
		return "consistency review"
	}
	return strings.Join(kinds, ", ")
}
