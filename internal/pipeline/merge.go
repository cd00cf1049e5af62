package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/sells-group/contract-extract/internal/schema"
)

// fieldChange records one field the merge actually updated.
type fieldChange struct {
	Field  string
	Before string
	After  string
}

// mergeResponse folds a validated model response into the current record,
// strictly field by field. A field only changes when the response carries
// a non-null value that normalizes cleanly; anything else keeps the value
// already resolved. The input record is not mutated.
func mergeResponse(base schema.Record, resp map[string]any, specs []schema.FieldSpec) (schema.Record, []fieldChange) {
	merged := base.Clone()
	var changes []fieldChange
	for _, spec := range specs {
		raw, ok := resp[spec.Name]
		if !ok || raw == nil {
			continue
		}
		s, ok := rawString(raw)
		if !ok {
			continue
		}
		v, status := schema.Normalize(spec.Kind, s)
		if status == schema.StatusFail || v.IsNull() {
			continue
		}
		if v.Equal(base[spec.Name]) {
			continue
		}
		changes = append(changes, fieldChange{
			Field:  spec.Name,
			Before: base[spec.Name].String(),
			After:  v.String(),
		})
		merged[spec.Name] = v
	}
	return merged, changes
}

func rawString(raw any) (string, bool) {
	switch t := raw.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return fmt.Sprintf("%g", t), true
	default:
		return "", false
	}
}
