package schema

import (
	"bytes"
	"encoding/json"
)

// Record holds one value per schema field. A Record built with NewRecord
// always has every field present; unresolved fields are null, never absent.
type Record map[string]Value

// NewRecord returns a record with every schema field set to null.
func NewRecord() Record {
	r := make(Record, len(fields))
	for i := range fields {
		r[fields[i].Name] = NullValue(fields[i].Kind)
	}
	return r
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ResolvedCount returns the number of non-null fields.
func (r Record) ResolvedCount() int {
	n := 0
	for _, v := range r {
		if !v.IsNull() {
			n++
		}
	}
	return n
}

// ToMap flattens the record to plain JSON-ready values.
func (r Record) ToMap() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v.Raw()
	}
	return out
}

// MarshalJSON renders the record as a flat object of raw values.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// UnmarshalJSON rebuilds a record from its flat form. Values re-enter
// through Normalize, which is a no-op for canonical output; unknown keys
// are dropped.
func (r *Record) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := NewRecord()
	for name, rv := range raw {
		spec := ByName(name)
		if spec == nil || rv == nil {
			continue
		}
		var s string
		switch t := rv.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		default:
			continue
		}
		if v, status := Normalize(spec.Kind, s); status != StatusFail {
			out[name] = v
		}
	}
	*r = out
	return nil
}
