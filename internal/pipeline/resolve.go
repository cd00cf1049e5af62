package pipeline

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/schema"
)

// resolveOutcome is everything the deterministic stage produces for a run.
type resolveOutcome struct {
	record     schema.Record
	provenance map[string]model.Provenance
	candidates map[string][]model.Candidate
	warnings   []string
}

// sortCandidates orders candidates best-first: nearest to the anchor, then
// highest recognizer confidence, then earliest in the document. The order
// is total, so resolution is deterministic for a given input.
func sortCandidates(cands []model.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Distance != cands[j].Distance {
			return cands[i].Distance < cands[j].Distance
		}
		if cands[i].Confidence != cands[j].Confidence {
			return cands[i].Confidence > cands[j].Confidence
		}
		return cands[i].TokenIndex < cands[j].TokenIndex
	})
}

// resolve runs candidate search and picks one normalized value per field.
// A field with no parseable candidate stays null and is marked unresolved.
func (s *searcher) resolve(idx *docIndex) resolveOutcome {
	out := resolveOutcome{
		record:     schema.NewRecord(),
		provenance: make(map[string]model.Provenance, len(s.specs)),
		candidates: s.findAll(idx),
	}
	for _, spec := range s.specs {
		cands := out.candidates[spec.Name]
		sortCandidates(cands)
		out.provenance[spec.Name] = model.ProvenanceUnresolved
		for _, c := range cands {
			v, status := schema.Normalize(spec.Kind, c.Text)
			if status == schema.StatusFail || v.IsNull() {
				continue
			}
			if status == schema.StatusWarn {
				out.warnings = append(out.warnings, fmt.Sprintf("%s: unexpected shape %q", spec.Name, c.Text))
			}
			out.record[spec.Name] = v
			out.provenance[spec.Name] = model.ProvenanceDeterministic
			break
		}
	}
	backfillSellerAddress(out.record, out.provenance)
	return out
}

var cityStateZipPat = regexp.MustCompile(`^(.*?)[,\s]+([A-Za-z][A-Za-z .]*?)[,\s]+([A-Za-z]{2})[,\s]+(\d{5}(?:-\d{4})?)$`)

// backfillSellerAddress fills seller city/state/zip from the tail of the
// seller address when the form has no separate labels for them. The
// address itself is left intact.
func backfillSellerAddress(rec schema.Record, prov map[string]model.Provenance) {
	addr := rec["seller_address"]
	if addr.IsNull() {
		return
	}
	m := cityStateZipPat.FindStringSubmatch(addr.Text())
	if m == nil {
		return
	}
	for name, raw := range map[string]string{
		"seller_city":  m[2],
		"seller_state": m[3],
		"seller_zip":   m[4],
	} {
		if !rec[name].IsNull() {
			continue
		}
		v, status := schema.Normalize(schema.ByName(name).Kind, raw)
		if status == schema.StatusFail || v.IsNull() {
			continue
		}
		rec[name] = v
		prov[name] = model.ProvenanceDeterministic
	}
}
