package pipeline

import (
	"sort"
	"strings"

	"github.com/sells-group/contract-extract/internal/config"
	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/schema"
)

// searcher finds value candidates near field anchor labels. It is built
// once per engine and reused across documents.
type searcher struct {
	cfg       config.SearchConfig
	specs     []schema.FieldSpec
	phrases   map[string][][]string      // field → keyword phrases as word lists
	phraseSet map[string]map[string]bool // field → phrase strings it owns
	allKw     [][]string                 // every phrase across fields, longest first
}

func newSearcher(cfg config.SearchConfig, specs []schema.FieldSpec) *searcher {
	s := &searcher{
		cfg:       cfg,
		specs:     specs,
		phrases:   make(map[string][][]string, len(specs)),
		phraseSet: make(map[string]map[string]bool, len(specs)),
	}
	for _, spec := range specs {
		var ps [][]string
		set := make(map[string]bool, len(spec.Keywords))
		for _, kw := range spec.Keywords {
			words := splitPhrase(kw)
			ps = append(ps, words)
			set[strings.Join(words, " ")] = true
		}
		sortPhrases(ps)
		s.phrases[spec.Name] = ps
		s.phraseSet[spec.Name] = set
		s.allKw = append(s.allKw, ps...)
	}
	sortPhrases(s.allKw)
	return s
}

func splitPhrase(kw string) []string {
	words := strings.Fields(strings.ToLower(kw))
	for i, w := range words {
		words[i] = strings.ReplaceAll(w, "'", "")
	}
	return words
}

// sortPhrases orders longest first so multi-word labels win over their
// prefixes ("seller's name" before "seller").
func sortPhrases(ps [][]string) {
	sort.SliceStable(ps, func(i, j int) bool {
		if len(ps[i]) != len(ps[j]) {
			return len(ps[i]) > len(ps[j])
		}
		return len(strings.Join(ps[i], " ")) > len(strings.Join(ps[j], " "))
	})
}

// anchor is one matched keyword phrase in the token stream.
type anchor struct {
	start, end int
	phrase     string
}

func (s *searcher) matchPhraseAt(idx *docIndex, i int, words []string) bool {
	if i+len(words) > len(idx.tokens) {
		return false
	}
	for k, w := range words {
		got := strings.ReplaceAll(idx.tokens[i+k].norm, "'", "")
		if got != w {
			return false
		}
	}
	return true
}

// docAnchors matches every field's phrases across the document with one
// global claim map, longest phrase first. A generic single-word label like
// "address" cannot anchor inside a longer claimed label such as "seller's
// address", so specific labels always beat their generic suffixes.
func (s *searcher) docAnchors(idx *docIndex) []anchor {
	var out []anchor
	used := make(map[int]bool)
	for _, words := range s.allKw {
		for i := range idx.tokens {
			if !s.matchPhraseAt(idx, i, words) {
				continue
			}
			a := anchor{start: i, end: i + len(words) - 1, phrase: strings.Join(words, " ")}
			overlap := false
			for k := a.start; k <= a.end; k++ {
				if used[k] {
					overlap = true
					break
				}
			}
			if overlap {
				continue
			}
			for k := a.start; k <= a.end; k++ {
				used[k] = true
			}
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// anchorsFor filters the global anchor list down to the phrases one field
// owns.
func (s *searcher) anchorsFor(anchors []anchor, field string) []anchor {
	set := s.phraseSet[field]
	var out []anchor
	for _, a := range anchors {
		if set[a.phrase] {
			out = append(out, a)
		}
	}
	return out
}

// isAnyAnchor reports whether position j starts any known field label.
// Used to stop free-text spans before they swallow the next label.
func (s *searcher) isAnyAnchor(idx *docIndex, j int) bool {
	for _, words := range s.allKw {
		if s.matchPhraseAt(idx, j, words) {
			return true
		}
	}
	return false
}

func (s *searcher) labelish(idx *docIndex, j int) bool {
	raw := idx.tokens[j].Text
	return strings.HasSuffix(raw, ":") || s.isAnyAnchor(idx, j)
}

// findAll searches every field and returns candidates keyed by field name.
func (s *searcher) findAll(idx *docIndex) map[string][]model.Candidate {
	anchors := s.docAnchors(idx)
	out := make(map[string][]model.Candidate, len(s.specs))
	for _, spec := range s.specs {
		out[spec.Name] = s.find(idx, spec, anchors)
	}
	return out
}

func (s *searcher) find(idx *docIndex, spec schema.FieldSpec, anchors []anchor) []model.Candidate {
	var out []model.Candidate
	seen := make(map[int]bool)
	for _, a := range s.anchorsFor(anchors, spec.Name) {
		var cands []model.Candidate
		if spec.Kind == schema.KindText {
			cands = s.textCandidates(idx, a, spec)
		} else {
			cands = s.scalarCandidates(idx, a, spec)
		}
		for _, c := range cands {
			if seen[c.TokenIndex] {
				continue
			}
			seen[c.TokenIndex] = true
			out = append(out, c)
		}
	}
	return out
}

// scalarCandidates scans the window after an anchor for number-shaped
// spans (currency, percent, integer, phone). Every matching span in the
// window is a candidate; resolution picks the closest.
func (s *searcher) scalarCandidates(idx *docIndex, a anchor, spec schema.FieldSpec) []model.Candidate {
	var out []model.Candidate
	limit := a.end + s.cfg.MaxScanTokens
	if limit >= len(idx.tokens) {
		limit = len(idx.tokens) - 1
	}
	for j := a.end + 1; j <= limit; {
		if !valueLike(spec.Kind, idx.tokens[j].norm) {
			j++
			continue
		}
		gd := idx.geomDistance(a.end, j)
		if gd > s.cfg.MaxGeomDistance {
			j++
			continue
		}
		span := s.spanFrom(idx, j, spec)
		text, conf := spanText(idx, span)
		if !spec.Pattern.MatchString(text) && len(span) > 1 {
			// A shorter span may still parse, e.g. "21%" followed by noise.
			span = span[:1]
			text, conf = spanText(idx, span)
		}
		if spec.Pattern.MatchString(text) {
			out = append(out, model.Candidate{
				Field:      spec.Name,
				Text:       text,
				Anchor:     a.phrase,
				Distance:   s.cfg.IndexWeight*float64(j-a.end) + s.cfg.GeomWeight*gd,
				Confidence: conf,
				TokenIndex: j,
			})
		}
		j += len(span)
	}
	return out
}

// textCandidates builds at most two spans per anchor: the remainder of the
// anchor's line (label-left layouts) and the start of the following line
// (label-above layouts).
func (s *searcher) textCandidates(idx *docIndex, a anchor, spec schema.FieldSpec) []model.Candidate {
	var starts []int
	limit := a.end + s.cfg.MaxScanTokens
	if limit >= len(idx.tokens) {
		limit = len(idx.tokens) - 1
	}
	anchorLine := idx.tokens[a.end].Line
	sameLine, nextLine := -1, -1
	for j := a.end + 1; j <= limit; j++ {
		line := idx.tokens[j].Line
		if line == anchorLine && sameLine < 0 {
			sameLine = j
		}
		if line > anchorLine && nextLine < 0 {
			nextLine = j
		}
		if sameLine >= 0 && nextLine >= 0 {
			break
		}
	}
	for _, j := range []int{sameLine, nextLine} {
		if j >= 0 {
			starts = append(starts, j)
		}
	}

	var out []model.Candidate
	for _, j := range starts {
		if s.labelish(idx, j) {
			continue
		}
		gd := idx.geomDistance(a.end, j)
		if gd > s.cfg.MaxGeomDistance {
			continue
		}
		span := s.spanFrom(idx, j, spec)
		text, conf := spanText(idx, span)
		if text == "" || !spec.Pattern.MatchString(text) {
			continue
		}
		out = append(out, model.Candidate{
			Field:      spec.Name,
			Text:       text,
			Anchor:     a.phrase,
			Distance:   s.cfg.IndexWeight*float64(j-a.end) + s.cfg.GeomWeight*gd,
			Confidence: conf,
			TokenIndex: j,
		})
	}
	return out
}

// spanFrom collects consecutive same-line tokens starting at j, stopping
// at the field's span cap, the next label, or (for scalar kinds) the first
// token that stops looking like a value.
func (s *searcher) spanFrom(idx *docIndex, j int, spec schema.FieldSpec) []int {
	span := []int{j}
	line := idx.tokens[j].Line
	for k := j + 1; k < len(idx.tokens) && len(span) < spec.MaxSpan; k++ {
		if idx.tokens[k].Line != line {
			break
		}
		if spec.Kind == schema.KindText {
			if s.labelish(idx, k) {
				break
			}
		} else if !valueLike(spec.Kind, idx.tokens[k].norm) {
			break
		}
		span = append(span, k)
	}
	return span
}

func spanText(idx *docIndex, span []int) (string, float64) {
	parts := make([]string, 0, len(span))
	conf := 1.0
	for _, k := range span {
		parts = append(parts, idx.tokens[k].Text)
		if idx.tokens[k].Confidence < conf {
			conf = idx.tokens[k].Confidence
		}
	}
	text := strings.TrimRight(strings.Join(parts, " "), ",;:")
	return strings.TrimSpace(text), conf
}

func valueLike(kind schema.ValueKind, norm string) bool {
	if norm == "" {
		return false
	}
	digits := 0
	for _, r := range norm {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("$,.%()-", r):
		default:
			return false
		}
	}
	if kind == schema.KindCurrency && strings.HasPrefix(norm, "$") {
		return true
	}
	return digits > 0
}
