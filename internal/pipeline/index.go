// Package pipeline implements contract field extraction: deterministic
// anchor/candidate resolution over recognized tokens, confidence-gated
// escalation to a model for enhancement, and issue-driven correction.
package pipeline

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/contract-extract/internal/model"
)

// indexedToken is a recognized token plus the precomputed forms the
// candidate search needs.
type indexedToken struct {
	model.Token
	norm   string // NFC, lowercase, surrounding punctuation stripped
	cx, cy float64
}

// docIndex is the searchable view of one document's token stream.
type docIndex struct {
	tokens []indexedToken
}

func newDocIndex(rec *model.RecognitionResult) *docIndex {
	idx := &docIndex{tokens: make([]indexedToken, len(rec.Tokens))}
	for i, tok := range rec.Tokens {
		cx, cy := tok.Box.Center()
		idx.tokens[i] = indexedToken{
			Token: tok,
			norm:  normToken(tok.Text),
			cx:    cx,
			cy:    cy,
		}
	}
	return idx
}

func normToken(s string) string {
	s = norm.NFC.String(s)
	s = strings.Trim(s, ":;,.·•|")
	return strings.ToLower(s)
}

func (idx *docIndex) geomDistance(i, j int) float64 {
	a, b := idx.tokens[i], idx.tokens[j]
	return math.Hypot(a.cx-b.cx, a.cy-b.cy)
}
