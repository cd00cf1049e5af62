package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/schema"
)

// nameSimilarityFloor is the last-name similarity below which a buyer /
// co-buyer pair is flagged. Households on one contract almost always share
// a last name; a low-but-nonzero similarity usually means one of the two
// was misread.
const nameSimilarityFloor = 0.8

const minAddressLen = 10

// A name or address word is a suspected misread when it came from a token
// below typoConfidenceCeil and sits within typoMaxEditDistance of a
// higher-confidence token elsewhere on the page.
const (
	typoConfidenceCeil  = 0.8
	typoMaxEditDistance = 2
	typoMinWordLen      = 4
)

var (
	phoneInTextPat   = regexp.MustCompile(`\d(?:[\s().\-]?\d){6,}`)
	leadingNumberPat = regexp.MustCompile(`^\d+`)
	levParams        = levenshtein.NewParams()
)

// detectIssues inspects the merged record for signs of recognition damage.
// It never blocks the run; issues feed the correction stage and ride along
// in the final result.
func detectIssues(rec schema.Record, recog *model.RecognitionResult) []model.ValidationIssue {
	var issues []model.ValidationIssue

	issues = append(issues, nameIssues(rec)...)
	for _, field := range []string{"seller_address", "buyer_address", "co_buyer_address"} {
		issues = append(issues, addressIssues(field, rec[field])...)
	}
	issues = append(issues, typoIssues(rec, recog)...)

	return issues
}

func nameIssues(rec schema.Record) []model.ValidationIssue {
	buyer, coBuyer := rec["buyer_name"], rec["co_buyer_name"]
	if buyer.IsNull() || coBuyer.IsNull() {
		return nil
	}
	a, b := lastName(buyer.Text()), lastName(coBuyer.Text())
	if a == "" || b == "" {
		return nil
	}
	sim := levenshtein.Similarity(strings.ToLower(a), strings.ToLower(b), levParams)
	if sim >= nameSimilarityFloor {
		return nil
	}
	return []model.ValidationIssue{{
		Kind:        model.IssueNameMismatch,
		Severity:    model.SeverityHigh,
		Fields:      []string{"buyer_name", "co_buyer_name"},
		Description: fmt.Sprintf("buyer last name %q and co-buyer last name %q disagree (similarity %.2f)", a, b, sim),
	}}
}

func lastName(full string) string {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func addressIssues(field string, v schema.Value) []model.ValidationIssue {
	if v.IsNull() {
		return nil
	}
	addr := v.Text()
	var issues []model.ValidationIssue
	if len(addr) < minAddressLen {
		issues = append(issues, model.ValidationIssue{
			Kind:        model.IssueAddressTooShort,
			Severity:    model.SeverityHigh,
			Fields:      []string{field},
			Description: fmt.Sprintf("%s %q is too short to be a street address", field, addr),
		})
	}
	if phoneInTextPat.MatchString(addr) {
		issues = append(issues, model.ValidationIssue{
			Kind:        model.IssueAddressContainsPhone,
			Severity:    model.SeverityHigh,
			Fields:      []string{field},
			Description: fmt.Sprintf("%s appears to contain a phone number", field),
		})
	}
	if !leadingNumberPat.MatchString(addr) {
		issues = append(issues, model.ValidationIssue{
			Kind:        model.IssueAddressMissingNumber,
			Severity:    model.SeverityMedium,
			Fields:      []string{field},
			Description: fmt.Sprintf("%s has no leading street number", field),
		})
	}
	return issues
}

// typoIssues flags name and address words whose low-confidence token has a
// near-identical, higher-confidence occurrence elsewhere on the page. The
// clearer read is usually the correct spelling.
func typoIssues(rec schema.Record, recog *model.RecognitionResult) []model.ValidationIssue {
	if recog == nil {
		return nil
	}
	// Best confidence per normalized word across the whole page.
	best := make(map[string]float64)
	for _, t := range recog.Tokens {
		w := strings.ToLower(strings.Trim(t.Text, ",.:;"))
		if len(w) < typoMinWordLen {
			continue
		}
		if c, ok := best[w]; !ok || t.Confidence > c {
			best[w] = t.Confidence
		}
	}
	if len(best) == 0 {
		return nil
	}

	fields := []string{
		"seller_name", "buyer_name", "co_buyer_name",
		"seller_address", "buyer_address", "co_buyer_address",
	}
	var issues []model.ValidationIssue
	for _, field := range fields {
		v := rec[field]
		if v.IsNull() {
			continue
		}
		for _, word := range strings.Fields(strings.ToLower(v.Text())) {
			word = strings.Trim(word, ",.:;")
			conf, ok := best[word]
			if !ok || conf >= typoConfidenceCeil {
				continue
			}
			alt, altConf, dist := nearestVariant(word, conf, best)
			if dist == 0 {
				continue
			}
			issues = append(issues, model.ValidationIssue{
				Kind:        model.IssueSuspectedTypo,
				Severity:    model.SeverityMedium,
				Fields:      []string{field},
				Description: fmt.Sprintf("%s word %q (%.2f confidence) is edit distance %d from higher-confidence %q (%.2f)", field, word, conf, dist, alt, altConf),
			})
			break
		}
	}
	return issues
}

// nearestVariant finds the closest distinct word read with higher confidence
// within typoMaxEditDistance. A zero distance means nothing qualified.
func nearestVariant(word string, conf float64, all map[string]float64) (string, float64, int) {
	var (
		best     string
		bestConf float64
		bestDist int
	)
	for other, c := range all {
		if other == word || c <= conf {
			continue
		}
		d := levenshtein.Distance(word, other, levParams)
		if d < 1 || d > typoMaxEditDistance {
			continue
		}
		if bestDist == 0 || d < bestDist || (d == bestDist && c > bestConf) {
			best, bestConf, bestDist = other, c, d
		}
	}
	return best, bestConf, bestDist
}
