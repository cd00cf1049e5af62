package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/schema"
)

const enhanceSystemPrompt = `You review OCR output from scanned retail installment contracts and repair the extracted fields.

You are given the raw document text, the field values a deterministic pass already found, and nearby candidate values seen for each field.

Rules:
- Return ONLY a JSON object, no prose, no code fences.
- Include every field name listed in the request.
- Use null for any field not explicitly present in the document. Never invent values.
- Copy values exactly as written in the document; do not reformat beyond obvious OCR artifacts.
- Phone numbers, amounts, and percentages must come from the document text.`

const correctionSystemPrompt = `You review OCR output from scanned retail installment contracts and fix suspected extraction errors.

You are given the raw document text, the current field values, and a list of detected problems.

Rules:
- Return ONLY a JSON object with every field name listed in the request, no prose, no code fences.
- Only change values you are confident are wrong; keep everything else exactly as given.
- Buyer and co-buyer usually live in the same household: when the document supports it, their last names and addresses should be consistent.
- Use null for any field not explicitly present in the document. Never invent values.`

// maxCandidatesPerField caps how many nearby values each field contributes
// to the prompt.
const maxCandidatesPerField = 5

func buildEnhancePrompt(fullText string, rec schema.Record, cands map[string][]model.Candidate) string {
	var sb strings.Builder
	sb.WriteString("Document text:\n---\n")
	sb.WriteString(fullText)
	sb.WriteString("\n---\n\nCurrent extraction:\n")
	sb.WriteString(recordJSON(rec))
	sb.WriteString("\n\nCandidate values seen near each field label:\n")
	sb.WriteString(candidateLines(cands))
	sb.WriteString("\nReturn the corrected JSON object with these fields: ")
	sb.WriteString(strings.Join(schema.FieldNames(), ", "))
	sb.WriteString(".")
	return sb.String()
}

func buildCorrectionPrompt(fullText string, rec schema.Record, issues []model.ValidationIssue) string {
	var sb strings.Builder
	sb.WriteString("Document text:\n---\n")
	sb.WriteString(fullText)
	sb.WriteString("\n---\n\nCurrent extraction:\n")
	sb.WriteString(recordJSON(rec))
	sb.WriteString("\n\nDetected problems:\n")
	for _, is := range issues {
		fmt.Fprintf(&sb, "- [%s] %s (fields: %s)\n", is.Severity, is.Description, strings.Join(is.Fields, ", "))
	}
	sb.WriteString("\nReturn the corrected JSON object with these fields: ")
	sb.WriteString(strings.Join(schema.FieldNames(), ", "))
	sb.WriteString(".")
	return sb.String()
}

func recordJSON(rec schema.Record) string {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func candidateLines(cands map[string][]model.Candidate) string {
	names := make([]string, 0, len(cands))
	for name, cs := range cands {
		if len(cs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		cs := cands[name]
		n := len(cs)
		if n > maxCandidatesPerField {
			n = maxCandidatesPerField
		}
		texts := make([]string, 0, n)
		for _, c := range cs[:n] {
			texts = append(texts, fmt.Sprintf("%q", c.Text))
		}
		fmt.Fprintf(&sb, "- %s: %s\n", name, strings.Join(texts, ", "))
	}
	if sb.Len() == 0 {
		return "(none)\n"
	}
	return sb.String()
}
