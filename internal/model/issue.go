package model

// IssueKind is a category of suspected extraction problem.
type IssueKind string

const (
	IssueNameMismatch         IssueKind = "name_mismatch"
	IssueAddressTooShort      IssueKind = "address_too_short"
	IssueAddressContainsPhone IssueKind = "address_contains_phone"
	IssueAddressMissingNumber IssueKind = "address_missing_number"
	IssueSuspectedTypo        IssueKind = "suspected_typo"
)

// Severity ranks how strongly an issue suggests the extraction is wrong.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// TriggersCorrection reports whether issues of this severity are serious
// enough to send the record through the correction stage.
func (s Severity) TriggersCorrection() bool {
	return s == SeverityMedium || s == SeverityHigh
}

// ValidationIssue is one detected problem, tied to the fields it affects.
type ValidationIssue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Fields      []string  `json:"fields"`
	Description string    `json:"description"`
}

// AnyTriggersCorrection reports whether at least one issue warrants correction.
func AnyTriggersCorrection(issues []ValidationIssue) bool {
	for _, is := range issues {
		if is.Severity.TriggersCorrection() {
			return true
		}
	}
	return false
}
