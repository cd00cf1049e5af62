package model

// Box is an axis-aligned bounding box in page pixel coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the geometric center of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Token is a single recognized word with its geometry and recognizer confidence.
type Token struct {
	Text       string  `json:"text"`
	Box        Box     `json:"box"`
	Line       int     `json:"line"`
	Confidence float64 `json:"confidence"`
}

// Block is a larger recognized region, typically a paragraph or table cell.
type Block struct {
	Text       string  `json:"text"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// RecognitionResult is the raw output of a text recognizer for one document.
// Tokens are in reading order as emitted by the recognizer.
type RecognitionResult struct {
	Source   string   `json:"source,omitempty"`
	FullText string   `json:"full_text"`
	Tokens   []Token  `json:"tokens"`
	Blocks   []Block  `json:"blocks,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// TokenTexts returns the token texts in order. Mostly a test convenience.
func (r *RecognitionResult) TokenTexts() []string {
	out := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		out[i] = t.Text
	}
	return out
}
