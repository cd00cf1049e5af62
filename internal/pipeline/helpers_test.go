package pipeline

import (
	"strings"

	"github.com/sells-group/contract-extract/internal/model"
)

// docBuilder assembles synthetic recognition results. Tokens are laid out
// on a fixed grid: 70px per column, 40px per line.
type docBuilder struct {
	rec  model.RecognitionResult
	line int
}

func newDoc(source string) *docBuilder {
	return &docBuilder{rec: model.RecognitionResult{Source: source}}
}

// addLine appends one line of tokens, all at the given confidence.
func (b *docBuilder) addLine(conf float64, words ...string) *docBuilder {
	confs := make([]float64, len(words))
	for i := range confs {
		confs[i] = conf
	}
	return b.addLineConf(confs, words...)
}

// addLineConf appends one line with per-token confidences.
func (b *docBuilder) addLineConf(confs []float64, words ...string) *docBuilder {
	for i, w := range words {
		b.rec.Tokens = append(b.rec.Tokens, model.Token{
			Text: w,
			Box: model.Box{
				X:      float64(i) * 70,
				Y:      float64(b.line) * 40,
				Width:  60,
				Height: 20,
			},
			Line:       b.line,
			Confidence: confs[i],
		})
	}
	b.line++
	return b
}

func (b *docBuilder) withWarning(msg string) *docBuilder {
	b.rec.Warnings = append(b.rec.Warnings, msg)
	return b
}

func (b *docBuilder) withBlock(conf float64, text string) *docBuilder {
	b.rec.Blocks = append(b.rec.Blocks, model.Block{Text: text, Confidence: conf})
	return b
}

func (b *docBuilder) build() *model.RecognitionResult {
	rec := b.rec
	rec.FullText = strings.Join(rec.TokenTexts(), " ")
	return &rec
}

// contractDoc is a small but complete installment contract layout used by
// several tests.
func contractDoc(conf float64) *model.RecognitionResult {
	return newDoc("contract.png").
		addLine(conf, "RETAIL", "INSTALLMENT", "CONTRACT").
		addLine(conf, "Seller's", "Name:", "Crazy", "Eddie's", "Emporium").
		addLine(conf, "Seller's", "Address:", "123", "Main", "Street,", "Springfield,", "IL", "62704").
		addLine(conf, "Buyer's", "Name:", "Maria", "Santos").
		addLine(conf, "Buyer's", "Address:", "456", "Oak", "Avenue").
		addLine(conf, "Buyer's", "Phone:", "(843)", "333-4540").
		addLine(conf, "ANNUAL", "PERCENTAGE", "RATE", "21.90", "%").
		addLine(conf, "FINANCE", "CHARGE", "$", "1,200.50").
		addLine(conf, "Amount", "Financed", "$", "3,644.28").
		addLine(conf, "Total", "of", "Payments", "$", "4,844.78").
		addLine(conf, "Number", "of", "Payments", "24").
		addLine(conf, "Amount", "of", "Payments", "$", "201.87").
		addLine(conf, "Quantity", "2").
		addLine(conf, "Items", "Purchased:", "Refrigerator", "and", "Freezer").
		build()
}

func newTestSearcher() *searcher {
	eng := New(Options{})
	return eng.search
}
