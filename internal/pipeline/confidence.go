package pipeline

import (
	"fmt"

	"github.com/sells-group/contract-extract/internal/config"
	"github.com/sells-group/contract-extract/internal/model"
)

// evaluateConfidence summarizes recognizer confidence and decides whether
// the run escalates to model review. Thresholds are exclusive: a document
// sitting exactly on a threshold does not escalate.
func evaluateConfidence(rec *model.RecognitionResult, th config.ThresholdsConfig) model.ConfidenceMetrics {
	m := model.ConfidenceMetrics{
		TokenCount:      len(rec.Tokens),
		WarningsPresent: len(rec.Warnings) > 0,
	}

	if len(rec.Tokens) == 0 {
		m.Escalate = true
		m.Reason = "no tokens recognized"
		return m
	}

	sum := 0.0
	min := 1.0
	low := 0
	for _, t := range rec.Tokens {
		sum += t.Confidence
		if t.Confidence < min {
			min = t.Confidence
		}
		if t.Confidence < th.LowToken {
			low++
		}
	}
	m.TokenMean = sum / float64(len(rec.Tokens))
	m.TokenMin = min
	m.LowTokenRatio = float64(low) / float64(len(rec.Tokens))

	if len(rec.Blocks) > 0 {
		bsum := 0.0
		for _, b := range rec.Blocks {
			bsum += b.Confidence
		}
		m.BlockMean = bsum / float64(len(rec.Blocks))
	}

	switch {
	case m.TokenMean < th.TokenMean:
		m.Escalate = true
		m.Reason = fmt.Sprintf("token mean %.3f below %.2f", m.TokenMean, th.TokenMean)
	case len(rec.Blocks) > 0 && m.BlockMean < th.BlockMean:
		m.Escalate = true
		m.Reason = fmt.Sprintf("block mean %.3f below %.2f", m.BlockMean, th.BlockMean)
	case m.LowTokenRatio > th.LowTokenRatio:
		m.Escalate = true
		m.Reason = fmt.Sprintf("%.0f%% of tokens below %.2f", m.LowTokenRatio*100, th.LowToken)
	case m.TokenMin < th.LowToken:
		m.Escalate = true
		m.Reason = fmt.Sprintf("token min %.2f below %.2f", m.TokenMin, th.LowToken)
	case m.WarningsPresent:
		m.Escalate = true
		m.Reason = "recognizer reported warnings"
	}
	return m
}
