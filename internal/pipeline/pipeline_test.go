package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-extract/internal/config"
	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/pkg/anthropic"
)

func TestNew_DefaultModelMatchesConfigDefault(t *testing.T) {
	eng := New(Options{})
	assert.Equal(t, config.DefaultModel, eng.model)
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(body string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: body}},
	}
}

func TestRun_NilInput(t *testing.T) {
	eng := New(Options{})
	_, err := eng.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRun_CanceledContext(t *testing.T) {
	eng := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Run(ctx, contractDoc(0.95))
	assert.Error(t, err)
}

func TestRun_CleanDocumentStaysDeterministic(t *testing.T) {
	eng := New(Options{})

	res, err := eng.Run(context.Background(), contractDoc(0.95))
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "contract.png", res.Source)
	assert.False(t, res.Metrics.Escalate)
	assert.False(t, res.AIUsed)
	assert.Empty(t, res.Issues)
	assert.Empty(t, res.Corrections)

	assert.Equal(t, model.StageCompleted, res.Stages[StageResolve])
	assert.Equal(t, model.StageCompleted, res.Stages[StageConfidence])
	assert.Equal(t, model.StageSkipped, res.Stages[StageEnhance])
	assert.Equal(t, model.StageCompleted, res.Stages[StageReview])
	assert.Equal(t, model.StageSkipped, res.Stages[StageCorrect])

	assert.Equal(t, "Maria Santos", res.Record["buyer_name"].String())
	assert.Equal(t, model.ProvenanceDeterministic, res.Provenance["buyer_name"])
	assert.Equal(t, model.ProvenanceUnresolved, res.Provenance["make_or_model"])
}

func TestRun_EscalatesWithoutClient(t *testing.T) {
	eng := New(Options{})

	res, err := eng.Run(context.Background(), contractDoc(0.70))
	require.NoError(t, err)

	assert.True(t, res.Metrics.Escalate)
	assert.False(t, res.AIUsed)
	assert.Equal(t, model.StageFailed, res.Stages[StageEnhance])
	assert.Equal(t, model.StageCompleted, res.Stages[StageReview])
	assert.Equal(t, model.StageSkipped, res.Stages[StageCorrect])

	// The deterministic record survives the failed enhancement.
	assert.Equal(t, "Maria Santos", res.Record["buyer_name"].String())
	assert.Equal(t, "3644.28", res.Record["amount_financed"].String())
}

func TestRun_EnhancementApplied(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"make_or_model": "Frigidaire XL-200"}`), nil).
		Once()

	eng := New(Options{Client: client})
	res, err := eng.Run(context.Background(), contractDoc(0.70))
	require.NoError(t, err)

	assert.True(t, res.AIUsed)
	assert.Equal(t, model.StageCompleted, res.Stages[StageEnhance])
	assert.Equal(t, model.StageCompleted, res.Stages[StageReview])
	assert.Equal(t, model.StageSkipped, res.Stages[StageCorrect])

	assert.Equal(t, "Frigidaire XL-200", res.Record["make_or_model"].String())
	assert.Equal(t, model.ProvenanceEnhanced, res.Provenance["make_or_model"])
	// Untouched fields keep their deterministic provenance.
	assert.Equal(t, model.ProvenanceDeterministic, res.Provenance["buyer_name"])

	client.AssertExpectations(t)
}

// mismatchedHouseholdDoc resolves cleanly at the given confidence but
// carries a buyer / co-buyer pair whose last names almost match.
func mismatchedHouseholdDoc(conf float64) *model.RecognitionResult {
	return newDoc("household.png").
		addLine(conf, "Buyer's", "Name:", "Robert", "Hornberse").
		addLine(conf, "Co-Buyer's", "Name:", "Kelly", "Hurnberge").
		build()
}

func TestRun_ReviewRunsWithoutEscalation(t *testing.T) {
	// Issue review is not gated on confidence: a high-confidence run with
	// disagreeing household names still records the mismatch.
	eng := New(Options{})

	res, err := eng.Run(context.Background(), mismatchedHouseholdDoc(0.95))
	require.NoError(t, err)

	assert.False(t, res.Metrics.Escalate)
	assert.Equal(t, model.StageSkipped, res.Stages[StageEnhance])
	assert.Equal(t, model.StageCompleted, res.Stages[StageReview])
	assert.Equal(t, model.StageFailed, res.Stages[StageCorrect])

	require.NotEmpty(t, res.Issues)
	assert.Equal(t, model.IssueNameMismatch, res.Issues[0].Kind)
	assert.Equal(t, "Robert Hornberse", res.Record["buyer_name"].String())
}

func TestRun_CorrectionWithoutEscalation(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"co_buyer_name": "Kelly Hornberse"}`), nil).
		Once()

	eng := New(Options{Client: client})
	res, err := eng.Run(context.Background(), mismatchedHouseholdDoc(0.95))
	require.NoError(t, err)

	assert.False(t, res.Metrics.Escalate)
	assert.True(t, res.AIUsed)
	assert.Equal(t, model.StageSkipped, res.Stages[StageEnhance])
	assert.Equal(t, model.StageCompleted, res.Stages[StageCorrect])
	assert.Equal(t, "Kelly Hornberse", res.Record["co_buyer_name"].String())
	assert.Equal(t, model.ProvenanceCorrected, res.Provenance["co_buyer_name"])
	client.AssertExpectations(t)
}

func TestRun_CorrectionTriggeredByIssues(t *testing.T) {
	client := &mockClient{}
	// Enhancement introduces a buyer / co-buyer pair whose last names
	// almost match, which the review stage flags.
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"buyer_name": "Robert Hornberse", "co_buyer_name": "Kelly Hurnberge"}`), nil).
		Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"co_buyer_name": "Kelly Hornberse"}`), nil).
		Once()

	eng := New(Options{Client: client})
	res, err := eng.Run(context.Background(), contractDoc(0.70))
	require.NoError(t, err)

	assert.True(t, res.AIUsed)
	assert.Equal(t, model.StageCompleted, res.Stages[StageCorrect])
	assert.Equal(t, "Kelly Hornberse", res.Record["co_buyer_name"].String())
	assert.Equal(t, model.ProvenanceCorrected, res.Provenance["co_buyer_name"])
	assert.Equal(t, model.ProvenanceEnhanced, res.Provenance["buyer_name"])

	require.Len(t, res.Corrections, 1)
	assert.Equal(t, "co_buyer_name", res.Corrections[0].Field)
	assert.Equal(t, "Kelly Hurnberge", res.Corrections[0].Before)
	assert.Equal(t, "Kelly Hornberse", res.Corrections[0].After)
	assert.Contains(t, res.Corrections[0].Reason, string(model.IssueNameMismatch))

	require.NotEmpty(t, res.Issues)
	client.AssertExpectations(t)
}

func TestRun_CorrectionFailureKeepsEnhancedRecord(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"buyer_name": "Robert Hornberse", "co_buyer_name": "Kelly Hurnberge"}`), nil).
		Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("rate limited")).
		Once()

	eng := New(Options{Client: client})
	res, err := eng.Run(context.Background(), contractDoc(0.70))
	require.NoError(t, err)

	assert.True(t, res.AIUsed)
	assert.Equal(t, model.StageCompleted, res.Stages[StageEnhance])
	assert.Equal(t, model.StageFailed, res.Stages[StageCorrect])
	assert.Equal(t, "Kelly Hurnberge", res.Record["co_buyer_name"].String())
	assert.Empty(t, res.Corrections)
	client.AssertExpectations(t)
}

func TestRun_MalformedModelResponseFailsEnhancement(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`I am unable to read this document.`), nil).
		Once()

	eng := New(Options{Client: client})
	res, err := eng.Run(context.Background(), contractDoc(0.70))
	require.NoError(t, err)

	assert.False(t, res.AIUsed)
	assert.Equal(t, model.StageFailed, res.Stages[StageEnhance])
	assert.Equal(t, "Maria Santos", res.Record["buyer_name"].String())
	client.AssertExpectations(t)
}

func TestRun_ForceEscalation(t *testing.T) {
	eng := New(Options{})

	res, err := eng.Run(context.Background(), contractDoc(0.95), WithForceEscalation())
	require.NoError(t, err)

	assert.True(t, res.Metrics.Escalate)
	assert.Equal(t, "escalation forced", res.Metrics.Reason)
	assert.Equal(t, model.StageFailed, res.Stages[StageEnhance])
	assert.Equal(t, model.StageCompleted, res.Stages[StageReview])
}

func TestRun_PerRunThresholdOverride(t *testing.T) {
	eng := New(Options{})
	strict := defaultThresholds()
	strict.TokenMean = 0.99

	res, err := eng.Run(context.Background(), contractDoc(0.95), WithThresholds(strict))
	require.NoError(t, err)
	assert.True(t, res.Metrics.Escalate)

	res, err = eng.Run(context.Background(), contractDoc(0.95))
	require.NoError(t, err)
	assert.False(t, res.Metrics.Escalate)
}

func TestRun_RequestShape(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.MaxTokens == 2048 &&
			len(req.System) == 1 &&
			req.System[0].CacheControl != nil &&
			len(req.Messages) == 1 &&
			req.Messages[0].Role == "user"
	})).Return(textResponse(`{}`), nil).Once()

	eng := New(Options{Client: client})
	_, err := eng.Run(context.Background(), contractDoc(0.70))
	require.NoError(t, err)
	client.AssertExpectations(t)
}
