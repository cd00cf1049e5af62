package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contract-extract/internal/config"
	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/schema"
	"github.com/sells-group/contract-extract/pkg/anthropic"
)

// Stage names as recorded in ExtractionResult.Stages. A run moves through
// them in order and never revisits an earlier stage.
const (
	StageResolve    = "resolve"
	StageConfidence = "confidence"
	StageEnhance    = "enhance"
	StageReview     = "review"
	StageCorrect    = "correct"
)

// Engine runs the extraction pipeline. It is safe for concurrent use; all
// per-run state lives on the stack of Run.
type Engine struct {
	client     anthropic.Client
	model      string
	maxTokens  int64
	thresholds config.ThresholdsConfig
	specs      []schema.FieldSpec
	search     *searcher
}

// Options configures an Engine. Client may be nil, in which case every run
// finishes on the deterministic record alone.
type Options struct {
	Client     anthropic.Client
	Model      string
	MaxTokens  int64
	Thresholds config.ThresholdsConfig
	Search     config.SearchConfig
	Specs      []schema.FieldSpec
}

// New creates an Engine. Zero-valued options fall back to defaults.
func New(opts Options) *Engine {
	if opts.Model == "" {
		opts.Model = config.DefaultModel
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2048
	}
	if opts.Thresholds == (config.ThresholdsConfig{}) {
		opts.Thresholds = config.ThresholdsConfig{TokenMean: 0.85, BlockMean: 0.85, LowToken: 0.80, LowTokenRatio: 0.20}
	}
	if opts.Search == (config.SearchConfig{}) {
		opts.Search = config.SearchConfig{MaxScanTokens: 48, MaxGeomDistance: 800, IndexWeight: 1.0, GeomWeight: 0.02}
	}
	if opts.Specs == nil {
		opts.Specs = schema.Fields()
	}
	return &Engine{
		client:     opts.Client,
		model:      opts.Model,
		maxTokens:  opts.MaxTokens,
		thresholds: opts.Thresholds,
		specs:      opts.Specs,
		search:     newSearcher(opts.Search, opts.Specs),
	}
}

// RunOption adjusts a single run without touching the engine.
type RunOption func(*runConfig)

type runConfig struct {
	thresholds config.ThresholdsConfig
	force      bool
}

// WithThresholds overrides the confidence thresholds for this run only.
func WithThresholds(th config.ThresholdsConfig) RunOption {
	return func(rc *runConfig) { rc.thresholds = th }
}

// WithForceEscalation sends the run to model review regardless of
// recognizer confidence.
func WithForceEscalation() RunOption {
	return func(rc *runConfig) { rc.force = true }
}

// Run extracts the contract fields from one recognized document. It always
// returns a result with a complete record; model-stage failures downgrade
// the run rather than failing it. The only error cases are nil input and a
// context already canceled before work starts.
func (e *Engine) Run(ctx context.Context, rec *model.RecognitionResult, opts ...RunOption) (*model.ExtractionResult, error) {
	if rec == nil {
		return nil, eris.New("pipeline: nil recognition result")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run")
	}

	rc := runConfig{thresholds: e.thresholds, force: e.thresholds.ForceEscalation}
	for _, opt := range opts {
		opt(&rc)
	}

	start := time.Now()
	res := &model.ExtractionResult{
		RunID:     uuid.NewString(),
		Source:    rec.Source,
		CreatedAt: start.UTC(),
		Stages: map[string]model.StageState{
			StageEnhance: model.StageSkipped,
			StageReview:  model.StageSkipped,
			StageCorrect: model.StageSkipped,
		},
	}
	log := zap.L().With(zap.String("run_id", res.RunID), zap.String("source", rec.Source))

	idx := newDocIndex(rec)
	outcome := e.search.resolve(idx)
	record := outcome.record
	res.Provenance = outcome.provenance
	res.Candidates = outcome.candidates
	res.Stages[StageResolve] = model.StageCompleted
	log.Debug("deterministic resolution done",
		zap.Int("resolved", record.ResolvedCount()),
		zap.Strings("warnings", outcome.warnings),
	)

	res.Metrics = evaluateConfidence(rec, rc.thresholds)
	res.Stages[StageConfidence] = model.StageCompleted
	if rc.force {
		res.Metrics.Escalate = true
		res.Metrics.Reason = "escalation forced"
	}

	if res.Metrics.Escalate {
		record = e.enhanceStage(ctx, rec, record, outcome, res, log)
	}

	res.Issues = detectIssues(record, rec)
	res.Stages[StageReview] = model.StageCompleted
	if model.AnyTriggersCorrection(res.Issues) {
		record = e.correctStage(ctx, rec, record, res, log)
	}

	res.Record = record
	res.Elapsed = time.Since(start)
	log.Info("extraction complete",
		zap.Int("resolved", record.ResolvedCount()),
		zap.Bool("escalated", res.Metrics.Escalate),
		zap.Bool("ai_used", res.AIUsed),
		zap.Int("issues", len(res.Issues)),
		zap.Int("corrections", len(res.Corrections)),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// enhanceStage runs the model-backed enhancement of an escalated run. A
// failed call leaves the deterministic record in place.
func (e *Engine) enhanceStage(ctx context.Context, rec *model.RecognitionResult, record schema.Record, outcome resolveOutcome, res *model.ExtractionResult, log *zap.Logger) schema.Record {
	enhanced, changes, err := e.enhance(ctx, rec.FullText, record, outcome.candidates)
	if err != nil {
		res.Stages[StageEnhance] = model.StageFailed
		log.Warn("enhancement stage failed, keeping deterministic record", zap.Error(err))
		return record
	}
	record = enhanced
	res.AIUsed = true
	res.Stages[StageEnhance] = model.StageCompleted
	for _, ch := range changes {
		res.Provenance[ch.Field] = model.ProvenanceEnhanced
	}
	log.Debug("enhancement applied", zap.Int("fields_changed", len(changes)))
	return record
}

// correctStage runs the model-backed correction of a run whose review
// found triggering issues. A failed call keeps the current record.
func (e *Engine) correctStage(ctx context.Context, rec *model.RecognitionResult, record schema.Record, res *model.ExtractionResult, log *zap.Logger) schema.Record {
	corrected, corrections, err := e.correct(ctx, rec.FullText, record, res.Issues)
	if err != nil {
		res.Stages[StageCorrect] = model.StageFailed
		log.Warn("correction stage failed, keeping current record", zap.Error(err))
		return record
	}
	res.AIUsed = true
	res.Stages[StageCorrect] = model.StageCompleted
	res.Corrections = corrections
	for _, c := range corrections {
		res.Provenance[c.Field] = model.ProvenanceCorrected
	}
	log.Debug("correction applied", zap.Int("fields_changed", len(corrections)))
	return corrected
}
