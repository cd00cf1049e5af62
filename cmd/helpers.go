package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-extract/internal/pipeline"
	"github.com/sells-group/contract-extract/internal/schema"
	"github.com/sells-group/contract-extract/internal/store"
	"github.com/sells-group/contract-extract/pkg/anthropic"
	"github.com/sells-group/contract-extract/pkg/vision"
)

// initStore opens the run-history store selected by config. Callers own the
// returned store and must Close it.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("cmd: unknown store driver %q", cfg.Store.Driver)
	}
}

// loadSpecs returns the field table with any configured keyword overrides
// applied.
func loadSpecs() ([]schema.FieldSpec, error) {
	specs := schema.Fields()
	if cfg.Schema.OverridesPath == "" {
		return specs, nil
	}
	ov, err := schema.LoadOverrides(cfg.Schema.OverridesPath)
	if err != nil {
		return nil, err
	}
	return ov.Apply(specs), nil
}

// buildEngine wires the extraction engine from config. The model client is
// nil when no API key is set; the engine then runs deterministically only.
func buildEngine() (*pipeline.Engine, error) {
	specs, err := loadSpecs()
	if err != nil {
		return nil, err
	}

	var client anthropic.Client
	if cfg.Anthropic.Key != "" {
		client = anthropic.NewClient(cfg.Anthropic.Key,
			anthropic.WithRateLimit(cfg.Anthropic.RequestsPerSec),
		)
	}

	return pipeline.New(pipeline.Options{
		Client:     client,
		Model:      cfg.Anthropic.Model,
		MaxTokens:  int64(cfg.Anthropic.MaxTokens),
		Thresholds: cfg.Thresholds,
		Search:     cfg.Search,
		Specs:      specs,
	}), nil
}

// buildRecognizer returns the OCR client, or a file replayer when fromJSON
// is set.
func buildRecognizer(fromJSON bool) (vision.Recognizer, error) {
	if fromJSON {
		return vision.FileRecognizer{}, nil
	}
	if cfg.Vision.Key == "" {
		return nil, eris.New("cmd: vision.key is required unless --from-json is set")
	}
	opts := []vision.Option{
		vision.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Vision.TimeoutSecs) * time.Second}),
	}
	if cfg.Vision.BaseURL != "" {
		opts = append(opts, vision.WithBaseURL(cfg.Vision.BaseURL))
	}
	return vision.NewClient(cfg.Vision.Key, opts...), nil
}
