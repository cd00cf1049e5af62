package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/schema"
	"github.com/sells-group/contract-extract/pkg/anthropic"
)

// callModel sends one completion request and returns the parsed, schema-
// validated JSON object from the response. Numbers are preserved as
// json.Number so values like "21.90" survive the round trip exactly.
func (e *Engine) callModel(ctx context.Context, system, prompt, phase string) (map[string]any, error) {
	if e.client == nil {
		return nil, eris.New("pipeline: no completion client configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: context done before "+phase)
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: system, CacheControl: &anthropic.CacheControl{}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: "+phase+" completion")
	}
	resp.Usage.LogCost(e.model, phase)

	raw := cleanModelJSON(resp.Text())
	if err := schema.ValidateResponse([]byte(raw)); err != nil {
		return nil, eris.Wrap(err, "pipeline: "+phase+" response rejected")
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var parsed map[string]any
	if err := dec.Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "pipeline: "+phase+" response parse")
	}
	return parsed, nil
}

// enhance asks the model to re-read the document and repair the
// deterministic record. The returned record is merged field by field; the
// input record survives untouched when the call fails.
func (e *Engine) enhance(ctx context.Context, fullText string, rec schema.Record, cands map[string][]model.Candidate) (schema.Record, []fieldChange, error) {
	resp, err := e.callModel(ctx, enhanceSystemPrompt, buildEnhancePrompt(fullText, rec, cands), "enhance")
	if err != nil {
		return rec, nil, err
	}
	merged, changes := mergeResponse(rec, resp, e.specs)
	return merged, changes, nil
}
