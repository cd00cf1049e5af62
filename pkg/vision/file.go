package vision

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-extract/internal/model"
)

// FileRecognizer replays recognition output previously written by Save.
// It lets the pipeline run without network access, and doubles as the
// entry point for pre-recognized documents.
type FileRecognizer struct{}

// Recognize loads a saved recognition JSON file.
func (FileRecognizer) Recognize(_ context.Context, path string) (*model.RecognitionResult, error) {
	return Load(path)
}

// Load reads a recognition result from a JSON file.
func Load(path string) (*model.RecognitionResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vision: read recognition file %s", path)
	}
	var result model.RecognitionResult
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, eris.Wrapf(err, "vision: parse recognition file %s", path)
	}
	if result.Source == "" {
		result.Source = path
	}
	return &result, nil
}

// Save writes a recognition result next to future reruns: dir/<stem>.json.
// Returns the path written.
func Save(dir string, result *model.RecognitionResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "vision: create save dir %s", dir)
	}
	stem := "recognition"
	if result.Source != "" {
		base := filepath.Base(result.Source)
		stem = base[:len(base)-len(filepath.Ext(base))]
	}
	path := filepath.Join(dir, stem+".json")
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "vision: marshal recognition result")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", eris.Wrapf(err, "vision: write %s", path)
	}
	return path, nil
}
