package vision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-extract/internal/model"
)

func sampleRecognition() *model.RecognitionResult {
	return &model.RecognitionResult{
		Source:   "scans/contract-042.png",
		FullText: "Buyer's Name: Maria Santos",
		Tokens: []model.Token{
			{Text: "Buyer's", Box: model.Box{X: 0, Y: 0, Width: 60, Height: 20}, Line: 0, Confidence: 0.98},
			{Text: "Name:", Box: model.Box{X: 70, Y: 0, Width: 60, Height: 20}, Line: 0, Confidence: 0.97},
			{Text: "Maria", Box: model.Box{X: 140, Y: 0, Width: 60, Height: 20}, Line: 0, Confidence: 0.95},
			{Text: "Santos", Box: model.Box{X: 210, Y: 0, Width: 60, Height: 20}, Line: 0, Confidence: 0.91},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	orig := sampleRecognition()

	path, err := Save(dir, orig)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "contract-042.json"), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)
}

func TestSave_NoSourceUsesDefaultStem(t *testing.T) {
	dir := t.TempDir()
	path, err := Save(dir, &model.RecognitionResult{FullText: "x"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "recognition.json"), path)
}

func TestLoad_FillsMissingSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"full_text": "x", "tokens": []}`), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Source)
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestFileRecognizer(t *testing.T) {
	dir := t.TempDir()
	path, err := Save(dir, sampleRecognition())
	require.NoError(t, err)

	loaded, err := FileRecognizer{}.Recognize(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "scans/contract-042.png", loaded.Source)
	assert.Len(t, loaded.Tokens, 4)
}

func TestFileRecognizer_MissingFile(t *testing.T) {
	_, err := FileRecognizer{}.Recognize(context.Background(), filepath.Join(t.TempDir(), "gone.json"))
	assert.Error(t, err)
}
