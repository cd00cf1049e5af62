package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract.png")
	require.NoError(t, os.WriteFile(path, []byte("fake png bytes"), 0o644))
	return path
}

func poly(x, y, w, h float64) visionPoly {
	return visionPoly{Vertices: []visionVertex{
		{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h},
	}}
}

func word(text string, conf float64, lineBreak bool) visionWord {
	w := visionWord{Confidence: conf, BoundingBox: poly(0, 0, 60, 20)}
	for i, r := range text {
		sym := visionSymbol{Text: string(r)}
		if lineBreak && i == len([]rune(text))-1 {
			sym.Property = &symbolProperty{DetectedBreak: &detectedBreak{Type: "LINE_BREAK"}}
		}
		w.Symbols = append(w.Symbols, sym)
	}
	return w
}

func TestRecognize(t *testing.T) {
	annotation := fullTextAnnotation{
		Text: "Buyer's Name:\nMaria Santos",
		Pages: []visionPage{{
			Blocks: []visionBlock{{
				BoundingBox: poly(0, 0, 600, 80),
				Confidence:  0.93,
				Paragraphs: []visionParagraph{{
					Words: []visionWord{
						word("Buyer's", 0.98, false),
						word("Name:", 0.97, true),
						word("Maria", 0.95, false),
						word("Santos", 0.91, false),
					},
				}},
			}},
		}},
	}

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req annotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 1)
		assert.NotEmpty(t, req.Requests[0].Image.Content)
		require.Len(t, req.Requests[0].Features, 1)
		assert.Equal(t, "DOCUMENT_TEXT_DETECTION", req.Requests[0].Features[0].Type)

		json.NewEncoder(w).Encode(annotateResponse{
			Responses: []annotateResponseItem{{FullTextAnnotation: &annotation}},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	imagePath := writeImage(t)

	result, err := client.Recognize(context.Background(), imagePath)
	require.NoError(t, err)
	assert.Equal(t, "/v1/images:annotate", gotPath)

	assert.Equal(t, imagePath, result.Source)
	assert.Equal(t, "Buyer's Name:\nMaria Santos", result.FullText)
	assert.Equal(t, []string{"Buyer's", "Name:", "Maria", "Santos"}, result.TokenTexts())
	assert.Empty(t, result.Warnings)

	// "Name:" carries a line break, so the next words land on line 1.
	assert.Equal(t, 0, result.Tokens[0].Line)
	assert.Equal(t, 0, result.Tokens[1].Line)
	assert.Equal(t, 1, result.Tokens[2].Line)
	assert.Equal(t, 1, result.Tokens[3].Line)

	assert.InDelta(t, 0.91, result.Tokens[3].Confidence, 1e-9)

	require.Len(t, result.Blocks, 1)
	assert.InDelta(t, 0.93, result.Blocks[0].Confidence, 1e-9)
	assert.InDelta(t, 600, result.Blocks[0].Box.Width, 1e-9)
}

func TestRecognize_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(annotateResponse{
			Responses: []annotateResponseItem{{
				Error: &annotateError{Code: 7, Message: "permission denied"},
			}},
		})
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.Recognize(context.Background(), writeImage(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestRecognize_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	_, err := client.Recognize(context.Background(), writeImage(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestRecognize_MissingImage(t *testing.T) {
	client := NewClient("k")
	_, err := client.Recognize(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

func TestRecognize_UnsupportedFormat(t *testing.T) {
	// Rejected before the file is read or any request goes out.
	client := NewClient("k")
	for _, name := range []string{"contract.pdf", "contract.tiff", "contract"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte("bytes"), 0o644))

		_, err := client.Recognize(context.Background(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported image format")
	}
}

func TestFromAnnotation_NoText(t *testing.T) {
	result := fromAnnotation(nil)
	assert.Contains(t, result.Warnings, "no text detected")
	assert.Empty(t, result.Tokens)
}

func TestFromAnnotation_EmptyPages(t *testing.T) {
	result := fromAnnotation(&fullTextAnnotation{Text: ""})
	assert.Contains(t, result.Warnings, "no tokens recognized")
}

func TestBoxFromPoly(t *testing.T) {
	b := boxFromPoly(poly(10, 20, 100, 40))
	assert.Equal(t, 10.0, b.X)
	assert.Equal(t, 20.0, b.Y)
	assert.Equal(t, 100.0, b.Width)
	assert.Equal(t, 40.0, b.Height)

	assert.Zero(t, boxFromPoly(visionPoly{}))
}
