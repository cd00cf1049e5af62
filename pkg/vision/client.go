// Package vision provides text recognition for contract images, backed by
// the Google Cloud Vision REST API, plus a loader for saved recognition
// output so runs can be replayed offline.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/contract-extract/internal/model"
)

// Recognizer turns a contract image into recognized text with geometry.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (*model.RecognitionResult, error)
}

// Option configures the Vision client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Google Cloud Vision recognizer.
func NewClient(apiKey string, opts ...Option) Recognizer {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://vision.googleapis.com",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// annotate API request/response shapes, reduced to the fields we read.

type annotateRequest struct {
	Requests []annotateRequestItem `json:"requests"`
}

type annotateRequestItem struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type annotateFeature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []annotateResponseItem `json:"responses"`
}

type annotateResponseItem struct {
	Error              *annotateError      `json:"error,omitempty"`
	FullTextAnnotation *fullTextAnnotation `json:"fullTextAnnotation,omitempty"`
}

type annotateError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type fullTextAnnotation struct {
	Text  string       `json:"text"`
	Pages []visionPage `json:"pages"`
}

type visionPage struct {
	Blocks []visionBlock `json:"blocks"`
}

type visionBlock struct {
	BoundingBox visionPoly        `json:"boundingBox"`
	Confidence  float64           `json:"confidence"`
	Paragraphs  []visionParagraph `json:"paragraphs"`
}

type visionParagraph struct {
	Words []visionWord `json:"words"`
}

type visionWord struct {
	BoundingBox visionPoly     `json:"boundingBox"`
	Confidence  float64        `json:"confidence"`
	Symbols     []visionSymbol `json:"symbols"`
}

type visionSymbol struct {
	Text     string          `json:"text"`
	Property *symbolProperty `json:"property,omitempty"`
}

type symbolProperty struct {
	DetectedBreak *detectedBreak `json:"detectedBreak,omitempty"`
}

type detectedBreak struct {
	Type string `json:"type"`
}

type visionPoly struct {
	Vertices []visionVertex `json:"vertices"`
}

type visionVertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// supportedImageExts are the formats accepted for annotation.
var supportedImageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

func (c *httpClient) Recognize(ctx context.Context, imagePath string) (*model.RecognitionResult, error) {
	if ext := strings.ToLower(filepath.Ext(imagePath)); !supportedImageExts[ext] {
		return nil, eris.Errorf("vision: unsupported image format %q, want .png, .jpg, or .jpeg", ext)
	}
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, eris.Wrapf(err, "vision: read image %s", imagePath)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "vision: rate limit wait")
		}
	}

	body, err := json.Marshal(annotateRequest{
		Requests: []annotateRequestItem{{
			Image:    annotateImage{Content: base64.StdEncoding.EncodeToString(raw)},
			Features: []annotateFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "vision: marshal request")
	}

	url := fmt.Sprintf("%s/v1/images:annotate?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "vision: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "vision: annotate request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, eris.Errorf("vision: annotate returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var parsed annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "vision: decode response")
	}
	if len(parsed.Responses) == 0 {
		return nil, eris.New("vision: empty annotate response")
	}
	item := parsed.Responses[0]
	if item.Error != nil {
		return nil, eris.Errorf("vision: annotate error %d: %s", item.Error.Code, item.Error.Message)
	}

	result := fromAnnotation(item.FullTextAnnotation)
	result.Source = imagePath
	return result, nil
}

// fromAnnotation flattens the page/block/paragraph/word hierarchy into the
// token stream the pipeline works with. Line numbers advance on detected
// line breaks and paragraph boundaries.
func fromAnnotation(fta *fullTextAnnotation) *model.RecognitionResult {
	result := &model.RecognitionResult{}
	if fta == nil {
		result.Warnings = append(result.Warnings, "no text detected")
		return result
	}
	result.FullText = fta.Text

	line := 0
	for _, page := range fta.Pages {
		for _, block := range page.Blocks {
			result.Blocks = append(result.Blocks, model.Block{
				Box:        boxFromPoly(block.BoundingBox),
				Confidence: block.Confidence,
			})
			for _, para := range block.Paragraphs {
				brokeLine := false
				for _, word := range para.Words {
					var sb strings.Builder
					for _, sym := range word.Symbols {
						sb.WriteString(sym.Text)
						if sym.Property != nil && sym.Property.DetectedBreak != nil {
							switch sym.Property.DetectedBreak.Type {
							case "LINE_BREAK", "EOL_SURE_SPACE":
								brokeLine = true
							}
						}
					}
					result.Tokens = append(result.Tokens, model.Token{
						Text:       sb.String(),
						Box:        boxFromPoly(word.BoundingBox),
						Line:       line,
						Confidence: word.Confidence,
					})
					if brokeLine {
						line++
						brokeLine = false
					}
				}
				line++
			}
		}
	}
	if len(result.Tokens) == 0 {
		result.Warnings = append(result.Warnings, "no tokens recognized")
	}
	return result
}

func boxFromPoly(p visionPoly) model.Box {
	if len(p.Vertices) == 0 {
		return model.Box{}
	}
	minX, minY := p.Vertices[0].X, p.Vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range p.Vertices[1:] {
		if v.X < minX {
			minX = v.X
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	return model.Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
