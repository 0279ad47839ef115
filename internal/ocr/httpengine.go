package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"time"
)

// HTTPEngine is the default Engine: a thin client over an HTTP OCR service,
// grounded on the teacher's grpcclient.Client.ExtractText collaborator
// boundary but speaking plain HTTP+JSON since no generated OCR protobuf
// stubs exist in the retrieved corpus.
type HTTPEngine struct {
	endpoint string
	client   *http.Client
	language string
}

// NewHTTPEngine builds an HTTPEngine targeting the given endpoint.
func NewHTTPEngine(endpoint string) *HTTPEngine {
	return &HTTPEngine{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 8 * time.Second},
	}
}

type recognizeResponse struct {
	Text       string         `json:"text"`
	Confidence float64        `json:"confidence"`
	Regions    []regionWire   `json:"regions,omitempty"`
}

type regionWire struct {
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Initialize records the language to send with every recognize call; the
// HTTP collaborator has no persistent connection to establish.
func (e *HTTPEngine) Initialize(ctx context.Context, language string) error {
	if e.endpoint == "" {
		return fmt.Errorf("ocr: no endpoint configured")
	}
	e.language = language
	return nil
}

// Recognize POSTs the image as PNG and the configured language, and parses
// the JSON recognition result.
func (e *HTTPEngine) Recognize(ctx context.Context, img image.Image) (Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("ocr: encode frame: %w", err)
	}

	url := e.endpoint + "?language=" + e.language
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("ocr: server returned status %d", resp.StatusCode)
	}

	var wire recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Result{}, fmt.Errorf("ocr: decode response: %w", err)
	}

	regions := make([]Region, 0, len(wire.Regions))
	for _, r := range wire.Regions {
		regions = append(regions, Region{
			X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2,
			Text: r.Text, Confidence: r.Confidence,
		})
	}

	return Result{Text: wire.Text, Confidence: wire.Confidence, Regions: regions}, nil
}

// Terminate is a no-op: the HTTP engine holds no persistent resource.
func (e *HTTPEngine) Terminate() error { return nil }
