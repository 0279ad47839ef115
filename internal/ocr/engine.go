// Package ocr wraps an OCR engine collaborator behind the circuit-breaker
// and retry stack the teacher's grpcclient.Client applies to every RPC,
// treating the library as an opaque provider with a narrow capability set.
package ocr

import (
	"context"
	"image"
)

// Engine is the OCR collaborator boundary: load language, initialize,
// recognize, terminate. The core never depends on a concrete OCR library.
type Engine interface {
	Initialize(ctx context.Context, language string) error
	Recognize(ctx context.Context, img image.Image) (Result, error)
	Terminate() error
}

// Result is one engine recognition, before post-correction.
type Result struct {
	Text       string
	Confidence float64 // already scaled to [0,1] by the engine
	Regions    []Region
}

// Region is an optional per-region recognition.
type Region struct {
	X1, Y1, X2, Y2 int
	Text           string
	Confidence     float64
}
