package ocr

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"

	appErrors "github.com/ctxengine/perception/internal/errors"
	"github.com/ctxengine/perception/internal/resilience"
	"github.com/ctxengine/perception/internal/trace"
	"github.com/ctxengine/perception/pkg/model"
)

// Wrapper adapts an Engine to the core's OCRResult shape, wrapping every
// recognize call in a circuit breaker and jittered retry exactly the way
// grpcclient.Client.withBreaker wraps every RPC.
type Wrapper struct {
	engine   Engine
	breaker  *resilience.Breaker
	retryCfg resilience.RetryConfig
	disabled atomic.Bool
	initErr  error
}

// NewWrapper initializes the engine. Initialization failure is fatal to
// this component (OCRInitFatal): the wrapper stays permanently disabled
// and every subsequent Recognize returns an empty, zero-confidence result.
func NewWrapper(ctx context.Context, engine Engine, language string, breakerCfg resilience.Config) *Wrapper {
	w := &Wrapper{
		engine:   engine,
		breaker:  resilience.New(breakerCfg),
		retryCfg: ocrRetryConfig(),
	}
	if err := engine.Initialize(ctx, language); err != nil {
		w.disabled.Store(true)
		w.initErr = appErrors.Wrap(err, appErrors.OCRInitFatal, "ocr engine failed to initialize")
	}
	return w
}

func ocrRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.IsRetryable = func(err error) bool {
		return !errors.Is(err, resilience.ErrOpen) && !errors.Is(err, resilience.ErrHalfOpen)
	}
	return cfg
}

// Disabled reports whether initialization failed; the OCR lane is off for
// the process lifetime once this is true.
func (w *Wrapper) Disabled() bool { return w.disabled.Load() }

// InitError returns the fatal initialization error, if any.
func (w *Wrapper) InitError() error { return w.initErr }

// Recognize runs one frame through the engine. Per-frame failures are
// non-fatal: an empty OCRResult with confidence 0 is returned and counted.
func (w *Wrapper) Recognize(ctx context.Context, frameID uint64, img image.Image) model.OCRResult {
	now := time.Now()
	if w.Disabled() {
		return model.OCRResult{FrameID: frameID, Timestamp: now}
	}

	ctx, span := trace.StartSpan(ctx, "ocr_recognize")
	defer span.End()
	span.SetAttr("frame_id", frameID)

	start := time.Now()
	var result Result
	err := resilience.Retry(ctx, w.retryCfg, func() error {
		return w.breaker.Execute(func() error {
			r, rerr := w.engine.Recognize(ctx, img)
			if rerr != nil {
				return rerr
			}
			result = r
			return nil
		})
	})
	duration := time.Since(start)

	if err != nil {
		span.SetAttr("error", err.Error())
		trace.Logger(ctx).Debug("ocr recognize failed", "frame_id", frameID, "error", err)
		return model.OCRResult{FrameID: frameID, Timestamp: now, Duration: duration}
	}

	cleaned := Clean(result.Text)
	regions := make([]model.Region, 0, len(result.Regions))
	lineConf := make([]float64, 0, len(result.Regions))
	for _, r := range result.Regions {
		c := model.Clamp01(r.Confidence)
		regions = append(regions, model.Region{
			X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2,
			Text: Clean(r.Text), Confidence: c,
		})
		lineConf = append(lineConf, c)
	}

	return model.OCRResult{
		FrameID:    frameID,
		Text:       cleaned,
		LineConf:   lineConf,
		Confidence: model.Clamp01(result.Confidence),
		Regions:    regions,
		Duration:   duration,
		Timestamp:  now,
	}
}

// Terminate releases the underlying engine.
func (w *Wrapper) Terminate() error {
	return w.engine.Terminate()
}
