package scheduler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/ctxengine/perception/internal/audioprobe"
	"github.com/ctxengine/perception/internal/config"
	"github.com/ctxengine/perception/internal/frame"
	"github.com/ctxengine/perception/internal/fusion"
	"github.com/ctxengine/perception/internal/ocr"
	"github.com/ctxengine/perception/internal/resilience"
)

type fakeCapturer struct{ data []byte }

func (f *fakeCapturer) Capture() ([]byte, bool, error)  { return f.data, true, nil }
func (f *fakeCapturer) CaptureAlways() ([]byte, error)  { return f.data, nil }
func (f *fakeCapturer) Close()                          {}

type fakeOCREngine struct{ text string }

func (e *fakeOCREngine) Initialize(ctx context.Context, language string) error { return nil }
func (e *fakeOCREngine) Recognize(ctx context.Context, img image.Image) (ocr.Result, error) {
	return ocr.Result{Text: e.text, Confidence: 0.9}, nil
}
func (e *fakeOCREngine) Terminate() error { return nil }

func solidPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: 100, B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func testConfig() config.Config {
	return config.Config{
		Frame:      config.Frame{IntervalMS: 10, IntervalMaxMS: 50},
		Audio:      config.Audio{IntervalMS: 10},
		Preprocess: config.Preprocess{Contrast: 1.5, AdaptiveBlock: 15, AdaptiveOffset: 10},
		OCR:        config.OCR{MinConfidence: 0.3},
		Fusion:     config.Fusion{HeartbeatMS: 20, ConfidenceDelta: 0.15},
	}
}

func newTestScheduler(t *testing.T, ocrText string) (*Scheduler, *fusion.Engine) {
	t.Helper()
	cfg := testConfig()
	src := frame.New(&fakeCapturer{data: solidPNG()}, cfg.FrameInterval(), cfg.FrameIntervalMax())
	prober := audioprobe.New(nil)
	wrap := ocr.NewWrapper(context.Background(), &fakeOCREngine{text: ocrText}, "eng", resilience.DefaultConfig())
	engine := fusion.New(cfg)
	return New(cfg, src, prober, wrap, engine), engine
}

func TestRunLaunchesLanesAndProducesFrameCounts(t *testing.T) {
	sched, engine := newTestScheduler(t, "import os\nfunction main() {}")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Run(ctx, frame.PermissionToken{Granted: true}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer sched.Shutdown()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sched.Counters().FramesCaptured > 0 && sched.Counters().OCRSuccesses > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	counters := sched.Counters()
	if counters.FramesCaptured == 0 {
		t.Error("expected at least one captured frame")
	}
	if counters.OCRSuccesses == 0 {
		t.Error("expected at least one OCR success")
	}
	if counters.AverageConfidence() <= 0 {
		t.Error("expected a positive average confidence")
	}

	_ = engine
}

func TestShutdownStopsAllLanesAndClosesEmissions(t *testing.T) {
	sched, engine := newTestScheduler(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = sched.Run(ctx, frame.PermissionToken{Granted: true})
	time.Sleep(20 * time.Millisecond)
	sched.Shutdown()

	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-engine.Emissions():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("emissions channel never closed after shutdown")
		}
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	sched, _ := newTestScheduler(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = sched.Run(ctx, frame.PermissionToken{Granted: true})
	sched.Shutdown()
	sched.Shutdown()
}
