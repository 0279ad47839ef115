// Package scheduler owns the pipeline's cadences and lane lifecycle. It
// launches one goroutine per lane off a single stop channel, the shape of
// the teacher's Manager.Start (audioLoop, screenProc.Run, vadCleanupLoop,
// summarizationLoop all spun up independently and torn down together in
// Manager.Stop), and jitters the frame lane's degraded cadence the way
// resilience.backoffDelay jitters retry backoff.
package scheduler

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/ctxengine/perception/internal/audioclassify"
	"github.com/ctxengine/perception/internal/audioprobe"
	"github.com/ctxengine/perception/internal/config"
	"github.com/ctxengine/perception/internal/frame"
	"github.com/ctxengine/perception/internal/fusion"
	"github.com/ctxengine/perception/internal/ocr"
	"github.com/ctxengine/perception/internal/preprocess"
	"github.com/ctxengine/perception/internal/transport/health"
	"github.com/ctxengine/perception/internal/trace"
)

// audioChannel names the single system-audio channel fed into the
// classifier's per-channel trailing window. The pipeline has exactly one
// audio source today; the classifier's map keeps room for more.
const audioChannel = "system"

// Counters exposes running totals a health/metrics facade can read. All
// fields are updated with atomic-free plain increments guarded by the
// Scheduler's own mutex, mirroring the teacher's habit of keeping simple
// counters next to the loops that produce them rather than introducing a
// separate metrics type.
type Counters struct {
	FramesCaptured  uint64
	OCRSuccesses    uint64
	OCRFailures     uint64
	AudioPolls      uint64
	ConfidenceTotal float64
}

// AverageConfidence returns the mean OCR confidence across successful
// recognitions, or 0 if none have occurred yet.
func (c Counters) AverageConfidence() float64 {
	if c.OCRSuccesses == 0 {
		return 0
	}
	return c.ConfidenceTotal / float64(c.OCRSuccesses)
}

// Scheduler wires the Frame Source, Audio Probe, Image Preprocessor, OCR
// Wrapper, Audio Classifier, and Fusion Engine into one cooperative loop per
// lane, all cancelable together.
type Scheduler struct {
	cfg config.Config

	frameSrc   *frame.Source
	prober     *audioprobe.Prober
	classifier *audioclassify.Classifier
	ocrWrap    *ocr.Wrapper
	engine     *fusion.Engine
	health     *health.Reporter

	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu       sync.Mutex
	counters Counters

	// inFlight guards against overlapping OCR recognitions: at most one
	// frame is being recognized at a time, so a slow collaborator call
	// never piles up work faster than frames arrive.
	inFlight sync.Mutex
}

// New builds a Scheduler around an already-constructed Frame Source and the
// collaborators it drives every cadence tick.
func New(cfg config.Config, frameSrc *frame.Source, prober *audioprobe.Prober, ocrWrap *ocr.Wrapper, engine *fusion.Engine) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		frameSrc:   frameSrc,
		prober:     prober,
		classifier: audioclassify.New(cfg.Dictionaries),
		ocrWrap:    ocrWrap,
		engine:     engine,
		stopCh:     make(chan struct{}),
	}
}

// SetHealthReporter attaches a Reporter the Scheduler keeps in sync with
// per-lane state once Run starts. Optional: a nil reporter disables the
// health lane entirely.
func (s *Scheduler) SetHealthReporter(r *health.Reporter) {
	s.health = r
}

// Run requests screen-capture permission, starts the Frame Source, and
// launches the frame, audio, cleanup, and heartbeat lanes. It returns once
// every lane goroutine has been launched; lanes keep running until Shutdown
// or ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, tok frame.PermissionToken) error {
	log := trace.Logger(ctx)

	if err := s.frameSrc.Start(ctx, tok); err != nil {
		log.Warn("frame source start failed, continuing audio-only", "error", err)
	}

	lanes := 4
	if s.health != nil {
		lanes = 5
	}
	s.wg.Add(lanes)
	go s.frameLoop(ctx)
	go s.audioLoop(ctx)
	go s.cleanupLoop(ctx)
	go s.heartbeatLoop(ctx)
	if s.health != nil {
		go s.healthLoop(ctx)
	}

	return nil
}

// frameLoop consumes captured frames, decodes and preprocesses each, and
// hands it to the OCR Wrapper, feeding every result into the Fusion Engine.
func (s *Scheduler) frameLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case f, ok := <-s.frameSrc.Frames():
			if !ok {
				return
			}
			s.bumpFramesCaptured()
			s.recognizeFrame(ctx, f)
		}
	}
}

// recognizeFrame decodes and preprocesses one frame, then recognizes it.
// inFlight ensures at most one recognition runs at a time. frameLoop calls
// this synchronously, so a frame that arrives mid-recognition waits in
// frame.Source's output channel, which drops the oldest undelivered frame
// under backpressure, favoring freshness over completeness.
func (s *Scheduler) recognizeFrame(ctx context.Context, f frame.Frame) {
	if !s.inFlight.TryLock() {
		return
	}
	defer s.inFlight.Unlock()

	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		trace.Logger(ctx).Debug("frame decode failed", "frame_id", f.ID, "error", err)
		s.bumpOCRFailure()
		return
	}

	gray := preprocess.Process(img, preprocess.Options{
		Contrast:       s.cfg.Preprocess.Contrast,
		AdaptiveBlock:  s.cfg.Preprocess.AdaptiveBlock,
		AdaptiveOffset: s.cfg.Preprocess.AdaptiveOffset,
	})

	result := s.ocrWrap.Recognize(ctx, f.ID, gray)
	if result.Text == "" && result.Confidence == 0 {
		s.bumpOCRFailure()
	} else {
		s.bumpOCRSuccess(result.Confidence)
	}

	s.engine.OnOCRResult(ctx, result)
}

// audioLoop polls the Audio Probe on its own cadence, classifies each
// reading, and feeds the classification into the Fusion Engine.
func (s *Scheduler) audioLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.AudioInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			probe := s.prober.Poll(ctx)
			s.bumpAudioPoll()
			class := s.classifier.ClassifyChannel(audioChannel, probe)
			s.engine.OnAudioClassification(ctx, class)
		}
	}
}

// cleanupLoop periodically evicts the classifier's stale per-channel
// trailing windows, mirroring the teacher's vadCleanupLoop ticking
// audioProc.CleanupStale on its own interval independent of the audio lane.
func (s *Scheduler) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.classifier.CleanupStale()
		}
	}
}

// heartbeatLoop forces a Fusion Engine recompute on the configured cadence
// so an idle pipeline still emits a heartbeat snapshot, mirroring the
// teacher's summarizationLoop ticking independent of transcript arrival.
func (s *Scheduler) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()
	interval := s.cfg.HeartbeatInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.engine.Heartbeat(ctx)
		}
	}
}

// healthLoop reflects the Frame Source's lifecycle state and the OCR
// Wrapper's disabled flag onto the attached Reporter, so a degraded or
// suspended lane shows NOT_SERVING to anything polling the health facade.
func (s *Scheduler) healthLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			frameServing := s.frameSrc.State() == frame.Capturing
			s.health.SetServing(health.LaneFrame, frameServing)
			s.health.SetServing(health.LaneAudio, true)
			s.health.SetServing(health.LaneOCR, !s.ocrWrap.Disabled())
		}
	}
}

// Shutdown stops every lane, the Frame Source and Audio Probe, and unwinds
// within one cadence interval: every select above races stopCh against its
// own ticker, so no lane outlives this call by more than a tick.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.frameSrc.Stop()
		s.prober.Close()
		s.wg.Wait()
		s.engine.Shutdown()
	})
}

// Counters returns a snapshot of the running lane counters.
func (s *Scheduler) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

func (s *Scheduler) bumpFramesCaptured() {
	s.mu.Lock()
	s.counters.FramesCaptured++
	s.mu.Unlock()
}

func (s *Scheduler) bumpOCRSuccess(confidence float64) {
	s.mu.Lock()
	s.counters.OCRSuccesses++
	s.counters.ConfidenceTotal += confidence
	s.mu.Unlock()
}

func (s *Scheduler) bumpOCRFailure() {
	s.mu.Lock()
	s.counters.OCRFailures++
	s.mu.Unlock()
}

func (s *Scheduler) bumpAudioPoll() {
	s.mu.Lock()
	s.counters.AudioPolls++
	s.mu.Unlock()
}

// cleanupInterval matches the teacher's VADCleanupInterval cadence: stale
// per-channel windows are swept far less often than the audio poll itself.
const cleanupInterval = 30 * time.Second

// healthCheckInterval governs how often lane state is reflected onto the
// attached health.Reporter.
const healthCheckInterval = 5 * time.Second
