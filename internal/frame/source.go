package frame

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	appErrors "github.com/ctxengine/perception/internal/errors"
	"github.com/ctxengine/perception/internal/screen"
	"github.com/ctxengine/perception/internal/trace"
)

// Source owns one capture backend and runs the Idle -> Starting ->
// Capturing -> (Degraded|Suspended) -> Stopped lifecycle.
type Source struct {
	cap           screen.Capturer
	interval      time.Duration
	intervalMax   time.Duration
	out           chan Frame
	stopCh        chan struct{}
	startOnce     sync.Once
	stopOnce      sync.Once
	nextID        atomic.Uint64
	latestID      atomic.Uint64
	mu            sync.RWMutex
	state         State
	consecutiveFn int
}

// New builds a Frame Source around a platform capturer with the given
// cadence bounds (T_frame, T_frame_max).
func New(cap screen.Capturer, interval, intervalMax time.Duration) *Source {
	return &Source{
		cap:         cap,
		interval:    interval,
		intervalMax: intervalMax,
		out:         make(chan Frame, 2),
		stopCh:      make(chan struct{}),
		state:       Idle,
	}
}

// Frames returns the channel Frames are emitted on.
func (s *Source) Frames() <-chan Frame { return s.out }

// State returns the current lifecycle state.
func (s *Source) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Source) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// LatestFrameID returns the ID of the most recently emitted frame, or 0.
func (s *Source) LatestFrameID() uint64 {
	return s.latestID.Load()
}

// Start requests capture permission and begins the capture loop. Concurrent
// or repeated Start calls are idempotent: only the first has any effect.
func (s *Source) Start(ctx context.Context, tok PermissionToken) error {
	if !tok.Granted {
		s.setState(Suspended)
		return appErrors.New(appErrors.PermissionDenied, "screen capture permission not granted")
	}

	var startErr error
	s.startOnce.Do(func() {
		s.setState(Starting)
		s.setState(Capturing)
		go s.run(ctx)
	})
	return startErr
}

// Stop halts the capture loop and releases the backend. Idempotent.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.cap.Close()
		s.setState(Stopped)
	})
}

func (s *Source) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	lastEmit := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.State() == Suspended || s.State() == Stopped {
				continue
			}
			s.tick(ctx, &lastEmit, ticker)
		}
	}
}

func (s *Source) tick(ctx context.Context, lastEmit *time.Time, ticker *time.Ticker) {
	_, span := trace.StartSpan(ctx, "frame_capture")
	defer span.End()
	log := trace.Logger(ctx)

	heartbeatDue := !lastEmit.IsZero() && time.Since(*lastEmit) >= s.intervalMax

	var data []byte
	var changed bool
	var err error
	if heartbeatDue {
		data, err = s.cap.CaptureAlways()
		changed = data != nil
	} else {
		data, changed, err = s.cap.Capture()
	}

	if err != nil {
		s.onFailure(log, ticker)
		return
	}
	s.onSuccess(ticker)

	if !changed || data == nil {
		return
	}

	id := s.nextID.Add(1)
	frame := Frame{ID: id, Data: data, Timestamp: time.Now()}
	s.latestID.Store(id)
	*lastEmit = frame.Timestamp

	select {
	case s.out <- frame:
	default:
		// Channel full: the oldest undelivered frame ages out; drop it in
		// favor of the newer one so memory stays bounded.
		select {
		case <-s.out:
		default:
		}
		select {
		case s.out <- frame:
		default:
		}
	}
}

func (s *Source) onFailure(log interface{ Warn(string, ...any) }, ticker *time.Ticker) {
	s.mu.Lock()
	s.consecutiveFn++
	n := s.consecutiveFn
	s.mu.Unlock()

	log.Warn("frame capture failed", "consecutive_failures", n)

	if n >= consecutiveFailureLimit && s.State() != Degraded {
		s.setState(Degraded)
		s.applyDegradedCadence(ticker)
	}
}

func (s *Source) onSuccess(ticker *time.Ticker) {
	s.mu.Lock()
	hadFailures := s.consecutiveFn > 0
	s.consecutiveFn = 0
	s.mu.Unlock()

	if s.State() == Degraded {
		s.setState(Capturing)
		ticker.Reset(s.interval)
	} else if hadFailures {
		// Single transient failure recovered without tripping Degraded.
	}
}

// applyDegradedCadence halves the capture cadence and jitters it by +-10%,
// matching the teacher's backoffDelay jitter shape.
func (s *Source) applyDegradedCadence(ticker *time.Ticker) {
	half := s.interval / 2
	jitter := float64(half) * 0.1 * (rand.Float64()*2 - 1)
	ticker.Reset(half + time.Duration(jitter))
}

// Suspend transitions the source to Suspended, e.g. on permission revocation.
// No frames are emitted until Start is called again (a fresh Source; a
// revoked OS permission cannot be re-granted on the same handle).
func (s *Source) Suspend() {
	s.setState(Suspended)
}
