// Package fusion owns the current Context Snapshot, the perception core's
// reconciliation stage. The teacher has no equivalent: it hands raw
// transcript/OCR text straight to the LLM prompt. This is new code built in
// the teacher's idiom — a single owner type guarded by a syncx.RWGuard,
// emitting through a channel the way transcript.MemoryStore.Emit does,
// instrumented with trace.StartSpan the way summarizeOldTranscripts is.
package fusion

import (
	"context"
	"time"

	"github.com/ctxengine/perception/internal/config"
	"github.com/ctxengine/perception/internal/ring"
	"github.com/ctxengine/perception/internal/syncx"
	"github.com/ctxengine/perception/internal/trace"
	"github.com/ctxengine/perception/pkg/model"
)

const (
	ocrHistorySize   = 20
	audioHistorySize = 20
	snapshotRingSize = 100

	// screenStaleAfter / audioStaleAfter: a modality absent longer than this
	// is treated as missing rather than merely decayed.
	screenStaleAfter = 60 * time.Second
	audioStaleAfter  = 60 * time.Second

	screenDecayFactor = 0.8
)

// state is the fusion engine's mutable core, guarded by an RWGuard.
type state struct {
	screenDigest     string
	screenKeywords   []string
	screenConfidence float64
	ocrFrameID       uint64
	ocrTimestamp     time.Time

	audioClass      model.AudioClass
	audioApp        string
	audioConfidence float64
	audioTimestamp  time.Time

	primary     model.PrimaryTag
	confidence  float64
	correlation float64
	sequence    uint64
	lastEmit    time.Time
}

// Engine recomputes a candidate Context Snapshot on every new OCR Result or
// Audio Classification and emits when the materiality test fires.
type Engine struct {
	cfg   config.Config
	dicts dictionarySet

	st *syncx.RWGuard[state]

	snapshots *ring.Ring[model.ContextSnapshot]
	ocrRing   *ring.Ring[model.OCRResult]
	audioRing *ring.Ring[model.AudioClassification]

	out chan model.ContextSnapshot
}

// New builds an Engine from the resolved configuration.
func New(cfg config.Config) *Engine {
	return &Engine{
		cfg: cfg,
		dicts: dictionarySet{
			meeting:   cfg.Dictionaries.KnownMeetingKeywords,
			editor:    cfg.Dictionaries.KnownEditorKeywords,
			reader:    cfg.Dictionaries.KnownReaderKeywords,
			stopwords: cfg.Dictionaries.Stopwords,
		},
		st:        syncx.NewGuard(state{}),
		snapshots: ring.New[model.ContextSnapshot](snapshotRingSize),
		ocrRing:   ring.New[model.OCRResult](ocrHistorySize),
		audioRing: ring.New[model.AudioClassification](audioHistorySize),
		out:       make(chan model.ContextSnapshot, 4),
	}
}

// Emissions returns the channel new snapshots are published on.
func (e *Engine) Emissions() <-chan model.ContextSnapshot {
	return e.out
}

// History returns up to n most recent snapshots.
func (e *Engine) History(n int) []model.ContextSnapshot {
	return e.snapshots.Recent(n)
}

// OnOCRResult feeds a new OCR Result into the engine and recomputes.
func (e *Engine) OnOCRResult(ctx context.Context, result model.OCRResult) {
	e.ocrRing.Add(result)

	e.st.Write(func(s *state) {
		if result.Confidence >= e.cfg.OCR.MinConfidence && result.Text != "" {
			s.screenDigest = digest(result.Text)
			s.screenKeywords = keywords(result.Text, e.dicts.stopwords)
			s.screenConfidence = model.Clamp01(result.Confidence)
		} else {
			s.screenConfidence = model.Clamp01(s.screenConfidence * screenDecayFactor)
		}
		s.ocrFrameID = result.FrameID
		s.ocrTimestamp = result.Timestamp
	})

	e.recompute(ctx)
}

// OnAudioClassification feeds a new Audio Classification into the engine
// and recomputes.
func (e *Engine) OnAudioClassification(ctx context.Context, class model.AudioClassification) {
	e.audioRing.Add(class)

	e.st.Write(func(s *state) {
		s.audioClass = class.Class
		s.audioApp = class.SourceApp
		s.audioConfidence = model.Clamp01(class.Confidence)
		s.audioTimestamp = class.Timestamp
	})

	e.recompute(ctx)
}

// Heartbeat forces a recompute check without new input, so the heartbeat
// emission rule (materiality by elapsed time) can fire on an idle pipeline.
func (e *Engine) Heartbeat(ctx context.Context) {
	e.recompute(ctx)
}

// recompute derives a candidate snapshot from current state and emits it if
// the materiality test passes.
func (e *Engine) recompute(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "fusion_emit")
	defer span.End()

	now := time.Now()

	var snap model.ContextSnapshot
	var material bool

	e.st.Write(func(s *state) {
		screenAbsent := s.ocrTimestamp.IsZero() || now.Sub(s.ocrTimestamp) > screenStaleAfter
		audioAbsent := s.audioTimestamp.IsZero() || now.Sub(s.audioTimestamp) > audioStaleAfter
		hasText := !screenAbsent && s.screenConfidence >= e.cfg.OCR.MinConfidence && s.screenDigest != ""

		var tag model.PrimaryTag
		var correlation float64
		var confidence float64

		switch {
		case screenAbsent && audioAbsent:
			tag, correlation = model.TagUnknown, 0.0
			confidence = 0
		case screenAbsent:
			tag, correlation = audioOnlyTag(s.audioClass), 1.0
			confidence = s.audioConfidence
		case audioAbsent:
			tag, correlation = screenOnlyTag(hasText, s.screenDigest, e.dicts), 1.0
			confidence = s.screenConfidence
		default:
			tag, correlation = decide(hasText, s.screenDigest, s.audioClass, e.dicts)
			confidence = model.Clamp01(0.6*s.screenConfidence+0.4*s.audioConfidence) * correlation
		}
		confidence = model.Clamp01(confidence)

		prevTag := s.primary
		prevConfidence := s.confidence
		elapsedSinceEmit := now.Sub(s.lastEmit)

		heartbeatDue := s.lastEmit.IsZero() || elapsedSinceEmit >= e.cfg.HeartbeatInterval()
		tagChanged := tag != prevTag
		confidenceMoved := absFloat(confidence-prevConfidence) >= e.cfg.Fusion.ConfidenceDelta
		material = tagChanged || confidenceMoved || heartbeatDue

		s.primary = tag
		s.confidence = confidence
		s.correlation = correlation

		if !material {
			return
		}

		seq := s.sequence + 1
		parent := s.sequence
		s.sequence = seq
		s.lastEmit = now

		screen := model.ScreenSummary{Digest: s.screenDigest, Keywords: s.screenKeywords}
		if screenAbsent {
			screen = model.ScreenSummary{}
		}
		audio := model.AudioSummary{Class: s.audioClass, App: s.audioApp}
		if audioAbsent {
			audio = model.AudioSummary{}
		}

		snap = model.ContextSnapshot{
			Timestamp:      now,
			Primary:        tag,
			Confidence:     confidence,
			Screen:         screen,
			Audio:          audio,
			Correlation:    correlation,
			Sequence:       seq,
			ParentSequence: parent,
			OCRFrameID:     s.ocrFrameID,
			OCRTimestamp:   s.ocrTimestamp,
			AudioTimestamp: s.audioTimestamp,
		}
	})

	if !material {
		return
	}

	span.SetAttr("sequence", snap.Sequence)
	span.SetAttr("primary", string(snap.Primary))
	trace.Logger(ctx).Debug("fusion snapshot emitted", "sequence", snap.Sequence, "primary", snap.Primary, "confidence", snap.Confidence)

	e.snapshots.Add(snap)
	e.emit(snap)
}

// emit is non-blocking, mirroring transcript.MemoryStore.Emit: a full
// channel drops the newest snapshot rather than stalling the fusion lane
// (the Subscription Broker reads from this channel promptly in practice;
// this buffer only absorbs momentary scheduling jitter).
func (e *Engine) emit(snap model.ContextSnapshot) {
	select {
	case e.out <- snap:
	default:
	}
}

// Shutdown emits the terminal snapshot and closes the emission channel.
func (e *Engine) Shutdown() {
	seq := e.st.Update(func(s *state) any {
		s.sequence++
		return s.sequence
	}).(uint64)

	e.emit(model.ShutdownSnapshot(seq))
	close(e.out)
}

func audioOnlyTag(class model.AudioClass) model.PrimaryTag {
	switch class {
	case model.AudioMusic:
		return model.TagMusicSession
	case model.AudioCall:
		return model.TagMeeting
	case model.AudioSilence:
		return model.TagIdle
	default:
		return model.TagUnknown
	}
}

func screenOnlyTag(hasText bool, text string, dicts dictionarySet) model.PrimaryTag {
	if !hasText {
		return model.TagUnknown
	}
	switch {
	case containsAny(text, dicts.meeting):
		return model.TagMeeting
	case containsAny(text, dicts.editor):
		return model.TagFocusedWork
	case containsAny(text, dicts.reader):
		return model.TagReading
	default:
		return model.TagUnknown
	}
}

// current returns the engine's latest computed tag, confidence, and
// correlation, independent of whether that recompute was material enough
// to emit. Used by tests to assert on computed values without racing the
// emission channel.
func (e *Engine) current() (model.PrimaryTag, float64, float64) {
	s := e.st.Get()
	return s.primary, s.confidence, s.correlation
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
