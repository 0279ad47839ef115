// Package model holds the data types shared across the perception pipeline:
// the value objects that flow from capture through fusion to the subscription
// broker. None of these types carry behavior beyond small helpers; ownership
// and lifecycle rules live in the packages that produce and consume them.
package model

import "time"

// AudioClass is the categorical class assigned to an AudioClassification.
type AudioClass string

const (
	AudioMusic   AudioClass = "music"
	AudioSpeech  AudioClass = "speech"
	AudioCall    AudioClass = "call"
	AudioAmbient AudioClass = "ambient"
	AudioSilence AudioClass = "silence"
	AudioUnknown AudioClass = "unknown"
)

// PrimaryTag is the Context Snapshot's headline classification.
type PrimaryTag string

const (
	TagFocusedWork  PrimaryTag = "focused_work"
	TagMeeting      PrimaryTag = "meeting"
	TagMusicSession PrimaryTag = "music_session"
	TagReading      PrimaryTag = "reading"
	TagIdle         PrimaryTag = "idle"
	TagUnknown      PrimaryTag = "unknown"
)

// BackpressurePolicy governs how a subscriber handles undeliverable snapshots.
type BackpressurePolicy string

const (
	DropOldest    BackpressurePolicy = "drop_oldest"
	CoalesceLatest BackpressurePolicy = "coalesce_latest"
	BlockUpToT    BackpressurePolicy = "block_up_to_T"
)

// Region is an optional detected textual region with its own confidence.
type Region struct {
	X1, Y1, X2, Y2 int
	Text           string
	Confidence     float64
}

// OCRResult is derived from a single Frame. Immutable once produced.
type OCRResult struct {
	FrameID    uint64
	Text       string
	LineConf   []float64
	Confidence float64
	Regions    []Region
	Duration   time.Duration
	Timestamp  time.Time
}

// AudioProbe is one raw OS reading.
type AudioProbe struct {
	Timestamp   time.Time
	Volume      int // 0-100
	AppName     string
	MediaTitle  string
	CategoryHint string
	Devices     []string
	Incomplete  bool
}

// AudioClassification is derived from one or more Probes.
type AudioClassification struct {
	Class      AudioClass
	Confidence float64
	SourceApp  string
	Detail     map[string]string
	Timestamp  time.Time
}

// ScreenSummary is the fusion engine's digest of recent OCR text.
type ScreenSummary struct {
	Digest   string
	Keywords []string
}

// AudioSummary is the fusion engine's digest of the latest audio classification.
type AudioSummary struct {
	Class AudioClass
	App   string
}

// ContextSnapshot is the central, immutable product of the Fusion Engine.
type ContextSnapshot struct {
	Timestamp      time.Time
	Primary        PrimaryTag
	Confidence     float64
	Screen         ScreenSummary
	Audio          AudioSummary
	Correlation    float64
	Sequence       uint64
	ParentSequence uint64

	// OCRFrameID / OCRTimestamp / AudioTimestamp reference the source facts
	// this snapshot was derived from; zero means "none available at this time".
	OCRFrameID         uint64
	OCRTimestamp       time.Time
	AudioTimestamp     time.Time
}

// NoDataSentinel is returned by Latest() before any snapshot has been emitted.
func NoDataSentinel() ContextSnapshot {
	return ContextSnapshot{Primary: TagUnknown, Confidence: 0}
}

// IsTerminal reports whether this snapshot is the shutdown marker emitted as
// the final delivery to every subscriber.
func (s ContextSnapshot) IsTerminal() bool {
	return s.Screen.Digest == shutdownMarker
}

const shutdownMarker = "__shutdown__"

// ShutdownSnapshot builds the terminal snapshot delivered to subscribers on
// cooperative shutdown.
func ShutdownSnapshot(seq uint64) ContextSnapshot {
	parent := seq
	if seq > 0 {
		parent = seq - 1
	}
	return ContextSnapshot{
		Timestamp:      time.Now(),
		Primary:        TagUnknown,
		Confidence:     0,
		Screen:         ScreenSummary{Digest: shutdownMarker},
		Sequence:       seq,
		ParentSequence: parent,
	}
}

// Clamp01 clamps a confidence-like value into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
