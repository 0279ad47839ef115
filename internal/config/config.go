// Package config loads and validates perception-core configuration.
//
// Layering follows the teacher's env-first philosophy but promotes it to
// koanf: built-in defaults, an optional TOML file, then environment
// variables — each layer overriding the last, per koanf's documented
// load-order semantics.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Frame holds Frame Source cadence settings (component A).
type Frame struct {
	IntervalMS    int
	IntervalMaxMS int
}

// Audio holds Audio Probe cadence and device settings (component B).
type Audio struct {
	IntervalMS         int
	SampleRate         int
	CaptureSystemAudio bool
	ExcludedDevices    []string
}

// Preprocess holds Image Preprocessor tunables (component C).
type Preprocess struct {
	Contrast       float64
	AdaptiveBlock  int
	AdaptiveOffset int
}

// OCR holds OCR Engine Wrapper settings (component D).
type OCR struct {
	Language      string
	MinConfidence float64
	Endpoint      string // HTTP collaborator endpoint; empty disables OCR
}

// Fusion holds Context Fusion Engine tunables (component F).
type Fusion struct {
	HeartbeatMS     int
	ConfidenceDelta float64
}

// Broker holds Subscription Broker settings (component G).
type Broker struct {
	HistorySize   int
	DefaultPolicy string
}

// Dictionaries holds the configurable keyword/app enumerations consumed by
// the Audio Classifier and the Fusion Engine's decision table.
type Dictionaries struct {
	KnownMediaApps       []string
	KnownCallApps        []string
	KnownEditorKeywords  []string
	KnownMeetingKeywords []string
	KnownReaderKeywords  []string
	Stopwords            []string
}

// Transport holds the optional relay/health facade addresses.
type Transport struct {
	WSAddr         string
	GRPCHealthAddr string
}

// Config is the fully resolved configuration for one process.
type Config struct {
	Frame        Frame
	Audio        Audio
	Preprocess   Preprocess
	OCR          OCR
	Fusion       Fusion
	Broker       Broker
	Dictionaries Dictionaries
	Transport    Transport
}

// FrameInterval returns the nominal frame cadence.
func (c Config) FrameInterval() time.Duration {
	return time.Duration(c.Frame.IntervalMS) * time.Millisecond
}

// FrameIntervalMax returns the idle heartbeat cadence for frame capture.
func (c Config) FrameIntervalMax() time.Duration {
	return time.Duration(c.Frame.IntervalMaxMS) * time.Millisecond
}

// AudioInterval returns the audio poll cadence.
func (c Config) AudioInterval() time.Duration {
	return time.Duration(c.Audio.IntervalMS) * time.Millisecond
}

// HeartbeatInterval returns the fusion heartbeat cadence.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Fusion.HeartbeatMS) * time.Millisecond
}

func defaults() map[string]any {
	return map[string]any{
		"frame.interval_ms":     5000,
		"frame.interval_max_ms": 15000,

		"audio.interval_ms":          3000,
		"audio.sample_rate":          16000,
		"audio.capture_system_audio": true,
		"audio.excluded_devices":     []string{},

		"preprocess.contrast":        1.5,
		"preprocess.adaptive_block":  15,
		"preprocess.adaptive_offset": 10,

		"ocr.language":       "eng",
		"ocr.min_confidence": 0.3,
		"ocr.endpoint":       "",

		"fusion.heartbeat_ms":     30000,
		"fusion.confidence_delta": 0.15,

		"broker.history_size":   100,
		"broker.default_policy": "coalesce_latest",

		"known.media_apps":       []string{"spotify", "music", "itunes", "apple music", "vlc", "qq music", "netease"},
		"known.call_apps":        []string{"zoom", "teams", "meet", "facetime", "skype", "webex"},
		"known.editor_keywords":  []string{"function", "import", "package", "class", "def ", ">>>", "const ", "return "},
		"known.meeting_keywords": []string{"mute", "unmute", "leave meeting", "participants", "share screen"},
		"known.reader_keywords":  []string{"chapter", "page ", "table of contents", "abstract"},
		"stopwords":              []string{"the", "a", "an", "and", "or", "of", "to", "in", "is", "it", "for", "on", "with", "as", "at", "by"},

		"transport.ws_addr":          ":8010",
		"transport.grpc_health_addr": ":8011",
	}
}

// Load builds a Config from built-in defaults, an optional TOML file named
// by CTX_CONFIG_FILE, and environment variables prefixed CTX_ (double
// underscore separates nesting, e.g. CTX_FRAME__INTERVAL_MS=4000).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := os.Getenv("CTX_CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("CTX_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "CTX_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := &Config{
		Frame: Frame{
			IntervalMS:    k.Int("frame.interval_ms"),
			IntervalMaxMS: k.Int("frame.interval_max_ms"),
		},
		Audio: Audio{
			IntervalMS:         k.Int("audio.interval_ms"),
			SampleRate:         k.Int("audio.sample_rate"),
			CaptureSystemAudio: k.Bool("audio.capture_system_audio"),
			ExcludedDevices:    k.Strings("audio.excluded_devices"),
		},
		Preprocess: Preprocess{
			Contrast:       k.Float64("preprocess.contrast"),
			AdaptiveBlock:  k.Int("preprocess.adaptive_block"),
			AdaptiveOffset: k.Int("preprocess.adaptive_offset"),
		},
		OCR: OCR{
			Language:      k.String("ocr.language"),
			MinConfidence: k.Float64("ocr.min_confidence"),
			Endpoint:      k.String("ocr.endpoint"),
		},
		Fusion: Fusion{
			HeartbeatMS:     k.Int("fusion.heartbeat_ms"),
			ConfidenceDelta: k.Float64("fusion.confidence_delta"),
		},
		Broker: Broker{
			HistorySize:   k.Int("broker.history_size"),
			DefaultPolicy: k.String("broker.default_policy"),
		},
		Dictionaries: Dictionaries{
			KnownMediaApps:       k.Strings("known.media_apps"),
			KnownCallApps:        k.Strings("known.call_apps"),
			KnownEditorKeywords:  k.Strings("known.editor_keywords"),
			KnownMeetingKeywords: k.Strings("known.meeting_keywords"),
			KnownReaderKeywords:  k.Strings("known.reader_keywords"),
			Stopwords:            k.Strings("stopwords"),
		},
		Transport: Transport{
			WSAddr:         k.String("transport.ws_addr"),
			GRPCHealthAddr: k.String("transport.grpc_health_addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration combinations the core cannot run with.
func (c *Config) Validate() error {
	if c.Frame.IntervalMS <= 0 || c.Frame.IntervalMaxMS <= 0 {
		return fmt.Errorf("config: frame intervals must be positive")
	}
	if c.Frame.IntervalMaxMS < c.Frame.IntervalMS {
		return fmt.Errorf("config: frame.interval_max_ms must be >= frame.interval_ms")
	}
	if c.Audio.IntervalMS <= 0 {
		return fmt.Errorf("config: audio.interval_ms must be positive")
	}
	if c.Preprocess.Contrast < 1.2 || c.Preprocess.Contrast > 1.8 {
		return fmt.Errorf("config: preprocess.contrast must be in [1.2, 1.8]")
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		return fmt.Errorf("config: ocr.min_confidence must be in [0,1]")
	}
	if c.Fusion.ConfidenceDelta < 0 || c.Fusion.ConfidenceDelta > 1 {
		return fmt.Errorf("config: fusion.confidence_delta must be in [0,1]")
	}
	switch c.Broker.DefaultPolicy {
	case "drop_oldest", "coalesce_latest", "block_up_to_T":
	default:
		return fmt.Errorf("config: broker.default_policy %q is not a recognized policy", c.Broker.DefaultPolicy)
	}
	return nil
}
