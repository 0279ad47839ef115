// Package audioclassify maps raw Audio Probes into categorical
// classifications, the way the teacher's audio.Processor maps raw chunks
// into speech segments via VAD.
package audioclassify

import (
	"strings"
	"sync"
	"time"

	"github.com/ctxengine/perception/internal/config"
	"github.com/ctxengine/perception/pkg/model"
)

const (
	windowSize        = 5
	windowBoost       = 0.05
	staleWindowMaxAge = 5 * time.Minute
)

// channelWindow is the trailing classification history for one audio
// channel, mirroring the shape of the teacher's per-device vadState.
type channelWindow struct {
	classes  []model.AudioClass
	lastSeen time.Time
}

// Classifier evaluates the Audio Classifier rule table and maintains a
// short trailing window per channel for the same-class confidence boost.
type Classifier struct {
	mediaApps []string
	callApps  []string

	mu      sync.Mutex
	windows map[string]*channelWindow
}

// New builds a Classifier from the configurable known-app dictionaries.
func New(dicts config.Dictionaries) *Classifier {
	return &Classifier{
		mediaApps: dicts.KnownMediaApps,
		callApps:  dicts.KnownCallApps,
		windows:   make(map[string]*channelWindow),
	}
}

// Classify evaluates a probe on the default ("system") channel.
func (c *Classifier) Classify(probe model.AudioProbe) model.AudioClassification {
	return c.ClassifyChannel("system", probe)
}

// ClassifyChannel evaluates a probe on a named channel, applying the
// trailing-window confidence boost for that channel's own history.
func (c *Classifier) ClassifyChannel(channel string, probe model.AudioProbe) model.AudioClassification {
	class, confidence, detail := evaluate(probe, c.mediaApps, c.callApps)
	confidence = c.applyWindowBoost(channel, class, confidence)

	return model.AudioClassification{
		Class:      class,
		Confidence: confidence,
		SourceApp:  probe.AppName,
		Detail:     detail,
		Timestamp:  probe.Timestamp,
	}
}

func (c *Classifier) applyWindowBoost(channel string, class model.AudioClass, confidence float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[channel]
	if !ok {
		w = &channelWindow{}
		c.windows[channel] = w
	}
	w.lastSeen = time.Now()
	w.classes = append(w.classes, class)
	if len(w.classes) > windowSize {
		w.classes = w.classes[len(w.classes)-windowSize:]
	}
	if len(w.classes) == windowSize && allSameClass(w.classes) {
		confidence = model.Clamp01(confidence + windowBoost)
	}
	return confidence
}

// CleanupStale drops channel windows that have not been fed a probe
// recently, the way the teacher's Processor.CleanupStale prunes vadState.
func (c *Classifier) CleanupStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	threshold := time.Now().Add(-staleWindowMaxAge)
	for key, w := range c.windows {
		if w.lastSeen.Before(threshold) {
			delete(c.windows, key)
		}
	}
}

func allSameClass(classes []model.AudioClass) bool {
	first := classes[0]
	for _, c := range classes[1:] {
		if c != first {
			return false
		}
	}
	return true
}

// evaluate applies the priority-ordered rule table, short-circuiting on
// first match.
func evaluate(probe model.AudioProbe, mediaApps, callApps []string) (model.AudioClass, float64, map[string]string) {
	detail := map[string]string{}
	if probe.AppName != "" {
		detail["app"] = probe.AppName
	}
	if probe.MediaTitle != "" {
		detail["title"] = probe.MediaTitle
	}

	hasMediaMetadata := strings.TrimSpace(probe.MediaTitle) != ""
	if hasMediaMetadata {
		return model.AudioMusic, 0.95, detail
	}

	if matchesAny(probe.AppName, mediaApps) || devicesMatchAny(probe.Devices, mediaApps) {
		if probe.Volume > 10 {
			return model.AudioMusic, 0.90, detail
		}
	}

	if strings.EqualFold(probe.CategoryHint, "call") ||
		matchesAny(probe.AppName, callApps) || devicesMatchAny(probe.Devices, callApps) {
		return model.AudioCall, 0.90, detail
	}

	if probe.Volume > 50 {
		return model.AudioMusic, 0.80, detail
	}

	if probe.Volume > 10 {
		return model.AudioAmbient, 0.70, detail
	}

	if probe.Volume <= 10 && len(probe.Devices) == 0 {
		return model.AudioSilence, 0.90, detail
	}

	return model.AudioUnknown, 0.40, detail
}

// matchesAny reports whether name contains any keyword, case insensitive,
// in the teacher's containsIgnoreCase style.
func matchesAny(name string, keywords []string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// devicesMatchAny reports whether any device name in devices matches one
// of keywords.
func devicesMatchAny(devices []string, keywords []string) bool {
	for _, d := range devices {
		if matchesAny(d, keywords) {
			return true
		}
	}
	return false
}
