package audioclassify

import (
	"testing"
	"time"

	"github.com/ctxengine/perception/internal/config"
	"github.com/ctxengine/perception/pkg/model"
)

func testDicts() config.Dictionaries {
	return config.Dictionaries{
		KnownMediaApps: []string{"spotify", "music"},
		KnownCallApps:  []string{"zoom", "teams"},
	}
}

func TestEvaluateMediaMetadataWins(t *testing.T) {
	probe := model.AudioProbe{Volume: 5, MediaTitle: "Some Song"}
	class, conf, _ := evaluate(probe, testDicts().KnownMediaApps, testDicts().KnownCallApps)
	if class != model.AudioMusic || conf != 0.95 {
		t.Errorf("evaluate() = %v/%v, want music/0.95", class, conf)
	}
}

func TestEvaluateKnownMediaAppWithVolume(t *testing.T) {
	probe := model.AudioProbe{Volume: 40, AppName: "Spotify"}
	class, conf, _ := evaluate(probe, testDicts().KnownMediaApps, testDicts().KnownCallApps)
	if class != model.AudioMusic || conf != 0.90 {
		t.Errorf("evaluate() = %v/%v, want music/0.90", class, conf)
	}
}

func TestEvaluateCallHint(t *testing.T) {
	probe := model.AudioProbe{Volume: 30, CategoryHint: "call"}
	class, conf, _ := evaluate(probe, testDicts().KnownMediaApps, testDicts().KnownCallApps)
	if class != model.AudioCall || conf != 0.90 {
		t.Errorf("evaluate() = %v/%v, want call/0.90", class, conf)
	}
}

func TestEvaluateCallApp(t *testing.T) {
	probe := model.AudioProbe{Volume: 20, AppName: "Zoom Meeting"}
	class, conf, _ := evaluate(probe, testDicts().KnownMediaApps, testDicts().KnownCallApps)
	if class != model.AudioCall || conf != 0.90 {
		t.Errorf("evaluate() = %v/%v, want call/0.90", class, conf)
	}
}

func TestEvaluateLoudVolumeNoMetadata(t *testing.T) {
	probe := model.AudioProbe{Volume: 60}
	class, conf, _ := evaluate(probe, nil, nil)
	if class != model.AudioMusic || conf != 0.80 {
		t.Errorf("evaluate() = %v/%v, want music/0.80", class, conf)
	}
}

func TestEvaluateModerateVolumeIsAmbient(t *testing.T) {
	probe := model.AudioProbe{Volume: 30}
	class, conf, _ := evaluate(probe, nil, nil)
	if class != model.AudioAmbient || conf != 0.70 {
		t.Errorf("evaluate() = %v/%v, want ambient/0.70", class, conf)
	}
}

func TestEvaluateQuietNoDevicesIsSilence(t *testing.T) {
	probe := model.AudioProbe{Volume: 2}
	class, conf, _ := evaluate(probe, nil, nil)
	if class != model.AudioSilence || conf != 0.90 {
		t.Errorf("evaluate() = %v/%v, want silence/0.90", class, conf)
	}
}

func TestEvaluateQuietWithDeviceIsUnknown(t *testing.T) {
	probe := model.AudioProbe{Volume: 2, Devices: []string{"Some Input"}}
	class, conf, _ := evaluate(probe, nil, nil)
	if class != model.AudioUnknown || conf != 0.40 {
		t.Errorf("evaluate() = %v/%v, want unknown/0.40", class, conf)
	}
}

func TestClassifyAppliesTrailingWindowBoost(t *testing.T) {
	c := New(testDicts())
	probe := model.AudioProbe{Volume: 60, Timestamp: time.Now()}

	var last model.AudioClassification
	for i := 0; i < windowSize; i++ {
		last = c.Classify(probe)
	}
	if last.Confidence <= 0.80 {
		t.Errorf("expected confidence boosted above base 0.80 after %d identical classes, got %v", windowSize, last.Confidence)
	}
	if last.Confidence > 1.0 {
		t.Errorf("confidence must be capped at 1.0, got %v", last.Confidence)
	}
}

func TestClassifyWindowBoostCappedAtOne(t *testing.T) {
	c := New(testDicts())
	probe := model.AudioProbe{MediaTitle: "Track", Volume: 80}
	var last model.AudioClassification
	for i := 0; i < windowSize+2; i++ {
		last = c.Classify(probe)
	}
	if last.Confidence > 1.0 {
		t.Errorf("confidence exceeded 1.0: %v", last.Confidence)
	}
}

func TestClassifyMixedHistoryNoBoost(t *testing.T) {
	c := New(testDicts())
	c.Classify(model.AudioProbe{Volume: 2})
	c.Classify(model.AudioProbe{Volume: 30})
	c.Classify(model.AudioProbe{Volume: 2})
	c.Classify(model.AudioProbe{Volume: 30})
	last := c.Classify(model.AudioProbe{Volume: 30})
	if last.Confidence != 0.70 {
		t.Errorf("expected unboosted ambient confidence 0.70, got %v", last.Confidence)
	}
}

func TestCleanupStaleRemovesOldChannels(t *testing.T) {
	c := New(testDicts())
	c.Classify(model.AudioProbe{Volume: 2})
	c.windows["system"].lastSeen = time.Now().Add(-staleWindowMaxAge - time.Minute)
	c.CleanupStale()
	if _, ok := c.windows["system"]; ok {
		t.Error("expected stale channel window to be removed")
	}
}

func TestMatchesAnyCaseInsensitive(t *testing.T) {
	if !matchesAny("SPOTIFY.app", []string{"spotify"}) {
		t.Error("expected case-insensitive substring match")
	}
	if matchesAny("", []string{"spotify"}) {
		t.Error("empty name should never match")
	}
}
