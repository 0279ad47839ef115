package audioprobe

import "github.com/gen2brain/malgo"

// systemKeywords and micKeywords classify a capture device by name, mirroring
// the teacher's audio.Capturer.classifyDevice heuristic.
var (
	systemKeywords = []string{"blackhole", "vb-cable", "loopback", "monitor", "soundflower"}
	micKeywords    = []string{"microphone", "input", "mic", "built-in"}
)

func classifyDevice(name string) string {
	for _, kw := range systemKeywords {
		if containsIgnoreCase(name, kw) {
			return "system"
		}
	}
	for _, kw := range micKeywords {
		if containsIgnoreCase(name, kw) {
			return "user"
		}
	}
	return ""
}

// activeDevices lists capture device names classified as system or user
// audio, excluding any name matching the configured exclusion list.
func (p *Prober) activeDevices() []string {
	if p.malgoCtx == nil {
		return nil
	}
	infos, err := p.malgoCtx.Devices(malgo.Capture)
	if err != nil {
		return nil
	}

	var names []string
	for _, info := range infos {
		name := info.Name()
		if classifyDevice(name) == "" {
			continue
		}
		if p.isExcluded(name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func (p *Prober) isExcluded(name string) bool {
	for _, ex := range p.excluded {
		if containsIgnoreCase(name, ex) {
			return true
		}
	}
	return false
}

func containsIgnoreCase(s, substr string) bool {
	if len(s) < len(substr) {
		return false
	}
	for i := 0; i <= len(s)-len(substr); i++ {
		match := true
		for j := 0; j < len(substr); j++ {
			c1, c2 := s[i+j], substr[j]
			if c1 >= 'A' && c1 <= 'Z' {
				c1 += 'a' - 'A'
			}
			if c2 >= 'A' && c2 <= 'Z' {
				c2 += 'a' - 'A'
			}
			if c1 != c2 {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
