//go:build darwin

package audioprobe

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// queryVolume reads the system output volume (0-100) via AppleScript,
// the same native-tool-shellout style as internal/screen's screencapture call.
func queryVolume() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), execTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "osascript", "-e", "output volume of (get volume settings)").Output()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, err
	}
	return v, nil
}

// queryMedia reads the frontmost media app and track title, best-effort.
func queryMedia() (app, title string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), execTimeout)
	defer cancel()

	script := `
	try
		tell application "Music"
			if player state is playing then
				return "Music|" & (name of current track)
			end if
		end tell
	end try
	try
		tell application "Spotify"
			if player state is playing then
				return "Spotify|" & (name of current track)
			end if
		end tell
	end try
	return ""
	`
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		return "", "", err
	}
	line := strings.TrimSpace(string(out))
	if line == "" {
		return "", "", nil
	}
	parts := strings.SplitN(line, "|", 2)
	if len(parts) != 2 {
		return "", "", nil
	}
	return parts[0], parts[1], nil
}
