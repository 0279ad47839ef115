// Package audioprobe implements the Audio Probe: a bounded-latency poll of
// system volume, media metadata, and active capture devices. It is the
// Scheduler's audio-lane collaborator, grounded on the teacher's
// gen2brain/malgo device enumeration and classifyDevice heuristic, extended
// with OS-shelled volume/media queries the way internal/screen shells out to
// screencapture/gnome-screenshot.
package audioprobe

import (
	"context"
	"log/slog"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/ctxengine/perception/pkg/model"
)

// Prober polls OS audio state on demand.
type Prober struct {
	malgoCtx *malgo.AllocatedContext
	excluded []string
}

// New initializes the malgo context used for device enumeration. A nil
// *Prober is never returned; if malgo initialization fails the Prober still
// works for volume/media queries, with device enumeration disabled.
func New(excluded []string) *Prober {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		slog.Warn("audioprobe: malgo context init failed, device enumeration disabled", "error", err)
		return &Prober{excluded: excluded}
	}
	return &Prober{malgoCtx: ctx, excluded: excluded}
}

// Close releases the malgo context.
func (p *Prober) Close() {
	if p.malgoCtx != nil {
		_ = p.malgoCtx.Uninit()
		p.malgoCtx.Free()
	}
}

// Poll gathers one AudioProbe. It never blocks longer than PollTimeout; on
// timeout it returns whatever fields were obtained with Incomplete set.
func (p *Prober) Poll(ctx context.Context) model.AudioProbe {
	ctx, cancel := context.WithTimeout(ctx, PollTimeout)
	defer cancel()

	resultCh := make(chan model.AudioProbe, 1)
	go func() { resultCh <- p.pollOnce() }()

	select {
	case probe := <-resultCh:
		return probe
	case <-ctx.Done():
		return model.AudioProbe{Timestamp: time.Now(), Incomplete: true}
	}
}

func (p *Prober) pollOnce() model.AudioProbe {
	incomplete := false

	volume, err := queryVolume()
	if err != nil {
		slog.Debug("audioprobe: volume query failed", "error", err)
		incomplete = true
	}

	app, title, err := queryMedia()
	if err != nil {
		slog.Debug("audioprobe: media query failed", "error", err)
		incomplete = true
	}

	devices := p.activeDevices()

	return model.AudioProbe{
		Timestamp:  time.Now(),
		Volume:     volume,
		AppName:    app,
		MediaTitle: title,
		Devices:    devices,
		Incomplete: incomplete,
	}
}
