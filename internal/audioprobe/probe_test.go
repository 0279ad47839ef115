package audioprobe

import (
	"context"
	"testing"
	"time"
)

func TestPollReturnsIncompleteOnTimeout(t *testing.T) {
	p := &Prober{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already-cancelled parent forces the select's ctx.Done path

	probe := p.Poll(ctx)
	if probe.Timestamp.IsZero() {
		t.Error("expected a non-zero timestamp even on timeout")
	}
	if !probe.Incomplete {
		t.Error("expected Incomplete to be set on timeout")
	}
}

func TestPollCompletesWithoutMalgoContext(t *testing.T) {
	p := &Prober{}
	defer p.Close()

	start := time.Now()
	probe := p.Poll(context.Background())
	if time.Since(start) > PollTimeout+200*time.Millisecond {
		t.Error("Poll took far longer than its timeout budget")
	}
	if probe.Devices != nil {
		t.Error("expected no devices without a malgo context")
	}
}
