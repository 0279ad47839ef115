package health

import (
	"context"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestNewReporterDefaultsToServing(t *testing.T) {
	r := NewReporter()
	for _, lane := range []string{"", LaneFrame, LaneAudio, LaneOCR} {
		if r.Status(lane) != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("Status(%q) = %v, want SERVING", lane, r.Status(lane))
		}
	}
}

func TestSetServingFlipsLaneIndependently(t *testing.T) {
	r := NewReporter()
	r.SetServing(LaneOCR, false)

	if r.Status(LaneOCR) != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Status(ocr) = %v, want NOT_SERVING", r.Status(LaneOCR))
	}
	if r.Status(LaneFrame) != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Status(frame) = %v, want unaffected SERVING", r.Status(LaneFrame))
	}
}

func TestStatusUnknownForUnregisteredLane(t *testing.T) {
	r := NewReporter()
	if r.Status("nonexistent") != healthpb.HealthCheckResponse_SERVICE_UNKNOWN {
		t.Error("expected SERVICE_UNKNOWN for an unregistered lane")
	}
}

func TestCheckReflectsServingStatus(t *testing.T) {
	r := NewReporter()
	if !r.Check(context.Background(), LaneAudio) {
		t.Error("expected Check() true for a serving lane")
	}

	r.SetServing(LaneAudio, false)
	if r.Check(context.Background(), LaneAudio) {
		t.Error("expected Check() false after SetServing(false)")
	}
}
