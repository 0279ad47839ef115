// Package health serves the standard grpc_health_v1 service, reporting
// SERVING/NOT_SERVING per lane. Grounded on the teacher's grpcclient
// monitorHealth/checkHealth (which polls this same service client-side);
// here the core is the server instead, using the prebuilt
// google.golang.org/grpc/health implementation rather than a hand-authored
// proto service.
package health

import (
	"context"
	"sync"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Lane names match the Scheduler's component boundaries.
const (
	LaneFrame = "frame"
	LaneAudio = "audio"
	LaneOCR   = "ocr"
)

// Reporter owns a grpc/health Server and lets callers flip per-lane and
// overall serving status as the Scheduler detects degraded or suspended
// lanes.
type Reporter struct {
	mu     sync.Mutex
	srv    *health.Server
	status map[string]healthpb.HealthCheckResponse_ServingStatus
}

// NewReporter builds a Reporter with every known lane and the empty
// (overall) service initialized to SERVING.
func NewReporter() *Reporter {
	r := &Reporter{
		srv:    health.NewServer(),
		status: make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
	for _, lane := range []string{"", LaneFrame, LaneAudio, LaneOCR} {
		r.SetServing(lane, true)
	}
	return r
}

// Server returns the underlying grpc/health server to register against a
// *grpc.Server via healthpb.RegisterHealthServer.
func (r *Reporter) Server() *health.Server {
	return r.srv
}

// SetServing flips a lane's status. An empty lane name is the overall
// service status queried by health checkers that don't pass a service name.
func (r *Reporter) SetServing(lane string, serving bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	r.mu.Lock()
	r.status[lane] = status
	r.mu.Unlock()

	r.srv.SetServingStatus(lane, status)
}

// Status reports the last status set for a lane, defaulting to unknown if
// the lane was never registered.
func (r *Reporter) Status(lane string) healthpb.HealthCheckResponse_ServingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.status[lane]
	if !ok {
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}
	return status
}

// Check implements a direct, in-process equivalent of a health_v1 RPC call
// for callers that want the serving status without a gRPC round trip.
func (r *Reporter) Check(ctx context.Context, lane string) bool {
	resp, err := r.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: lane})
	if err != nil {
		return false
	}
	return resp.Status == healthpb.HealthCheckResponse_SERVING
}
