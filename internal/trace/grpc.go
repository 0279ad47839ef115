// Package trace - gRPC interceptor for trace extraction on the inbound
// (server) side. The core exposes only the standard health service over
// gRPC (see internal/transport/health); this interceptor lets its logs
// carry the same trace_id/span_id attributes as every other lane.
package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryServerInterceptor extracts trace context from incoming gRPC metadata,
// creating a fresh trace if none was propagated by the caller.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(extractMetadata(ctx), req)
	}
}

// extractMetadata reads trace headers from incoming gRPC metadata.
func extractMetadata(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return WithContext(ctx, New())
	}
	return WithContext(ctx, FromMap(firstValues(md)))
}

// firstValues collapses gRPC metadata (string -> []string) to the first
// value per key, matching the shape trace.FromMap expects.
func firstValues(md metadata.MD) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
