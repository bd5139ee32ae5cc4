package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewHealthServer returns a gRPC server exposing only the standard health service.
func NewHealthServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s)
	return s, hs
}

// WatchHealth flips the overall serving status as check passes or fails, until ctx ends.
func WatchHealth(ctx context.Context, hs *health.Server, check HealthCheck, every time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	t := time.NewTicker(every)
	defer t.Stop()

	last := healthpb.HealthCheckResponse_SERVING
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			next := healthpb.HealthCheckResponse_SERVING
			if err := check(ctx); err != nil {
				next = healthpb.HealthCheckResponse_NOT_SERVING
				if last != next {
					logger.Warn("health.not_serving", "error", err)
				}
			}
			if next != last {
				hs.SetServingStatus("", next)
				last = next
			}
		}
	}
}
