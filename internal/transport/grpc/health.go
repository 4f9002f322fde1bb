package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/loft-algerie/messaging/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service key callers use for this service specifically.
const ServiceName = "loft.messaging.v1"

// Dependency reports whether one backing service is reachable.
type Dependency func(ctx context.Context) error

// Health reports readiness over grpc.health.v1. Both the overall ("") and the
// named service status follow the dependencies.
type Health struct {
	srv   *health.Server
	deps  map[string]Dependency
	every time.Duration
}

func NewHealth(deps map[string]Dependency, every time.Duration) *Health {
	if every <= 0 {
		every = 10 * time.Second
	}
	h := &Health{srv: health.NewServer(), deps: deps, every: every}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func NewServer(h *Health, callTimeout time.Duration) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(callTimeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	healthpb.RegisterHealthServer(s, h.srv)
	reflection.Register(s)
	return s
}

// Run checks the dependencies until ctx is done, then marks everything NOT_SERVING for the drain.
func (h *Health) Run(ctx context.Context) {
	t := time.NewTicker(h.every)
	defer t.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// Check runs every dependency check once and publishes the result.
func (h *Health) Check(ctx context.Context) bool {
	ok := true
	for name, dep := range h.deps {
		dctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := dep(dctx)
		cancel()
		if err != nil {
			ok = false
			logger.FromContext(ctx).Warn("readiness check failed", slog.String("dependency", name), slog.Any("err", err))
		}
	}
	if ok {
		h.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return ok
}

func (h *Health) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
}
