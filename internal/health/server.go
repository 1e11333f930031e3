// Package health exposes engine readiness over the standard gRPC health
// protocol.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name probes use to check the engine specifically. The
// empty name reports the same status for the whole server.
const ServiceName = "bloodnet.Engine"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server mirrors Pinger results into a grpc health server.
type Server struct {
	hs      *grpchealth.Server
	probe   Pinger
	log     *zap.Logger
	timeout time.Duration
}

// New returns a Server reporting NOT_SERVING until the first Refresh.
func New(probe Pinger, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{hs: grpchealth.NewServer(), probe: probe, log: log, timeout: 2 * time.Second}
	s.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register installs the health service on g.
func (s *Server) Register(g *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(g, s.hs)
}

// Refresh pings the store once and publishes the result.
func (s *Server) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.probe.Ping(ctx); err != nil {
		s.log.Warn("engine not ready", zap.Error(err))
		s.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return err
	}
	s.set(grpc_health_v1.HealthCheckResponse_SERVING)
	return nil
}

// Run refreshes every interval until ctx is cancelled, then marks every
// service NOT_SERVING so in-flight probes fail over during shutdown.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	_ = s.Refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.hs.Shutdown()
			return
		case <-t.C:
			_ = s.Refresh(ctx)
		}
	}
}

func (s *Server) set(st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.hs.SetServingStatus("", st)
	s.hs.SetServingStatus(ServiceName, st)
}
