package health

import (
	"context"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/pause-alarm/internal/logger"
)

// ServiceName is the health service name reported for the pause monitor.
const ServiceName = "pausealarm"

// Lifecycle is the part of a pause monitor the health server watches.
type Lifecycle interface {
	Done() <-chan struct{}
	Err() error
}

// Server reports SERVING while a monitor loop runs and NOT_SERVING once it
// has exited, so a dead detector never looks healthy.
type Server struct {
	// health implements the gRPC health protocol.
	health *grpchealth.Server
}

// NewServer creates a health server reporting NOT_SERVING until Watch is called.
func NewServer() *Server {
	s := &Server{
		health: grpchealth.NewServer(),
	}

	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// Register attaches the health service to gs.
func (s *Server) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.health)
}

// Watch marks the service SERVING and blocks until the monitor exits or ctx
// is done, then marks it NOT_SERVING.
func (s *Server) Watch(ctx context.Context, monitor Lifecycle) {
	s.setStatus(healthpb.HealthCheckResponse_SERVING)

	select {
	case <-monitor.Done():
		if err := monitor.Err(); err != nil {
			logger.ErrorKV(ctx, "Pause monitor died, reporting not serving", "error", err)
		} else {
			logger.Info(ctx, "Pause monitor stopped, reporting not serving")
		}
	case <-ctx.Done():
	}

	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
