package gameserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the gRPC health service name reported alongside the overall status.
const HealthServiceName = "corsair.GameServer"

// Prober checks a dependency within timeout.
type Prober func(ctx context.Context, timeout time.Duration) error

// HealthMonitor publishes database reachability through the standard gRPC health service.
type HealthMonitor struct {
	server  *health.Server
	probe   Prober
	timeout time.Duration
	logger  *zap.Logger
	healthy bool
}

// NewHealthMonitor creates a HealthMonitor that starts in NOT_SERVING until the first probe.
func NewHealthMonitor(probe Prober, timeout time.Duration, logger *zap.Logger) *HealthMonitor {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthMonitor{server: hs, probe: probe, timeout: timeout, logger: logger}
}

// Register attaches the health service to s.
func (m *HealthMonitor) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, m.server)
}

// Check runs one probe and updates the published status. Transitions are logged.
// It is not safe for concurrent use; the server calls it from a single ticker.
func (m *HealthMonitor) Check(ctx context.Context) {
	err := m.probe(ctx, m.timeout)
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(HealthServiceName, status)

	switch {
	case err != nil && m.healthy:
		m.logger.Warn("database health check failed", zap.Error(err))
	case err == nil && !m.healthy:
		m.logger.Info("database healthy")
	}
	m.healthy = err == nil
}

// Shutdown marks every service NOT_SERVING.
func (m *HealthMonitor) Shutdown() {
	m.server.Shutdown()
}
