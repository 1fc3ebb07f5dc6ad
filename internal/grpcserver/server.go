// Package grpcserver exposes grpc.health.v1.Health so orchestrators can probe
// the service and the background maintenance loop.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/metrics"
)

// MaintenanceService is the health service name reporting the sweep loop.
const MaintenanceService = "landsales.Maintenance"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		grpc:   grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingInterceptor(logger))),
		health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(MaintenanceService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetMaintenanceHealthy matches maintenance.StatusFunc.
func (s *Server) SetMaintenanceHealthy(healthy bool) {
	st := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(MaintenanceService, st)
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server starting", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Run listens on addr and serves until ctx is done, then stops gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.Serve(lis)
}

func (s *Server) Stop() {
	s.logger.Info("shutting down gRPC server")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// LoggingInterceptor scopes a logger to each call and counts failed RPCs.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		l := logger.With(zap.String("rpc_method", info.FullMethod))
		l.Debug("RPC call received")

		started := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("grpc").Inc()
			l.Warn("RPC call failed",
				zap.String("code", status.Code(err).String()),
				zap.Duration("took", time.Since(started)),
				zap.Error(err))
			return resp, err
		}

		l.Debug("RPC call finished", zap.Duration("took", time.Since(started)))
		return resp, nil
	}
}
