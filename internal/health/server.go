package health

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/config"
)

// Service is the name reported for the bookmark API in health checks.
const Service = "bookmarker.Bookmarks"

var (
	Module = fx.Provide(
		NewGRPCServer,
	)
)

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	logger     *zap.SugaredLogger
}

func NewGRPCServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.SugaredLogger) *Server {
	instance := newServer(logger)
	listen := cfg.Host + ":" + cfg.GRPCPort

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return instance.Start(listen)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping GRPC server.")
			instance.Stop()
			return nil
		},
	})

	return instance
}

func newServer(logger *zap.SugaredLogger) *Server {
	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		logger:     logger,
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	return s
}

// Start binds the listener synchronously so port errors surface at startup, then serves in the background.
func (s *Server) Start(listen string) error {
	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.listener = lis

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(Service, healthpb.HealthCheckResponse_SERVING)

	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Errorw("failed to serve", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Addr is the bound listener address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
