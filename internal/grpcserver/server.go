// Package grpcserver exposes the standard gRPC health service. The status
// follows the reachability of the verification storage.
package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/patric-chuzhbe/verifybot/internal/grpcserver/interceptor"
	"github.com/patric-chuzhbe/verifybot/internal/logger"
)

// ServiceName is the health service name reported next to the overall "" one.
const ServiceName = "verifybot.Verification"

const defaultCheckInterval = 15 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	server        *grpc.Server
	lis           net.Listener
	health        *health.Server
	db            pinger
	checkInterval time.Duration
}

type InitOption func(*Server)

// WithListener serves on lis instead of listening on the address.
func WithListener(lis net.Listener) InitOption {
	return func(s *Server) {
		s.lis = lis
	}
}

func WithCheckInterval(interval time.Duration) InitOption {
	return func(s *Server) {
		s.checkInterval = interval
	}
}

func New(addr string, db pinger, optionsProto ...InitOption) (*Server, error) {
	s := &Server{
		health:        health.NewServer(),
		db:            db,
		checkInterval: defaultCheckInterval,
	}
	for _, protoOption := range optionsProto {
		protoOption(s)
	}

	if s.lis == nil {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		s.lis = lis
	}

	s.server = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryLoggingInterceptor(healthpb.Health_Check_FullMethodName),
		),
	)
	healthpb.RegisterHealthServer(s.server, s.health)

	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve blocks until the server stops.
func (s *Server) Serve() error {
	return s.server.Serve(s.lis)
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// CheckStorage pings the storage once and publishes the result.
func (s *Server) CheckStorage(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.checkInterval)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		logger.Log.Warnw("storage is not reachable", "error", err)
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// WatchStorage runs CheckStorage every check interval until ctx is done.
func (s *Server) WatchStorage(ctx context.Context) {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.CheckStorage(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckStorage(ctx)
		}
	}
}

// GracefulStop marks the service as not serving, then waits for pending RPCs.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
