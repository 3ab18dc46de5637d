package server

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "vidtube-auth/internal/health/handler"
	identityservice "vidtube-auth/internal/identity/service"
	"vidtube-auth/internal/server/interceptors"
)

// PublicMethods are the RPCs reachable without an access token. They are also
// skipped by the request logging interceptor.
var PublicMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
	"/grpc.health.v1.Health/List":  true,
}

// Deps holds the collaborators of the gRPC server.
type Deps struct {
	// Auth authenticates Bearer tokens for protected RPCs. If nil, the auth interceptor is not installed.
	Auth identityservice.Authenticator
	// Health answers grpc.health.v1. If nil, a health server without a database pinger is used.
	Health *healthhandler.Server
	Logger *slog.Logger
}

// NewGRPCServer builds a gRPC server with OpenTelemetry instrumentation and the
// client IP, auth and logging interceptors, and registers all services.
func NewGRPCServer(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chain := []grpc.UnaryServerInterceptor{interceptors.ClientIPUnary()}
	if deps.Auth != nil {
		chain = append(chain, interceptors.AuthUnary(deps.Auth, PublicMethods))
	}
	chain = append(chain, interceptors.LoggingUnary(logger, PublicMethods))

	serverOpts := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}, opts...)
	s := grpc.NewServer(serverOpts...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers all gRPC services with the given server.
//
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	h := deps.Health
	if h == nil {
		h = healthhandler.NewServer(nil)
	}
	healthpb.RegisterHealthServer(s, h)
}
