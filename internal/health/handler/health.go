// Package handler serves liveness and readiness: the standard grpc.health.v1
// service and an HTTP /healthz endpoint backed by the same check.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the gRPC health service name this server answers for, in
// addition to the empty (overall) name.
const ServiceName = "vidtube-auth"

const pingTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable; *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server implements grpc_health_v1.HealthServer and http.Handler.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger Pinger
}

// NewServer returns a health server. A nil pinger (in-memory store) is always healthy.
func NewServer(pinger Pinger) *Server {
	return &Server{pinger: pinger}
}

// Check returns SERVING when the database answers a ping and NOT_SERVING otherwise.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := s.ready(ctx); err != nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// ServeHTTP answers /healthz with 200 or 503.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code, body := http.StatusOK, map[string]string{"status": "ok"}
	if err := s.ready(r.Context()); err != nil {
		code, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "unreachable"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) ready(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.pinger.PingContext(ctx)
}
