// Package server assembles the HTTP API and the gRPC server from the service packages.
package server

import (
	"log/slog"
	"net/http"
	"time"

	identityhandler "vidtube-auth/internal/identity/handler"
	"vidtube-auth/internal/server/interceptors"
)

// HTTPDeps holds the handlers served by the HTTP API.
type HTTPDeps struct {
	Users  *identityhandler.Handler
	Health http.Handler
	Logger *slog.Logger
}

// NewHTTPHandler mounts the user routes and /healthz behind the client IP and
// request logging middleware.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	if deps.Users != nil {
		deps.Users.Register(mux)
	}
	if deps.Health != nil {
		mux.Handle("GET /healthz", deps.Health)
	}
	return interceptors.ClientIPMiddleware(interceptors.RequestLogger(logger)(mux))
}

// NewHTTPServer wraps h in an http.Server with conservative timeouts.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
