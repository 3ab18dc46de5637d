// Server runs the vidtube-auth HTTP API, the gRPC health server and the
// Prometheus metrics endpoint. Configuration comes from the environment (see internal/config).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"vidtube-auth/internal/audit"
	auditrepo "vidtube-auth/internal/audit/repository"
	"vidtube-auth/internal/config"
	"vidtube-auth/internal/db"
	healthhandler "vidtube-auth/internal/health/handler"
	identityhandler "vidtube-auth/internal/identity/handler"
	identityservice "vidtube-auth/internal/identity/service"
	"vidtube-auth/internal/logging"
	"vidtube-auth/internal/observability"
	"vidtube-auth/internal/ratelimit"
	"vidtube-auth/internal/security"
	"vidtube-auth/internal/server"
	"vidtube-auth/internal/server/interceptors"
	"vidtube-auth/internal/telemetry"
	otelsetup "vidtube-auth/internal/telemetry/otel"
	"vidtube-auth/internal/telemetry/producer"
	userrepo "vidtube-auth/internal/user/repository"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.OTelServiceName, version, cfg.LogFormat, cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: version,
		Insecure:       cfg.OTelInsecure,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	errCh := make(chan error, 4)

	var (
		metrics    *observability.Metrics
		metricsSrv *observability.Server
	)
	if cfg.MetricsAddr != "" {
		metricsSrv = observability.NewServer(cfg.MetricsAddr, logger)
		metricsErr, err := metricsSrv.Start()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		metrics = metricsSrv.Metrics()
		go func() {
			for err := range metricsErr {
				errCh <- err
			}
		}()
	}

	var (
		users  identityservice.UserRepo
		audits auditrepo.Repository
		pinger healthhandler.Pinger
	)
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{})
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer sqlDB.Close()
		users = userrepo.NewPostgresRepository(sqlDB)
		audits = auditrepo.NewPostgresRepository(sqlDB)
		pinger = sqlDB
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store, data is lost on restart")
		users = userrepo.NewMemoryRepository()
		audits = auditrepo.NewMemoryRepository()
	}

	emitters := telemetry.MultiEmitter{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsKafkaTopic)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		logger.Info("publishing auth events to kafka", "topic", cfg.AuthEventsKafkaTopic)
	}
	dispatcher := telemetry.NewDispatcher(emitters, logger)
	auditLogger := audit.NewLogger(audits, interceptors.ClientIPFromContext, dispatcher, logger)

	accessSecret, refreshSecret, err := cfg.TokenSecrets()
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenProvider(accessSecret, refreshSecret, cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return fmt.Errorf("tokens: %w", err)
	}

	opts := []identityservice.Option{
		identityservice.WithAuditLogger(auditLogger),
		identityservice.WithLogger(logger),
		identityservice.WithMetrics(metrics),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts = append(opts, identityservice.WithLimiter(ratelimit.New(rdb, ratelimit.Config{
			MaxAttempts: cfg.LoginMaxAttempts,
			Cooldown:    cfg.LoginCooldown(),
		})))
		logger.Info("login throttling enabled", "max_attempts", cfg.LoginMaxAttempts, "cooldown", cfg.LoginCooldown())
	}
	authSvc := identityservice.NewAuthService(users, security.NewHasher(cfg.BcryptCost), tokens, opts...)

	health := healthhandler.NewServer(pinger)
	httpSrv := server.NewHTTPServer(cfg.HTTPAddr, server.NewHTTPHandler(server.HTTPDeps{
		Users:  identityhandler.NewHandler(authSvc, identityhandler.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}, logger),
		Health: health,
		Logger: logger,
	}))
	grpcSrv := server.NewGRPCServer(server.Deps{Auth: authSvc, Health: health, Logger: logger})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server error, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	stopGRPC(shutdownCtx, grpcSrv.GracefulStop, grpcSrv.Stop)

	drainCtx, drainCancel := context.WithTimeout(shutdownCtx, telemetry.ShutdownDrainDuration)
	if err := dispatcher.Drain(drainCtx); err != nil {
		logger.Warn("telemetry drain incomplete", "error", err)
	}
	drainCancel()
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Warn("kafka close", "error", err)
		}
	}
	if metricsSrv != nil {
		if err := metricsSrv.Stop(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown", "error", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", "error", err)
	}
	logger.Info("server stopped")
	return runErr
}

// stopGRPC waits for in-flight RPCs until ctx expires, then forces the stop.
func stopGRPC(ctx context.Context, graceful, force func()) {
	done := make(chan struct{})
	go func() {
		graceful()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		force()
		<-done
	}
}
