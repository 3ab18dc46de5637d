// seed creates the demo account (alice / Secr3t!) for local testing.
// Idempotent: an existing alice is left untouched.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"vidtube-auth/internal/config"
	"vidtube-auth/internal/db"
	identityservice "vidtube-auth/internal/identity/service"
	"vidtube-auth/internal/logging"
	"vidtube-auth/internal/platform/apperr"
	"vidtube-auth/internal/security"
	userrepo "vidtube-auth/internal/user/repository"
)

const (
	demoUsername = "alice"
	demoEmail    = "alice@example.com"
	demoFullName = "Alice Example"
	demoPassword = "Secr3t!"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	logger := logging.Setup("vidtube-auth-seed", "", cfg.LogFormat, cfg.LogLevel, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 2})
	if err != nil {
		return err
	}
	defer conn.Close()

	accessSecret, refreshSecret, err := cfg.TokenSecrets()
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenProvider(accessSecret, refreshSecret, cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return err
	}
	svc := identityservice.NewAuthService(userrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost), tokens,
		identityservice.WithLogger(logger))

	u, err := svc.Register(ctx, identityservice.RegisterInput{
		FullName: demoFullName,
		Email:    demoEmail,
		Username: demoUsername,
		Password: demoPassword,
	})
	if apperr.KindOf(err) == apperr.KindConflict {
		logger.Info("demo user already exists, skipping", "username", demoUsername)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("demo user created", "user_id", u.ID, "username", u.Username)
	return nil
}
