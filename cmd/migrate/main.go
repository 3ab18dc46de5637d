// migrate applies the embedded schema migrations: go run ./cmd/migrate -direction up|down.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"vidtube-auth/internal/config"
	"vidtube-auth/internal/db/migrate"
	"vidtube-auth/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env or set DATABASE_URL")
		os.Exit(1)
	}
	logger := logging.Setup("vidtube-auth-migrate", "", cfg.LogFormat, cfg.LogLevel, os.Stderr)

	if err := migrate.Run(cfg.DatabaseURL, *direction, logger); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema already at target version", "direction", *direction)
			return
		}
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}
