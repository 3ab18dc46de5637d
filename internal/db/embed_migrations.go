package db

import "embed"

// MigrationFS embeds the SQL migrations for the users and audit_logs tables.
// The migrate runner (cmd/migrate) applies them with golang-migrate's iofs source.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
