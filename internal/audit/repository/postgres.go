package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/samber/oops"

	"vidtube-auth/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return oops.Code("AUDIT_CREATE_FAILED").With("operation", "marshal metadata").Wrap(err)
	}
	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, ip, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, uid, a.Action, a.IP, meta, a.CreatedAt)
	if err != nil {
		return oops.Code("AUDIT_CREATE_FAILED").With("action", a.Action).Wrap(err)
	}
	return nil
}
