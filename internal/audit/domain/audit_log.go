package domain

import "time"

// Auth event actions recorded in the audit trail.
const (
	ActionRegister       = "register"
	ActionLoginSuccess   = "login_success"
	ActionLoginFailure   = "login_failure"
	ActionRefresh        = "refresh"
	ActionRefreshFailure = "refresh_failure"
	ActionRefreshReuse   = "refresh_reuse"
	ActionLogout         = "logout"
	ActionPasswordChange = "password_change"
)

// AuditLog represents an audit event. UserID is empty when the caller could
// not be identified (e.g. a login for an unknown username).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	IP        string
	Metadata  map[string]string
	CreatedAt time.Time
}
