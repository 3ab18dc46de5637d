package audit

import (
	"context"
	"errors"
	"testing"

	"vidtube-auth/internal/audit/domain"
	auditrepo "vidtube-auth/internal/audit/repository"
	"vidtube-auth/internal/logging"
	"vidtube-auth/internal/telemetry"
)

type failingRepo struct{}

func (failingRepo) Create(context.Context, *domain.AuditLog) error { return errors.New("database error") }

type captureDispatcher struct {
	events []*telemetry.Event
}

func (c *captureDispatcher) Dispatch(e *telemetry.Event) { c.events = append(c.events, e) }

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	disp := &captureDispatcher{}
	logger := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, disp, logging.Discard())

	logger.LogEvent(context.Background(), "user-1", domain.ActionLoginSuccess, map[string]string{"method": "username"})

	entries := repo.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.UserID != "user-1" {
		t.Errorf("user_id = %q, want %q", entry.UserID, "user-1")
	}
	if entry.Action != domain.ActionLoginSuccess {
		t.Errorf("action = %q", entry.Action)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if entry.Metadata["method"] != "username" {
		t.Errorf("metadata = %v", entry.Metadata)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Error("entry ID and CreatedAt should be set")
	}

	if len(disp.events) != 1 {
		t.Fatalf("expected 1 dispatched event, got %d", len(disp.events))
	}
	ev := disp.events[0]
	if ev.ID != entry.ID || ev.Action != domain.ActionLoginSuccess || ev.Source != "vidtube-auth" {
		t.Errorf("dispatched event = %+v", ev)
	}
}

func TestLogger_LogEvent_NilIPExtractor(t *testing.T) {
	repo := auditrepo.NewMemoryRepository()
	logger := NewLogger(repo, nil, nil, logging.Discard())

	logger.LogEvent(context.Background(), "", domain.ActionLoginFailure, nil)

	entries := repo.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want %q", entries[0].IP, "unknown")
	}
}

func TestLogger_LogEvent_RepositoryErrorStillDispatches(t *testing.T) {
	disp := &captureDispatcher{}
	logger := NewLogger(failingRepo{}, nil, disp, logging.Discard())

	logger.LogEvent(context.Background(), "user-1", domain.ActionLogout, nil)

	if len(disp.events) != 1 {
		t.Errorf("expected dispatch despite repository error, got %d events", len(disp.events))
	}
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	logger := NewLogger(nil, nil, nil, nil)
	// no-op when repo and dispatcher are nil
	logger.LogEvent(context.Background(), "user-1", domain.ActionLogout, nil)
}
