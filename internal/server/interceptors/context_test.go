package interceptors

import (
	"context"
	"testing"

	userdomain "vidtube-auth/internal/user/domain"
)

func TestWithUser_RoundTrip(t *testing.T) {
	ctx := WithUser(context.Background(), &userdomain.User{ID: "user-1", Username: "alice"})

	u, ok := UserFromContext(ctx)
	if !ok {
		t.Fatal("UserFromContext should return true")
	}
	if u.Username != "alice" {
		t.Errorf("username = %q, want %q", u.Username, "alice")
	}
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-1" {
		t.Errorf("user_id = %q, ok = %v, want %q", id, ok, "user-1")
	}
}

func TestUserFromContext_ReturnsFalseWhenNotSet(t *testing.T) {
	ctx := context.Background()

	if u, ok := UserFromContext(ctx); ok || u != nil {
		t.Errorf("UserFromContext = %v, %v; want nil, false", u, ok)
	}
	if id, ok := UserIDFromContext(ctx); ok || id != "" {
		t.Errorf("UserIDFromContext = %q, %v; want empty, false", id, ok)
	}
	if u, ok := UserFromContext(WithUser(ctx, nil)); ok || u != nil {
		t.Error("a nil user must not count as authenticated")
	}
}

func TestClientIPFromContext(t *testing.T) {
	if ip := ClientIPFromContext(context.Background()); ip != "" {
		t.Errorf("ClientIPFromContext = %q, want empty", ip)
	}
	if ip := ClientIPFromContext(WithClientIP(context.Background(), "10.1.2.3")); ip != "10.1.2.3" {
		t.Errorf("ClientIPFromContext = %q, want %q", ip, "10.1.2.3")
	}
}
