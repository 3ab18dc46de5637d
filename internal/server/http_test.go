package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	healthhandler "vidtube-auth/internal/health/handler"
	identityhandler "vidtube-auth/internal/identity/handler"
	identityservice "vidtube-auth/internal/identity/service"
	"vidtube-auth/internal/logging"
	"vidtube-auth/internal/security"
	userrepo "vidtube-auth/internal/user/repository"
)

func newHTTPHandler(t *testing.T) http.Handler {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	svc := identityservice.NewAuthService(userrepo.NewMemoryRepository(), security.NewHasher(4), tokens,
		identityservice.WithLogger(logging.Discard()))
	return NewHTTPHandler(HTTPDeps{
		Users:  identityhandler.NewHandler(svc, identityhandler.CookieConfig{}, logging.Discard()),
		Health: healthhandler.NewServer(nil),
		Logger: logging.Discard(),
	})
}

func TestHTTPHandler_Routes(t *testing.T) {
	h := newHTTPHandler(t)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodPost, "/api/v1/users/register", `{"fullname":"Alice","email":"alice@example.com","username":"alice","password":"Secr3t!"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/users/login", `{"username":"alice","password":"Secr3t!"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/users/current-user", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/users/login", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
		if w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, w.Code, tt.want, w.Body.String())
		}
	}
}

func TestNewHTTPServer_Timeouts(t *testing.T) {
	srv := NewHTTPServer(":0", http.NotFoundHandler())
	if srv.ReadHeaderTimeout == 0 || srv.WriteTimeout == 0 {
		t.Error("server timeouts must be set")
	}
}
