package interceptors

import (
	"log/slog"
	"net/http"
	"time"

	identityservice "vidtube-auth/internal/identity/service"
)

// AccessTokenCookie and RefreshTokenCookie are the cookie names the HTTP API
// sets on login and refresh.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// ErrorWriter renders an error response. The HTTP handler package supplies
// its envelope writer so the middleware stays free of response formats.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireAuth returns middleware that authenticates the access token from the
// accessToken cookie, falling back to "Authorization: Bearer". On success the
// sanitized user is attached with WithUser; otherwise writeErr renders the
// failure and next is not called.
func RequireAuth(auth identityservice.Authenticator, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := auth.Authenticate(r.Context(), AccessTokenFromRequest(r))
			if err != nil {
				writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// AccessTokenFromRequest returns the access token from the cookie or the
// Authorization header, or "" when neither is present.
func AccessTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return parseBearer(r.Header.Get("Authorization"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request. Health probes log at debug.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case r.URL.Path == "/healthz":
				level = slog.LevelDebug
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", ClientIPFromContext(r.Context()),
			)
		})
	}
}
