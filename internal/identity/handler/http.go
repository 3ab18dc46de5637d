// Package handler exposes the auth service over the JSON HTTP API mounted at /api/v1/users.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	identityservice "vidtube-auth/internal/identity/service"
	"vidtube-auth/internal/platform/apperr"
	"vidtube-auth/internal/server/interceptors"
	userdomain "vidtube-auth/internal/user/domain"
)

const (
	// RoutePrefix is where the user routes are mounted.
	RoutePrefix = "/api/v1/users"

	maxBodyBytes = 1 << 20
)

// AuthService is the subset of identityservice.AuthService the HTTP API calls.
type AuthService interface {
	identityservice.Authenticator
	Register(ctx context.Context, in identityservice.RegisterInput) (*userdomain.User, error)
	Login(ctx context.Context, c identityservice.Credentials) (*identityservice.AuthResult, error)
	Refresh(ctx context.Context, token string) (*identityservice.AuthResult, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (*userdomain.User, error)
}

// CookieConfig controls the attributes of the token cookies.
type CookieConfig struct {
	Secure bool
	Domain string
}

// Handler serves the user routes.
type Handler struct {
	auth    AuthService
	cookies CookieConfig
	logger  *slog.Logger
}

// NewHandler returns a Handler backed by auth.
func NewHandler(auth AuthService, cookies CookieConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{auth: auth, cookies: cookies, logger: logger.With("component", "http")}
}

// Register mounts the user routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	protect := interceptors.RequireAuth(h.auth, h.writeError)

	mux.HandleFunc("POST "+RoutePrefix+"/register", h.register)
	mux.HandleFunc("POST "+RoutePrefix+"/login", h.login)
	mux.HandleFunc("POST "+RoutePrefix+"/refresh-token", h.refresh)
	mux.Handle("POST "+RoutePrefix+"/logout", protect(http.HandlerFunc(h.logout)))
	mux.Handle("POST "+RoutePrefix+"/change-password", protect(http.HandlerFunc(h.changePassword)))
	mux.Handle("GET "+RoutePrefix+"/current-user", protect(http.HandlerFunc(h.currentUser)))
}

type registerRequest struct {
	FullName   string `json:"fullname"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverImage"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type tokensResponse struct {
	User         *userdomain.PublicUser `json:"user,omitempty"`
	AccessToken  string                 `json:"accessToken"`
	RefreshToken string                 `json:"refreshToken"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.auth.Register(r.Context(), identityservice.RegisterInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		Avatar:     req.Avatar,
		CoverImage: req.CoverImage,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, u.Public(), "User registered successfully")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.auth.Login(r.Context(), identityservice.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		ClientIP: interceptors.ClientIPFromContext(r.Context()),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, res)
	pub := res.User.Public()
	writeSuccess(w, http.StatusOK, tokensResponse{
		User:         &pub,
		AccessToken:  res.Tokens.Access.Value,
		RefreshToken: res.Tokens.Refresh.Value,
	}, "User logged in successfully")
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(interceptors.RefreshTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req, true); err != nil {
			h.writeError(w, r, err)
			return
		}
		token = req.RefreshToken
	}
	res, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, res)
	writeSuccess(w, http.StatusOK, tokensResponse{
		AccessToken:  res.Tokens.Access.Value,
		RefreshToken: res.Tokens.Refresh.Value,
	}, "Access token refreshed")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := interceptors.UserIDFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.clearTokenCookies(w)
	writeSuccess(w, http.StatusOK, struct{}{}, "User logged out")
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	userID, _ := interceptors.UserIDFromContext(r.Context())
	if err := h.auth.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.clearTokenCookies(w)
	writeSuccess(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	u, ok := interceptors.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperr.Unauthorized("unauthorized request", nil))
		return
	}
	writeSuccess(w, http.StatusOK, u.Public(), "Current user fetched successfully")
}

func (h *Handler) setTokenCookies(w http.ResponseWriter, res *identityservice.AuthResult) {
	http.SetCookie(w, h.cookie(interceptors.AccessTokenCookie, res.Tokens.Access.Value, res.Tokens.Access.ExpiresAt))
	http.SetCookie(w, h.cookie(interceptors.RefreshTokenCookie, res.Tokens.Refresh.Value, res.Tokens.Refresh.ExpiresAt))
}

func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{interceptors.AccessTokenCookie, interceptors.RefreshTokenCookie} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *Handler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// decodeJSON reads a JSON body into dst. With allowEmpty an empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.BadRequest("invalid request body")
	}
	return nil
}
