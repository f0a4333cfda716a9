// Package middleware holds request middleware for the owner API.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/artpar/sitehost/internal/core/auth"
)

// Auth modes.
const (
	// ModeHeader trusts identity headers injected by the gateway.
	ModeHeader = "header"
	// ModeDev authenticates header-less requests as DevUserID. Local use only.
	ModeDev = "dev"
	// ModeNone never authenticates; every protected endpoint answers 401.
	ModeNone = "none"
)

const defaultDevUserID = "dev-user"

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Mode is one of ModeHeader, ModeDev, ModeNone. Empty means ModeHeader.
	Mode string

	// SharedSecret, when set, must match the X-APIGate-Secret header.
	SharedSecret string

	// DevUserID is the identity used in ModeDev when the request carries none.
	DevUserID string

	Logger *slog.Logger
}

// Authenticator attaches the caller identity to each request context.
type Authenticator struct {
	mode      string
	secret    []byte
	devUserID string
	logger    *slog.Logger
}

// NewAuthenticator applies defaults to cfg and returns the middleware.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	a := &Authenticator{
		mode:      cfg.Mode,
		secret:    []byte(cfg.SharedSecret),
		devUserID: cfg.DevUserID,
		logger:    cfg.Logger,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.mode == "" {
		a.mode = ModeHeader
	}
	if a.mode == ModeDev && a.devUserID == "" {
		a.devUserID = defaultDevUserID
	}
	return a
}

// Handler wraps next. A request with a bad gateway secret is rejected with
// 403 before any identity is read.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.mode == ModeNone {
			next.ServeHTTP(w, r)
			return
		}

		if len(a.secret) > 0 {
			got := []byte(r.Header.Get(auth.HeaderGatewaySecret))
			if subtle.ConstantTimeCompare(got, a.secret) != 1 {
				a.logger.Warn("gateway secret mismatch",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusForbidden, "forbidden", "invalid gateway secret")
				return
			}
		}

		id := auth.FromHeaders(r.Header)
		if !id.Authenticated() && a.mode == ModeDev {
			id = auth.Dev(a.devUserID)
		}
		if id.Authenticated() {
			a.logger.Debug("request identity", "user_id", id.UserID, "source", id.Source, "plan_id", id.PlanID)
		}

		next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), id)))
	})
}

// RequireAuth rejects requests without an identity with 401. It must run
// after Authenticator.Handler.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.FromContext(r.Context()).Authenticated() {
				logger.Info("unauthenticated request to protected endpoint",
					"remote_addr", r.RemoteAddr,
					"method", r.Method,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// errorBody has the same shape as the API's error responses.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
