package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artpar/sitehost/internal/core/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoIdentity writes the request identity back as JSON.
func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.FromContext(r.Context())
		json.NewEncoder(w).Encode(map[string]any{
			"authenticated": id.Authenticated(),
			"user_id":       id.UserID,
			"source":        string(id.Source),
		})
	})
}

func newAuth(cfg AuthConfig) *Authenticator {
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthenticator(cfg)
}

func serve(t *testing.T, h http.Handler, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

// =============================================================================
// Authenticator Tests
// =============================================================================

func TestAuthenticator_Modes(t *testing.T) {
	tests := []struct {
		name     string
		cfg      AuthConfig
		headers  map[string]string
		wantUser string
		source   auth.Source
	}{
		{"header mode with user", AuthConfig{Mode: ModeHeader}, map[string]string{"X-User-ID": "user_123"}, "user_123", auth.SourceHeader},
		{"header mode without user", AuthConfig{Mode: ModeHeader}, nil, "", auth.SourceNone},
		{"empty mode means header", AuthConfig{}, map[string]string{"X-User-ID": "user_456"}, "user_456", auth.SourceHeader},
		{"none mode ignores headers", AuthConfig{Mode: ModeNone}, map[string]string{"X-User-ID": "user_123"}, "", auth.SourceNone},
		{"dev mode fills user", AuthConfig{Mode: ModeDev, DevUserID: "local"}, nil, "local", auth.SourceDev},
		{"dev mode default user", AuthConfig{Mode: ModeDev}, nil, "dev-user", auth.SourceDev},
		{"dev mode keeps explicit user", AuthConfig{Mode: ModeDev, DevUserID: "local"}, map[string]string{"X-User-ID": "user_123"}, "user_123", auth.SourceHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := serve(t, newAuth(tt.cfg).Handler(echoIdentity()), tt.headers)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantUser != "", body["authenticated"])
			assert.Equal(t, tt.wantUser, body["user_id"])
			assert.Equal(t, string(tt.source), body["source"])
		})
	}
}

func TestAuthenticator_SharedSecret(t *testing.T) {
	handler := newAuth(AuthConfig{SharedSecret: "my-secret-key"}).Handler(echoIdentity())

	tests := []struct {
		name   string
		secret string
		want   int
	}{
		{"valid", "my-secret-key", http.StatusOK},
		{"invalid", "wrong-secret", http.StatusForbidden},
		{"prefix", "my-secret", http.StatusForbidden},
		{"missing", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{"X-User-ID": "user_123"}
			if tt.secret != "" {
				headers[auth.HeaderGatewaySecret] = tt.secret
			}
			rec, body := serve(t, handler, headers)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Equal(t, "forbidden", body["code"])
			}
		})
	}
}

// =============================================================================
// RequireAuth Tests
// =============================================================================

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		headers map[string]string
		want    int
	}{
		{"authenticated", ModeHeader, map[string]string{"X-User-ID": "user_123"}, http.StatusOK},
		{"anonymous", ModeHeader, nil, http.StatusUnauthorized},
		{"none mode", ModeNone, map[string]string{"X-User-ID": "user_123"}, http.StatusUnauthorized},
		{"dev mode", ModeDev, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newAuth(AuthConfig{Mode: tt.mode}).Handler(RequireAuth(nil)(echoIdentity()))

			rec, body := serve(t, handler, tt.headers)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "unauthenticated", body["code"])
				assert.Equal(t, "authentication required", body["error"])
			}
		})
	}
}
