// Package auth reads the caller identity that the API gateway attaches to
// owner API requests. Nothing here verifies credentials; the gateway has
// already done that before a request reaches sitehost.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

// Gateway headers.
const (
	HeaderUserID        = "X-User-ID"
	HeaderPlanID        = "X-Plan-ID"
	HeaderGatewaySecret = "X-APIGate-Secret"
	HeaderAuthorization = "Authorization"
)

// Source records where an identity came from.
type Source string

const (
	SourceNone   Source = ""
	SourceHeader Source = "header"
	SourceBearer Source = "bearer"
	SourceDev    Source = "dev"
)

// Identity is the caller of an owner API request. Projects are owned by
// UserID; PlanID is carried for logging only.
type Identity struct {
	UserID string
	PlanID string
	Source Source
}

// Authenticated reports whether the request carried a usable user ID.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Dev returns the fixed identity used when the API runs in dev mode.
func Dev(userID string) Identity {
	return Identity{UserID: userID, PlanID: "dev", Source: SourceDev}
}

// FromHeaders reads the identity from gateway headers.
//
// X-User-ID wins when present. Otherwise the sub claim of a bearer JWT is
// used, with its pid claim (or X-Plan-ID) as the plan. Anything else yields
// the zero Identity.
func FromHeaders(h http.Header) Identity {
	if userID := strings.TrimSpace(h.Get(HeaderUserID)); userID != "" {
		return Identity{UserID: userID, PlanID: h.Get(HeaderPlanID), Source: SourceHeader}
	}

	claims, ok := bearerClaims(h.Get(HeaderAuthorization))
	if !ok {
		return Identity{}
	}
	planID := claims.PlanID
	if planID == "" {
		planID = h.Get(HeaderPlanID)
	}
	return Identity{UserID: claims.Sub, PlanID: planID, Source: SourceBearer}
}

type tokenClaims struct {
	Sub    string `json:"sub"`
	PlanID string `json:"pid"`
}

// bearerClaims decodes the payload segment of a bearer JWT. The signature
// is not checked.
func bearerClaims(header string) (tokenClaims, bool) {
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return tokenClaims{}, false
	}
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return tokenClaims{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return tokenClaims{}, false
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return tokenClaims{}, false
	}
	claims.Sub = strings.TrimSpace(claims.Sub)
	return claims, claims.Sub != ""
}

type identityKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, or the zero Identity.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}
