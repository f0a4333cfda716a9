package site

import (
	"fmt"
	"strings"
)

// RoutingStyle selects how public URLs are formed.
type RoutingStyle string

const (
	// RoutingHost serves sites at <name>.<base-domain>.
	RoutingHost RoutingStyle = "host"
	// RoutingPath serves sites at <base-domain>/<path-prefix>/<name>.
	RoutingPath RoutingStyle = "path"
)

// DefaultPathPrefix is the path segment used by RoutingPath.
const DefaultPathPrefix = "site"

// URLBuilder formats public URLs for published names. It performs no
// lookups and does not check that the name is published.
type URLBuilder struct {
	Scheme     string // "https" when empty
	BaseDomain string // e.g., "sites.example.com" or "example.com:5175"
	Style      RoutingStyle
	PathPrefix string // DefaultPathPrefix when empty
}

// Build returns the public URL for name.
//
// Example:
//
//	URLBuilder{BaseDomain: "sites.example.com", Style: RoutingHost}.Build("acme")
//	// "https://acme.sites.example.com"
//	URLBuilder{BaseDomain: "example.com", Style: RoutingPath}.Build("acme")
//	// "https://example.com/site/acme"
func (b URLBuilder) Build(name string) string {
	scheme := b.Scheme
	if scheme == "" {
		scheme = "https"
	}

	if b.Style == RoutingPath {
		return fmt.Sprintf("%s://%s/%s/%s", scheme, b.BaseDomain, b.pathPrefix(), name)
	}
	return fmt.Sprintf("%s://%s.%s", scheme, name, b.BaseDomain)
}

// pathPrefix returns the prefix without surrounding slashes.
func (b URLBuilder) pathPrefix() string {
	prefix := strings.Trim(b.PathPrefix, "/")
	if prefix == "" {
		return DefaultPathPrefix
	}
	return prefix
}
