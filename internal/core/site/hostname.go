// Package site provides pure types and functions for the public serving path:
// hostname parsing, public URL formatting, and snapshot rendering.
// This package has no I/O dependencies and is tested with values in/out.
package site

import "strings"

// HostnameParser extracts the requested site name from a Host header.
// Pure function - no I/O.
type HostnameParser struct {
	BaseDomain string // e.g., "sites.example.com"
}

// Parse extracts the site name from a hostname.
// "acme.sites.example.com" → "acme"
// "acme.sites.example.com:8080" → "acme"
// Only a single label is accepted in front of the base domain, since
// published names never contain dots.
// Returns empty string and false if hostname doesn't match the base domain.
func (p HostnameParser) Parse(hostname string) (name string, ok bool) {
	if hostname == "" || p.BaseDomain == "" {
		return "", false
	}

	host := stripPort(hostname)
	host = strings.TrimSuffix(strings.ToLower(host), ".")

	suffix := "." + strings.ToLower(p.BaseDomain)
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}

	name = strings.TrimSuffix(host, suffix)
	if name == "" || strings.Contains(name, ".") {
		return "", false
	}

	return name, true
}

// stripPort removes a trailing ":<digits>" from a host.
func stripPort(hostname string) string {
	idx := strings.LastIndex(hostname, ":")
	if idx == -1 {
		return hostname
	}
	port := hostname[idx+1:]
	if port == "" {
		return hostname
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return hostname
		}
	}
	return hostname[:idx]
}
