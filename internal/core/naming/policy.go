package naming

import (
	"sort"
	"strings"
)

// =============================================================================
// Reservation Policy
// =============================================================================

// defaultReserved collides with system routes, staff terms, and
// infrastructure hostnames on the shared domain.
var defaultReserved = []string{
	"www", "admin", "api", "app", "mail", "smtp", "ftp", "blog", "shop",
	"store", "help", "support", "status", "cdn", "static", "assets", "media",
	"img", "images", "test", "dev", "staging", "demo", "preview", "editor",
	"dashboard", "login", "register", "account", "settings", "billing", "docs",
	"templates", "site",
}

// Source supplies the policy in force. Callers fetch it once per operation
// so a reload mid-request cannot mix two policies.
type Source interface {
	Current() *Policy
}

// Policy is an immutable, versioned set of names that can never be claimed,
// plus the length rules applied by Normalize.
type Policy struct {
	version  string
	rules    Rules
	reserved map[string]struct{}
}

// NewPolicy builds a policy. Reserved entries are normalized with the same
// rules as user input so that "Admin " and "admin" are the same entry.
// Entries that normalize to nothing are ignored.
func NewPolicy(version string, rules Rules, reserved []string) *Policy {
	if !rules.Valid() {
		rules = DefaultRules()
	}
	p := &Policy{
		version:  version,
		rules:    rules,
		reserved: make(map[string]struct{}, len(reserved)),
	}
	for _, r := range reserved {
		// Reserved entries may be shorter than MinLength (e.g. "www").
		c := Normalize(r, Rules{MinLength: 1, MaxLength: rules.MaxLength})
		if c.Name != "" {
			p.reserved[c.Name] = struct{}{}
		}
	}
	return p
}

// DefaultPolicy returns the built-in policy used when no policy file is configured.
func DefaultPolicy() *Policy {
	return NewPolicy("builtin", DefaultRules(), defaultReserved)
}

// Current returns p, so a fixed policy can be used as a Source.
func (p *Policy) Current() *Policy {
	return p
}

// Version identifies the policy revision, for logging.
func (p *Policy) Version() string {
	return p.version
}

// Rules returns the length rules for this policy.
func (p *Policy) Rules() Rules {
	return p.rules
}

// IsReserved reports whether a normalized candidate is disallowed.
func (p *Policy) IsReserved(candidate string) bool {
	_, ok := p.reserved[strings.ToLower(candidate)]
	return ok
}

// Reserved returns the sorted reserved names.
func (p *Policy) Reserved() []string {
	out := make([]string, 0, len(p.reserved))
	for name := range p.reserved {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Normalize applies Normalize with this policy's rules.
func (p *Policy) Normalize(raw string) Candidate {
	return Normalize(raw, p.rules)
}
