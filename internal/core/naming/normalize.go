// Package naming provides the pure rules for public site names: normalization,
// the reservation policy, and availability classification.
// This package has no I/O dependencies and is tested with values in/out.
package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// Rules
// =============================================================================

// MaxRawLength is the number of input runes considered by Normalize.
// Anything past it is ignored.
const MaxRawLength = 256

// MaxLabelLength is the DNS label limit. No policy may allow longer names.
const MaxLabelLength = 63

// Rules are the length bounds a name must satisfy.
type Rules struct {
	MinLength int `yaml:"min_length"`
	MaxLength int `yaml:"max_length"`
}

// DefaultRules returns the 3..30 bounds used by the shared domain.
func DefaultRules() Rules {
	return Rules{MinLength: 3, MaxLength: 30}
}

// Valid reports whether the bounds are usable.
func (r Rules) Valid() bool {
	return r.MinLength >= 1 && r.MaxLength >= r.MinLength && r.MaxLength <= MaxLabelLength
}

// =============================================================================
// Candidate
// =============================================================================

// Problem describes why a normalized candidate cannot be used as a name.
type Problem string

const (
	ProblemNone     Problem = ""
	ProblemEmpty    Problem = "empty"
	ProblemTooShort Problem = "too_short"

	// ProblemTooLong is reported for requested names longer than a DNS
	// label. Normalize truncates instead.
	ProblemTooLong Problem = "too_long"
)

// Candidate is the result of normalizing raw user input.
type Candidate struct {
	Name    string
	Problem Problem
}

// Usable returns true if the candidate passed normalization.
func (c Candidate) Usable() bool {
	return c.Problem == ProblemNone
}

// =============================================================================
// Normalization
// =============================================================================

// Normalize converts raw user input to a canonical name candidate.
//
// The transformation rules are:
//   - Only the first MaxRawLength runes are considered
//   - Accents are stripped ("é" becomes "e")
//   - Uppercase letters are lowercased
//   - Every rune outside [a-z0-9-] becomes a hyphen
//   - Runs of hyphens collapse to one, leading/trailing hyphens are dropped
//   - The result is truncated to rules.MaxLength
//
// This is a pure function with no side effects, and it is idempotent:
// Normalize(Normalize(s).Name).Name == Normalize(s).Name.
//
// Example:
//
//	Normalize("My Studio!!", DefaultRules())  // {Name: "my-studio"}
//	Normalize("Café Noir", DefaultRules())    // {Name: "cafe-noir"}
//	Normalize("ab", DefaultRules())           // {Name: "ab", Problem: ProblemTooShort}
func Normalize(raw string, rules Rules) Candidate {
	if !rules.Valid() {
		rules = DefaultRules()
	}

	name := fold(raw)
	if len(name) > rules.MaxLength {
		name = strings.TrimRight(name[:rules.MaxLength], "-")
	}

	switch {
	case name == "":
		return Candidate{Problem: ProblemEmpty}
	case len(name) < rules.MinLength:
		return Candidate{Name: name, Problem: ProblemTooShort}
	}
	return Candidate{Name: name}
}

// Canonical folds requested the same way Normalize does but applies no
// length rules and never truncates, so a lookup with the result matches
// exactly one stored name or none. ok is false when nothing is left or the
// result is longer than a DNS label.
//
//	Canonical("Acme")  // "acme", true
//	Canonical("!!")    // "", false
func Canonical(requested string) (name string, ok bool) {
	name = fold(requested)
	return name, name != "" && len(name) <= MaxLabelLength
}

// fold applies every Normalize rule except the length bounds.
func fold(raw string) string {
	if n := 0; len(raw) > MaxRawLength {
		for i := range raw {
			if n == MaxRawLength {
				raw = raw[:i]
				break
			}
			n++
		}
	}

	var b strings.Builder
	b.Grow(len(raw))
	lastHyphen := true // suppresses a leading hyphen
	for _, r := range foldAccents(raw) {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// foldAccents removes combining marks after canonical decomposition.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
