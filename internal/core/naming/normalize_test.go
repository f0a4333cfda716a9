package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Normalize Tests
// =============================================================================

func TestNormalize_Basic(t *testing.T) {
	c := Normalize("My Studio!!", DefaultRules())
	assert.Equal(t, "my-studio", c.Name)
	assert.True(t, c.Usable())
}

func TestNormalize_Accents(t *testing.T) {
	c := Normalize("Café Noir", DefaultRules())
	assert.Equal(t, "cafe-noir", c.Name)
}

func TestNormalize_Empty(t *testing.T) {
	c := Normalize("", DefaultRules())
	assert.Equal(t, ProblemEmpty, c.Problem)
	assert.Empty(t, c.Name)
	assert.False(t, c.Usable())
}

func TestNormalize_OnlyIllegalChars(t *testing.T) {
	c := Normalize("!@#$%^&*()", DefaultRules())
	assert.Equal(t, ProblemEmpty, c.Problem)
}

func TestNormalize_TooShort(t *testing.T) {
	c := Normalize("Ab", DefaultRules())
	assert.Equal(t, ProblemTooShort, c.Problem)
	assert.Equal(t, "ab", c.Name, "short names are flagged, not padded")
}

func TestNormalize_TruncatesToMaxLength(t *testing.T) {
	c := Normalize(strings.Repeat("a", 50), DefaultRules())
	assert.Len(t, c.Name, 30)
}

func TestNormalize_TruncationDoesNotLeaveTrailingHyphen(t *testing.T) {
	raw := strings.Repeat("a", 29) + " bcd"
	c := Normalize(raw, DefaultRules())
	assert.Equal(t, strings.Repeat("a", 29), c.Name)
}

func TestNormalize_IgnoresInputPastRawLimit(t *testing.T) {
	raw := strings.Repeat("é", MaxRawLength) + "zzz"
	c := Normalize(raw, Rules{MinLength: 3, MaxLength: 63})
	assert.NotContains(t, c.Name, "z")
}

func TestNormalize_InvalidRulesFallBackToDefaults(t *testing.T) {
	c := Normalize(strings.Repeat("a", 40), Rules{})
	assert.Len(t, c.Name, 30)
}

// =============================================================================
// Table-Driven Tests
// =============================================================================

func TestNormalize_TableDriven(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		problem  Problem
	}{
		{"lowercase", "acme", "acme", ProblemNone},
		{"uppercase", "ACME", "acme", ProblemNone},
		{"spaces", "hello world", "hello-world", ProblemNone},
		{"collapse hyphens", "a--b---c", "a-b-c", ProblemNone},
		{"collapse separators", "hello   world", "hello-world", ProblemNone},
		{"trim edges", " -trim me- ", "trim-me", ProblemNone},
		{"underscores", "hello_world", "hello-world", ProblemNone},
		{"dots", "v1.api.shop", "v1-api-shop", ProblemNone},
		{"digits", "studio42", "studio42", ProblemNone},
		{"non latin", "日本語", "", ProblemEmpty},
		{"single char", "x", "x", ProblemTooShort},
		{"hyphens only", "---", "", ProblemEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Normalize(tt.input, DefaultRules())
			assert.Equal(t, tt.expected, c.Name)
			assert.Equal(t, tt.problem, c.Problem)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"My Studio!!",
		"Café Noir",
		"  --Weird__Name--  ",
		strings.Repeat("ab-", 40),
		strings.Repeat("a", 29) + "-b",
		"ÀÉÎÕÜ ñ ç",
		"x",
		"",
		"日本語 shop",
	}

	for _, in := range inputs {
		once := Normalize(in, DefaultRules())
		twice := Normalize(once.Name, DefaultRules())
		assert.Equal(t, once.Name, twice.Name, "input %q", in)
		if once.Usable() {
			assert.True(t, twice.Usable(), "input %q", in)
		}
	}
}

// =============================================================================
// Canonical Tests
// =============================================================================

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Acme", "acme", true},
		{" Café Noir ", "cafe-noir", true},
		{"ab", "ab", true},
		{"x", "x", true},
		{strings.Repeat("a", 40), strings.Repeat("a", 40), true},
		{strings.Repeat("a", MaxLabelLength), strings.Repeat("a", MaxLabelLength), true},
		{strings.Repeat("a", MaxLabelLength+1), strings.Repeat("a", MaxLabelLength+1), false},
		{"!!", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		name, ok := Canonical(tt.in)
		assert.Equal(t, tt.want, name, "input %q", tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestCanonical_AgreesWithNormalizeWithinBounds(t *testing.T) {
	for _, in := range []string{"My Studio!!", "Café Noir", "  --Weird__Name--  ", "日本語 shop"} {
		name, ok := Canonical(in)
		assert.True(t, ok, in)
		assert.Equal(t, Normalize(in, DefaultRules()).Name, name, in)
	}
}

func TestCanonical_NeverTruncates(t *testing.T) {
	long := strings.Repeat("a", 31)
	assert.Equal(t, strings.Repeat("a", 30), Normalize(long, DefaultRules()).Name)

	name, ok := Canonical(long)
	assert.True(t, ok)
	assert.Equal(t, long, name)
}
