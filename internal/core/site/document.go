package site

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/artpar/sitehost/internal/core/domain"
	"golang.org/x/crypto/blake2b"
)

// PublishedSite is what the public surface serves for a name: the immutable
// snapshot taken at publish time plus pass-through display metadata.
// It never carries draft content.
type PublishedSite struct {
	ProjectID   string          `json:"project_id"`
	Name        string          `json:"name"`
	Content     domain.Content  `json:"content"`
	Metadata    domain.Metadata `json:"metadata"`
	PublishedAt time.Time       `json:"published_at"`
}

// FromProject builds the served view of a published project.
// Returns false if the project is not published.
func FromProject(p *domain.Project) (PublishedSite, bool) {
	if p == nil || !p.IsPublished() || p.PublishedName == "" {
		return PublishedSite{}, false
	}
	s := PublishedSite{
		ProjectID: p.ID,
		Name:      p.PublishedName,
		Content:   p.Published,
		Metadata:  p.Metadata,
	}
	if p.PublishedAt != nil {
		s.PublishedAt = *p.PublishedAt
	}
	return s, true
}

// =============================================================================
// Rendering
// =============================================================================

// Render produces the HTML document served for a snapshot, with the CSS
// inlined in a <style> element. The HTML itself is never rewritten:
//   - a full document gets the style inserted before </head> (or <body>)
//   - a fragment is wrapped in a minimal document
func Render(c domain.Content) string {
	if indexFold(c.HTML, "<html") == -1 {
		return wrapFragment(c)
	}
	if c.CSS == "" {
		return c.HTML
	}

	style := styleElement(c.CSS)
	if idx := indexFold(c.HTML, "</head>"); idx != -1 {
		return c.HTML[:idx] + style + c.HTML[idx:]
	}
	if idx := indexFold(c.HTML, "<body"); idx != -1 {
		return c.HTML[:idx] + "<head>" + style + "</head>\n" + c.HTML[idx:]
	}
	// <html ...> with neither head nor body: put the style right after the tag.
	idx := indexFold(c.HTML, "<html")
	if end := strings.IndexByte(c.HTML[idx:], '>'); end != -1 {
		at := idx + end + 1
		return c.HTML[:at] + style + c.HTML[at:]
	}
	return c.HTML + style
}

func wrapFragment(c domain.Content) string {
	var b strings.Builder
	b.Grow(len(c.HTML) + len(c.CSS) + 160)
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	if c.CSS != "" {
		b.WriteString(styleElement(c.CSS))
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(c.HTML)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

func styleElement(css string) string {
	return "<style>\n" + css + "\n</style>\n"
}

// indexFold returns the index of the first ASCII case-insensitive match of
// tag in s, or -1.
func indexFold(s, tag string) int {
	n := len(tag)
	for i := 0; i+n <= len(s); i++ {
		if s[i] == '<' && strings.EqualFold(s[i:i+n], tag) {
			return i
		}
	}
	return -1
}

// ETag returns a strong entity tag for a rendered document.
func ETag(document string) string {
	sum := blake2b.Sum256([]byte(document))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
