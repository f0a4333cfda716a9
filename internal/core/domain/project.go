package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Project Errors
// =============================================================================

var (
	ErrOwnerRequired       = errors.New("owner is required")
	ErrProjectNameRequired = errors.New("project name is required")
	ErrNameRequired        = errors.New("published name is required")
)

// =============================================================================
// Project Status
// =============================================================================

type ProjectStatus string

const (
	StatusDraft     ProjectStatus = "draft"
	StatusPublished ProjectStatus = "published"
)

// =============================================================================
// Content
// =============================================================================

// Content is an editor-produced HTML/CSS pair. It is opaque to this system:
// stored and served byte-for-byte, never parsed.
type Content struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
}

// IsZero returns true if both fragments are empty.
func (c Content) IsZero() bool {
	return c.HTML == "" && c.CSS == ""
}

// Metadata holds display fields (business info, SEO settings) that are passed
// through to the public surface without interpretation.
type Metadata struct {
	BusinessInfo map[string]any `json:"business_info,omitempty"`
	SEO          map[string]any `json:"seo_settings,omitempty"`
}

// =============================================================================
// Project
// =============================================================================

// Project is the unit of ownership: one editable site.
type Project struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Name          string        `json:"name"`
	TemplateSlug  string        `json:"template_slug,omitempty"`
	Draft         Content       `json:"draft"`
	Published     Content       `json:"published"`
	PublishedName string        `json:"published_name,omitempty"`
	Status        ProjectStatus `json:"status"`
	PublishedAt   *time.Time    `json:"published_at,omitempty"`
	Metadata      Metadata      `json:"metadata"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewProject creates a draft project with no published name.
func NewProject(ownerID, name, templateSlug string, draft Content) (*Project, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrProjectNameRequired
	}

	now := time.Now().UTC()
	return &Project{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Name:         name,
		TemplateSlug: templateSlug,
		Draft:        draft,
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// OwnedBy returns true if userID owns the project.
func (p *Project) OwnedBy(userID string) bool {
	return userID != "" && p.OwnerID == userID
}

// IsPublished returns true if the project is currently served publicly.
func (p *Project) IsPublished() bool {
	return p.Status == StatusPublished
}

// HasSnapshot returns true if the project has ever been published.
func (p *Project) HasSnapshot() bool {
	return !p.Published.IsZero()
}

// Publish moves the project to published under name, storing content both as
// the draft and as a fresh snapshot. name must already be normalized and
// checked against the reservation policy. It returns the name the project
// held before, if any, so the caller can release it.
func (p *Project) Publish(name string, content Content, now time.Time) (previous string, err error) {
	if name == "" {
		return "", ErrNameRequired
	}
	previous = p.PublishedName
	now = now.UTC()

	p.Draft = content
	p.Published = content
	p.PublishedName = name
	p.Status = StatusPublished
	p.PublishedAt = &now
	p.UpdatedAt = now

	if previous == name {
		previous = ""
	}
	return previous, nil
}

// Unpublish reverts the project to draft, clearing the name and timestamp.
// Draft content and the last snapshot are kept. It returns the released
// name, or "" if the project was already a draft.
func (p *Project) Unpublish(now time.Time) string {
	if p.Status != StatusPublished {
		return ""
	}
	released := p.PublishedName
	p.PublishedName = ""
	p.PublishedAt = nil
	p.Status = StatusDraft
	p.UpdatedAt = now.UTC()
	return released
}

// EditDraft replaces the draft. The published snapshot is not touched.
func (p *Project) EditDraft(content Content, now time.Time) {
	p.Draft = content
	p.UpdatedAt = now.UTC()
}

// Rename changes the display name of the project.
func (p *Project) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrProjectNameRequired
	}
	p.Name = name
	p.UpdatedAt = now.UTC()
	return nil
}

// Duplicate returns a new draft copy of the project owned by ownerID.
// The copy carries the draft and metadata but no published name or snapshot.
func (p *Project) Duplicate(ownerID string) (*Project, error) {
	dup, err := NewProject(ownerID, p.Name+" (Copy)", p.TemplateSlug, p.Draft)
	if err != nil {
		return nil, err
	}
	dup.Metadata = Metadata{
		BusinessInfo: copyMap(p.Metadata.BusinessInfo),
		SEO:          copyMap(p.Metadata.SEO),
	}
	return dup, nil
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
