package api

import (
	"time"

	"github.com/artpar/sitehost/internal/core/domain"
)

// =============================================================================
// Request Types
// =============================================================================

// ContentBody is an HTML/CSS pair as sent by the editor.
type ContentBody struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name         string         `json:"name"`
	TemplateSlug string         `json:"template_slug,omitempty"`
	Draft        ContentBody    `json:"draft"`
	BusinessInfo map[string]any `json:"business_info,omitempty"`
	SEO          map[string]any `json:"seo_settings,omitempty"`
}

// RenameProjectRequest is the request body for changing a project's display name.
type RenameProjectRequest struct {
	Name string `json:"name"`
}

// UpdateMetadataRequest is the request body for replacing metadata.
// Omitted objects are left unchanged.
type UpdateMetadataRequest struct {
	BusinessInfo map[string]any `json:"business_info,omitempty"`
	SEO          map[string]any `json:"seo_settings,omitempty"`
}

// PublishRequest is the request body for publishing a project.
// When Content is omitted the stored draft is published.
type PublishRequest struct {
	Name    string       `json:"name"`
	Content *ContentBody `json:"content,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// ProjectResponse is the response for project operations.
type ProjectResponse struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Name          string         `json:"name"`
	TemplateSlug  string         `json:"template_slug,omitempty"`
	Status        string         `json:"status"`
	PublishedName string         `json:"published_name,omitempty"`
	PublicURL     string         `json:"public_url,omitempty"`
	PublishedAt   *time.Time     `json:"published_at,omitempty"`
	Draft         ContentBody    `json:"draft"`
	Published     ContentBody    `json:"published"`
	BusinessInfo  map[string]any `json:"business_info"`
	SEO           map[string]any `json:"seo_settings"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ProjectListResponse is the response for listing projects.
type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// AvailabilityResponse is the response for a name availability check.
type AvailabilityResponse struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	PublicURL string `json:"public_url,omitempty"`
}

// PublishResponse is the response for a successful publish.
type PublishResponse struct {
	Name    string          `json:"name"`
	URL     string          `json:"url"`
	Project ProjectResponse `json:"project"`
}

// PublicURLResponse is the response for building a public URL.
type PublicURLResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// Conversion
// =============================================================================

func toContent(c ContentBody) domain.Content {
	return domain.Content{HTML: c.HTML, CSS: c.CSS}
}

func fromContent(c domain.Content) ContentBody {
	return ContentBody{HTML: c.HTML, CSS: c.CSS}
}
