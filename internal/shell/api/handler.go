// Package api provides HTTP handlers for the owner API: project management,
// name availability, publish and unpublish.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/artpar/sitehost/internal/core/auth"
	"github.com/artpar/sitehost/internal/core/domain"
	corepublish "github.com/artpar/sitehost/internal/core/publish"
	apimiddleware "github.com/artpar/sitehost/internal/shell/api/middleware"
	"github.com/artpar/sitehost/internal/shell/api/openapi"
	"github.com/artpar/sitehost/internal/shell/publish"
	"github.com/artpar/sitehost/internal/shell/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds request bodies; drafts carry whole pages.
const maxBodyBytes = 5 << 20

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds owner API settings.
type Config struct {
	Auth apimiddleware.AuthConfig

	// Checks are pinged by /ready, keyed by the name reported in the response.
	Checks map[string]Pinger
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	publisher *publish.Service
	config    Config
	spec      *openapi.Generator
	logger    *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *publish.Service, cfg Config, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = l
	}
	h := &Handler{
		publisher: svc,
		config:    cfg,
		spec:      openapi.NewGenerator("Sitehost API", "1.0.0"),
		logger:    l,
	}
	h.spec.Register(apiRoutes()...)
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.json", h.spec.Handler())
		r.Get("/public-url/{name}", h.handlePublicURL)

		authCfg := h.config.Auth
		if authCfg.Logger == nil {
			authCfg.Logger = h.logger
		}
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.NewAuthenticator(authCfg).Handler)
			r.Use(apimiddleware.RequireAuth(h.logger))

			r.Get("/availability", h.handleAvailability)

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", h.handleCreateProject)
				r.Get("/", h.handleListProjects)
				r.Get("/{id}", h.handleGetProject)
				r.Delete("/{id}", h.handleDeleteProject)
				r.Put("/{id}/draft", h.handleSaveDraft)
				r.Put("/{id}/name", h.handleRenameProject)
				r.Put("/{id}/metadata", h.handleUpdateMetadata)
				r.Post("/{id}/duplicate", h.handleDuplicateProject)
				r.Post("/{id}/publish", h.handlePublish)
				r.Post("/{id}/unpublish", h.handleUnpublish)
			})
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.config.Checks))
	ready := true
	for name, p := range h.config.Checks {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = "failed"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Checks: checks})
		return
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
}

// =============================================================================
// Name Handlers
// =============================================================================

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	projectID := r.URL.Query().Get("project_id")

	availability, err := h.publisher.CheckAvailability(r.Context(), name, requester(r), projectID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := AvailabilityResponse{
		Name:      availability.Name,
		Status:    string(availability.Status),
		Available: availability.Available(),
		Reason:    string(availability.Reason),
	}
	if resp.Available {
		resp.PublicURL = h.publisher.PublicURL(availability.Name)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePublicURL(w http.ResponseWriter, r *http.Request) {
	name, url, err := h.publisher.PublicURLFor(chi.URLParam(r, "name"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PublicURLResponse{Name: name, URL: url})
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := publish.PublishRequest{
		RequesterID: requester(r),
		ProjectID:   chi.URLParam(r, "id"),
		RawName:     req.Name,
	}
	if req.Content != nil {
		content := toContent(*req.Content)
		in.Content = &content
	}

	result, err := h.publisher.Publish(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, PublishResponse{
		Name:    result.Name,
		URL:     result.URL,
		Project: h.projectToResponse(result.Project),
	})
}

func (h *Handler) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	project, err := h.publisher.Unpublish(r.Context(), requester(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.projectToResponse(project))
}

// =============================================================================
// Project Handlers
// =============================================================================

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	project, err := h.publisher.CreateProject(r.Context(), publish.CreateProjectRequest{
		OwnerID:      requester(r),
		Name:         req.Name,
		TemplateSlug: req.TemplateSlug,
		Draft:        toContent(req.Draft),
		Metadata:     domain.Metadata{BusinessInfo: req.BusinessInfo, SEO: req.SEO},
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.projectToResponse(project))
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "limit must be an integer", "validation_error")
			return
		}
		opts.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "offset must be an integer", "validation_error")
			return
		}
		opts.Offset = offset
	}
	opts = opts.Normalize()

	projects, err := h.publisher.ListProjects(r.Context(), requester(r), opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := ProjectListResponse{
		Projects: make([]ProjectResponse, 0, len(projects)),
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	}
	for i := range projects {
		resp.Projects = append(resp.Projects, h.projectToResponse(&projects[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.publisher.GetProject(r.Context(), requester(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.projectToResponse(project))
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req ContentBody
	if !h.decode(w, r, &req) {
		return
	}

	project, err := h.publisher.SaveDraft(r.Context(), requester(r), chi.URLParam(r, "id"), toContent(req))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.projectToResponse(project))
}

func (h *Handler) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	var req RenameProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	project, err := h.publisher.RenameProject(r.Context(), requester(r), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.projectToResponse(project))
}

func (h *Handler) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req UpdateMetadataRequest
	if !h.decode(w, r, &req) {
		return
	}

	meta := domain.Metadata{BusinessInfo: req.BusinessInfo, SEO: req.SEO}
	project, err := h.publisher.UpdateMetadata(r.Context(), requester(r), chi.URLParam(r, "id"), meta)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.projectToResponse(project))
}

func (h *Handler) handleDuplicateProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.publisher.DuplicateProject(r.Context(), requester(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.projectToResponse(project))
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.publisher.DeleteProject(r.Context(), requester(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

// requester returns the authenticated user ID. Routes that call it sit
// behind RequireAuth.
func requester(r *http.Request) string {
	return auth.FromContext(r.Context()).UserID
}

// decode reads a JSON body into v, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "validation_error")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writeServiceError maps a publishing error to its HTTP status. Storage
// faults are reported as retryable without exposing the cause.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var pErr *corepublish.Error
	if !errors.As(err, &pErr) {
		h.logger.Error("unclassified service error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error", "internal_error")
		return
	}

	resp := ErrorResponse{
		Error:  pErr.Message,
		Code:   pErr.Kind.String(),
		Reason: pErr.Reason,
	}
	if pErr.Kind.Retryable() {
		resp.Error = "storage temporarily unavailable, try again"
		w.Header().Set("Retry-After", "1")
	}
	h.writeJSON(w, pErr.Kind.StatusCode(), resp)
}

func (h *Handler) projectToResponse(p *domain.Project) ProjectResponse {
	resp := ProjectResponse{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Name:          p.Name,
		TemplateSlug:  p.TemplateSlug,
		Status:        string(p.Status),
		PublishedName: p.PublishedName,
		PublishedAt:   p.PublishedAt,
		Draft:         fromContent(p.Draft),
		Published:     fromContent(p.Published),
		BusinessInfo:  p.Metadata.BusinessInfo,
		SEO:           p.Metadata.SEO,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.IsPublished() {
		resp.PublicURL = h.publisher.PublicURL(p.PublishedName)
	}
	if resp.BusinessInfo == nil {
		resp.BusinessInfo = map[string]any{}
	}
	if resp.SEO == nil {
		resp.SEO = map[string]any{}
	}
	return resp
}
