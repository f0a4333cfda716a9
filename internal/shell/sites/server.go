package sites

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/artpar/sitehost/internal/core/site"
	"github.com/gorilla/mux"
)

//go:embed templates/*.html
var templatesFS embed.FS

const siteCacheControl = "public, max-age=300"

// Config holds site server configuration.
type Config struct {
	BaseDomain string // Shared domain for host routing, e.g., "sites.example.com"
	PathPrefix string // Path segment for path routing, e.g., "site"
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		BaseDomain: "sites.localhost",
		PathPrefix: site.DefaultPathPrefix,
	}
}

// Server serves published sites by host (<name>.<base-domain>) and by path
// (/<prefix>/<name>).
type Server struct {
	resolver *Resolver
	parser   site.HostnameParser
	logger   *slog.Logger
	config   Config
	router   *mux.Router
	errTmpl  *template.Template
}

// NewServer creates a new site server.
func NewServer(cfg Config, resolver *Resolver, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = site.DefaultPathPrefix
	}
	cfg.PathPrefix = strings.Trim(cfg.PathPrefix, "/")

	errTmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		resolver: resolver,
		parser:   site.HostnameParser{BaseDomain: cfg.BaseDomain},
		logger:   logger,
		config:   cfg,
		errTmpl:  errTmpl,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	// Health endpoint - responds regardless of hostname
	r.HandleFunc("/health", s.serveHealth).Methods(http.MethodGet)

	// Host routing takes every path on a site hostname.
	hosted := r.MatcherFunc(s.matchSiteHost).Subrouter()
	hosted.PathPrefix("/").HandlerFunc(s.serveHost).Methods(http.MethodGet, http.MethodHead)

	// Path routing on any other hostname.
	prefix := "/" + s.config.PathPrefix + "/{name}"
	r.HandleFunc(prefix, s.servePath).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(prefix+"/", s.servePath).Methods(http.MethodGet, http.MethodHead)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serveNotFound(w, "")
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) matchSiteHost(r *http.Request, _ *mux.RouteMatch) bool {
	_, ok := s.parser.Parse(r.Host)
	return ok
}

func (s *Server) serveHost(w http.ResponseWriter, r *http.Request) {
	name, _ := s.parser.Parse(r.Host)
	// A site is a single document.
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		s.serveNotFound(w, name)
		return
	}
	s.serveSite(w, r, name)
}

func (s *Server) servePath(w http.ResponseWriter, r *http.Request) {
	s.serveSite(w, r, mux.Vars(r)["name"])
}

// serveSite writes the rendered snapshot for name. If-None-Match and HEAD
// are handled by http.ServeContent using the content ETag.
func (s *Server) serveSite(w http.ResponseWriter, r *http.Request, name string) {
	published, err := s.resolver.Resolve(r.Context(), name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to resolve site", "name", name, "error", err)
		}
		s.serveNotFound(w, name)
		return
	}

	s.logger.Debug("serving site",
		"name", published.Name,
		"host", r.Host,
		"path", r.URL.Path,
	)

	document := site.Render(published.Content)
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", siteCacheControl)
	h.Set("ETag", site.ETag(document))
	h.Set("X-Content-Type-Options", "nosniff")

	http.ServeContent(w, r, "index.html", published.PublishedAt, strings.NewReader(document))
}

// serveNotFound writes the same page for every miss.
func (s *Server) serveNotFound(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNotFound)

	data := map[string]interface{}{
		"Name": name,
	}
	if err := s.errTmpl.ExecuteTemplate(w, "not_found.html", data); err != nil {
		s.logger.Error("failed to execute not found template", "error", err)
	}
}

// HealthResponse is the JSON response for the health endpoint.
type HealthResponse struct {
	Status         string `json:"status"`
	SitesPublished int    `json:"sites_published"`
	BaseDomain     string `json:"base_domain"`
}

// serveHealth handles the /health endpoint.
func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.resolver.Count(r.Context())
	if err != nil {
		s.logger.Error("failed to count published sites", "error", err)
		// Still return healthy but with 0 count
		count = 0
	}

	resp := HealthResponse{
		Status:         "ok",
		SitesPublished: count,
		BaseDomain:     s.config.BaseDomain,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
