package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/artpar/sitehost/internal/core/naming"
	"github.com/artpar/sitehost/internal/core/site"
	"github.com/artpar/sitehost/internal/shell/api"
	apimiddleware "github.com/artpar/sitehost/internal/shell/api/middleware"
	"github.com/artpar/sitehost/internal/shell/cache"
	"github.com/artpar/sitehost/internal/shell/mirror"
	"github.com/artpar/sitehost/internal/shell/policy"
	"github.com/artpar/sitehost/internal/shell/publish"
	"github.com/artpar/sitehost/internal/shell/sites"
	"github.com/artpar/sitehost/internal/shell/store"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitCacheError      = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server runs the owner API and the public site server.
type Server struct {
	config     *Config
	httpServer *http.Server
	siteServer *http.Server
	store      *store.SQLStore
	redis      *redis.Client
	policy     *policy.Holder
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Load the reservation policy before touching storage.
	var initial *naming.Policy
	if cfg.Policy.File != "" {
		p, err := policy.Load(cfg.Policy.File)
		if err != nil {
			return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
		}
		initial = p
	}
	holder := policy.NewHolder(initial, logger)
	logger.Info("reservation policy in force",
		"version", holder.Current().Version(),
		"reserved", len(holder.Current().Reserved()),
	)

	// Connect to database
	if store.DialectFor(cfg.Database.DSN) == store.DialectSQLite && cfg.Database.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDatabaseError}
		}
	}
	s, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitDatabaseError}
	}
	logger.Info("database ready", "dialect", s.Dialect())

	checks := map[string]api.Pinger{"database": s}
	var hooks []publish.Hook

	// Snapshot cache, shared by the write path (invalidation) and the
	// read path (lookups).
	var redisClient *redis.Client
	var siteCache sites.Cache
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		c := cache.NewSiteCache(redisClient, cfg.Cache.TTL)
		if err := c.Ping(context.Background()); err != nil {
			redisClient.Close()
			s.Close()
			return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitCacheError}
		}
		siteCache = c
		hooks = append(hooks, c)
		checks["cache"] = c
		logger.Info("site cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
	}

	if cfg.Mirror.Enabled {
		mcfg := mirror.Config{
			Bucket:          cfg.Mirror.Bucket,
			Prefix:          cfg.Mirror.Prefix,
			Region:          cfg.Mirror.Region,
			Endpoint:        cfg.Mirror.Endpoint,
			AccessKeyID:     cfg.Mirror.AccessKeyID,
			SecretAccessKey: cfg.Mirror.SecretAccessKey,
			UsePathStyle:    cfg.Mirror.UsePathStyle,
		}
		hooks = append(hooks, mirror.NewS3Mirror(mirror.NewClient(mcfg), mcfg, logger))
		logger.Info("snapshot mirror enabled", "bucket", cfg.Mirror.Bucket, "prefix", cfg.Mirror.Prefix)
	}

	urls := site.URLBuilder{
		Scheme:     cfg.Sites.Scheme,
		BaseDomain: cfg.Sites.BaseDomain,
		Style:      site.RoutingStyle(cfg.Sites.Routing),
		PathPrefix: cfg.Sites.PathPrefix,
	}
	svc := publish.NewService(s, holder, publish.Config{
		ReleaseCooldown: cfg.Publishing.ReleaseCooldown,
		URLs:            urls,
	}, logger, hooks...)

	// Owner API
	handler := api.NewHandler(svc, api.Config{
		Auth: apimiddleware.AuthConfig{
			Mode:         cfg.Auth.Mode,
			SharedSecret: cfg.Auth.SharedSecret,
			DevUserID:    cfg.Auth.DevUserID,
		},
		Checks: checks,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Public site server
	siteHandler, err := sites.NewServer(sites.Config{
		BaseDomain: cfg.Sites.BaseDomain,
		PathPrefix: cfg.Sites.PathPrefix,
	}, sites.NewResolver(s, holder, siteCache, logger), logger)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		s.Close()
		return nil, &ServerError{Op: "NewServer", Err: err, ExitCode: ExitConfigError}
	}

	siteServer := &http.Server{
		Addr:         cfg.Sites.Address(),
		Handler:      siteHandler,
		ReadTimeout:  cfg.Sites.ReadTimeout,
		WriteTimeout: cfg.Sites.WriteTimeout,
		IdleTimeout:  cfg.Sites.IdleTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		siteServer: siteServer,
		store:      s,
		redis:      redisClient,
		policy:     holder,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if s.config.Policy.File != "" && s.config.Policy.Watch {
		go func() {
			if err := s.policy.Watch(ctx, s.config.Policy.File); err != nil {
				s.logger.Error("policy watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("starting site server",
			"address", s.config.Sites.Address(),
			"base_domain", s.config.Sites.BaseDomain)
		if err := s.siteServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.Shutdown(context.Background())
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := s.siteServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("site server shutdown error", "error", err)
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("redis close error", "error", err)
		}
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
