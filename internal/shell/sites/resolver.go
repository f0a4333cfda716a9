// Package sites implements the public serving path: resolving a requested
// name to its published snapshot and the HTTP server that delivers it.
package sites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artpar/sitehost/internal/core/domain"
	"github.com/artpar/sitehost/internal/core/naming"
	"github.com/artpar/sitehost/internal/core/site"
	"github.com/artpar/sitehost/internal/shell/store"
)

// ErrNotFound is returned for every miss: invalid names, names never used,
// and names whose project is currently unpublished are indistinguishable.
var ErrNotFound = errors.New("site not found")

// Registry is the read side of the store used by the serving path.
type Registry interface {
	GetPublishedProjectByName(ctx context.Context, name string) (*domain.Project, error)
	CountPublishedProjects(ctx context.Context) (int, error)
}

// Cache is an optional read-through cache of snapshots. Generation is read
// before the Registry lookup and handed back to Put, which must skip the
// fill if the name was invalidated in between.
type Cache interface {
	Get(ctx context.Context, name string) (*site.PublishedSite, bool, error)
	Generation(ctx context.Context, name string) (int64, error)
	Put(ctx context.Context, s *site.PublishedSite, generation int64) (bool, error)
}

// Resolver maps requested names to published snapshots.
type Resolver struct {
	registry Registry
	policy   naming.Source
	cache    Cache
	logger   *slog.Logger
}

// NewResolver creates a new Resolver. cache may be nil.
func NewResolver(r Registry, policy naming.Source, cache Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = naming.DefaultPolicy()
	}
	return &Resolver{
		registry: r,
		policy:   policy,
		cache:    cache,
		logger:   logger,
	}
}

// Resolve returns the published snapshot for requested. "Acme" and "acme"
// are the same site, but the lookup never applies the current length rules:
// a name published under older rules stays reachable, and a request is
// never truncated into somebody else's name. Names the current policy
// reserves are not served. Only the snapshot is ever returned, never the
// draft.
func (r *Resolver) Resolve(ctx context.Context, requested string) (*site.PublishedSite, error) {
	name, ok := naming.Canonical(requested)
	if !ok || r.policy.Current().IsReserved(name) {
		return nil, ErrNotFound
	}

	var (
		gen  int64
		fill bool
	)
	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, name)
		if err != nil {
			r.logger.Warn("site cache read failed", "name", name, "error", err)
		} else if ok {
			return cached, nil
		}
		if gen, err = r.cache.Generation(ctx, name); err == nil {
			fill = true
		}
	}

	project, err := r.registry.GetPublishedProjectByName(ctx, name)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve site %s: %w", name, err)
	}

	published, ok := site.FromProject(project)
	if !ok {
		return nil, ErrNotFound
	}

	if fill {
		stored, err := r.cache.Put(ctx, &published, gen)
		switch {
		case err != nil:
			r.logger.Warn("site cache write failed", "name", name, "error", err)
		case !stored:
			r.logger.Debug("site changed during lookup, not cached", "name", name)
		}
	}
	return &published, nil
}

// Count returns the number of published sites.
func (r *Resolver) Count(ctx context.Context) (int, error) {
	return r.registry.CountPublishedProjects(ctx)
}
