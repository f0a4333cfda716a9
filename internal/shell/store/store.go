package store

import (
	"context"
	"time"

	"github.com/artpar/sitehost/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the Registry: the single source of truth for projects,
// their snapshots, and which project holds which published name.
type Store interface {
	// Project operations
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	// UpdateProject writes the whole row in one statement, so a published
	// name, snapshot, status, and timestamp change together or not at all.
	// Returns ErrNameConflict if another project already holds the name.
	UpdateProject(ctx context.Context, project *domain.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjectsByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]domain.Project, error)

	// Published name lookups (case-insensitive)
	GetPublishedProjectByName(ctx context.Context, name string) (*domain.Project, error)
	CountPublishedProjects(ctx context.Context) (int, error)

	// Released names, for the re-reservation cooldown
	RecordRelease(ctx context.Context, release Release) error
	GetRelease(ctx context.Context, name string) (*Release, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// Release records that a project gave up a published name.
type Release struct {
	Name       string
	ProjectID  string
	ReleasedAt time.Time
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
