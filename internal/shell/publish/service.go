// Package publish provides the publishing write path with I/O.
// This is part of the Imperative Shell - it runs the pure naming rules and the
// project state machine against the Registry inside one transaction.
package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/artpar/sitehost/internal/core/domain"
	"github.com/artpar/sitehost/internal/core/naming"
	corepublish "github.com/artpar/sitehost/internal/core/publish"
	"github.com/artpar/sitehost/internal/core/site"
	"github.com/artpar/sitehost/internal/shell/store"
)

// =============================================================================
// Publishing Service
// =============================================================================

// Config holds publishing settings.
type Config struct {
	// ReleaseCooldown keeps a released name away from other projects for this
	// long. Zero releases names immediately.
	ReleaseCooldown time.Duration

	// URLs formats the public address returned after a publish.
	URLs site.URLBuilder
}

// Service checks, claims, and releases published names.
type Service struct {
	store  store.Store
	policy naming.Source
	config Config
	hooks  []Hook
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new publishing service.
// hooks run after every committed publish, unpublish, or delete.
func NewService(s store.Store, policy naming.Source, config Config, logger *slog.Logger, hooks ...Hook) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = naming.DefaultPolicy()
	}
	return &Service{
		store:  s,
		policy: policy,
		config: config,
		hooks:  hooks,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PublicURL returns the public address of a published name.
func (s *Service) PublicURL(name string) string {
	return s.config.URLs.Build(name)
}

// PublicURLFor folds raw the way the serving path does and returns the
// resulting name with its address. Input that folds to nothing usable is an
// invalid name.
func (s *Service) PublicURLFor(raw string) (name, url string, err error) {
	name, ok := naming.Canonical(raw)
	if !ok {
		reason := naming.ProblemEmpty
		if name != "" {
			reason = naming.ProblemTooLong
		}
		return "", "", corepublish.NewInvalidNameError(name, string(reason))
	}
	return name, s.config.URLs.Build(name), nil
}

// =============================================================================
// Availability
// =============================================================================

// CheckAvailability reports whether projectID could publish under rawName.
// projectID only counts when requesterID owns it; any other ID is treated as
// absent, so the answer never reveals which project holds a name.
// The answer is advisory: Publish makes the real claim. Storage faults are
// returned as errors, never as a "taken" answer.
func (s *Service) CheckAvailability(ctx context.Context, rawName, requesterID, projectID string) (naming.Availability, error) {
	c, availability, done := naming.Precheck(rawName, s.policy.Current())
	if done {
		return availability, nil
	}

	if projectID != "" {
		if _, err := s.loadOwned(ctx, s.store, requesterID, projectID); err != nil {
			if corepublish.IsKind(err, corepublish.KindStorageFailure) {
				s.logger.Error("availability check failed", "project_id", projectID, "error", err)
				return naming.Availability{}, err
			}
			projectID = ""
		}
	}

	holder, err := s.holderOf(ctx, s.store, c.Name)
	if err != nil {
		s.logger.Error("availability check failed", "name", c.Name, "error", err)
		return naming.Availability{}, corepublish.NewStorageError("check availability", err)
	}
	return naming.Classify(c.Name, holder, projectID), nil
}

// holderOf finds who holds name: the published project, or the project that
// released it within the cooldown.
func (s *Service) holderOf(ctx context.Context, st store.Store, name string) (naming.Holder, error) {
	current, err := st.GetPublishedProjectByName(ctx, name)
	if err == nil {
		return naming.Holder{ProjectID: current.ID}, nil
	}
	if !store.IsNotFound(err) {
		return naming.Holder{}, err
	}

	if s.config.ReleaseCooldown <= 0 {
		return naming.Holder{}, nil
	}
	release, err := st.GetRelease(ctx, name)
	if err != nil {
		if store.IsNotFound(err) {
			return naming.Holder{}, nil
		}
		return naming.Holder{}, err
	}
	if s.now().Sub(release.ReleasedAt) < s.config.ReleaseCooldown {
		return naming.Holder{ProjectID: release.ProjectID, CoolingDown: true}, nil
	}
	return naming.Holder{}, nil
}

// =============================================================================
// Publish
// =============================================================================

// PublishRequest contains the input for publishing a project.
type PublishRequest struct {
	// RequesterID is the authenticated user making the call.
	RequesterID string

	// ProjectID is the project to publish.
	ProjectID string

	// RawName is the name as typed; it is normalized before use.
	RawName string

	// Content replaces the draft and becomes the snapshot. When nil the
	// stored draft is published as-is.
	Content *domain.Content
}

// PublishResult contains the outcome of a successful publish.
type PublishResult struct {
	Name    string
	URL     string
	Project *domain.Project
}

// Publish claims the name for the project and stores a fresh snapshot.
//
// The claim, snapshot, status, and timestamp are written by a single row
// update inside one transaction. The unique index on published names makes
// the database the arbiter when two projects race for the same name; the
// loser gets NameTaken and nothing about its project changes.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	c, availability, done := naming.Precheck(req.RawName, s.policy.Current())
	if done {
		if availability.Status == naming.StatusReserved {
			s.logger.Info("publish rejected: reserved name", "project_id", req.ProjectID, "name", c.Name)
			return nil, corepublish.NewReservedNameError(c.Name)
		}
		s.logger.Info("publish rejected: invalid name", "project_id", req.ProjectID, "name", c.Name, "reason", c.Problem)
		return nil, corepublish.NewInvalidNameError(c.Name, string(c.Problem))
	}

	var (
		published *domain.Project
		previous  string
	)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		project, err := s.loadOwned(ctx, tx, req.RequesterID, req.ProjectID)
		if err != nil {
			return err
		}

		holder, err := s.holderOf(ctx, tx, c.Name)
		if err != nil {
			return corepublish.NewStorageError("look up name holder", err)
		}
		if !naming.Classify(c.Name, holder, project.ID).Available() {
			return corepublish.NewNameTakenError(c.Name)
		}

		content := project.Draft
		if req.Content != nil {
			content = *req.Content
		}
		now := s.now()
		previous, err = project.Publish(c.Name, content, now)
		if err != nil {
			return corepublish.NewInvalidNameError(c.Name, string(naming.ProblemEmpty))
		}

		if err := tx.UpdateProject(ctx, project); err != nil {
			if store.IsNameConflict(err) {
				return corepublish.NewNameTakenError(c.Name)
			}
			return corepublish.NewStorageError("claim name", err)
		}
		if previous != "" {
			if err := tx.RecordRelease(ctx, store.Release{Name: previous, ProjectID: project.ID, ReleasedAt: now}); err != nil {
				return corepublish.NewStorageError("record release", err)
			}
		}

		published = project
		return nil
	})
	if err != nil {
		err = s.classify("publish", c.Name, err)
		s.logOutcome("publish", req.ProjectID, c.Name, err)
		return nil, err
	}

	s.logger.Info("project published",
		"project_id", published.ID,
		"name", published.PublishedName,
		"previous_name", previous,
	)
	s.sitePublished(ctx, published, previous)

	return &PublishResult{
		Name:    published.PublishedName,
		URL:     s.PublicURL(published.PublishedName),
		Project: published,
	}, nil
}

// =============================================================================
// Unpublish
// =============================================================================

// Unpublish takes the project offline and releases its name. The draft and
// the last snapshot are kept. Unpublishing a draft project succeeds without
// changing anything.
func (s *Service) Unpublish(ctx context.Context, requesterID, projectID string) (*domain.Project, error) {
	var (
		project  *domain.Project
		released string
	)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		p, err := s.loadOwned(ctx, tx, requesterID, projectID)
		if err != nil {
			return err
		}
		project = p

		now := s.now()
		released = p.Unpublish(now)
		if released == "" {
			return nil
		}
		if err := tx.UpdateProject(ctx, p); err != nil {
			return corepublish.NewStorageError("release name", err)
		}
		if err := tx.RecordRelease(ctx, store.Release{Name: released, ProjectID: p.ID, ReleasedAt: now}); err != nil {
			return corepublish.NewStorageError("record release", err)
		}
		return nil
	})
	if err != nil {
		err = s.classify("unpublish", "", err)
		s.logOutcome("unpublish", projectID, "", err)
		return nil, err
	}

	if released != "" {
		s.logger.Info("project unpublished", "project_id", projectID, "name", released)
		s.siteRemoved(ctx, projectID, released)
	}
	return project, nil
}

// =============================================================================
// Helpers
// =============================================================================

// loadOwned reads a project and checks that requesterID owns it.
func (s *Service) loadOwned(ctx context.Context, st store.Store, requesterID, projectID string) (*domain.Project, error) {
	project, err := st.GetProject(ctx, projectID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, corepublish.NewProjectNotFoundError(projectID)
		}
		return nil, corepublish.NewStorageError("load project", err)
	}
	if !project.OwnedBy(requesterID) {
		return nil, corepublish.NewUnauthorizedError(projectID)
	}
	return project, nil
}

// classify makes sure every error leaving the service carries a Kind.
// Errors raised by the transaction itself (begin, commit) arrive untyped.
func (s *Service) classify(op, name string, err error) error {
	if corepublish.KindOf(err) != corepublish.KindUnknown {
		return err
	}
	if store.IsNameConflict(err) {
		return corepublish.NewNameTakenError(name)
	}
	return corepublish.NewStorageError(op, err)
}

// logOutcome logs expected outcomes quietly and faults loudly.
func (s *Service) logOutcome(op, projectID, name string, err error) {
	kind := corepublish.KindOf(err)
	if kind.Expected() {
		s.logger.Info(op+" rejected", "project_id", projectID, "name", name, "kind", kind.String())
		return
	}
	s.logger.Error(op+" failed", "project_id", projectID, "name", name, "error", err)
}
