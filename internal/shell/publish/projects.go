package publish

import (
	"context"

	"github.com/artpar/sitehost/internal/core/domain"
	corepublish "github.com/artpar/sitehost/internal/core/publish"
	"github.com/artpar/sitehost/internal/shell/store"
)

// =============================================================================
// Project Management
// =============================================================================

// CreateProjectRequest contains the input for creating a project.
type CreateProjectRequest struct {
	OwnerID      string
	Name         string
	TemplateSlug string
	Draft        domain.Content
	Metadata     domain.Metadata
}

// CreateProject stores a new draft project.
func (s *Service) CreateProject(ctx context.Context, req CreateProjectRequest) (*domain.Project, error) {
	project, err := domain.NewProject(req.OwnerID, req.Name, req.TemplateSlug, req.Draft)
	if err != nil {
		return nil, corepublish.NewInvalidInputError(err)
	}
	project.Metadata = req.Metadata

	if err := s.store.CreateProject(ctx, project); err != nil {
		s.logger.Error("failed to create project", "owner_id", req.OwnerID, "error", err)
		return nil, corepublish.NewStorageError("create project", err)
	}

	s.logger.Info("project created", "project_id", project.ID, "owner_id", project.OwnerID)
	return project, nil
}

// GetProject returns a project owned by requesterID.
func (s *Service) GetProject(ctx context.Context, requesterID, projectID string) (*domain.Project, error) {
	return s.loadOwned(ctx, s.store, requesterID, projectID)
}

// ListProjects returns the owner's projects, most recently updated first.
func (s *Service) ListProjects(ctx context.Context, ownerID string, opts store.ListOptions) ([]domain.Project, error) {
	projects, err := s.store.ListProjectsByOwner(ctx, ownerID, opts)
	if err != nil {
		return nil, corepublish.NewStorageError("list projects", err)
	}
	return projects, nil
}

// SaveDraft replaces the draft. What is served publicly does not change
// until the next publish.
func (s *Service) SaveDraft(ctx context.Context, requesterID, projectID string, content domain.Content) (*domain.Project, error) {
	return s.mutate(ctx, "save draft", requesterID, projectID, func(p *domain.Project) error {
		p.EditDraft(content, s.now())
		return nil
	})
}

// RenameProject changes the display name. The published name is unaffected.
func (s *Service) RenameProject(ctx context.Context, requesterID, projectID, name string) (*domain.Project, error) {
	return s.mutate(ctx, "rename project", requesterID, projectID, func(p *domain.Project) error {
		if err := p.Rename(name, s.now()); err != nil {
			return corepublish.NewInvalidInputError(err)
		}
		return nil
	})
}

// UpdateMetadata replaces the business info and SEO settings that are
// supplied. A nil map leaves the stored value alone. Metadata is served with
// the snapshot, so hooks are told about a live project.
func (s *Service) UpdateMetadata(ctx context.Context, requesterID, projectID string, meta domain.Metadata) (*domain.Project, error) {
	project, err := s.mutate(ctx, "update metadata", requesterID, projectID, func(p *domain.Project) error {
		if meta.BusinessInfo != nil {
			p.Metadata.BusinessInfo = meta.BusinessInfo
		}
		if meta.SEO != nil {
			p.Metadata.SEO = meta.SEO
		}
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if project.IsPublished() {
		s.sitePublished(ctx, project, "")
	}
	return project, nil
}

// DuplicateProject copies a project into a new draft for the same owner.
func (s *Service) DuplicateProject(ctx context.Context, requesterID, projectID string) (*domain.Project, error) {
	source, err := s.loadOwned(ctx, s.store, requesterID, projectID)
	if err != nil {
		return nil, err
	}

	dup, err := source.Duplicate(requesterID)
	if err != nil {
		return nil, corepublish.NewInvalidInputError(err)
	}
	if err := s.store.CreateProject(ctx, dup); err != nil {
		s.logger.Error("failed to duplicate project", "project_id", projectID, "error", err)
		return nil, corepublish.NewStorageError("duplicate project", err)
	}

	s.logger.Info("project duplicated", "project_id", dup.ID, "source_id", projectID)
	return dup, nil
}

// DeleteProject removes a project. A published project's name is released
// and the site stops being served.
func (s *Service) DeleteProject(ctx context.Context, requesterID, projectID string) error {
	var released string
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		project, err := s.loadOwned(ctx, tx, requesterID, projectID)
		if err != nil {
			return err
		}

		if err := tx.DeleteProject(ctx, project.ID); err != nil {
			return corepublish.NewStorageError("delete project", err)
		}
		if project.IsPublished() {
			released = project.PublishedName
			release := store.Release{Name: released, ProjectID: project.ID, ReleasedAt: s.now()}
			if err := tx.RecordRelease(ctx, release); err != nil {
				return corepublish.NewStorageError("record release", err)
			}
		}
		return nil
	})
	if err != nil {
		err = s.classify("delete project", "", err)
		s.logOutcome("delete project", projectID, "", err)
		return err
	}

	s.logger.Info("project deleted", "project_id", projectID, "released_name", released)
	if released != "" {
		s.siteRemoved(ctx, projectID, released)
	}
	return nil
}

// mutate loads an owned project, applies fn, and writes it back.
func (s *Service) mutate(ctx context.Context, op, requesterID, projectID string, fn func(*domain.Project) error) (*domain.Project, error) {
	var project *domain.Project
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		p, err := s.loadOwned(ctx, tx, requesterID, projectID)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := tx.UpdateProject(ctx, p); err != nil {
			return corepublish.NewStorageError(op, err)
		}
		project = p
		return nil
	})
	if err != nil {
		err = s.classify(op, "", err)
		s.logOutcome(op, projectID, "", err)
		return nil, err
	}
	return project, nil
}
