package publish

import (
	"context"

	"github.com/artpar/sitehost/internal/core/domain"
)

// Hook is notified after a change to the set of published sites commits.
// Hooks keep derived copies (cache entries, mirrored objects) in step with
// the Registry. A hook error is logged and never undoes the change.
type Hook interface {
	// SitePublished runs after project went live under its published name.
	// previous is the name it gave up in the same publish, or "".
	SitePublished(ctx context.Context, project *domain.Project, previous string) error

	// SiteRemoved runs after projectID stopped serving name. By then another
	// project may already hold name, so removals must not touch its copy.
	SiteRemoved(ctx context.Context, projectID, name string) error
}

func (s *Service) sitePublished(ctx context.Context, project *domain.Project, previous string) {
	for _, h := range s.hooks {
		if err := h.SitePublished(ctx, project, previous); err != nil {
			s.logger.Warn("publish hook failed",
				"project_id", project.ID,
				"name", project.PublishedName,
				"error", err,
			)
		}
	}
}

func (s *Service) siteRemoved(ctx context.Context, projectID, name string) {
	for _, h := range s.hooks {
		if err := h.SiteRemoved(ctx, projectID, name); err != nil {
			s.logger.Warn("unpublish hook failed", "project_id", projectID, "name", name, "error", err)
		}
	}
}
