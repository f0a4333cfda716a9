package publish

import (
	"context"
	"testing"

	"github.com/artpar/sitehost/internal/core/domain"
	corepublish "github.com/artpar/sitehost/internal/core/publish"
	"github.com/artpar/sitehost/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProject_Validation(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.CreateProject(context.Background(), CreateProjectRequest{OwnerID: "user-1", Name: "  "})
	assert.True(t, corepublish.IsKind(err, corepublish.KindInvalidInput))

	_, err = svc.CreateProject(context.Background(), CreateProjectRequest{Name: "Acme"})
	assert.True(t, corepublish.IsKind(err, corepublish.KindInvalidInput))
}

func TestGetAndListProjects(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	p := testProject(t, svc, "user-1")
	testProject(t, svc, "user-2")

	got, err := svc.GetProject(ctx, "user-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.GetProject(ctx, "user-2", p.ID)
	assert.True(t, corepublish.IsKind(err, corepublish.KindUnauthorized))

	list, err := svc.ListProjects(ctx, "user-1", store.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}

func TestSaveDraft_DoesNotChangeServedSnapshot(t *testing.T) {
	svc, s := testService(t)
	ctx := context.Background()
	p := testProject(t, svc, "user-1")

	_, err := svc.Publish(ctx, PublishRequest{
		RequesterID: "user-1", ProjectID: p.ID, RawName: "acme",
		Content: &domain.Content{HTML: "<p>live</p>"},
	})
	require.NoError(t, err)

	_, err = svc.SaveDraft(ctx, "user-1", p.ID, domain.Content{HTML: "<p>work in progress</p>"})
	require.NoError(t, err)

	served, err := s.GetPublishedProjectByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "<p>live</p>", served.Published.HTML)
	assert.Equal(t, "<p>work in progress</p>", served.Draft.HTML)
}

func TestRenameProject(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	p := testProject(t, svc, "user-1")

	got, err := svc.RenameProject(ctx, "user-1", p.ID, "  Bakery  ")
	require.NoError(t, err)
	assert.Equal(t, "Bakery", got.Name)

	_, err = svc.RenameProject(ctx, "user-1", p.ID, "")
	assert.True(t, corepublish.IsKind(err, corepublish.KindInvalidInput))

	_, err = svc.RenameProject(ctx, "user-2", p.ID, "Mine")
	assert.True(t, corepublish.IsKind(err, corepublish.KindUnauthorized))
}

func TestUpdateMetadata(t *testing.T) {
	hook := &recordingHook{}
	svc, s := testService(t, hook)
	ctx := context.Background()
	p := testProject(t, svc, "user-1")

	_, err := svc.UpdateMetadata(ctx, "user-1", p.ID, domain.Metadata{
		BusinessInfo: map[string]any{"phone": "555-0100"},
		SEO:          map[string]any{"title": "Acme"},
	})
	require.NoError(t, err)
	assert.Empty(t, hook.calls, "draft projects are not served")

	_, err = svc.Publish(ctx, PublishRequest{RequesterID: "user-1", ProjectID: p.ID, RawName: "acme"})
	require.NoError(t, err)

	_, err = svc.UpdateMetadata(ctx, "user-1", p.ID, domain.Metadata{SEO: map[string]any{"title": "Acme Bakery"}})
	require.NoError(t, err)

	stored, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", stored.Metadata.BusinessInfo["phone"], "nil map leaves value alone")
	assert.Equal(t, "Acme Bakery", stored.Metadata.SEO["title"])
	require.Len(t, hook.calls, 2)
	assert.Equal(t, hookCall{event: "published", name: "acme"}, hook.calls[1])
}

func TestDuplicateProject(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	p := testProject(t, svc, "user-1")
	_, err := svc.Publish(ctx, PublishRequest{RequesterID: "user-1", ProjectID: p.ID, RawName: "acme"})
	require.NoError(t, err)

	dup, err := svc.DuplicateProject(ctx, "user-1", p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, dup.ID)
	assert.Equal(t, "Studio (Copy)", dup.Name)
	assert.Equal(t, domain.StatusDraft, dup.Status)
	assert.Empty(t, dup.PublishedName)

	_, err = svc.DuplicateProject(ctx, "user-2", p.ID)
	assert.True(t, corepublish.IsKind(err, corepublish.KindUnauthorized))
}

func TestDeleteProject_ReleasesName(t *testing.T) {
	hook := &recordingHook{}
	svc, s := testService(t, hook)
	ctx := context.Background()
	p1 := testProject(t, svc, "user-1")
	p2 := testProject(t, svc, "user-2")

	_, err := svc.Publish(ctx, PublishRequest{RequesterID: "user-1", ProjectID: p1.ID, RawName: "acme"})
	require.NoError(t, err)

	err = svc.DeleteProject(ctx, "user-2", p1.ID)
	assert.True(t, corepublish.IsKind(err, corepublish.KindUnauthorized))

	require.NoError(t, svc.DeleteProject(ctx, "user-1", p1.ID))
	assert.Equal(t, hookCall{event: "removed", name: "acme"}, hook.calls[len(hook.calls)-1])

	_, err = s.GetProject(ctx, p1.ID)
	assert.True(t, store.IsNotFound(err))

	_, err = svc.Publish(ctx, PublishRequest{RequesterID: "user-2", ProjectID: p2.ID, RawName: "acme"})
	assert.NoError(t, err)

	err = svc.DeleteProject(ctx, "user-1", p1.ID)
	assert.True(t, corepublish.IsKind(err, corepublish.KindProjectNotFound))
}
