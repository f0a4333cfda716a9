package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/artpar/sitehost/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func createTestProject(t *testing.T, store Store, ownerID, name string) *domain.Project {
	t.Helper()
	project, err := domain.NewProject(ownerID, name, "bakery", domain.Content{HTML: "<h1>" + name + "</h1>", CSS: "h1{}"})
	require.NoError(t, err)
	require.NoError(t, store.CreateProject(context.Background(), project))
	return project
}

func publishTestProject(t *testing.T, store Store, project *domain.Project, name string) {
	t.Helper()
	_, err := project.Publish(name, project.Draft, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.UpdateProject(context.Background(), project))
}

// =============================================================================
// Project CRUD Tests
// =============================================================================

func TestCreateProject_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	project, err := domain.NewProject("user-1", "Acme Bakery", "bakery", domain.Content{HTML: "<p>hi</p>"})
	require.NoError(t, err)
	project.Metadata.BusinessInfo = map[string]any{"phone": "555-0100"}
	project.Metadata.SEO = map[string]any{"title": "Acme"}

	require.NoError(t, store.CreateProject(ctx, project))

	got, err := store.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Equal(t, "Acme Bakery", got.Name)
	assert.Equal(t, "bakery", got.TemplateSlug)
	assert.Equal(t, "<p>hi</p>", got.Draft.HTML)
	assert.Equal(t, domain.StatusDraft, got.Status)
	assert.Empty(t, got.PublishedName)
	assert.Nil(t, got.PublishedAt)
	assert.Equal(t, "555-0100", got.Metadata.BusinessInfo["phone"])
	assert.Equal(t, "Acme", got.Metadata.SEO["title"])
	assert.WithinDuration(t, project.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestCreateProject_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	project := createTestProject(t, store, "user-1", "Acme")

	err := store.CreateProject(context.Background(), project)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestGetProject_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetProject(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "GetProject", storeErr.Op)
	assert.Equal(t, "missing", storeErr.ID)
}

func TestUpdateProject_NotFound(t *testing.T) {
	store := setupTestStore(t)

	project, err := domain.NewProject("user-1", "Ghost", "", domain.Content{})
	require.NoError(t, err)

	err = store.UpdateProject(context.Background(), project)
	assert.True(t, IsNotFound(err))
}

func TestDeleteProject(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	project := createTestProject(t, store, "user-1", "Acme")
	publishTestProject(t, store, project, "acme")

	require.NoError(t, store.DeleteProject(ctx, project.ID))

	_, err := store.GetProject(ctx, project.ID)
	assert.True(t, IsNotFound(err))
	_, err = store.GetPublishedProjectByName(ctx, "acme")
	assert.True(t, IsNotFound(err), "deleting a project frees its name")

	err = store.DeleteProject(ctx, project.ID)
	assert.True(t, IsNotFound(err))
}

func TestListProjectsByOwner_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := createTestProject(t, store, "user-1", "First")
	second := createTestProject(t, store, "user-1", "Second")
	createTestProject(t, store, "user-2", "Other")

	first.EditDraft(domain.Content{HTML: "<p>edited</p>"}, time.Now().UTC().Add(time.Minute))
	require.NoError(t, store.UpdateProject(ctx, first))

	projects, err := store.ListProjectsByOwner(ctx, "user-1", DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, first.ID, projects[0].ID)
	assert.Equal(t, second.ID, projects[1].ID)

	page, err := store.ListProjectsByOwner(ctx, "user-1", ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)
}

func TestListOptions_Normalize(t *testing.T) {
	assert.Equal(t, 100, ListOptions{}.Normalize().Limit)
	assert.Equal(t, 1000, ListOptions{Limit: 5000}.Normalize().Limit)
	assert.Equal(t, 0, ListOptions{Limit: 10, Offset: -3}.Normalize().Offset)
}

// =============================================================================
// Published Name Tests
// =============================================================================

func TestGetPublishedProjectByName_CaseInsensitive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	project := createTestProject(t, store, "user-1", "Acme")
	publishTestProject(t, store, project, "acme")

	for _, name := range []string{"acme", "ACME", "AcMe"} {
		got, err := store.GetPublishedProjectByName(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, project.ID, got.ID)
		assert.Equal(t, "<h1>Acme</h1>", got.Published.HTML)
		require.NotNil(t, got.PublishedAt)
	}
}

func TestGetPublishedProjectByName_Unpublished(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	project := createTestProject(t, store, "user-1", "Acme")
	publishTestProject(t, store, project, "acme")

	project.Unpublish(time.Now().UTC())
	require.NoError(t, store.UpdateProject(ctx, project))

	_, err := store.GetPublishedProjectByName(ctx, "acme")
	assert.True(t, IsNotFound(err))

	got, err := store.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Acme</h1>", got.Published.HTML, "snapshot is retained after unpublish")
	assert.Equal(t, domain.StatusDraft, got.Status)
}

func TestUpdateProject_NameConflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := createTestProject(t, store, "user-1", "A")
	b := createTestProject(t, store, "user-2", "B")
	publishTestProject(t, store, a, "acme")

	_, err := b.Publish("ACME", b.Draft, time.Now().UTC())
	require.NoError(t, err)
	err = store.UpdateProject(ctx, b)
	require.Error(t, err)
	assert.True(t, IsNameConflict(err))

	got, err := store.GetProject(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.Status, "failed claim leaves no partial state")
	assert.Empty(t, got.PublishedName)
}

func TestUpdateProject_ConcurrentClaim(t *testing.T) {
	store := setupTestStore(t)
	assertSingleClaimWins(t, store, "user", "shared")

	count, err := store.CountPublishedProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// assertSingleClaimWins races several projects of ownerID publishing under
// name and checks that exactly one claim commits and every other one is a
// conflict.
func assertSingleClaimWins(t *testing.T, store Store, ownerID, name string) {
	t.Helper()
	ctx := context.Background()

	const claimants = 8
	projects := make([]*domain.Project, claimants)
	ids := make(map[string]bool, claimants)
	for i := range projects {
		projects[i] = createTestProject(t, store, ownerID, "P")
		ids[projects[i].ID] = true
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for _, p := range projects {
		wg.Add(1)
		go func(p *domain.Project) {
			defer wg.Done()
			_, err := p.Publish(name, p.Draft, time.Now().UTC())
			if err != nil {
				return
			}
			err = store.UpdateProject(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case IsNameConflict(err):
				conflicts++
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, claimants-1, conflicts)

	holder, err := store.GetPublishedProjectByName(ctx, name)
	require.NoError(t, err)
	assert.True(t, ids[holder.ID])
}

func TestPublishedNameCheckConstraint(t *testing.T) {
	store := setupTestStore(t)
	project := createTestProject(t, store, "user-1", "Acme")

	// A published row without a name violates the table CHECK.
	project.Status = domain.StatusPublished
	err := store.UpdateProject(context.Background(), project)
	require.Error(t, err)
	assert.False(t, IsNameConflict(err))
}

func TestCountPublishedProjects(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	count, err := store.CountPublishedProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	a := createTestProject(t, store, "user-1", "A")
	createTestProject(t, store, "user-1", "B")
	publishTestProject(t, store, a, "alpha")

	count, err = store.CountPublishedProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// =============================================================================
// Released Name Tests
// =============================================================================

func TestRecordRelease(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRelease(ctx, "acme")
	assert.True(t, IsNotFound(err))

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.RecordRelease(ctx, Release{Name: "Acme", ProjectID: "p1", ReleasedAt: first}))

	got, err := store.GetRelease(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)
	assert.Equal(t, "p1", got.ProjectID)
	assert.True(t, first.Equal(got.ReleasedAt))

	second := first.Add(time.Hour)
	require.NoError(t, store.RecordRelease(ctx, Release{Name: "acme", ProjectID: "p2", ReleasedAt: second}))

	got, err = store.GetRelease(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "p2", got.ProjectID)
	assert.True(t, second.Equal(got.ReleasedAt))
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_Commit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	project := createTestProject(t, store, "user-1", "Acme")

	err := store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetProject(ctx, project.ID)
		if err != nil {
			return err
		}
		if _, err := p.Publish("acme", p.Draft, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		return tx.RecordRelease(ctx, Release{Name: "old", ProjectID: p.ID, ReleasedAt: time.Now().UTC()})
	})
	require.NoError(t, err)

	_, err = store.GetPublishedProjectByName(ctx, "acme")
	assert.NoError(t, err)
	_, err = store.GetRelease(ctx, "old")
	assert.NoError(t, err)
}

func TestWithTx_Rollback(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	project := createTestProject(t, store, "user-1", "Acme")

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetProject(ctx, project.ID)
		if err != nil {
			return err
		}
		if _, err := p.Publish("acme", p.Draft, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetPublishedProjectByName(ctx, "acme")
	assert.True(t, IsNotFound(err))

	got, err := store.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.Status)
}

func TestWithTx_Nested(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Store) error {
		return tx.WithTx(ctx, func(inner Store) error {
			p, err := domain.NewProject("user-1", "Nested", "", domain.Content{})
			if err != nil {
				return err
			}
			return inner.CreateProject(ctx, p)
		})
	})
	require.NoError(t, err)

	projects, err := store.ListProjectsByOwner(ctx, "user-1", DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

// =============================================================================
// Dialect Tests
// =============================================================================

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFor("postgres://u:p@localhost/db"))
	assert.Equal(t, DialectPostgres, DialectFor("PostgreSQL://localhost/db"))
	assert.Equal(t, DialectSQLite, DialectFor("./data/sitehost.db"))
	assert.Equal(t, DialectSQLite, DialectFor(":memory:"))
	assert.Equal(t, DialectSQLite, setupTestStore(t).Dialect())
}

func TestClassifyError_Unknown(t *testing.T) {
	assert.Nil(t, classifyError(errors.New("disk on fire")))
}
