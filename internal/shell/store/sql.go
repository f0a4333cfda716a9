package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/artpar/sitehost/internal/core/domain"
	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// =============================================================================
// SQLStore
// =============================================================================

// SQLStore implements Store on SQLite or PostgreSQL.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
}

// Dialect returns the database flavour behind the store.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// Project Operations
// =============================================================================

// projectRow represents a project row in the database.
type projectRow struct {
	ID            string  `db:"id"`
	OwnerID       string  `db:"owner_id"`
	Name          string  `db:"name"`
	TemplateSlug  string  `db:"template_slug"`
	DraftHTML     string  `db:"draft_html"`
	DraftCSS      string  `db:"draft_css"`
	PublishedHTML string  `db:"published_html"`
	PublishedCSS  string  `db:"published_css"`
	PublishedName *string `db:"published_name"`
	Status        string  `db:"status"`
	PublishedAt   *string `db:"published_at"`
	BusinessInfo  string  `db:"business_info"`
	SEOSettings   string  `db:"seo_settings"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
}

const projectColumns = `id, owner_id, name, template_slug, draft_html, draft_css,
	published_html, published_css, published_name, status, published_at,
	business_info, seo_settings, created_at, updated_at`

func (s *SQLStore) CreateProject(ctx context.Context, project *domain.Project) error {
	return createProject(ctx, s.db, project)
}

func (s *SQLStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return getProject(ctx, s.db, id)
}

func (s *SQLStore) UpdateProject(ctx context.Context, project *domain.Project) error {
	return updateProject(ctx, s.db, project)
}

func (s *SQLStore) DeleteProject(ctx context.Context, id string) error {
	return deleteProject(ctx, s.db, id)
}

func (s *SQLStore) ListProjectsByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]domain.Project, error) {
	return listProjectsByOwner(ctx, s.db, ownerID, opts)
}

func (s *SQLStore) GetPublishedProjectByName(ctx context.Context, name string) (*domain.Project, error) {
	return getPublishedProjectByName(ctx, s.db, name)
}

func (s *SQLStore) CountPublishedProjects(ctx context.Context) (int, error) {
	return countPublishedProjects(ctx, s.db)
}

func (s *SQLStore) RecordRelease(ctx context.Context, release Release) error {
	return recordRelease(ctx, s.db, release)
}

func (s *SQLStore) GetRelease(ctx context.Context, name string) (*Release, error) {
	return getRelease(ctx, s.db, name)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction: "+err.Error(), ErrTxFailed)
	}

	txS := &txSQLStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return NewStoreError("WithTx", "", "", "rollback failed after error: "+err.Error(), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if conflict := classifyError(err); conflict != nil {
			// Deferred constraint checks surface at commit.
			return NewStoreError("WithTx", "", "", "commit rejected", conflict)
		}
		return NewStoreError("WithTx", "", "", "failed to commit transaction: "+err.Error(), ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLStore implements Store within a transaction.
type txSQLStore struct {
	tx *sqlx.Tx
}

func (s *txSQLStore) CreateProject(ctx context.Context, project *domain.Project) error {
	return createProject(ctx, s.tx, project)
}

func (s *txSQLStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return getProject(ctx, s.tx, id)
}

func (s *txSQLStore) UpdateProject(ctx context.Context, project *domain.Project) error {
	return updateProject(ctx, s.tx, project)
}

func (s *txSQLStore) DeleteProject(ctx context.Context, id string) error {
	return deleteProject(ctx, s.tx, id)
}

func (s *txSQLStore) ListProjectsByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]domain.Project, error) {
	return listProjectsByOwner(ctx, s.tx, ownerID, opts)
}

func (s *txSQLStore) GetPublishedProjectByName(ctx context.Context, name string) (*domain.Project, error) {
	return getPublishedProjectByName(ctx, s.tx, name)
}

func (s *txSQLStore) CountPublishedProjects(ctx context.Context) (int, error) {
	return countPublishedProjects(ctx, s.tx)
}

func (s *txSQLStore) RecordRelease(ctx context.Context, release Release) error {
	return recordRelease(ctx, s.tx, release)
}

func (s *txSQLStore) GetRelease(ctx context.Context, name string) (*Release, error) {
	return getRelease(ctx, s.tx, name)
}

func (s *txSQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createProject(ctx context.Context, exec executor, project *domain.Project) error {
	row, err := projectToRow(project)
	if err != nil {
		return NewStoreError("CreateProject", "project", project.ID, err.Error(), ErrInvalidData)
	}

	query := `
		INSERT INTO projects (
			id, owner_id, name, template_slug, draft_html, draft_css,
			published_html, published_css, published_name, status, published_at,
			business_info, seo_settings, created_at, updated_at
		) VALUES (
			:id, :owner_id, :name, :template_slug, :draft_html, :draft_css,
			:published_html, :published_css, :published_name, :status, :published_at,
			:business_info, :seo_settings, :created_at, :updated_at
		)`

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if kind := classifyError(err); kind != nil {
			return NewStoreError("CreateProject", "project", project.ID, err.Error(), kind)
		}
		return NewStoreError("CreateProject", "project", project.ID, err.Error(), err)
	}

	return nil
}

func getProject(ctx context.Context, exec executor, id string) (*domain.Project, error) {
	query := exec.Rebind(`SELECT ` + projectColumns + ` FROM projects WHERE id = ?`)

	var row projectRow
	if err := exec.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProject", "project", id, "project not found", ErrNotFound)
		}
		return nil, NewStoreError("GetProject", "project", id, err.Error(), err)
	}

	return rowToProject(&row)
}

func updateProject(ctx context.Context, exec executor, project *domain.Project) error {
	row, err := projectToRow(project)
	if err != nil {
		return NewStoreError("UpdateProject", "project", project.ID, err.Error(), ErrInvalidData)
	}

	query := `
		UPDATE projects SET
			name = :name,
			template_slug = :template_slug,
			draft_html = :draft_html,
			draft_css = :draft_css,
			published_html = :published_html,
			published_css = :published_css,
			published_name = :published_name,
			status = :status,
			published_at = :published_at,
			business_info = :business_info,
			seo_settings = :seo_settings,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if kind := classifyError(err); kind != nil {
			return NewStoreError("UpdateProject", "project", project.ID, err.Error(), kind)
		}
		return NewStoreError("UpdateProject", "project", project.ID, err.Error(), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdateProject", "project", project.ID, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("UpdateProject", "project", project.ID, "project not found", ErrNotFound)
	}

	return nil
}

func deleteProject(ctx context.Context, exec executor, id string) error {
	result, err := exec.ExecContext(ctx, exec.Rebind(`DELETE FROM projects WHERE id = ?`), id)
	if err != nil {
		return NewStoreError("DeleteProject", "project", id, err.Error(), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("DeleteProject", "project", id, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("DeleteProject", "project", id, "project not found", ErrNotFound)
	}

	return nil
}

func listProjectsByOwner(ctx context.Context, exec executor, ownerID string, opts ListOptions) ([]domain.Project, error) {
	opts = opts.Normalize()
	query := exec.Rebind(`SELECT ` + projectColumns + ` FROM projects
		WHERE owner_id = ?
		ORDER BY updated_at DESC, id
		LIMIT ? OFFSET ?`)

	var rows []projectRow
	if err := exec.SelectContext(ctx, &rows, query, ownerID, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListProjectsByOwner", "project", "", err.Error(), err)
	}

	projects := make([]domain.Project, 0, len(rows))
	for i := range rows {
		p, err := rowToProject(&rows[i])
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

func getPublishedProjectByName(ctx context.Context, exec executor, name string) (*domain.Project, error) {
	query := exec.Rebind(`SELECT ` + projectColumns + ` FROM projects
		WHERE lower(published_name) = lower(?) AND status = 'published'`)

	var row projectRow
	if err := exec.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetPublishedProjectByName", "project", name, "no published project", ErrNotFound)
		}
		return nil, NewStoreError("GetPublishedProjectByName", "project", name, err.Error(), err)
	}

	return rowToProject(&row)
}

func countPublishedProjects(ctx context.Context, exec executor) (int, error) {
	var count int
	if err := exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM projects WHERE status = 'published'`); err != nil {
		return 0, NewStoreError("CountPublishedProjects", "project", "", err.Error(), err)
	}
	return count, nil
}

// =============================================================================
// Released Names
// =============================================================================

type releaseRow struct {
	Name       string `db:"name"`
	ProjectID  string `db:"project_id"`
	ReleasedAt string `db:"released_at"`
}

func recordRelease(ctx context.Context, exec executor, release Release) error {
	query := exec.Rebind(`
		INSERT INTO released_names (name, project_id, released_at) VALUES (lower(?), ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			project_id = excluded.project_id,
			released_at = excluded.released_at`)

	_, err := exec.ExecContext(ctx, query, release.Name, release.ProjectID, formatTime(release.ReleasedAt))
	if err != nil {
		return NewStoreError("RecordRelease", "released_name", release.Name, err.Error(), err)
	}
	return nil
}

func getRelease(ctx context.Context, exec executor, name string) (*Release, error) {
	query := exec.Rebind(`SELECT name, project_id, released_at FROM released_names WHERE name = lower(?)`)

	var row releaseRow
	if err := exec.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRelease", "released_name", name, "no release recorded", ErrNotFound)
		}
		return nil, NewStoreError("GetRelease", "released_name", name, err.Error(), err)
	}

	releasedAt, err := parseTime(row.ReleasedAt)
	if err != nil {
		return nil, NewStoreError("GetRelease", "released_name", name, "invalid released_at", ErrInvalidData)
	}
	return &Release{Name: row.Name, ProjectID: row.ProjectID, ReleasedAt: releasedAt}, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func projectToRow(p *domain.Project) (*projectRow, error) {
	businessJSON, err := marshalMap(p.Metadata.BusinessInfo)
	if err != nil {
		return nil, errors.New("failed to serialize business info")
	}
	seoJSON, err := marshalMap(p.Metadata.SEO)
	if err != nil {
		return nil, errors.New("failed to serialize seo settings")
	}

	row := &projectRow{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Name:          p.Name,
		TemplateSlug:  p.TemplateSlug,
		DraftHTML:     p.Draft.HTML,
		DraftCSS:      p.Draft.CSS,
		PublishedHTML: p.Published.HTML,
		PublishedCSS:  p.Published.CSS,
		Status:        string(p.Status),
		BusinessInfo:  businessJSON,
		SEOSettings:   seoJSON,
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
	if p.PublishedName != "" {
		name := p.PublishedName
		row.PublishedName = &name
	}
	if p.PublishedAt != nil {
		at := formatTime(*p.PublishedAt)
		row.PublishedAt = &at
	}
	return row, nil
}

func rowToProject(row *projectRow) (*domain.Project, error) {
	p := &domain.Project{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		Name:         row.Name,
		TemplateSlug: row.TemplateSlug,
		Draft:        domain.Content{HTML: row.DraftHTML, CSS: row.DraftCSS},
		Published:    domain.Content{HTML: row.PublishedHTML, CSS: row.PublishedCSS},
		Status:       domain.ProjectStatus(row.Status),
	}
	if row.PublishedName != nil {
		p.PublishedName = *row.PublishedName
	}

	var err error
	if p.Metadata.BusinessInfo, err = unmarshalMap(row.BusinessInfo); err != nil {
		return nil, NewStoreError("rowToProject", "project", row.ID, "failed to deserialize business info", ErrInvalidData)
	}
	if p.Metadata.SEO, err = unmarshalMap(row.SEOSettings); err != nil {
		return nil, NewStoreError("rowToProject", "project", row.ID, "failed to deserialize seo settings", ErrInvalidData)
	}
	if p.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return nil, NewStoreError("rowToProject", "project", row.ID, "invalid created_at", ErrInvalidData)
	}
	if p.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return nil, NewStoreError("rowToProject", "project", row.ID, "invalid updated_at", ErrInvalidData)
	}
	if row.PublishedAt != nil {
		at, err := parseTime(*row.PublishedAt)
		if err != nil {
			return nil, NewStoreError("rowToProject", "project", row.ID, "invalid published_at", ErrInvalidData)
		}
		p.PublishedAt = &at
	}

	return p, nil
}

func marshalMap(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMap(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// timeLayout is fixed-width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
