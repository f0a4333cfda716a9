package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	sqlite3driver "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postgresDSNEnv names a disposable PostgreSQL database for the tests that
// need one. They are skipped when it is unset.
const postgresDSNEnv = "SITEHOST_TEST_POSTGRES_DSN"

func setupPostgresStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}
	store, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "sqlite unique",
			err:  sqlite3driver.Error{Code: sqlite3driver.ErrConstraint, ExtendedCode: sqlite3driver.ErrConstraintUnique},
			want: ErrNameConflict,
		},
		{
			name: "sqlite primary key",
			err:  sqlite3driver.Error{Code: sqlite3driver.ErrConstraint, ExtendedCode: sqlite3driver.ErrConstraintPrimaryKey},
			want: ErrDuplicateID,
		},
		{
			name: "sqlite other constraint",
			err:  sqlite3driver.Error{Code: sqlite3driver.ErrConstraint, ExtendedCode: sqlite3driver.ErrConstraintCheck},
		},
		{
			name: "postgres published name",
			err:  &pq.Error{Code: pgUniqueViolation, Constraint: pgPublishedNameConstraint},
			want: ErrNameConflict,
		},
		{
			name: "postgres published name wrapped",
			err:  fmt.Errorf("update: %w", &pq.Error{Code: "23505", Constraint: "idx_projects_published_name"}),
			want: ErrNameConflict,
		},
		{
			name: "postgres primary key",
			err:  &pq.Error{Code: "23505", Constraint: "projects_pkey"},
			want: ErrDuplicateID,
		},
		{
			name: "postgres unique on another index",
			err:  &pq.Error{Code: "23505", Constraint: "released_names_pkey"},
		},
		{
			name: "postgres check violation",
			err:  &pq.Error{Code: "23514", Constraint: pgPublishedNameConstraint},
		},
		{
			name: "postgres serialization failure",
			err:  &pq.Error{Code: "40001"},
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestPostgres_ConcurrentClaim(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()
	run := time.Now().UnixNano()
	ownerID := fmt.Sprintf("claim-owner-%d", run)
	name := fmt.Sprintf("claim-%d", run)

	t.Cleanup(func() {
		projects, err := store.ListProjectsByOwner(ctx, ownerID, DefaultListOptions())
		if err != nil {
			return
		}
		for _, p := range projects {
			store.DeleteProject(ctx, p.ID)
		}
	})

	assertSingleClaimWins(t, store, ownerID, name)
}
