package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	sqlite3driver "github.com/mattn/go-sqlite3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Dialect identifies the SQL database behind a store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Constraint names raised by PostgreSQL unique violations.
const (
	pgPrimaryKeyConstraint    = "projects_pkey"
	pgPublishedNameConstraint = "idx_projects_published_name"
	pgUniqueViolation         = "23505"
)

// DialectFor picks the dialect from a DSN. postgres:// and postgresql://
// URLs select PostgreSQL; anything else is treated as a SQLite path.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects to the database named by dsn and runs migrations.
func Open(dsn string) (*SQLStore, error) {
	if DialectFor(dsn) == DialectPostgres {
		return NewPostgresStore(dsn)
	}
	return NewSQLiteStore(dsn)
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
//
// The pool holds a single connection and transactions begin IMMEDIATE, so
// concurrent claims on a name are serialized by the database itself.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open(string(DialectSQLite), dsn+sep+"_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB, DialectSQLite); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLStore{db: db, dialect: DialectSQLite}, nil
}

// NewPostgresStore creates a new PostgreSQL store and runs migrations.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(string(DialectPostgres), dsn)
	if err != nil {
		return nil, NewStoreError("NewPostgresStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewPostgresStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB, DialectPostgres); err != nil {
		db.Close()
		return nil, NewStoreError("NewPostgresStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLStore{db: db, dialect: DialectPostgres}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB, dialect Dialect) error {
	var (
		driver database.Driver
		dir    string
		err    error
	)
	switch dialect {
	case DialectPostgres:
		dir = "migrations/postgres"
		driver, err = migratepostgres.WithInstance(db, &migratepostgres.Config{})
	default:
		dir = "migrations/sqlite"
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	// m.Close would close db as well; the store owns it.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// classifyError maps driver constraint violations to store sentinels.
// It returns nil for anything it does not recognize.
func classifyError(err error) error {
	var liteErr sqlite3driver.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3driver.ErrConstraintPrimaryKey:
			return ErrDuplicateID
		case sqlite3driver.ErrConstraintUnique:
			return ErrNameConflict
		}
		return nil
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) && string(pgErr.Code) == pgUniqueViolation {
		switch pgErr.Constraint {
		case pgPrimaryKeyConstraint:
			return ErrDuplicateID
		case pgPublishedNameConstraint:
			return ErrNameConflict
		}
	}
	return nil
}
