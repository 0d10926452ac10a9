// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Frijidia/Arkiva-sub000/internal/dbx"
	"github.com/Frijidia/Arkiva-sub000/internal/server/migrations"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/backups"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/restores"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/tenantkeys"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/versions"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// TenantKeys returns a tenantkeys.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) TenantKeys(db dbx.DBTX) tenantkeys.Repository {
	return tenantkeys.NewPostgresRepository(db)
}

// Versions returns a versions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Versions(db dbx.DBTX) versions.Repository {
	return versions.NewPostgresRepository(db)
}

// Backups returns a backups.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Backups(db dbx.DBTX) backups.Repository {
	return backups.NewPostgresRepository(db)
}

// Restores returns a restores.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Restores(db dbx.DBTX) restores.Repository {
	return restores.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
