package repomanager

import (
	"context"
	"database/sql"

	"github.com/Frijidia/Arkiva-sub000/internal/dbx"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/backups"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/restores"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/tenantkeys"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/versions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	TenantKeys(db dbx.DBTX) tenantkeys.Repository
	Versions(db dbx.DBTX) versions.Repository
	Backups(db dbx.DBTX) backups.Repository
	Restores(db dbx.DBTX) restores.Repository
}
