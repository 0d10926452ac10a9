// Package server wires the archive core together: configuration, database
// and object storage, the key vault and payload cipher, version, backup,
// restore and retention services, plus the background lanes (audit recorder,
// retention scheduler) and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Frijidia/Arkiva-sub000/internal/blob"
	"github.com/Frijidia/Arkiva-sub000/internal/logging"
	"github.com/Frijidia/Arkiva-sub000/internal/server/audit"
	"github.com/Frijidia/Arkiva-sub000/internal/server/cipher"
	"github.com/Frijidia/Arkiva-sub000/internal/server/config"
	"github.com/Frijidia/Arkiva-sub000/internal/server/entities"
	"github.com/Frijidia/Arkiva-sub000/internal/server/keyvault"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/repomanager"
	"github.com/Frijidia/Arkiva-sub000/internal/server/services"
)

// App owns the constructed core services. Collaborator registries (the entity
// CRUD services) are injected; the core never instantiates them.
type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	vault    *keyvault.Vault
	cipher   *cipher.PayloadCipher
	recorder *audit.Recorder

	Versions  *services.VersionService
	Backups   *services.BackupService
	Restores  *services.RestoreService
	Retention *services.RetentionService
}

// NewApp builds the full service graph from configuration. Migrations run
// before any service touches the schema.
func NewApp(ctx context.Context, c *config.Config, registry entities.Registry) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, blob.S3Config{
		RootUser:     c.S3RootUser,
		RootPassword: c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	vault, err := keyvault.New(db, rm, []byte(c.MasterKeySecret), []byte(c.MasterKeySalt), logger)
	if err != nil {
		return nil, err
	}

	recorder := audit.NewRecorder(audit.NewLoggerSink(logger), logger, c.AuditQueueSize)

	app := &App{
		config:    c,
		logger:    logger,
		db:        db,
		vault:     vault,
		cipher:    cipher.New(vault),
		recorder:  recorder,
		Versions:  services.NewVersionService(db, rm, blobs, recorder, logger),
		Backups:   services.NewBackupService(db, rm, blobs, registry, recorder, logger),
		Restores:  services.NewRestoreService(db, rm, blobs, registry, recorder, logger),
		Retention: services.NewRetentionService(db, rm, blobs, recorder, logger),
	}
	return app, nil
}

// Cipher exposes the tenant payload cipher to the embedding application.
func (app *App) Cipher() *cipher.PayloadCipher {
	return app.cipher
}

// Vault exposes tenant key management (rotation) to the embedding application.
func (app *App) Vault() *keyvault.Vault {
	return app.vault
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runSweeper executes retention sweeps on a fixed schedule, on its own lane
// away from request handling.
func (app *App) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.Retention.Sweep(ctx, app.config.RetentionDays); err != nil {
				app.logger.Error(ctx, "scheduled sweep failed", "error", err.Error())
			}
		}
	}
}

// Run starts the background lanes and blocks until the context is cancelled
// or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.recorder.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSweeper(ctx)
	}()

	wg.Wait()

	app.vault.Close()
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
