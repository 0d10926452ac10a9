package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Frijidia/Arkiva-sub000/internal/blob"
	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/dbx"
	"github.com/Frijidia/Arkiva-sub000/internal/logging"
	"github.com/Frijidia/Arkiva-sub000/internal/server/audit"
	"github.com/Frijidia/Arkiva-sub000/internal/server/entities"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
	backupsrepo "github.com/Frijidia/Arkiva-sub000/internal/server/repositories/backups"
	restoresrepo "github.com/Frijidia/Arkiva-sub000/internal/server/repositories/restores"
	tenantkeysrepo "github.com/Frijidia/Arkiva-sub000/internal/server/repositories/tenantkeys"
	versionsrepo "github.com/Frijidia/Arkiva-sub000/internal/server/repositories/versions"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// captureLogger records log calls so tests can assert on operational logging.
type captureLogger struct {
	mu      sync.Mutex
	entries []capturedLog
}

type capturedLog struct {
	level string
	msg   string
	args  []any
}

// arg looks up a key in the entry's key-value pairs.
func (e capturedLog) arg(key string) any {
	for i := 0; i+1 < len(e.args); i += 2 {
		if e.args[i] == key {
			return e.args[i+1]
		}
	}
	return nil
}

func (l *captureLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, capturedLog{level: level, msg: msg, args: args})
}

func (l *captureLogger) Info(_ context.Context, msg string, args ...any) {
	l.record("info", msg, args)
}

func (l *captureLogger) Warn(_ context.Context, msg string, args ...any) {
	l.record("warn", msg, args)
}

func (l *captureLogger) Error(_ context.Context, msg string, args ...any) {
	l.record("error", msg, args)
}

func (l *captureLogger) With(args ...any) logging.Logger { return l }

// find returns the first entry whose message matches.
func (l *captureLogger) find(msg string) (capturedLog, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return capturedLog{}, false
}

// fakeVersionsRepo is an in-memory versions repository with error injection.
type fakeVersionsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.VersionRecord

	failCreate     error
	duplicateTimes int
	failList       error
}

func newFakeVersionsRepo() *fakeVersionsRepo {
	return &fakeVersionsRepo{rows: make(map[string]*models.VersionRecord)}
}

func (f *fakeVersionsRepo) Create(ctx context.Context, v *models.VersionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	if f.duplicateTimes > 0 {
		f.duplicateTimes--
		return fmt.Errorf("%w: version number taken", common.ErrDuplicate)
	}
	for _, existing := range f.rows {
		if existing.TargetID == v.TargetID && existing.VersionNumber == v.VersionNumber {
			return fmt.Errorf("%w: version number taken", common.ErrDuplicate)
		}
	}
	cp := *v
	f.rows[v.ID] = &cp
	return nil
}

func (f *fakeVersionsRepo) MaxVersionNumber(ctx context.Context, targetID string, targetType models.TargetType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max int64
	for _, v := range f.rows {
		if v.TargetID == targetID && v.TargetType == targetType && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}

func (f *fakeVersionsRepo) GetByID(ctx context.Context, id string) (*models.VersionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVersionsRepo) ListByTarget(ctx context.Context, targetID string, targetType models.TargetType) ([]*models.VersionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	var out []*models.VersionRecord
	for _, v := range f.rows {
		if v.TargetID == targetID && v.TargetType == targetType {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (f *fakeVersionsRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeVersionsRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.VersionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	var out []*models.VersionRecord
	for _, v := range f.rows {
		if v.CreatedAt.Before(cutoff) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeVersionsRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeBackupsRepo is an in-memory backups repository with error injection.
type fakeBackupsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.BackupRecord

	failCreate error
}

func newFakeBackupsRepo() *fakeBackupsRepo {
	return &fakeBackupsRepo{rows: make(map[string]*models.BackupRecord)}
}

func (f *fakeBackupsRepo) Create(ctx context.Context, b *models.BackupRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	cp := *b
	f.rows[b.ID] = &cp
	return nil
}

func (f *fakeBackupsRepo) GetByID(ctx context.Context, id string) (*models.BackupRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBackupsRepo) List(ctx context.Context, filter models.BackupFilter) ([]*models.BackupRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.BackupRecord
	for _, b := range f.rows {
		if b.IsDeleted {
			continue
		}
		if filter.Type != "" && b.Type != filter.Type {
			continue
		}
		if filter.TargetID != "" && b.TargetID != filter.TargetID {
			continue
		}
		if filter.TenantID != "" && b.TenantID != filter.TenantID {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeBackupsRepo) SoftDelete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return common.ErrNotFound
	}
	b.IsDeleted = true
	return nil
}

func (f *fakeBackupsRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.BackupRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.BackupRecord
	for _, b := range f.rows {
		if !b.IsDeleted && b.CreatedAt.Before(cutoff) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeRestoresRepo is an in-memory restores repository with error injection.
type fakeRestoresRepo struct {
	mu   sync.Mutex
	rows map[string]*models.RestoreRecord

	failCreate error
	failExists error
}

func newFakeRestoresRepo() *fakeRestoresRepo {
	return &fakeRestoresRepo{rows: make(map[string]*models.RestoreRecord)}
}

func (f *fakeRestoresRepo) Create(ctx context.Context, r *models.RestoreRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	cp := *r
	f.rows[r.ID] = &cp
	return nil
}

func (f *fakeRestoresRepo) GetByID(ctx context.Context, id string) (*models.RestoreRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRestoresRepo) ExistsBySource(ctx context.Context, sourceType models.SourceType, sourceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failExists != nil {
		return false, f.failExists
	}
	for _, r := range f.rows {
		if r.SourceType == sourceType && r.SourceID == sourceID {
			return true, nil
		}
	}
	return false, nil
}

// fakeRepoManager vends the in-memory repositories regardless of handle.
type fakeRepoManager struct {
	versions *fakeVersionsRepo
	backups  *fakeBackupsRepo
	restores *fakeRestoresRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		versions: newFakeVersionsRepo(),
		backups:  newFakeBackupsRepo(),
		restores: newFakeRestoresRepo(),
	}
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (f *fakeRepoManager) TenantKeys(db dbx.DBTX) tenantkeysrepo.Repository    { return nil }
func (f *fakeRepoManager) Versions(db dbx.DBTX) versionsrepo.Repository        { return f.versions }
func (f *fakeRepoManager) Backups(db dbx.DBTX) backupsrepo.Repository          { return f.backups }
func (f *fakeRepoManager) Restores(db dbx.DBTX) restoresrepo.Repository        { return f.restores }

// fakeAudit captures audit events synchronously.
type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeAudit) Record(ctx context.Context, actorID, action, targetType, targetID string, details map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, audit.Entry{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
	})
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Action
	}
	return out
}

// fakeEntityService serves descriptors from a map and records reconstruction
// calls.
type fakeEntityService struct {
	mu          sync.Mutex
	descriptors map[string]*entities.Descriptor
	existing    map[string]bool
	failFor     map[string]error

	restored  []reconstructCall
	versioned []reconstructCall
}

type reconstructCall struct {
	ID       string
	ParentID string
	Content  []byte
}

func newFakeEntityService() *fakeEntityService {
	return &fakeEntityService{
		descriptors: make(map[string]*entities.Descriptor),
		existing:    make(map[string]bool),
		failFor:     make(map[string]error),
	}
}

func (f *fakeEntityService) add(d *entities.Descriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descriptors[d.ID] = d
}

func (f *fakeEntityService) GetDescriptor(ctx context.Context, id string) (*entities.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[id]; ok {
		return nil, err
	}
	d, ok := f.descriptors[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return d, nil
}

func (f *fakeEntityService) Exists(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[id], nil
}

func (f *fakeEntityService) CreateFromRestore(ctx context.Context, d *entities.Descriptor, content []byte, parentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[d.ID]; ok {
		return "", err
	}
	f.restored = append(f.restored, reconstructCall{ID: d.ID, ParentID: parentID, Content: content})
	return "new-" + d.ID, nil
}

func (f *fakeEntityService) CreateNewVersionOf(ctx context.Context, entityID string, d *entities.Descriptor, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[entityID]; ok {
		return "", err
	}
	f.versioned = append(f.versioned, reconstructCall{ID: entityID, Content: content})
	return "ver-" + entityID, nil
}

func (f *fakeEntityService) restoredIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.restored))
	for i, c := range f.restored {
		out[i] = c.ID
	}
	return out
}

// testEnv bundles the collaborators every service test needs.
type testEnv struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	rm       *fakeRepoManager
	blobs    *blob.MemoryStore
	audit    *fakeAudit
	entities *fakeEntityService
	registry entities.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := newFakeEntityService()
	return &testEnv{
		db:       db,
		mock:     mock,
		rm:       newFakeRepoManager(),
		blobs:    blob.NewMemoryStore(),
		audit:    &fakeAudit{},
		entities: svc,
		registry: entities.NewMapRegistry(map[models.TargetType]entities.Service{
			models.TargetFile:    svc,
			models.TargetFolder:  svc,
			models.TargetDrawer:  svc,
			models.TargetCabinet: svc,
			models.TargetSystem:  svc,
		}),
	}
}

// expectTx queues sqlmock expectations for n committed transactions.
func (e *testEnv) expectTx(n int) {
	for i := 0; i < n; i++ {
		e.mock.ExpectBegin()
		e.mock.ExpectCommit()
	}
}
