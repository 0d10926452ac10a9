package versions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+versions\b`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.VersionRecord{
		ID:            "v1",
		TargetID:      "99",
		TargetType:    models.TargetFile,
		VersionNumber: 1,
		BlobKey:       "versions/file/99/v1",
		Metadata:      map[string]any{"name": "doc.pdf"},
		CreatedBy:     "u1",
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+versions\b`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.VersionRecord{ID: "v1", TargetID: "99", TargetType: models.TargetFile})
	if !errors.Is(err, common.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}

func TestMaxVersionNumber(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT COALESCE\(MAX\(version_number\), 0\) FROM versions WHERE target_id=\$1 AND target_type=\$2$`).
		WithArgs("99", "file").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(7)))

	max, err := repo.MaxVersionNumber(context.Background(), "99", models.TargetFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if max != 7 {
		t.Fatalf("want 7, got %d", max)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+id, target_id,`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListByTarget_NewestFirst(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "target_id", "target_type", "version_number", "blob_key", "metadata", "created_by", "created_at"}).
		AddRow("v2", "99", "file", int64(2), "k2", []byte(`{"rev":"b"}`), "u1", now).
		AddRow("v1", "99", "file", int64(1), "k1", []byte(`{"rev":"a"}`), "u1", now)

	mock.ExpectQuery(`(?s)^SELECT\s+id, target_id,.*ORDER BY version_number DESC$`).
		WithArgs("99", "file").
		WillReturnRows(rows)

	result, err := repo.ListByTarget(context.Background(), "99", models.TargetFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 || result[0].VersionNumber != 2 || result[1].VersionNumber != 1 {
		t.Fatalf("unexpected order: %+v", result)
	}
	if result[0].Metadata["rev"] != "b" {
		t.Fatalf("metadata not decoded: %+v", result[0].Metadata)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM versions WHERE id=\$1$`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListOlderThan(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Now().AddDate(0, 0, -30)
	rows := sqlmock.NewRows([]string{"id", "target_id", "target_type", "version_number", "blob_key", "metadata", "created_by", "created_at"}).
		AddRow("v1", "99", "file", int64(1), "k1", nil, "u1", cutoff.AddDate(0, 0, -1))

	mock.ExpectQuery(`(?s)^SELECT\s+id, target_id,.*WHERE created_at < \$1$`).
		WithArgs(cutoff).
		WillReturnRows(rows)

	result, err := repo.ListOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 || result[0].ID != "v1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
