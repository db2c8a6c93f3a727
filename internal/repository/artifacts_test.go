package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sceneforge/core/internal/domain"
)

var (
	errDuplicateKey   = errors.New(`pq: duplicate key value violates unique constraint "idx_project_character_name" (SQLSTATE 23505)`)
	errMySQLDuplicate = errors.New(`Error 1062: Duplicate entry 'project-1-Ava' for key 'idx_project_character_name'`)
	errNotFoundLike   = errors.New("record not found")
)

func newMockRepo(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	return gdb, mock
}

func TestUpdateShotKeyframe_Success(t *testing.T) {
	gdb, mock := newMockRepo(t)
	repo := NewArtifactRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "shots" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "keyframe_url", "version"}).
			AddRow("shot-1", "https://old.example.com/k.png", 1))
	mock.ExpectExec(`UPDATE "shots" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "generation_histories"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("hist-id"))
	mock.ExpectCommit()

	err := repo.UpdateShotKeyframe(context.Background(), "shot-1", "https://new.example.com/k.png", "flux-1.1-pro", "a cinematic keyframe")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateShotKeyframe_NotFound(t *testing.T) {
	gdb, mock := newMockRepo(t)
	repo := NewArtifactRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "shots" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "keyframe_url", "version"}))
	mock.ExpectRollback()

	err := repo.UpdateShotKeyframe(context.Background(), "missing-shot", "https://new.example.com/k.png", "flux-1.1-pro", "prompt")
	require.Error(t, err)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.KindNotFound, derr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateShotKeyframe_ConcurrentConflict_StillRecordsHistory exercises
// §8 scenario F: a losing concurrent writer gets a conflict back but its
// attempt is still appended to GenerationHistory rather than discarded.
func TestUpdateShotKeyframe_ConcurrentConflict_StillRecordsHistory(t *testing.T) {
	gdb, mock := newMockRepo(t)
	repo := NewArtifactRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "shots" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "keyframe_url", "version"}).
			AddRow("shot-1", "https://old.example.com/k.png", 1))
	mock.ExpectExec(`UPDATE "shots" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "generation_histories"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("hist-id"))
	mock.ExpectCommit()

	err := repo.UpdateShotKeyframe(context.Background(), "shot-1", "https://loser.example.com/k.png", "flux-1.1-pro", "prompt")
	require.Error(t, err)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.KindConflict, derr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCharacter_UniqueNameConflict(t *testing.T) {
	gdb, mock := newMockRepo(t)
	repo := NewArtifactRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "characters"`).
		WillReturnError(errDuplicateKey)
	mock.ExpectRollback()

	err := repo.CreateCharacter(context.Background(), &domain.Character{
		ID:        "char-1",
		ProjectID: "project-1",
		Name:      "Ava",
	})
	require.Error(t, err)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.KindConflict, derr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres code", errDuplicateKey, true},
		{"mysql code", errMySQLDuplicate, true},
		{"unrelated", errNotFoundLike, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, isUniqueViolation(tc.err))
		})
	}
}
