package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sceneforge/core/internal/domain"
)

func TestAdvanceChapterStatus_ValidTransition(t *testing.T) {
	gdb, mock := newMockRepo(t)
	repo := NewProjectRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "chapters" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow("chapter-1", string(domain.StatusParsed)))
	mock.ExpectExec(`UPDATE "chapters" SET "status"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.AdvanceChapterStatus(context.Background(), "chapter-1", domain.StatusScriptGenerated)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceChapterStatus_InvalidTransitionRejected(t *testing.T) {
	gdb, mock := newMockRepo(t)
	repo := NewProjectRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "chapters" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow("chapter-1", string(domain.StatusDraft)))
	mock.ExpectRollback()

	err := repo.AdvanceChapterStatus(context.Background(), "chapter-1", domain.StatusCompleted)
	require.Error(t, err)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.KindValidation, derr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceChapterStatus_FailedReachableFromAnyState(t *testing.T) {
	gdb, mock := newMockRepo(t)
	repo := NewProjectRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "chapters" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).
			AddRow("chapter-1", string(domain.StatusMaterialsPrepared)))
	mock.ExpectExec(`UPDATE "chapters" SET "status"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.AdvanceChapterStatus(context.Background(), "chapter-1", domain.StatusFailed)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceChapterStatus_ChapterNotFound(t *testing.T) {
	gdb, mock := newMockRepo(t)
	repo := NewProjectRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "chapters" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
	mock.ExpectRollback()

	err := repo.AdvanceChapterStatus(context.Background(), "missing-chapter", domain.StatusParsed)
	require.Error(t, err)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.KindNotFound, derr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteChapter_NoScript(t *testing.T) {
	gdb, mock := newMockRepo(t)
	repo := NewProjectRepository(gdb)
	artifacts := NewArtifactRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "scripts" WHERE chapter_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "sentences" WHERE chapter_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`DELETE FROM "chapters"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DeleteChapter(context.Background(), "chapter-1", artifacts)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
