package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtraScoreRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExtraScoreRepository(db)

	mock.ExpectExec("INSERT INTO student_extra_scores").
		WithArgs("stu-1", "quiz", 77.5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertExtraScore(context.Background(), "stu-1", "quiz", 77.5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtraScoreRepositoryUpsertError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExtraScoreRepository(db)

	mock.ExpectExec("INSERT INTO student_extra_scores").WillReturnError(errors.New("deadlock"))

	err := repo.UpsertExtraScore(context.Background(), "stu-1", "quiz", 77.5)
	assert.ErrorContains(t, err, "upsert extra score quiz for stu-1")
}

func TestExtraScoreRepositoryBulkSync(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExtraScoreRepository(db)

	mock.ExpectExec("WITH homework AS").WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := repo.BulkSyncExtraScores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
