package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

func TestStudentRepositoryGetStudentSummaries(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	attempts := `[{"exam_id":"e1","exam_title":"Midterm","score_percentage":70,"final_score_percentage":null,"include_in_pass":true,"pass_threshold":null},
{"exam_id":"e2","exam_title":"Final","score_percentage":85,"final_score_percentage":90,"include_in_pass":true,"pass_threshold":65}]`
	rows := sqlmock.NewRows([]string{"student_id", "code", "name", "exam_attempts", "extra_scores"}).
		AddRow("stu-1", "S001", "Ana", []byte(attempts), []byte(`{"homework":82.5,"attendance":90,"note":"ok","remedial":true}`)).
		AddRow("stu-2", "S002", "Budi", []byte(`[]`), []byte(`{}`))
	mock.ExpectQuery("SELECT s.id AS student_id").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	summaries, err := repo.GetStudentSummaries(context.Background(), []string{"S001", "S002", "S404"})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	ana := summaries[0]
	assert.Equal(t, "S001", ana.Code)
	require.Len(t, ana.ExamAttempts, 2)
	assert.Nil(t, ana.ExamAttempts[0].FinalScorePercentage)
	require.NotNil(t, ana.ExamAttempts[1].FinalScorePercentage)
	assert.Equal(t, 90.0, *ana.ExamAttempts[1].FinalScorePercentage)
	assert.Equal(t, models.NumberValue(82.5), ana.ExtraScores["homework"])
	assert.Equal(t, models.TextValue("ok"), ana.ExtraScores["note"])
	assert.Equal(t, models.BoolValue(true), ana.ExtraScores["remedial"])

	assert.Empty(t, summaries[1].ExamAttempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryGetStudentSummariesEmptyCodes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	summaries, err := repo.GetStudentSummaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, summaries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryGetStudentSummariesIsolatesBadRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT s.id AS student_id").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "code", "name", "exam_attempts", "extra_scores"}).
			AddRow("stu-1", "S001", "Ana", []byte(`[]`), []byte(`{"homework":82.5}`)).
			AddRow("stu-2", "S002", "Budi", []byte(`[]`), []byte(`{"homework":{"avg":70},"quiz":75}`)).
			AddRow("stu-3", "S003", "Citra", []byte(`{oops`), []byte(`{"homework":90}`)).
			AddRow("stu-4", "S004", "Dewi", []byte(`[]`), []byte(`[1,2]`)))

	summaries, err := repo.GetStudentSummaries(context.Background(), []string{"S001", "S002", "S003", "S004"})
	require.NoError(t, err)
	require.Len(t, summaries, 4)

	assert.Empty(t, summaries[0].DecodeError)
	assert.Equal(t, models.NumberValue(82.5), summaries[0].ExtraScores["homework"])

	assert.Empty(t, summaries[1].DecodeError)
	assert.NotContains(t, summaries[1].ExtraScores, "homework")
	assert.Equal(t, models.NumberValue(75), summaries[1].ExtraScores["quiz"])

	assert.Contains(t, summaries[2].DecodeError, "exam attempts")
	assert.Contains(t, summaries[3].DecodeError, "extra scores")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryStudentCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT nis FROM students").WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"nis"}).AddRow("S001"))
	mock.ExpectQuery("SELECT nis FROM students").WithArgs("stu-404").
		WillReturnError(sql.ErrNoRows)

	code, err := repo.StudentCode(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "S001", code)

	_, err = repo.StudentCode(context.Background(), "stu-404")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
