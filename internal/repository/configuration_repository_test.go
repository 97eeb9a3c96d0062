package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

var configurationColumns = []string{"key", "value", "type", "description", "updated_by", "updated_at"}

func TestConfigurationRepositoryListByKeys(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewConfigurationRepository(db)
	rows := sqlmock.NewRows(configurationColumns).
		AddRow("sync_timestamp_quiz", "2024-03-01T10:00:00Z", "STRING", nil, "scoring-engine", time.Now())
	mock.ExpectQuery("SELECT key, value").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	result, err := repo.ListByKeys(context.Background(), []string{"sync_timestamp_quiz", "sync_timestamp_homework"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "2024-03-01T10:00:00Z", result[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryGetValueMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewConfigurationRepository(db)
	mock.ExpectQuery("SELECT key, value").WithArgs("absent").WillReturnError(sql.ErrNoRows)

	value, ok, err := repo.GetValue(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestConfigurationRepositorySetValues(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("sync_timestamp_homework", "2024-03-01T10:00:00Z", "STRING", sqlmock.AnyArg(), "scoring-engine", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("sync_timestamp_last_full", "2024-03-01T10:00:00Z", "STRING", sqlmock.AnyArg(), "scoring-engine", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetValues(context.Background(), map[string]string{
		models.ConfigKeyLastFullSync: "2024-03-01T10:00:00Z",
		"sync_timestamp_homework":    "2024-03-01T10:00:00Z",
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositorySetValuesRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO configurations").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.SetValues(context.Background(), map[string]string{"sync_timestamp_quiz": "t"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("sync_timestamp_homework", "t1", "STRING", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("sync_timestamp_quiz", "t2", "STRING", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	items := []models.Configuration{
		{Key: "sync_timestamp_homework", Value: "t1", Type: models.ConfigurationTypeString, UpdatedBy: strPtr("admin")},
		{Key: "sync_timestamp_quiz", Value: "t2", Type: models.ConfigurationTypeString, UpdatedBy: strPtr("admin")},
	}
	require.NoError(t, repo.BulkUpsert(context.Background(), items))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryGetCalculationSettings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectQuery("SELECT key, value").
		WithArgs(models.ConfigKeyCalculationSettings).
		WillReturnRows(sqlmock.NewRows(configurationColumns).
			AddRow(models.ConfigKeyCalculationSettings, `{"pass_calc_mode":"avg","overall_pass_threshold":75}`, "JSON", nil, nil, time.Now()))

	settings, err := repo.GetCalculationSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PassCalcModeAvg, settings.PassCalcMode)
	assert.Equal(t, 75.0, settings.OverallPassThreshold)
	assert.Equal(t, 1.0, settings.ExamWeight)
	assert.Equal(t, models.ExamScoreSourceFinal, settings.ExamScoreSource)
}

func TestConfigurationRepositoryGetCalculationSettingsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectQuery("SELECT key, value").WillReturnError(sql.ErrNoRows)

	settings, err := repo.GetCalculationSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCalculationSettings(), settings)
}

func TestConfigurationRepositoryGetCalculationSettingsMalformed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectQuery("SELECT key, value").
		WillReturnRows(sqlmock.NewRows(configurationColumns).
			AddRow(models.ConfigKeyCalculationSettings, `{not json`, "JSON", nil, nil, time.Now()))

	_, err := repo.GetCalculationSettings(context.Background())
	assert.Error(t, err)
}
