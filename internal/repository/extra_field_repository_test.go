package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

func TestExtraFieldRepositoryListExtraFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExtraFieldRepository(db)

	rows := sqlmock.NewRows([]string{"key", "label", "type", "include_in_pass", "pass_weight", "max_points"}).
		AddRow("homework", "Homework", "number", true, 0.5, nil).
		AddRow("project", "Project", "number", true, 1.0, 20.0)
	mock.ExpectQuery("SELECT key, label, type").WillReturnRows(rows)

	fields, err := repo.ListExtraFields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, models.ExtraFieldTypeNumber, fields[0].Type)
	assert.Nil(t, fields[0].MaxPoints)
	require.NotNil(t, fields[1].MaxPoints)
	assert.Equal(t, 20.0, *fields[1].MaxPoints)
}

func TestExtraFieldRepositoryListExtraFieldsError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExtraFieldRepository(db)

	mock.ExpectQuery("SELECT key, label, type").WillReturnError(errors.New("connection reset"))

	_, err := repo.ListExtraFields(context.Background())
	assert.ErrorContains(t, err, "list extra fields")
}
