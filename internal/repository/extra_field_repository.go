package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

// ExtraFieldRepository reads administrator-defined extra-field definitions.
type ExtraFieldRepository struct {
	db *sqlx.DB
}

// NewExtraFieldRepository constructs the repository.
func NewExtraFieldRepository(db *sqlx.DB) *ExtraFieldRepository {
	return &ExtraFieldRepository{db: db}
}

// ListExtraFields returns every active field definition in display order.
func (r *ExtraFieldRepository) ListExtraFields(ctx context.Context) ([]models.ExtraField, error) {
	const query = `SELECT key, label, type, include_in_pass, pass_weight, max_points
FROM extra_fields WHERE active = TRUE ORDER BY sort_order ASC, key ASC`
	var fields []models.ExtraField
	if err := r.db.SelectContext(ctx, &fields, query); err != nil {
		return nil, fmt.Errorf("list extra fields: %w", err)
	}
	return fields, nil
}
