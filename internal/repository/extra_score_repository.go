package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ExtraScoreRepository writes derived extra-score values. Rows are keyed by
// student and merged with jsonb concatenation so each category only touches its own key.
type ExtraScoreRepository struct {
	db *sqlx.DB
}

// NewExtraScoreRepository constructs the repository.
func NewExtraScoreRepository(db *sqlx.DB) *ExtraScoreRepository {
	return &ExtraScoreRepository{db: db}
}

// UpsertExtraScore sets data[key] = value for the student.
func (r *ExtraScoreRepository) UpsertExtraScore(ctx context.Context, studentID, key string, value float64) error {
	const query = `INSERT INTO student_extra_scores (student_id, data, updated_at)
VALUES ($1, jsonb_build_object($2::text, $3::numeric), NOW())
ON CONFLICT (student_id)
DO UPDATE SET data = student_extra_scores.data || EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, studentID, key, value); err != nil {
		return fmt.Errorf("upsert extra score %s for %s: %w", key, studentID, err)
	}
	return nil
}

const bulkSyncExtraScoresQuery = `WITH homework AS (
    SELECT r.student_id, ROUND(AVG(COALESCE(r.final_score_percentage, r.score_percentage))::numeric, 2) AS value
    FROM exam_results r JOIN exams e ON e.id = r.exam_id
    WHERE e.type = 'homework'
    GROUP BY r.student_id
), quiz AS (
    SELECT r.student_id, ROUND(AVG(COALESCE(r.final_score_percentage, r.score_percentage))::numeric, 2) AS value
    FROM exam_results r JOIN exams e ON e.id = r.exam_id
    WHERE e.type = 'quiz'
    GROUP BY r.student_id
), sessions AS (
    SELECT COUNT(*) AS total FROM attendance_sessions
), attendance AS (
    SELECT l.student_id, ROUND(COUNT(DISTINCT l.session_id) * 100.0 / s.total) AS value
    FROM attendance_logs l CROSS JOIN sessions s
    WHERE l.status = 'present' AND s.total > 0
    GROUP BY l.student_id, s.total
), combined AS (
    SELECT st.id AS student_id,
           jsonb_strip_nulls(jsonb_build_object('homework', h.value, 'quiz', q.value, 'attendance', a.value)) AS data
    FROM students st
    LEFT JOIN homework h ON h.student_id = st.id
    LEFT JOIN quiz q ON q.student_id = st.id
    LEFT JOIN attendance a ON a.student_id = st.id
    WHERE h.value IS NOT NULL OR q.value IS NOT NULL OR a.value IS NOT NULL
)
INSERT INTO student_extra_scores (student_id, data, updated_at)
SELECT student_id, data, NOW() FROM combined
ON CONFLICT (student_id)
DO UPDATE SET data = student_extra_scores.data || EXCLUDED.data, updated_at = EXCLUDED.updated_at`

// BulkSyncExtraScores derives every category for every student in one
// statement and reports the number of student rows written.
func (r *ExtraScoreRepository) BulkSyncExtraScores(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, bulkSyncExtraScoresQuery)
	if err != nil {
		return 0, fmt.Errorf("bulk sync extra scores: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk sync rows affected: %w", err)
	}
	return int(affected), nil
}
