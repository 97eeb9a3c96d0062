package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
	appErrors "github.com/noah-isme/sma-adp-scoring/pkg/errors"
)

// StudentRepository reads pre-joined student score summaries.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

type studentSummaryRow struct {
	StudentID    string `db:"student_id"`
	Code         string `db:"code"`
	Name         string `db:"name"`
	ExamAttempts []byte `db:"exam_attempts"`
	ExtraScores  []byte `db:"extra_scores"`
}

const studentSummaryQuery = `SELECT s.id AS student_id, s.nis AS code, s.full_name AS name,
       COALESCE((
           SELECT json_agg(json_build_object(
                      'exam_id', e.id,
                      'exam_title', e.title,
                      'score_percentage', r.score_percentage,
                      'final_score_percentage', r.final_score_percentage,
                      'include_in_pass', e.include_in_pass,
                      'pass_threshold', e.pass_threshold
                  ) ORDER BY r.completed_at, e.id)
           FROM exam_results r
           JOIN exams e ON e.id = r.exam_id
           WHERE r.student_id = s.id AND e.type = 'exam'
       ), '[]'::json) AS exam_attempts,
       COALESCE(x.data, '{}'::jsonb) AS extra_scores
FROM students s
LEFT JOIN student_extra_scores x ON x.student_id = s.id
WHERE s.nis = ANY($1)`

// GetStudentSummaries returns one summary per known code in a single round
// trip. Unknown codes are simply absent from the result. A row that cannot be
// decoded still yields a summary, flagged through DecodeError, so one bad
// record never fails the others. Extra scores that are not scalars are
// dropped key by key.
func (r *StudentRepository) GetStudentSummaries(ctx context.Context, codes []string) ([]models.StudentSummary, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	var rows []studentSummaryRow
	if err := r.db.SelectContext(ctx, &rows, studentSummaryQuery, pq.Array(codes)); err != nil {
		return nil, fmt.Errorf("list student summaries: %w", err)
	}

	summaries := make([]models.StudentSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, decodeSummary(row))
	}
	return summaries, nil
}

func decodeSummary(row studentSummaryRow) models.StudentSummary {
	summary := models.StudentSummary{StudentID: row.StudentID, Code: row.Code, Name: row.Name}
	if len(row.ExamAttempts) > 0 {
		if err := json.Unmarshal(row.ExamAttempts, &summary.ExamAttempts); err != nil {
			summary.ExamAttempts = nil
			summary.DecodeError = fmt.Sprintf("decode exam attempts: %v", err)
			return summary
		}
	}
	if len(row.ExtraScores) > 0 {
		scores, _, err := models.DecodeExtraScores(row.ExtraScores)
		if err != nil {
			summary.DecodeError = err.Error()
			return summary
		}
		summary.ExtraScores = scores
	}
	return summary
}

// StudentCode resolves a student's code from its id.
func (r *StudentRepository) StudentCode(ctx context.Context, studentID string) (string, error) {
	const query = `SELECT nis FROM students WHERE id = $1`
	var code string
	if err := r.db.GetContext(ctx, &code, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return "", fmt.Errorf("find student code: %w", err)
	}
	return code, nil
}
