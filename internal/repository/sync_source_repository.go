package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-scoring/internal/models"
)

// SyncSourceRepository reads the authoritative exam-result and attendance
// tables the sync engine derives extra scores from.
type SyncSourceRepository struct {
	db *sqlx.DB
}

// NewSyncSourceRepository constructs the repository.
func NewSyncSourceRepository(db *sqlx.DB) *SyncSourceRepository {
	return &SyncSourceRepository{db: db}
}

// AverageScoresByExamType averages resolved scores per student for exams of the given type.
func (r *SyncSourceRepository) AverageScoresByExamType(ctx context.Context, examType string) ([]models.StudentScoreAggregate, error) {
	const query = `SELECT r.student_id, ROUND(AVG(COALESCE(r.final_score_percentage, r.score_percentage))::numeric, 2) AS value
FROM exam_results r JOIN exams e ON e.id = r.exam_id
WHERE e.type = $1
GROUP BY r.student_id
ORDER BY r.student_id`
	var aggregates []models.StudentScoreAggregate
	if err := r.db.SelectContext(ctx, &aggregates, query, examType); err != nil {
		return nil, fmt.Errorf("average %s scores: %w", examType, err)
	}
	return aggregates, nil
}

// StudentAverageScore averages one student's scores for the exam type. A nil
// result means the student has no results of that type.
func (r *SyncSourceRepository) StudentAverageScore(ctx context.Context, studentID, examType string) (*float64, error) {
	const query = `SELECT ROUND(AVG(COALESCE(r.final_score_percentage, r.score_percentage))::numeric, 2)
FROM exam_results r JOIN exams e ON e.id = r.exam_id
WHERE e.type = $1 AND r.student_id = $2`
	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, query, examType, studentID); err != nil {
		return nil, fmt.Errorf("average %s score for %s: %w", examType, studentID, err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// AttendanceStats returns the distinct session total and per-student attended counts.
func (r *SyncSourceRepository) AttendanceStats(ctx context.Context) (models.AttendanceStats, error) {
	var stats models.AttendanceStats
	if err := r.db.GetContext(ctx, &stats.TotalSessions, `SELECT COUNT(*) FROM attendance_sessions`); err != nil {
		return stats, fmt.Errorf("count attendance sessions: %w", err)
	}
	if stats.TotalSessions == 0 {
		return stats, nil
	}
	const query = `SELECT student_id, COUNT(DISTINCT session_id) AS attended_sessions
FROM attendance_logs WHERE status = 'present'
GROUP BY student_id
ORDER BY student_id`
	if err := r.db.SelectContext(ctx, &stats.Students, query); err != nil {
		return stats, fmt.Errorf("attendance per student: %w", err)
	}
	return stats, nil
}

// StudentAttendance returns the attended and total distinct session counts for one student.
func (r *SyncSourceRepository) StudentAttendance(ctx context.Context, studentID string) (attended, total int, err error) {
	const query = `SELECT
    (SELECT COUNT(DISTINCT session_id) FROM attendance_logs WHERE status = 'present' AND student_id = $1) AS attended,
    (SELECT COUNT(*) FROM attendance_sessions) AS total`
	var row struct {
		Attended int `db:"attended"`
		Total    int `db:"total"`
	}
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("attendance for %s: %w", studentID, err)
	}
	return row.Attended, row.Total, nil
}
