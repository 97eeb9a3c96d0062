package models

import "time"

// SyncCategory identifies a derived extra-score category.
type SyncCategory string

const (
	SyncCategoryHomework   SyncCategory = "homework"
	SyncCategoryQuiz       SyncCategory = "quiz"
	SyncCategoryAttendance SyncCategory = "attendance"
	SyncCategoryAll        SyncCategory = "all"
)

// SyncCategories lists the per-category syncs in execution order.
var SyncCategories = []SyncCategory{SyncCategoryHomework, SyncCategoryQuiz, SyncCategoryAttendance}

// ExtraScoreKey returns the extra-score key written for the category.
func (c SyncCategory) ExtraScoreKey() string {
	return string(c)
}

// Valid reports whether the category is a known sync target.
func (c SyncCategory) Valid() bool {
	switch c {
	case SyncCategoryHomework, SyncCategoryQuiz, SyncCategoryAttendance, SyncCategoryAll:
		return true
	}
	return false
}

// SyncResult describes the outcome of one sync run.
type SyncResult struct {
	Success      bool         `json:"success"`
	Category     SyncCategory `json:"category"`
	UpdatedCount int          `json:"updated_count"`
	FailedCount  int          `json:"failed_count"`
	Message      string       `json:"message"`
	Timestamp    time.Time    `json:"timestamp"`
	Error        string       `json:"error,omitempty"`
}

// SyncTimestamps holds the last successful sync time per category.
type SyncTimestamps struct {
	Homework     *time.Time `json:"homework"`
	Quiz         *time.Time `json:"quiz"`
	Attendance   *time.Time `json:"attendance"`
	LastFullSync *time.Time `json:"last_full_sync"`
}

// For returns the timestamp recorded for the category.
func (t SyncTimestamps) For(category SyncCategory) *time.Time {
	switch category {
	case SyncCategoryHomework:
		return t.Homework
	case SyncCategoryQuiz:
		return t.Quiz
	case SyncCategoryAttendance:
		return t.Attendance
	default:
		return t.LastFullSync
	}
}

// StudentScoreAggregate is a derived per-student scalar read from source tables.
type StudentScoreAggregate struct {
	StudentID string  `db:"student_id" json:"student_id"`
	Value     float64 `db:"value" json:"value"`
}

// StudentAttendance counts distinct sessions a student attended.
type StudentAttendance struct {
	StudentID        string `db:"student_id" json:"student_id"`
	AttendedSessions int    `db:"attended_sessions" json:"attended_sessions"`
}

// AttendanceStats combines the global session count with per-student attendance.
type AttendanceStats struct {
	TotalSessions int                 `json:"total_sessions"`
	Students      []StudentAttendance `json:"students"`
}
