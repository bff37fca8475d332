package models

import (
	"database/sql/driver"
	"time"
)

// ProgressMetrics holds the quantitative progress measurements, each on a
// 0-100 scale except UnderstandingLevel (1-5).
type ProgressMetrics struct {
	AssignmentGrades   float64 `json:"assignmentGrades,omitempty"`
	ExamScores         float64 `json:"examScores,omitempty"`
	Participation      float64 `json:"participation,omitempty"`
	UnderstandingLevel int     `json:"understandingLevel,omitempty"`
	CompletionRate     float64 `json:"completionRate,omitempty"`
	Attendance         float64 `json:"attendance,omitempty"`
	HomeworkCompletion float64 `json:"homeworkCompletion,omitempty"`
}

func (m ProgressMetrics) Value() (driver.Value, error) { return jsonbValue(m) }
func (m *ProgressMetrics) Scan(value interface{}) error { return jsonbScan(value, m) }

// GoalStatus tracks a single goal's progression.
type GoalStatus string

const (
	GoalNotStarted     GoalStatus = "not_started"
	GoalInProgress     GoalStatus = "in_progress"
	GoalCompleted      GoalStatus = "completed"
	GoalBehindSchedule GoalStatus = "behind_schedule"
)

// Goal is one study objective inside a progress record.
type Goal struct {
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Status      GoalStatus `json:"status"`
	Progress    int        `json:"progress"`
}

// GoalList is the JSONB-backed goal set.
type GoalList []Goal

func (l GoalList) Value() (driver.Value, error) {
	if l == nil {
		l = GoalList{}
	}
	return jsonbValue(l)
}

func (l *GoalList) Scan(value interface{}) error { return jsonbScan(value, l) }

// ProgressHistoryEntry is a dated snapshot of the metrics.
type ProgressHistoryEntry struct {
	Date    time.Time       `json:"date"`
	Metrics ProgressMetrics `json:"metricsSnapshot"`
	Notes   string          `json:"notes,omitempty"`
}

// ProgressHistoryList is the JSONB-backed history log.
type ProgressHistoryList []ProgressHistoryEntry

func (l ProgressHistoryList) Value() (driver.Value, error) {
	if l == nil {
		l = ProgressHistoryList{}
	}
	return jsonbValue(l)
}

func (l *ProgressHistoryList) Scan(value interface{}) error { return jsonbScan(value, l) }

// ProgressTracking records a student's progress in one subject over a period.
// The first record for a student/subject pair is the baseline assessment.
type ProgressTracking struct {
	ID                  string              `db:"id" json:"id"`
	StudentID           string              `db:"student_id" json:"studentId"`
	TrackedBy           string              `db:"tracked_by" json:"trackedBy"`
	AppointmentID       *string             `db:"appointment_id" json:"appointmentId,omitempty"`
	Subject             string              `db:"subject" json:"subject"`
	Metrics             ProgressMetrics     `db:"metrics" json:"metrics"`
	Observations        string              `db:"observations" json:"observations,omitempty"`
	Strengths           StringList          `db:"strengths" json:"strengths"`
	AreasForImprovement StringList          `db:"areas_for_improvement" json:"areasForImprovement"`
	LearningStyle       string              `db:"learning_style" json:"learningStyle"`
	Goals               GoalList            `db:"goals" json:"goals"`
	History             ProgressHistoryList `db:"history" json:"progressHistory"`
	CompetencyLevel     string              `db:"competency_level" json:"competencyLevel"`
	ConfidenceLevel     int                 `db:"confidence_level" json:"confidenceLevel"`
	IsBaseline          bool                `db:"is_baseline" json:"isBaseline"`
	CreatedAt           time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updatedAt"`
}

// ProgressFilter captures filtering criteria for listing progress records.
type ProgressFilter struct {
	StudentID string
	TrackedBy string
	Subject   string
	Page      int
	Limit     int
}

// ProgressStatistics aggregates progress across records.
type ProgressStatistics struct {
	TotalRecords     int            `json:"totalRecords"`
	SubjectCounts    map[string]int `json:"bySubject"`
	AverageCompletio float64        `json:"averageCompletionRate"`
	AverageGrades    float64        `json:"averageAssignmentGrades"`
}

// CreateProgressRequest starts tracking a student in a subject.
type CreateProgressRequest struct {
	StudentID           string          `json:"studentId" validate:"required"`
	AppointmentID       *string         `json:"appointmentId"`
	Subject             string          `json:"subject" validate:"required"`
	Metrics             ProgressMetrics `json:"metrics"`
	Observations        string          `json:"observations" validate:"max=2000"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	LearningStyle       string          `json:"learningStyle" validate:"omitempty,oneof=visual auditory kinesthetic reading_writing mixed"`
	Goals               []Goal          `json:"goals"`
	CompetencyLevel     string          `json:"competencyLevel" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	ConfidenceLevel     int             `json:"confidenceLevel" validate:"omitempty,min=1,max=5"`
}

// UpdateProgressRequest patches a progress record.
type UpdateProgressRequest struct {
	Metrics             *ProgressMetrics `json:"metrics"`
	Observations        *string          `json:"observations" validate:"omitempty,max=2000"`
	Strengths           []string         `json:"strengths"`
	AreasForImprovement []string         `json:"areasForImprovement"`
	LearningStyle       *string          `json:"learningStyle" validate:"omitempty,oneof=visual auditory kinesthetic reading_writing mixed"`
	CompetencyLevel     *string          `json:"competencyLevel" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	ConfidenceLevel     *int             `json:"confidenceLevel" validate:"omitempty,min=1,max=5"`
}

// AddHistoryRequest appends a dated metrics snapshot.
type AddHistoryRequest struct {
	Metrics ProgressMetrics `json:"metricsSnapshot"`
	Notes   string          `json:"notes" validate:"max=1000"`
}

// UpdateGoalStatusRequest moves the goal at the given index.
type UpdateGoalStatusRequest struct {
	GoalIndex int        `json:"goalIndex" validate:"min=0"`
	Status    GoalStatus `json:"status" validate:"required,oneof=not_started in_progress completed behind_schedule"`
	Progress  *int       `json:"progress" validate:"omitempty,min=0,max=100"`
}
