package models

import (
	"database/sql/driver"
	"time"
)

// AssignmentStatus is derived from submission and due-date state on every
// mutation: assigned → submitted|late on submission, graded after grading,
// missing once the due date passes with no submission, returned/resubmitted
// when rework is requested.
type AssignmentStatus string

const (
	AssignmentAssigned    AssignmentStatus = "assigned"
	AssignmentSubmitted   AssignmentStatus = "submitted"
	AssignmentGraded      AssignmentStatus = "graded"
	AssignmentLate        AssignmentStatus = "late"
	AssignmentMissing     AssignmentStatus = "missing"
	AssignmentReturned    AssignmentStatus = "returned"
	AssignmentResubmitted AssignmentStatus = "resubmitted"
)

// Submission is populated when the student submits work.
type Submission struct {
	SubmittedAt        time.Time `json:"submittedAt"`
	Text               string    `json:"text,omitempty"`
	FileURL            string    `json:"fileUrl,omitempty"`
	ExternalLink       string    `json:"externalLink,omitempty"`
	Files              []string  `json:"files,omitempty"`
	LateSubmission     bool      `json:"lateSubmission"`
	SubmissionAttempts int       `json:"submissionAttempts"`
}

func (s Submission) Value() (driver.Value, error) { return jsonbValue(s) }
func (s *Submission) Scan(value interface{}) error { return jsonbScan(value, s) }

// HasContent reports whether the submission carries any work product.
func (s *Submission) HasContent() bool {
	return s.Text != "" || s.FileURL != "" || s.ExternalLink != "" || len(s.Files) > 0
}

// Grading is populated when the assigner grades a submission.
type Grading struct {
	Grade    float64   `json:"grade"`
	Feedback string    `json:"feedback,omitempty"`
	Rubric   string    `json:"rubric,omitempty"`
	GradedBy string    `json:"gradedBy"`
	GradedAt time.Time `json:"gradedAt"`
}

func (g Grading) Value() (driver.Value, error) { return jsonbValue(g) }
func (g *Grading) Scan(value interface{}) error { return jsonbScan(value, g) }

// AssignmentComment is one entry in the assignment discussion log.
type AssignmentComment struct {
	AuthorID  string    `json:"authorId"`
	Comment   string    `json:"comment"`
	IsPrivate bool      `json:"isPrivate"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentList is the JSONB-backed comment log.
type CommentList []AssignmentComment

func (l CommentList) Value() (driver.Value, error) {
	if l == nil {
		l = CommentList{}
	}
	return jsonbValue(l)
}

func (l *CommentList) Scan(value interface{}) error { return jsonbScan(value, l) }

// Extension is one due-date extension request; DueDate moves only after
// explicit approval.
type Extension struct {
	RequestedBy string     `json:"requestedBy"`
	RequestedAt time.Time  `json:"requestedAt"`
	Reason      string     `json:"reason"`
	NewDueDate  time.Time  `json:"newDueDate"`
	Approved    bool       `json:"approved"`
	ApprovedBy  *string    `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
}

// ExtensionList is the JSONB-backed extension request log.
type ExtensionList []Extension

func (l ExtensionList) Value() (driver.Value, error) {
	if l == nil {
		l = ExtensionList{}
	}
	return jsonbValue(l)
}

func (l *ExtensionList) Scan(value interface{}) error { return jsonbScan(value, l) }

// Assignment links a material to a student with a due date and grading state.
type Assignment struct {
	ID            string           `db:"id" json:"id"`
	MaterialID    string           `db:"material_id" json:"materialId"`
	StudentID     string           `db:"student_id" json:"studentId"`
	AssignedBy    string           `db:"assigned_by" json:"assignedBy"`
	AppointmentID *string          `db:"appointment_id" json:"appointmentId,omitempty"`
	Title         string           `db:"title" json:"title"`
	Description   string           `db:"description" json:"description,omitempty"`
	DueDate       time.Time        `db:"due_date" json:"dueDate"`
	MaxPoints     float64          `db:"max_points" json:"maxPoints"`
	Submission    *Submission      `db:"submission" json:"submission,omitempty"`
	Grading       *Grading         `db:"grading" json:"grading,omitempty"`
	Comments      CommentList      `db:"comments" json:"comments"`
	Extensions    ExtensionList    `db:"extensions" json:"extensions"`
	Status        AssignmentStatus `db:"status" json:"status"`
	EstimatedTime int              `db:"estimated_time" json:"estimatedTime,omitempty"`
	Difficulty    string           `db:"difficulty" json:"difficulty"`
	Tags          StringList       `db:"tags" json:"tags"`
	CreatedBy     *string          `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy     *string          `db:"updated_by" json:"updatedBy,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// DeriveStatus computes the assignment status purely from submission,
// grading and due-date state. Graded, returned and resubmitted are sticky
// workflow states that the derivation preserves.
func (a *Assignment) DeriveStatus(now time.Time) AssignmentStatus {
	switch a.Status {
	case AssignmentGraded, AssignmentReturned, AssignmentResubmitted:
		return a.Status
	}
	if a.Submission != nil && !a.Submission.SubmittedAt.IsZero() {
		if a.Submission.LateSubmission {
			return AssignmentLate
		}
		return AssignmentSubmitted
	}
	if a.DueDate.Before(now) {
		return AssignmentMissing
	}
	return AssignmentAssigned
}

// AssignmentFilter captures filtering criteria for listing assignments.
type AssignmentFilter struct {
	StudentID  string
	AssignedBy string
	MaterialID string
	Status     *AssignmentStatus
	Overdue    bool
	Pending    bool
	Page       int
	Limit      int
}

// AssignmentStatistics is the read-side aggregation over assignments.
type AssignmentStatistics struct {
	StatusCounts     map[AssignmentStatus]int `json:"statusDistribution"`
	TotalAssignments int                      `json:"totalAssignments"`
	GradedCount      int                      `json:"gradedAssignments"`
	AverageGrade     float64                  `json:"averageGrade"`
}

// CreateAssignmentRequest is the payload for assigning a material.
type CreateAssignmentRequest struct {
	MaterialID    string    `json:"materialId" validate:"required"`
	StudentID     string    `json:"studentId" validate:"required"`
	AppointmentID *string   `json:"appointmentId"`
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description"`
	DueDate       time.Time `json:"dueDate" validate:"required"`
	MaxPoints     float64   `json:"maxPoints" validate:"required,gt=0"`
	EstimatedTime int       `json:"estimatedTime" validate:"omitempty,min=0"`
	Difficulty    string    `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Tags          []string  `json:"tags"`
}

// UpdateAssignmentRequest patches assignment metadata.
type UpdateAssignmentRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	DueDate       *time.Time `json:"dueDate"`
	MaxPoints     *float64   `json:"maxPoints" validate:"omitempty,gt=0"`
	EstimatedTime *int       `json:"estimatedTime" validate:"omitempty,min=0"`
	Difficulty    *string    `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Tags          []string   `json:"tags"`
}

// SubmitAssignmentRequest carries the student's work; at least one content
// field must be non-empty.
type SubmitAssignmentRequest struct {
	Text         string   `json:"text"`
	FileURL      string   `json:"fileUrl"`
	ExternalLink string   `json:"externalLink"`
	Files        []string `json:"files"`
}

// GradeAssignmentRequest grades a submitted assignment.
type GradeAssignmentRequest struct {
	Grade    float64 `json:"grade" validate:"min=0"`
	Feedback string  `json:"feedback"`
	Rubric   string  `json:"rubric"`
}

// RequestExtensionRequest appends a pending extension request.
type RequestExtensionRequest struct {
	Reason     string    `json:"reason" validate:"required"`
	NewDueDate time.Time `json:"newDueDate" validate:"required"`
}

// ApproveExtensionRequest approves the extension at the given index.
type ApproveExtensionRequest struct {
	ExtensionIndex int `json:"extensionIndex" validate:"min=0"`
}

// AddCommentRequest appends to the assignment comment log.
type AddCommentRequest struct {
	Comment   string `json:"comment" validate:"required,max=1000"`
	IsPrivate bool   `json:"isPrivate"`
}
