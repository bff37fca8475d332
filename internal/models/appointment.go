package models

import (
	"database/sql/driver"
	"time"
)

// AppointmentType is the kind of session; it must match the professional's
// role through AppointmentTypeForRole.
type AppointmentType string

const (
	AppointmentTutoring AppointmentType = "tutoring"
	AppointmentAdvising AppointmentType = "advising"
)

// appointmentTypeByRole is the explicit role ↔ type mapping.
var appointmentTypeByRole = map[UserRole]AppointmentType{
	RoleTutor:   AppointmentTutoring,
	RoleAdvisor: AppointmentAdvising,
}

// AppointmentTypeForRole returns the appointment type a professional role may
// serve, or false when the role is not a professional one.
func AppointmentTypeForRole(role UserRole) (AppointmentType, bool) {
	t, ok := appointmentTypeByRole[role]
	return t, ok
}

// AppointmentStatus is the appointment state machine:
// scheduled → confirmed → in-progress → completed, with cancelled and
// no-show as alternate terminals reachable from scheduled/confirmed.
type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "scheduled"
	AppointmentConfirmed  AppointmentStatus = "confirmed"
	AppointmentInProgress AppointmentStatus = "in-progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentNoShow     AppointmentStatus = "no-show"
)

// ActiveAppointmentStatuses are the states that occupy a participant's
// calendar for conflict detection.
var ActiveAppointmentStatuses = []AppointmentStatus{
	AppointmentScheduled, AppointmentConfirmed, AppointmentInProgress,
}

// GroupParticipant is one student attending a group session.
type GroupParticipant struct {
	StudentID string     `json:"studentId"`
	Status    string     `json:"status"`
	JoinedAt  *time.Time `json:"joinedAt,omitempty"`
}

// GroupParticipantList is the JSONB-backed participant roster.
type GroupParticipantList []GroupParticipant

func (l GroupParticipantList) Value() (driver.Value, error) {
	if l == nil {
		l = GroupParticipantList{}
	}
	return jsonbValue(l)
}

func (l *GroupParticipantList) Scan(value interface{}) error { return jsonbScan(value, l) }

// InternalNote is one entry in the appointment's internal communication log.
type InternalNote struct {
	AuthorID  string    `json:"authorId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// InternalNoteList is the JSONB-backed note log.
type InternalNoteList []InternalNote

func (l InternalNoteList) Value() (driver.Value, error) {
	if l == nil {
		l = InternalNoteList{}
	}
	return jsonbValue(l)
}

func (l *InternalNoteList) Scan(value interface{}) error { return jsonbScan(value, l) }

// Appointment links one student and one professional for a session.
type Appointment struct {
	ID                 string               `db:"id" json:"id"`
	StudentID          string               `db:"student_id" json:"studentId"`
	ProfessionalID     string               `db:"professional_id" json:"professionalId"`
	AppointmentType    AppointmentType      `db:"appointment_type" json:"appointmentType"`
	Subject            string               `db:"subject" json:"subject"`
	Topic              string               `db:"topic" json:"topic,omitempty"`
	ScheduledDate      time.Time            `db:"scheduled_date" json:"scheduledDate"`
	Duration           int                  `db:"duration" json:"duration"`
	Location           string               `db:"location" json:"location"`
	MeetingLink        string               `db:"meeting_link" json:"meetingLink,omitempty"`
	IsGroupSession     bool                 `db:"is_group_session" json:"isGroupSession"`
	GroupParticipants  GroupParticipantList `db:"group_participants" json:"groupParticipants"`
	MaxGroupSize       int                  `db:"max_group_size" json:"maxGroupSize"`
	Status             AppointmentStatus    `db:"status" json:"status"`
	CancellationReason *string              `db:"cancellation_reason" json:"cancellationReason,omitempty"`
	CancelledBy        *string              `db:"cancelled_by" json:"cancelledBy,omitempty"`
	InternalNotes      InternalNoteList     `db:"internal_notes" json:"internalNotes"`
	StudentRating      *int                 `db:"student_rating" json:"studentRating,omitempty"`
	StudentFeedback    *string              `db:"student_feedback" json:"studentFeedback,omitempty"`
	ProfessionalRating *int                 `db:"professional_rating" json:"professionalRating,omitempty"`
	ProfessionalNotes  *string              `db:"professional_notes" json:"professionalNotes,omitempty"`
	AvailabilitySlotID *string              `db:"availability_slot_id" json:"availabilitySlotId,omitempty"`
	CreatedBy          *string              `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy          *string              `db:"updated_by" json:"updatedBy,omitempty"`
	CompletedAt        *time.Time           `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt          time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time            `db:"updated_at" json:"updatedAt"`
}

// IsParticipant reports whether userID is either party on the appointment.
func (a *Appointment) IsParticipant(userID string) bool {
	return a.StudentID == userID || a.ProfessionalID == userID
}

// AppointmentFilter captures filtering criteria for listing appointments.
// Role-based scoping composes with the optional filters via AND.
type AppointmentFilter struct {
	StudentID      string
	ProfessionalID string
	Status         *AppointmentStatus
	Type           *AppointmentType
	Subject        string
	DateFrom       *time.Time
	DateTo         *time.Time
	Page           int
	Limit          int
}

// CreateAppointmentRequest is the payload for booking an appointment.
type CreateAppointmentRequest struct {
	StudentID          string          `json:"studentId" validate:"required"`
	ProfessionalID     string          `json:"professionalId" validate:"required"`
	AppointmentType    AppointmentType `json:"appointmentType" validate:"required,oneof=tutoring advising"`
	Subject            string          `json:"subject" validate:"required"`
	Topic              string          `json:"topic"`
	ScheduledDate      time.Time       `json:"scheduledDate" validate:"required"`
	Duration           int             `json:"duration" validate:"required,min=15,max=240"`
	Location           string          `json:"location" validate:"omitempty,oneof=presencial virtual"`
	MeetingLink        string          `json:"meetingLink"`
	IsGroupSession     bool            `json:"isGroupSession"`
	MaxGroupSize       int             `json:"maxGroupSize" validate:"omitempty,min=1"`
	AvailabilitySlotID *string         `json:"availabilitySlotId"`
}

// UpdateAppointmentRequest mutates free-form appointment metadata.
type UpdateAppointmentRequest struct {
	Subject       *string            `json:"subject"`
	Topic         *string            `json:"topic"`
	ScheduledDate *time.Time         `json:"scheduledDate"`
	Duration      *int               `json:"duration" validate:"omitempty,min=15,max=240"`
	Location      *string            `json:"location" validate:"omitempty,oneof=presencial virtual"`
	MeetingLink   *string            `json:"meetingLink"`
	Status        *AppointmentStatus `json:"status" validate:"omitempty,oneof=scheduled confirmed in-progress completed cancelled no-show"`
}

// CancelAppointmentRequest carries the cancellation reason.
type CancelAppointmentRequest struct {
	CancellationReason string `json:"cancellationReason" validate:"required"`
}

// RateAppointmentRequest rates a completed session.
type RateAppointmentRequest struct {
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Feedback string `json:"feedback"`
}

// AddNoteRequest appends to the internal note log.
type AddNoteRequest struct {
	Note string `json:"note" validate:"required"`
}
