package models

import "time"

// ScheduleType distinguishes weekly recurring windows from date-bound ones.
type ScheduleType string

const (
	ScheduleRecurring     ScheduleType = "recurring"
	ScheduleSpecificDates ScheduleType = "specific_dates"
)

// SlotStatus tracks the lifecycle of an availability slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotCancelled SlotStatus = "cancelled"
	SlotCompleted SlotStatus = "completed"
)

// ValidSlotStatus reports whether s is one of the enumerated slot states.
func ValidSlotStatus(s SlotStatus) bool {
	switch s {
	case SlotAvailable, SlotBooked, SlotCancelled, SlotCompleted:
		return true
	}
	return false
}

// SessionType distinguishes one-on-one from group capacity.
type SessionType string

const (
	SessionIndividual SessionType = "individual"
	SessionGroup      SessionType = "group"
)

// AvailabilitySlot is a reusable or date-bound time window a professional
// offers. Times are "HH:MM" strings; the [StartTime, EndTime) interval is
// half-open, so lexicographic comparison doubles as time comparison.
type AvailabilitySlot struct {
	ID                string       `db:"id" json:"id"`
	UserID            string       `db:"user_id" json:"userId"`
	UserRole          UserRole     `db:"user_role" json:"userRole"`
	ScheduleType      ScheduleType `db:"schedule_type" json:"scheduleType"`
	DayOfWeek         *string      `db:"day_of_week" json:"dayOfWeek,omitempty"`
	SpecificDate      *time.Time   `db:"specific_date" json:"specificDate,omitempty"`
	RecurrenceEndDate *time.Time   `db:"recurrence_end_date" json:"recurrenceEndDate,omitempty"`
	StartTime         string       `db:"start_time" json:"startTime"`
	EndTime           string       `db:"end_time" json:"endTime"`
	SessionType       SessionType  `db:"session_type" json:"sessionType"`
	MaxParticipants   int          `db:"max_participants" json:"maxParticipants"`
	Duration          int          `db:"duration" json:"duration"`
	Location          string       `db:"location" json:"location"`
	Subject           string       `db:"subject" json:"subject"`
	Topic             string       `db:"topic" json:"topic,omitempty"`
	Status            SlotStatus   `db:"status" json:"status"`
	CreatedBy         *string      `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy         *string      `db:"updated_by" json:"updatedBy,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updatedAt"`
}

// Overlaps reports whether two half-open [start, end) windows intersect.
func Overlaps(aStart, aEnd, bStart, bEnd string) bool {
	return aStart < bEnd && aEnd > bStart
}

// SlotFilter captures filtering criteria for listing availability slots.
type SlotFilter struct {
	UserID       string
	UserRole     *UserRole
	Subject      string
	Status       *SlotStatus
	ScheduleType *ScheduleType
	Date         *time.Time
	Page         int
	Limit        int
}

// CreateSlotRequest is the payload for creating an availability slot.
type CreateSlotRequest struct {
	UserID            string       `json:"userId" validate:"required"`
	UserRole          UserRole     `json:"userRole" validate:"required,oneof=tutor advisor"`
	ScheduleType      ScheduleType `json:"scheduleType" validate:"required,oneof=recurring specific_dates"`
	DayOfWeek         *string      `json:"dayOfWeek" validate:"omitempty,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	SpecificDate      *time.Time   `json:"specificDate"`
	RecurrenceEndDate *time.Time   `json:"recurrenceEndDate"`
	StartTime         string       `json:"startTime" validate:"required"`
	EndTime           string       `json:"endTime" validate:"required"`
	SessionType       SessionType  `json:"sessionType" validate:"omitempty,oneof=individual group"`
	MaxParticipants   int          `json:"maxParticipants" validate:"omitempty,min=1"`
	Duration          int          `json:"duration" validate:"required,min=15,max=240"`
	Location          string       `json:"location" validate:"omitempty,oneof=presencial virtual"`
	Subject           string       `json:"subject" validate:"required"`
	Topic             string       `json:"topic"`
}

// UpdateSlotRequest is the patch payload; nil fields are left unchanged.
type UpdateSlotRequest struct {
	DayOfWeek       *string     `json:"dayOfWeek" validate:"omitempty,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	SpecificDate    *time.Time  `json:"specificDate"`
	StartTime       *string     `json:"startTime"`
	EndTime         *string     `json:"endTime"`
	SessionType     *SessionType `json:"sessionType" validate:"omitempty,oneof=individual group"`
	MaxParticipants *int        `json:"maxParticipants" validate:"omitempty,min=1"`
	Duration        *int        `json:"duration" validate:"omitempty,min=15,max=240"`
	Location        *string     `json:"location" validate:"omitempty,oneof=presencial virtual"`
	Subject         *string     `json:"subject"`
	Topic           *string     `json:"topic"`
	Status          *SlotStatus `json:"status" validate:"omitempty,oneof=available booked cancelled completed"`
}

// BulkSlotStatusRequest updates the status of a set of slots at once.
type BulkSlotStatusRequest struct {
	SlotIDs []string   `json:"slotIds" validate:"required,min=1"`
	Status  SlotStatus `json:"status" validate:"required,oneof=available booked cancelled completed"`
}
