package models

import (
	"database/sql/driver"
	"time"
)

// NotificationType categorises notifications.
type NotificationType string

const (
	NotifAppointmentReminder  NotificationType = "appointment_reminder"
	NotifAssignmentDue        NotificationType = "assignment_due"
	NotifNewMaterial          NotificationType = "new_material"
	NotifGradePosted          NotificationType = "grade_posted"
	NotifProgressUpdate       NotificationType = "progress_update"
	NotifSystemAlert          NotificationType = "system_alert"
	NotifAppointmentConfirmed NotificationType = "appointment_confirmed"
	NotifAppointmentCancelled NotificationType = "appointment_cancelled"
	NotifExtensionApproved    NotificationType = "extension_approved"
	NotifReportReady          NotificationType = "report_ready"
	NotifWelcome              NotificationType = "welcome"
	NotifAnnouncement         NotificationType = "announcement"
	NotifCustom               NotificationType = "custom"
)

// NotificationPriority orders delivery urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Delivery channels are simulated; the log records what would have been sent.
type NotificationDelivery struct {
	Channel string    `json:"channel"`
	Status  string    `json:"status"`
	SentAt  time.Time `json:"sentAt"`
}

// NotificationDeliveryLog is the JSONB-backed delivery bookkeeping.
type NotificationDeliveryLog []NotificationDelivery

func (l NotificationDeliveryLog) Value() (driver.Value, error) {
	if l == nil {
		l = NotificationDeliveryLog{}
	}
	return jsonbValue(l)
}

func (l *NotificationDeliveryLog) Scan(value interface{}) error { return jsonbScan(value, l) }

// Notification targets one recipient with an optional call to action.
type Notification struct {
	ID                 string                  `db:"id" json:"id"`
	UserID             string                  `db:"user_id" json:"userId"`
	Title              string                  `db:"title" json:"title"`
	Message            string                  `db:"message" json:"message"`
	Type               NotificationType        `db:"type" json:"type"`
	Priority           NotificationPriority    `db:"priority" json:"priority"`
	Category           string                  `db:"category" json:"category,omitempty"`
	ActionURL          string                  `db:"action_url" json:"actionUrl,omitempty"`
	ActionLabel        string                  `db:"action_label" json:"actionLabel,omitempty"`
	RelatedAppointment *string                 `db:"related_appointment" json:"relatedAppointment,omitempty"`
	RelatedAssignment  *string                 `db:"related_assignment" json:"relatedAssignment,omitempty"`
	Read               bool                    `db:"read" json:"read"`
	ReadAt             *time.Time              `db:"read_at" json:"readAt,omitempty"`
	Clicked            bool                    `db:"clicked" json:"clicked"`
	ClickedAt          *time.Time              `db:"clicked_at" json:"clickedAt,omitempty"`
	UserResponse       *string                 `db:"user_response" json:"userResponse,omitempty"`
	RespondedAt        *time.Time              `db:"responded_at" json:"respondedAt,omitempty"`
	Deliveries         NotificationDeliveryLog `db:"deliveries" json:"deliveries"`
	CreatedBy          *string                 `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt          time.Time               `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time               `db:"updated_at" json:"updatedAt"`
}

// NotificationFilter captures filtering criteria for listing notifications.
type NotificationFilter struct {
	UserID   string
	Type     *NotificationType
	Priority *NotificationPriority
	Unread   *bool
	Page     int
	Limit    int
}

// NotificationStats aggregates a user's notifications.
type NotificationStats struct {
	ByType     map[NotificationType]int     `json:"byType"`
	ByPriority map[NotificationPriority]int `json:"byPriority"`
	Unread     int                          `json:"unread"`
	Total      int                          `json:"total"`
}

// SweepResult summarises one system notification generation pass.
type SweepResult struct {
	AppointmentReminders int `json:"appointmentReminders"`
	AssignmentReminders  int `json:"assignmentReminders"`
	GradeNotifications   int `json:"gradeNotifications"`
}

// CreateNotificationRequest addresses a single recipient.
type CreateNotificationRequest struct {
	UserID             string               `json:"userId" validate:"required"`
	Title              string               `json:"title" validate:"required,max=200"`
	Message            string               `json:"message" validate:"required,max=1000"`
	Type               NotificationType     `json:"type" validate:"required"`
	Priority           NotificationPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category           string               `json:"category"`
	ActionURL          string               `json:"actionUrl"`
	ActionLabel        string               `json:"actionLabel"`
	RelatedAppointment *string              `json:"relatedAppointment"`
	RelatedAssignment  *string              `json:"relatedAssignment"`
}

// BulkNotificationRequest fans one message out to many recipients.
type BulkNotificationRequest struct {
	UserIDs  []string             `json:"userIds" validate:"required,min=1"`
	Title    string               `json:"title" validate:"required,max=200"`
	Message  string               `json:"message" validate:"required,max=1000"`
	Type     NotificationType     `json:"type" validate:"required"`
	Priority NotificationPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category string               `json:"category"`
}

// RespondNotificationRequest records the recipient's response.
type RespondNotificationRequest struct {
	Response string `json:"response" validate:"required,max=500"`
}
