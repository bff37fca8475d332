package models

import (
	"database/sql/driver"
	"time"
)

// ReportType enumerates supported report categories.
type ReportType string

const (
	ReportStudentProgress  ReportType = "student_progress"
	ReportAppointmentStats ReportType = "appointment_summary"
	ReportAssignmentStats  ReportType = "assignment_summary"
	ReportActivityOverview ReportType = "activity_overview"
)

// ReportStatus captures the report lifecycle.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportGenerated ReportStatus = "generated"
	ReportDelivered ReportStatus = "delivered"
	ReportFailed    ReportStatus = "failed"
	ReportArchived  ReportStatus = "archived"
)

// ReportFormat enumerates export formats for delivery.
type ReportFormat string

const (
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
)

// ReportData is the aggregated payload computed by the generation pass.
type ReportData struct {
	Sections    map[string]interface{} `json:"sections,omitempty"`
	Totals      map[string]float64     `json:"totals,omitempty"`
	GeneratedAt *time.Time             `json:"generatedAt,omitempty"`
}

func (d ReportData) Value() (driver.Value, error) { return jsonbValue(d) }
func (d *ReportData) Scan(value interface{}) error { return jsonbScan(value, d) }

// DeliveryRecord is one simulated delivery attempt.
type DeliveryRecord struct {
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	Recipient   string    `json:"recipient,omitempty"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// DeliveryLog is the JSONB-backed delivery history.
type DeliveryLog []DeliveryRecord

func (l DeliveryLog) Value() (driver.Value, error) {
	if l == nil {
		l = DeliveryLog{}
	}
	return jsonbValue(l)
}

func (l *DeliveryLog) Scan(value interface{}) error { return jsonbScan(value, l) }

// Report is a generated summary over a student's activity in a period.
type Report struct {
	ID              string       `db:"id" json:"id"`
	Title           string       `db:"title" json:"title"`
	Type            ReportType   `db:"type" json:"type"`
	GeneratedBy     string       `db:"generated_by" json:"generatedBy"`
	TargetStudentID *string      `db:"target_student_id" json:"targetStudentId,omitempty"`
	PeriodStart     time.Time    `db:"period_start" json:"periodStart"`
	PeriodEnd       time.Time    `db:"period_end" json:"periodEnd"`
	Format          ReportFormat `db:"format" json:"format"`
	Status          ReportStatus `db:"status" json:"status"`
	Data            ReportData   `db:"data" json:"data"`
	Deliveries      DeliveryLog  `db:"deliveries" json:"deliveries"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updatedAt"`
}

// ReportFilter captures filtering criteria for listing reports.
type ReportFilter struct {
	Type            *ReportType
	Status          *ReportStatus
	GeneratedBy     string
	TargetStudentID string
	Page            int
	Limit           int
}

// ReportTemplate describes a predefined report configuration.
type ReportTemplate struct {
	Type        ReportType `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Sections    []string   `json:"sections"`
}

// CreateReportRequest registers a report for generation.
type CreateReportRequest struct {
	Title           string       `json:"title" validate:"required,max=200"`
	Type            ReportType   `json:"type" validate:"required,oneof=student_progress appointment_summary assignment_summary activity_overview"`
	TargetStudentID *string      `json:"targetStudentId"`
	PeriodStart     time.Time    `json:"periodStart" validate:"required"`
	PeriodEnd       time.Time    `json:"periodEnd" validate:"required"`
	Format          ReportFormat `json:"format" validate:"omitempty,oneof=pdf csv json"`
}

// DeliverReportRequest triggers a simulated delivery.
type DeliverReportRequest struct {
	Method    string `json:"method" validate:"required,oneof=email download"`
	Recipient string `json:"recipient"`
}
