package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tutorlink/tutoring-api/internal/models"
)

// ErrSlotNotAvailable is returned when an availability slot cannot be booked
// because a concurrent booking already claimed it.
var ErrSlotNotAvailable = errors.New("availability slot is not available")

const appointmentColumns = `id, student_id, professional_id, appointment_type, subject, topic, scheduled_date, duration, location, meeting_link, is_group_session, group_participants, max_group_size, status, cancellation_reason, cancelled_by, internal_notes, student_rating, student_feedback, professional_rating, professional_notes, availability_slot_id, created_by, updated_by, completed_at, created_at, updated_at`

// AppointmentRepository provides database access for appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new instance of AppointmentRepository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts an appointment and, when a slot is attached, flips the slot
// to booked in the same transaction. The conditional UPDATE guards against a
// concurrent booking of the same slot.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create appointment: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`
	if _, err := tx.ExecContext(ctx, insert,
		appt.ID, appt.StudentID, appt.ProfessionalID, appt.AppointmentType,
		appt.Subject, appt.Topic, appt.ScheduledDate, appt.Duration,
		appt.Location, appt.MeetingLink, appt.IsGroupSession, appt.GroupParticipants,
		appt.MaxGroupSize, appt.Status, appt.CancellationReason, appt.CancelledBy,
		appt.InternalNotes, appt.StudentRating, appt.StudentFeedback,
		appt.ProfessionalRating, appt.ProfessionalNotes, appt.AvailabilitySlotID,
		appt.CreatedBy, appt.UpdatedBy, appt.CompletedAt, appt.CreatedAt, appt.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if appt.AvailabilitySlotID != nil {
		const book = `UPDATE availability_slots SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
		res, err := tx.ExecContext(ctx, book, models.SlotBooked, time.Now().UTC(), *appt.AvailabilitySlotID, models.SlotAvailable)
		if err != nil {
			return fmt.Errorf("book slot: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrSlotNotAvailable
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create appointment: %w", err)
	}
	return nil
}

// Cancel marks the appointment cancelled and releases its slot, if any, in
// one transaction.
func (r *AppointmentRepository) Cancel(ctx context.Context, appt *models.Appointment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel appointment: %w", err)
	}
	defer tx.Rollback()

	const cancel = `UPDATE appointments SET status = $2, cancellation_reason = $3, cancelled_by = $4, updated_by = $5, updated_at = $6 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, cancel,
		appt.ID, models.AppointmentCancelled, appt.CancellationReason, appt.CancelledBy,
		appt.UpdatedBy, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	if appt.AvailabilitySlotID != nil {
		const release = `UPDATE availability_slots SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
		if _, err := tx.ExecContext(ctx, release, models.SlotAvailable, time.Now().UTC(), *appt.AvailabilitySlotID, models.SlotBooked); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel appointment: %w", err)
	}
	return nil
}

// FindByID returns an appointment by identifier.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 LIMIT 1`
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find appointment by id: %w", err)
	}
	return &appt, nil
}

// FindConflicting returns active appointments for either party whose
// scheduled date lies within one duration of the requested time.
func (r *AppointmentRepository) FindConflicting(ctx context.Context, studentID, professionalID string, scheduledDate time.Time, duration int, excludeID string) ([]models.Appointment, error) {
	window := time.Duration(duration) * time.Minute
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE (student_id = $1 OR professional_id = $2)
		AND status = ANY($3)
		AND scheduled_date > $4 AND scheduled_date < $5`
	args := []interface{}{
		studentID, professionalID,
		activeStatusArray(),
		scheduledDate.Add(-window), scheduledDate.Add(window),
	}
	if excludeID != "" {
		args = append(args, excludeID)
		query += fmt.Sprintf(" AND id != $%d", len(args))
	}

	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, args...); err != nil {
		return nil, fmt.Errorf("find conflicting appointments: %w", err)
	}
	return appts, nil
}

// Update persists the mutable appointment fields.
func (r *AppointmentRepository) Update(ctx context.Context, appt *models.Appointment) error {
	const query = `UPDATE appointments SET subject = $2, topic = $3, scheduled_date = $4, duration = $5, location = $6, meeting_link = $7, group_participants = $8, status = $9, internal_notes = $10, student_rating = $11, student_feedback = $12, professional_rating = $13, professional_notes = $14, updated_by = $15, completed_at = $16, updated_at = $17 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		appt.ID, appt.Subject, appt.Topic, appt.ScheduledDate, appt.Duration,
		appt.Location, appt.MeetingLink, appt.GroupParticipants, appt.Status,
		appt.InternalNotes, appt.StudentRating, appt.StudentFeedback,
		appt.ProfessionalRating, appt.ProfessionalNotes,
		appt.UpdatedBy, appt.CompletedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListUpcoming returns the next active appointments for a participant.
func (r *AppointmentRepository) ListUpcoming(ctx context.Context, userID string, limit int) ([]models.Appointment, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE (student_id = $1 OR professional_id = $1)
		AND status = ANY($2)
		AND scheduled_date >= $3
		ORDER BY scheduled_date ASC LIMIT $4`
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, userID, activeStatusArray(), time.Now().UTC(), limit); err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appts, nil
}

// ListStartingBetween returns active appointments scheduled inside the window.
// Used by the reminder sweep.
func (r *AppointmentRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE status = ANY($1) AND scheduled_date >= $2 AND scheduled_date < $3
		ORDER BY scheduled_date ASC`
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, activeStatusArray(), from, to); err != nil {
		return nil, fmt.Errorf("list appointments in window: %w", err)
	}
	return appts, nil
}

// List returns appointments based on filters with total count.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	baseQuery := `FROM appointments WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ProfessionalID != "" {
		conditions = append(conditions, fmt.Sprintf("professional_id = $%d", len(args)+1))
		args = append(args, filter.ProfessionalID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("appointment_type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject ILIKE '%%' || $%d || '%%'", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT %s %s ORDER BY scheduled_date DESC LIMIT $%d OFFSET $%d", appointmentColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return appts, total, nil
}

func activeStatusArray() interface{} {
	statuses := make([]string, len(models.ActiveAppointmentStatuses))
	for i, s := range models.ActiveAppointmentStatuses {
		statuses[i] = string(s)
	}
	return pq.Array(statuses)
}
