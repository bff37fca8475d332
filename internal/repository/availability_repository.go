package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tutorlink/tutoring-api/internal/models"
)

const slotColumns = `id, user_id, user_role, schedule_type, day_of_week, specific_date, recurrence_end_date, start_time, end_time, session_type, max_participants, duration, location, subject, topic, status, created_by, updated_by, created_at, updated_at`

// AvailabilityRepository provides database access for availability slots.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new instance of AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Create inserts a new availability slot.
func (r *AvailabilityRepository) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	const query = `INSERT INTO availability_slots (` + slotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	if _, err := r.db.ExecContext(ctx, query,
		slot.ID, slot.UserID, slot.UserRole, slot.ScheduleType, slot.DayOfWeek,
		slot.SpecificDate, slot.RecurrenceEndDate, slot.StartTime, slot.EndTime,
		slot.SessionType, slot.MaxParticipants, slot.Duration, slot.Location,
		slot.Subject, slot.Topic, slot.Status,
		slot.CreatedBy, slot.UpdatedBy, slot.CreatedAt, slot.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

// FindByID returns a slot by identifier.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE id = $1 LIMIT 1`
	var slot models.AvailabilitySlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find slot by id: %w", err)
	}
	return &slot, nil
}

// FindOverlapping returns available slots of the same owner whose time window
// intersects the given half-open interval on the same recurrence key. Cancelled,
// completed and booked slots do not count against new windows. Two windows
// [aStart, aEnd) and [bStart, bEnd) overlap iff aStart < bEnd and aEnd > bStart.
func (r *AvailabilityRepository) FindOverlapping(ctx context.Context, slot *models.AvailabilitySlot, excludeID string) ([]models.AvailabilitySlot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots
		WHERE user_id = $1 AND schedule_type = $2 AND status = 'available' AND start_time < $3 AND end_time > $4`
	args := []interface{}{slot.UserID, slot.ScheduleType, slot.EndTime, slot.StartTime}

	if slot.ScheduleType == models.ScheduleRecurring {
		args = append(args, slot.DayOfWeek)
		query += fmt.Sprintf(" AND day_of_week = $%d", len(args))
	} else {
		args = append(args, slot.SpecificDate)
		query += fmt.Sprintf(" AND specific_date::date = $%d::date", len(args))
	}
	if excludeID != "" {
		args = append(args, excludeID)
		query += fmt.Sprintf(" AND id != $%d", len(args))
	}

	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping slots: %w", err)
	}
	return slots, nil
}

// Update persists the mutable slot fields.
func (r *AvailabilityRepository) Update(ctx context.Context, slot *models.AvailabilitySlot) error {
	const query = `UPDATE availability_slots SET day_of_week = $2, specific_date = $3, recurrence_end_date = $4, start_time = $5, end_time = $6, session_type = $7, max_participants = $8, duration = $9, location = $10, subject = $11, topic = $12, status = $13, updated_by = $14, updated_at = $15 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		slot.ID, slot.DayOfWeek, slot.SpecificDate, slot.RecurrenceEndDate,
		slot.StartTime, slot.EndTime, slot.SessionType, slot.MaxParticipants,
		slot.Duration, slot.Location, slot.Subject, slot.Topic, slot.Status,
		slot.UpdatedBy, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus flips the status of a single slot.
func (r *AvailabilityRepository) UpdateStatus(ctx context.Context, id string, status models.SlotStatus) error {
	const query = `UPDATE availability_slots SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update slot status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BulkUpdateStatus flips the status of every listed slot and returns the
// number of rows changed.
func (r *AvailabilityRepository) BulkUpdateStatus(ctx context.Context, ids []string, status models.SlotStatus) (int64, error) {
	const query = `UPDATE availability_slots SET status = $1, updated_at = $2 WHERE id = ANY($3)`
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("bulk update slot status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk update slot status: %w", err)
	}
	return n, nil
}

// Delete removes a slot permanently.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM availability_slots WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns slots based on filters with total count. A Date filter matches
// specific-date slots on that day and recurring slots on that weekday.
func (r *AvailabilityRepository) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error) {
	baseQuery := `FROM availability_slots WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.UserRole != nil {
		conditions = append(conditions, fmt.Sprintf("user_role = $%d", len(args)+1))
		args = append(args, *filter.UserRole)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.ScheduleType != nil {
		conditions = append(conditions, fmt.Sprintf("schedule_type = $%d", len(args)+1))
		args = append(args, *filter.ScheduleType)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject ILIKE '%%' || $%d || '%%'", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.Date != nil {
		weekday := filter.Date.Weekday().String()
		conditions = append(conditions, fmt.Sprintf("((schedule_type = 'specific_dates' AND specific_date::date = $%d::date) OR (schedule_type = 'recurring' AND day_of_week = $%d))", len(args)+1, len(args)+2))
		args = append(args, *filter.Date, weekday)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count slots: %w", err)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_time ASC LIMIT $%d OFFSET $%d", slotColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list slots: %w", err)
	}
	return slots, total, nil
}
