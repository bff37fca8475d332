package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tutorlink/tutoring-api/internal/models"
)

const notificationColumns = `id, user_id, title, message, type, priority, category, action_url, action_label, related_appointment, related_assignment, read, read_at, clicked, clicked_at, user_response, responded_at, deliveries, created_by, created_at, updated_at`

// NotificationRepository provides database access for notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a single notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	const query = `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	if _, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Priority, n.Category,
		n.ActionURL, n.ActionLabel, n.RelatedAppointment, n.RelatedAssignment,
		n.Read, n.ReadAt, n.Clicked, n.ClickedAt, n.UserResponse, n.RespondedAt,
		n.Deliveries, n.CreatedBy, n.CreatedAt, n.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CreateBatch inserts a set of notifications in one transaction. Used by the
// bulk fan-out and the system sweep.
func (r *NotificationRepository) CreateBatch(ctx context.Context, list []models.Notification) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification batch: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	for i := range list {
		n := &list[i]
		if _, err := tx.ExecContext(ctx, query,
			n.ID, n.UserID, n.Title, n.Message, n.Type, n.Priority, n.Category,
			n.ActionURL, n.ActionLabel, n.RelatedAppointment, n.RelatedAssignment,
			n.Read, n.ReadAt, n.Clicked, n.ClickedAt, n.UserResponse, n.RespondedAt,
			n.Deliveries, n.CreatedBy, n.CreatedAt, n.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert notification batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notification batch: %w", err)
	}
	return nil
}

// FindByID returns a notification by identifier.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 LIMIT 1`
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification by id: %w", err)
	}
	return &n, nil
}

// MarkRead flags a single notification read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notifications SET read = TRUE, read_at = $2, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllRead flags every unread notification of the user and returns how
// many rows changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	const query = `UPDATE notifications SET read = TRUE, read_at = $2, updated_at = $2 WHERE user_id = $1 AND read = FALSE`
	res, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

// RecordClick marks the call to action clicked; a click implies read.
func (r *NotificationRepository) RecordClick(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notifications SET clicked = TRUE, clicked_at = $2, read = TRUE, read_at = COALESCE(read_at, $2), updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("record notification click: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordResponse stores the recipient's textual response.
func (r *NotificationRepository) RecordResponse(ctx context.Context, id, response string, at time.Time) error {
	const query = `UPDATE notifications SET user_response = $2, responded_at = $3, read = TRUE, read_at = COALESCE(read_at, $3), updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, response, at)
	if err != nil {
		return fmt.Errorf("record notification response: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a notification permanently.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM notifications WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountUnread returns the number of unread notifications for a user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// Stats aggregates a user's notifications by type and priority.
func (r *NotificationRepository) Stats(ctx context.Context, userID string) (*models.NotificationStats, error) {
	type row struct {
		Type     models.NotificationType     `db:"type"`
		Priority models.NotificationPriority `db:"priority"`
		Read     bool                        `db:"read"`
		Count    int                         `db:"count"`
	}
	const query = `SELECT type, priority, read, COUNT(*) AS count FROM notifications WHERE user_id = $1 GROUP BY type, priority, read`
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("notification stats: %w", err)
	}

	stats := &models.NotificationStats{
		ByType:     make(map[models.NotificationType]int),
		ByPriority: make(map[models.NotificationPriority]int),
	}
	for _, r := range rows {
		stats.ByType[r.Type] += r.Count
		stats.ByPriority[r.Priority] += r.Count
		stats.Total += r.Count
		if !r.Read {
			stats.Unread += r.Count
		}
	}
	return stats, nil
}

// ExistsForReference reports whether a notification of the given type already
// references the entity. The sweep uses it to stay idempotent.
func (r *NotificationRepository) ExistsForReference(ctx context.Context, userID string, typ models.NotificationType, appointmentID, assignmentID *string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM notifications WHERE user_id = $1 AND type = $2`
	args := []interface{}{userID, typ}
	if appointmentID != nil {
		args = append(args, *appointmentID)
		query += fmt.Sprintf(" AND related_appointment = $%d", len(args))
	}
	if assignmentID != nil {
		args = append(args, *assignmentID)
		query += fmt.Sprintf(" AND related_assignment = $%d", len(args))
	}
	query += ")"

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check notification reference: %w", err)
	}
	return exists, nil
}

// List returns notifications based on filters with total count.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	baseQuery := `FROM notifications WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, *filter.Priority)
	}
	if filter.Unread != nil {
		conditions = append(conditions, fmt.Sprintf("read = $%d", len(args)+1))
		args = append(args, !*filter.Unread)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", notificationColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var list []models.Notification
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return list, total, nil
}
