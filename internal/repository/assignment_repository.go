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

const assignmentColumns = `id, material_id, student_id, assigned_by, appointment_id, title, description, due_date, max_points, submission, grading, comments, extensions, status, estimated_time, difficulty, tags, created_by, updated_by, created_at, updated_at`

// AssignmentRepository provides database access for assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new instance of AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.Assignment) error {
	const query = `INSERT INTO assignments (` + assignmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	if _, err := r.db.ExecContext(ctx, query,
		a.ID, a.MaterialID, a.StudentID, a.AssignedBy, a.AppointmentID,
		a.Title, a.Description, a.DueDate, a.MaxPoints,
		a.Submission, a.Grading, a.Comments, a.Extensions,
		a.Status, a.EstimatedTime, a.Difficulty, a.Tags,
		a.CreatedBy, a.UpdatedBy, a.CreatedAt, a.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID returns an assignment by identifier.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1 LIMIT 1`
	var a models.Assignment
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment by id: %w", err)
	}
	return &a, nil
}

// Update persists the mutable assignment fields including the embedded
// submission, grading, comment and extension documents.
func (r *AssignmentRepository) Update(ctx context.Context, a *models.Assignment) error {
	const query = `UPDATE assignments SET title = $2, description = $3, due_date = $4, max_points = $5, submission = $6, grading = $7, comments = $8, extensions = $9, status = $10, estimated_time = $11, difficulty = $12, tags = $13, updated_by = $14, updated_at = $15 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.Title, a.Description, a.DueDate, a.MaxPoints,
		a.Submission, a.Grading, a.Comments, a.Extensions,
		a.Status, a.EstimatedTime, a.Difficulty, a.Tags,
		a.UpdatedBy, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an assignment permanently.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListDueBetween returns unsubmitted assignments whose due date falls inside
// the window. Used by the reminder sweep.
func (r *AssignmentRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
		WHERE due_date >= $1 AND due_date < $2 AND submission IS NULL
		ORDER BY due_date ASC`
	var list []models.Assignment
	if err := r.db.SelectContext(ctx, &list, query, from, to); err != nil {
		return nil, fmt.Errorf("list assignments due in window: %w", err)
	}
	return list, nil
}

// ListGradedSince returns assignments graded after the cutoff. Used by the
// grade-notification sweep.
func (r *AssignmentRepository) ListGradedSince(ctx context.Context, since time.Time) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
		WHERE grading IS NOT NULL AND (grading->>'gradedAt')::timestamptz >= $1
		ORDER BY (grading->>'gradedAt')::timestamptz ASC`
	var list []models.Assignment
	if err := r.db.SelectContext(ctx, &list, query, since); err != nil {
		return nil, fmt.Errorf("list graded assignments: %w", err)
	}
	return list, nil
}

// Statistics aggregates status counts and the average grade for the filtered
// population.
func (r *AssignmentRepository) Statistics(ctx context.Context, filter models.AssignmentFilter) (*models.AssignmentStatistics, error) {
	baseQuery, args := assignmentConditions(filter)

	type statusRow struct {
		Status models.AssignmentStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	var rows []statusRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT status, COUNT(*) AS count "+baseQuery+" GROUP BY status", args...); err != nil {
		return nil, fmt.Errorf("assignment status counts: %w", err)
	}

	stats := &models.AssignmentStatistics{StatusCounts: make(map[models.AssignmentStatus]int)}
	for _, row := range rows {
		stats.StatusCounts[row.Status] = row.Count
		stats.TotalAssignments += row.Count
	}

	type gradeRow struct {
		Graded  int     `db:"graded"`
		Average float64 `db:"average"`
	}
	var grade gradeRow
	gradeQuery := `SELECT COUNT(*) FILTER (WHERE grading IS NOT NULL) AS graded,
		COALESCE(AVG((grading->>'grade')::numeric), 0) AS average ` + baseQuery
	if err := r.db.GetContext(ctx, &grade, gradeQuery, args...); err != nil {
		return nil, fmt.Errorf("assignment grade statistics: %w", err)
	}
	stats.GradedCount = grade.Graded
	stats.AverageGrade = grade.Average
	return stats, nil
}

// List returns assignments based on filters with total count.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	baseQuery, args := assignmentConditions(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY due_date ASC LIMIT $%d OFFSET $%d", assignmentColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var list []models.Assignment
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}
	return list, total, nil
}

func assignmentConditions(filter models.AssignmentFilter) (string, []interface{}) {
	baseQuery := `FROM assignments WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.AssignedBy != "" {
		conditions = append(conditions, fmt.Sprintf("assigned_by = $%d", len(args)+1))
		args = append(args, filter.AssignedBy)
	}
	if filter.MaterialID != "" {
		conditions = append(conditions, fmt.Sprintf("material_id = $%d", len(args)+1))
		args = append(args, filter.MaterialID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Overdue {
		conditions = append(conditions, fmt.Sprintf("due_date < $%d AND submission IS NULL", len(args)+1))
		args = append(args, time.Now().UTC())
	}
	if filter.Pending {
		conditions = append(conditions, fmt.Sprintf("status IN ('assigned', 'returned') AND due_date > $%d", len(args)+1))
		args = append(args, time.Now().UTC())
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}
	return baseQuery, args
}
