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

const progressColumns = `id, student_id, tracked_by, appointment_id, subject, metrics, observations, strengths, areas_for_improvement, learning_style, goals, history, competency_level, confidence_level, is_baseline, created_at, updated_at`

// ProgressRepository provides database access for progress tracking records.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new instance of ProgressRepository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Create inserts a new progress record.
func (r *ProgressRepository) Create(ctx context.Context, p *models.ProgressTracking) error {
	const query = `INSERT INTO progress_tracking (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	if _, err := r.db.ExecContext(ctx, query,
		p.ID, p.StudentID, p.TrackedBy, p.AppointmentID, p.Subject,
		p.Metrics, p.Observations, p.Strengths, p.AreasForImprovement,
		p.LearningStyle, p.Goals, p.History, p.CompetencyLevel,
		p.ConfidenceLevel, p.IsBaseline, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create progress record: %w", err)
	}
	return nil
}

// FindByID returns a progress record by identifier.
func (r *ProgressRepository) FindByID(ctx context.Context, id string) (*models.ProgressTracking, error) {
	query := `SELECT ` + progressColumns + ` FROM progress_tracking WHERE id = $1 LIMIT 1`
	var p models.ProgressTracking
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find progress record by id: %w", err)
	}
	return &p, nil
}

// ExistsForStudentSubject reports whether any record already tracks this
// student/subject pair. The first record is the baseline assessment.
func (r *ProgressRepository) ExistsForStudentSubject(ctx context.Context, studentID, subject string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM progress_tracking WHERE student_id = $1 AND subject = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, subject); err != nil {
		return false, fmt.Errorf("check progress baseline: %w", err)
	}
	return exists, nil
}

// Update persists the mutable progress fields including the embedded goal and
// history documents.
func (r *ProgressRepository) Update(ctx context.Context, p *models.ProgressTracking) error {
	const query = `UPDATE progress_tracking SET metrics = $2, observations = $3, strengths = $4, areas_for_improvement = $5, learning_style = $6, goals = $7, history = $8, competency_level = $9, confidence_level = $10, updated_at = $11 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.Metrics, p.Observations, p.Strengths, p.AreasForImprovement,
		p.LearningStyle, p.Goals, p.History, p.CompetencyLevel,
		p.ConfidenceLevel, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update progress record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a progress record permanently.
func (r *ProgressRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM progress_tracking WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete progress record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Statistics aggregates per-subject counts and metric averages for the
// filtered population.
func (r *ProgressRepository) Statistics(ctx context.Context, filter models.ProgressFilter) (*models.ProgressStatistics, error) {
	baseQuery, args := progressConditions(filter)

	type subjectRow struct {
		Subject string `db:"subject"`
		Count   int    `db:"count"`
	}
	var rows []subjectRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT subject, COUNT(*) AS count "+baseQuery+" GROUP BY subject", args...); err != nil {
		return nil, fmt.Errorf("progress subject counts: %w", err)
	}

	stats := &models.ProgressStatistics{SubjectCounts: make(map[string]int)}
	for _, row := range rows {
		stats.SubjectCounts[row.Subject] = row.Count
		stats.TotalRecords += row.Count
	}

	type avgRow struct {
		Completion float64 `db:"completion"`
		Grades     float64 `db:"grades"`
	}
	var avg avgRow
	avgQuery := `SELECT COALESCE(AVG((metrics->>'completionRate')::numeric), 0) AS completion,
		COALESCE(AVG((metrics->>'assignmentGrades')::numeric), 0) AS grades ` + baseQuery
	if err := r.db.GetContext(ctx, &avg, avgQuery, args...); err != nil {
		return nil, fmt.Errorf("progress metric averages: %w", err)
	}
	stats.AverageCompletio = avg.Completion
	stats.AverageGrades = avg.Grades
	return stats, nil
}

// List returns progress records based on filters with total count.
func (r *ProgressRepository) List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressTracking, int, error) {
	baseQuery, args := progressConditions(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count progress records: %w", err)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", progressColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var list []models.ProgressTracking
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list progress records: %w", err)
	}
	return list, total, nil
}

func progressConditions(filter models.ProgressFilter) (string, []interface{}) {
	baseQuery := `FROM progress_tracking WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TrackedBy != "" {
		conditions = append(conditions, fmt.Sprintf("tracked_by = $%d", len(args)+1))
		args = append(args, filter.TrackedBy)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}
	return baseQuery, args
}
