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

const materialColumns = `id, title, description, type, subject, grade_level, difficulty, tags, file_url, external_link, content, visibility, is_public, shared_with, ratings, average_rating, downloads, status, created_by, updated_by, created_at, updated_at`

// MaterialRepository provides database access for educational materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository creates a new instance of MaterialRepository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// Create inserts a new material.
func (r *MaterialRepository) Create(ctx context.Context, m *models.EducationalMaterial) error {
	const query = `INSERT INTO educational_materials (` + materialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	if _, err := r.db.ExecContext(ctx, query,
		m.ID, m.Title, m.Description, m.Type, m.Subject, m.GradeLevel,
		m.Difficulty, m.Tags, m.FileURL, m.ExternalLink, m.Content,
		m.Visibility, m.IsPublic, m.SharedWith, m.Ratings, m.AverageRating,
		m.Downloads, m.Status, m.CreatedBy, m.UpdatedBy, m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// FindByID returns a material by identifier.
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*models.EducationalMaterial, error) {
	query := `SELECT ` + materialColumns + ` FROM educational_materials WHERE id = $1 LIMIT 1`
	var m models.EducationalMaterial
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find material by id: %w", err)
	}
	return &m, nil
}

// Update persists the mutable material fields, including the rating log and
// its denormalised average.
func (r *MaterialRepository) Update(ctx context.Context, m *models.EducationalMaterial) error {
	const query = `UPDATE educational_materials SET title = $2, description = $3, type = $4, subject = $5, grade_level = $6, difficulty = $7, tags = $8, file_url = $9, external_link = $10, content = $11, visibility = $12, is_public = $13, shared_with = $14, ratings = $15, average_rating = $16, status = $17, updated_by = $18, updated_at = $19 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		m.ID, m.Title, m.Description, m.Type, m.Subject, m.GradeLevel,
		m.Difficulty, m.Tags, m.FileURL, m.ExternalLink, m.Content,
		m.Visibility, m.IsPublic, m.SharedWith, m.Ratings, m.AverageRating,
		m.Status, m.UpdatedBy, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementDownloads bumps the download counter atomically and returns the
// new value.
func (r *MaterialRepository) IncrementDownloads(ctx context.Context, id string) (int, error) {
	const query = `UPDATE educational_materials SET downloads = downloads + 1, updated_at = $2 WHERE id = $1 RETURNING downloads`
	var downloads int
	if err := r.db.GetContext(ctx, &downloads, query, id, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("increment downloads: %w", err)
	}
	return downloads, nil
}

// Delete removes a material permanently.
func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM educational_materials WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPopular returns published materials ordered by downloads.
func (r *MaterialRepository) ListPopular(ctx context.Context, limit int) ([]models.EducationalMaterial, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := `SELECT ` + materialColumns + ` FROM educational_materials
		WHERE status = $1 ORDER BY downloads DESC, average_rating DESC LIMIT $2`
	var list []models.EducationalMaterial
	if err := r.db.SelectContext(ctx, &list, query, models.MaterialPublished, limit); err != nil {
		return nil, fmt.Errorf("list popular materials: %w", err)
	}
	return list, nil
}

// List returns materials based on filters with total count.
func (r *MaterialRepository) List(ctx context.Context, filter models.MaterialFilter) ([]models.EducationalMaterial, int, error) {
	baseQuery := `FROM educational_materials WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("difficulty = $%d", len(args)+1))
		args = append(args, filter.Difficulty)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count materials: %w", err)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", materialColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var list []models.EducationalMaterial
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list materials: %w", err)
	}
	return list, total, nil
}
