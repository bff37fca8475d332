package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type materialRepository interface {
	Create(ctx context.Context, m *models.EducationalMaterial) error
	FindByID(ctx context.Context, id string) (*models.EducationalMaterial, error)
	Update(ctx context.Context, m *models.EducationalMaterial) error
	Delete(ctx context.Context, id string) error
	IncrementDownloads(ctx context.Context, id string) (int, error)
	ListPopular(ctx context.Context, limit int) ([]models.EducationalMaterial, error)
	List(ctx context.Context, filter models.MaterialFilter) ([]models.EducationalMaterial, int, error)
}

const popularMaterialsCacheKey = "materials:popular"

// MaterialService manages the educational material library. Popular material
// lookups are cached in Redis; mutations that affect ranking bust the cache.
type MaterialService struct {
	repo      materialRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMaterialService constructs a MaterialService instance. The cache client
// may be nil.
func NewMaterialService(repo materialRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *MaterialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &MaterialService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Create publishes a new material owned by the actor.
func (s *MaterialService) Create(ctx context.Context, actorID string, req models.CreateMaterialRequest) (*models.EducationalMaterial, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}

	now := time.Now().UTC()
	visibility := req.Visibility
	if visibility == "" {
		visibility = "students"
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "intermediate"
	}
	m := &models.EducationalMaterial{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		Type:         req.Type,
		Subject:      req.Subject,
		GradeLevel:   req.GradeLevel,
		Difficulty:   difficulty,
		Tags:         req.Tags,
		FileURL:      req.FileURL,
		ExternalLink: req.ExternalLink,
		Content:      req.Content,
		Visibility:   visibility,
		IsPublic:     visibility == "public",
		Status:       models.MaterialDraft,
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create material")
	}
	s.logger.Info("material created", zap.String("material_id", m.ID), zap.String("created_by", actorID))
	return m, nil
}

// Get returns a material the actor may see. Visibility rules: public for
// everyone, students for any authenticated user, private for the owner,
// shared recipients and admins.
func (s *MaterialService) Get(ctx context.Context, id, actorID string, isAdmin bool) (*models.EducationalMaterial, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(m, actorID, isAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this material")
	}
	return m, nil
}

// List returns materials matching the filter with pagination metadata.
func (s *MaterialService) List(ctx context.Context, filter models.MaterialFilter) ([]models.EducationalMaterial, *models.Pagination, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return list, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Popular returns the most downloaded published materials, served from cache
// when warm.
func (s *MaterialService) Popular(ctx context.Context, limit int) ([]models.EducationalMaterial, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, popularMaterialsCacheKey).Bytes(); err == nil {
			var cached []models.EducationalMaterial
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	list, err := s.repo.ListPopular(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list popular materials")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(list); err == nil {
			if err := s.cache.Set(ctx, popularMaterialsCacheKey, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache popular materials", zap.Error(err))
			}
		}
	}
	return list, nil
}

// Update patches material metadata. Only the owner or an admin may edit.
func (s *MaterialService) Update(ctx context.Context, id, actorID string, isAdmin bool, req models.UpdateMaterialRequest) (*models.EducationalMaterial, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}
	m, err := s.findOwned(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		m.Title = *req.Title
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.Type != nil {
		m.Type = *req.Type
	}
	if req.Subject != nil {
		m.Subject = *req.Subject
	}
	if req.GradeLevel != nil {
		m.GradeLevel = *req.GradeLevel
	}
	if req.Difficulty != nil {
		m.Difficulty = *req.Difficulty
	}
	if req.Tags != nil {
		m.Tags = req.Tags
	}
	if req.FileURL != nil {
		m.FileURL = *req.FileURL
	}
	if req.ExternalLink != nil {
		m.ExternalLink = *req.ExternalLink
	}
	if req.Content != nil {
		m.Content = *req.Content
	}
	if req.Visibility != nil {
		m.Visibility = *req.Visibility
		m.IsPublic = *req.Visibility == "public"
	}

	m.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update material")
	}
	s.bustPopularCache(ctx)
	return m, nil
}

// ChangeStatus moves a material through its publication lifecycle.
func (s *MaterialService) ChangeStatus(ctx context.Context, id, actorID string, isAdmin bool, status models.MaterialStatus) (*models.EducationalMaterial, error) {
	m, err := s.findOwned(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}
	m.Status = status
	m.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change material status")
	}
	s.bustPopularCache(ctx)
	return m, nil
}

// Rate records the actor's 1-5 rating; a repeat rating replaces the previous
// one. The denormalised average is recomputed here.
func (s *MaterialService) Rate(ctx context.Context, id, actorID string, req models.RateMaterialRequest) (*models.EducationalMaterial, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.CreatedBy == actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "authors cannot rate their own material")
	}

	rating := models.MaterialRating{
		UserID:    actorID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now().UTC(),
	}
	replaced := false
	for i := range m.Ratings {
		if m.Ratings[i].UserID == actorID {
			m.Ratings[i] = rating
			replaced = true
			break
		}
	}
	if !replaced {
		m.Ratings = append(m.Ratings, rating)
	}
	m.AverageRating = m.Ratings.Average()

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save rating")
	}
	s.bustPopularCache(ctx)
	return m, nil
}

// Share grants the listed users access to a private material.
func (s *MaterialService) Share(ctx context.Context, id, actorID string, isAdmin bool, req models.ShareMaterialRequest) (*models.EducationalMaterial, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid share payload")
	}
	m, err := s.findOwned(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(m.SharedWith))
	for _, uid := range m.SharedWith {
		existing[uid] = true
	}
	for _, uid := range req.UserIDs {
		if !existing[uid] {
			m.SharedWith = append(m.SharedWith, uid)
			existing[uid] = true
		}
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to share material")
	}
	return m, nil
}

// Download counts a download and returns the material.
func (s *MaterialService) Download(ctx context.Context, id, actorID string, isAdmin bool) (*models.EducationalMaterial, error) {
	m, err := s.Get(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}
	downloads, err := s.repo.IncrementDownloads(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count download")
	}
	m.Downloads = downloads
	s.bustPopularCache(ctx)
	return m, nil
}

// Delete removes a material permanently. Owner or admin only.
func (s *MaterialService) Delete(ctx context.Context, id, actorID string, isAdmin bool) error {
	if _, err := s.findOwned(ctx, id, actorID, isAdmin); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}
	s.bustPopularCache(ctx)
	return nil
}

func (s *MaterialService) find(ctx context.Context, id string) (*models.EducationalMaterial, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	return m, nil
}

func (s *MaterialService) findOwned(ctx context.Context, id, actorID string, isAdmin bool) (*models.EducationalMaterial, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && m.CreatedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner may modify the material")
	}
	return m, nil
}

func (s *MaterialService) visible(m *models.EducationalMaterial, actorID string, isAdmin bool) bool {
	if isAdmin || m.CreatedBy == actorID {
		return true
	}
	switch m.Visibility {
	case "public", "students":
		return m.Status == models.MaterialPublished
	}
	for _, uid := range m.SharedWith {
		if uid == actorID {
			return true
		}
	}
	return false
}

func (s *MaterialService) bustPopularCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, popularMaterialsCacheKey).Err(); err != nil && err != redis.Nil {
		s.logger.Warn("failed to invalidate popular materials cache", zap.Error(fmt.Errorf("redis del: %w", err)))
	}
}
