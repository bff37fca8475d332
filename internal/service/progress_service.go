package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type progressRepository interface {
	Create(ctx context.Context, p *models.ProgressTracking) error
	FindByID(ctx context.Context, id string) (*models.ProgressTracking, error)
	ExistsForStudentSubject(ctx context.Context, studentID, subject string) (bool, error)
	Update(ctx context.Context, p *models.ProgressTracking) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressTracking, int, error)
	Statistics(ctx context.Context, filter models.ProgressFilter) (*models.ProgressStatistics, error)
}

type progressUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ProgressService tracks student progress per subject.
type ProgressService struct {
	repo      progressRepository
	users     progressUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgressService constructs a ProgressService instance.
func NewProgressService(repo progressRepository, users progressUserRepository, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProgressService{repo: repo, users: users, validator: validate, logger: logger}
}

// Create starts tracking a student in a subject. The first record for a
// student/subject pair is flagged as the baseline assessment.
func (s *ProgressService) Create(ctx context.Context, actorID string, req models.CreateProgressRequest) (*models.ProgressTracking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "progress is tracked for students")
	}

	exists, err := s.repo.ExistsForStudentSubject(ctx, req.StudentID, req.Subject)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check baseline")
	}

	now := time.Now().UTC()
	goals := models.GoalList(req.Goals)
	for i := range goals {
		if goals[i].Status == "" {
			goals[i].Status = models.GoalNotStarted
		}
	}
	p := &models.ProgressTracking{
		ID:                  uuid.NewString(),
		StudentID:           req.StudentID,
		TrackedBy:           actorID,
		AppointmentID:       req.AppointmentID,
		Subject:             req.Subject,
		Metrics:             req.Metrics,
		Observations:        req.Observations,
		Strengths:           req.Strengths,
		AreasForImprovement: req.AreasForImprovement,
		LearningStyle:       req.LearningStyle,
		Goals:               goals,
		CompetencyLevel:     req.CompetencyLevel,
		ConfidenceLevel:     req.ConfidenceLevel,
		IsBaseline:          !exists,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create progress record")
	}
	s.logger.Info("progress record created",
		zap.String("progress_id", p.ID),
		zap.String("student_id", p.StudentID),
		zap.Bool("baseline", p.IsBaseline))
	return p, nil
}

// Get returns a progress record visible to the actor. Students see their own
// records; professionals see records they track.
func (s *ProgressService) Get(ctx context.Context, id, actorID string, isAdmin bool) (*models.ProgressTracking, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && p.StudentID != actorID && p.TrackedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this progress record")
	}
	return p, nil
}

// List returns progress records matching the filter with pagination metadata.
func (s *ProgressService) List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressTracking, *models.Pagination, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress records")
	}
	return list, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Update patches a record's assessments. Only the tracker or an admin.
func (s *ProgressService) Update(ctx context.Context, id, actorID string, isAdmin bool, req models.UpdateProgressRequest) (*models.ProgressTracking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	p, err := s.findTracked(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}

	if req.Metrics != nil {
		p.Metrics = *req.Metrics
	}
	if req.Observations != nil {
		p.Observations = *req.Observations
	}
	if req.Strengths != nil {
		p.Strengths = req.Strengths
	}
	if req.AreasForImprovement != nil {
		p.AreasForImprovement = req.AreasForImprovement
	}
	if req.LearningStyle != nil {
		p.LearningStyle = *req.LearningStyle
	}
	if req.CompetencyLevel != nil {
		p.CompetencyLevel = *req.CompetencyLevel
	}
	if req.ConfidenceLevel != nil {
		p.ConfidenceLevel = *req.ConfidenceLevel
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress record")
	}
	return p, nil
}

// AddHistory appends a dated metrics snapshot, keeping the trend intact.
func (s *ProgressService) AddHistory(ctx context.Context, id, actorID string, isAdmin bool, req models.AddHistoryRequest) (*models.ProgressTracking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid history payload")
	}
	p, err := s.findTracked(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}

	p.History = append(p.History, models.ProgressHistoryEntry{
		Date:    time.Now().UTC(),
		Metrics: req.Metrics,
		Notes:   req.Notes,
	})
	p.Metrics = req.Metrics

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save history entry")
	}
	return p, nil
}

// UpdateGoalStatus moves a goal through its lifecycle. A goal set to
// completed forces progress to 100.
func (s *ProgressService) UpdateGoalStatus(ctx context.Context, id, actorID string, isAdmin bool, req models.UpdateGoalStatusRequest) (*models.ProgressTracking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid goal payload")
	}
	p, err := s.findTracked(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}
	if req.GoalIndex >= len(p.Goals) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "goal not found")
	}

	goal := &p.Goals[req.GoalIndex]
	goal.Status = req.Status
	if req.Progress != nil {
		goal.Progress = *req.Progress
	}
	if req.Status == models.GoalCompleted {
		goal.Progress = 100
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update goal")
	}
	return p, nil
}

// Delete removes a progress record. Only the tracker or an admin.
func (s *ProgressService) Delete(ctx context.Context, id, actorID string, isAdmin bool) error {
	if _, err := s.findTracked(ctx, id, actorID, isAdmin); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete progress record")
	}
	return nil
}

// Statistics aggregates progress across the filtered records.
func (s *ProgressService) Statistics(ctx context.Context, filter models.ProgressFilter) (*models.ProgressStatistics, error) {
	stats, err := s.repo.Statistics(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute statistics")
	}
	return stats, nil
}

func (s *ProgressService) find(ctx context.Context, id string) (*models.ProgressTracking, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progress record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress record")
	}
	return p, nil
}

func (s *ProgressService) findTracked(ctx context.Context, id, actorID string, isAdmin bool) (*models.ProgressTracking, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && p.TrackedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the tracker may modify the record")
	}
	return p, nil
}
