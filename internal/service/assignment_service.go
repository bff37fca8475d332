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

type assignmentRepository interface {
	Create(ctx context.Context, a *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Update(ctx context.Context, a *models.Assignment) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
	Statistics(ctx context.Context, filter models.AssignmentFilter) (*models.AssignmentStatistics, error)
}

type assignmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type assignmentMaterialRepository interface {
	FindByID(ctx context.Context, id string) (*models.EducationalMaterial, error)
}

type assignmentNotifier interface {
	NotifyAssignment(ctx context.Context, a *models.Assignment, typ models.NotificationType)
}

// AssignmentService manages assigned work from creation through grading.
type AssignmentService struct {
	repo      assignmentRepository
	users     assignmentUserRepository
	materials assignmentMaterialRepository
	notifier  assignmentNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs an AssignmentService instance. The notifier
// may be nil.
func NewAssignmentService(repo assignmentRepository, users assignmentUserRepository, materials assignmentMaterialRepository, notifier assignmentNotifier, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{repo: repo, users: users, materials: materials, notifier: notifier, validator: validate, logger: logger}
}

// Create assigns a material to a student.
func (s *AssignmentService) Create(ctx context.Context, actorID string, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if req.DueDate.Before(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dueDate must be in the future")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignments are given to students")
	}

	if _, err := s.materials.FindByID(ctx, req.MaterialID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}

	now := time.Now().UTC()
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}
	a := &models.Assignment{
		ID:            uuid.NewString(),
		MaterialID:    req.MaterialID,
		StudentID:     req.StudentID,
		AssignedBy:    actorID,
		AppointmentID: req.AppointmentID,
		Title:         req.Title,
		Description:   req.Description,
		DueDate:       req.DueDate,
		MaxPoints:     req.MaxPoints,
		Status:        models.AssignmentAssigned,
		EstimatedTime: req.EstimatedTime,
		Difficulty:    difficulty,
		Tags:          req.Tags,
		CreatedBy:     &actorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.logger.Info("assignment created", zap.String("assignment_id", a.ID), zap.String("student_id", a.StudentID))
	s.notify(ctx, a, models.NotifAssignmentDue)
	return a, nil
}

// Get returns an assignment visible to the actor.
func (s *AssignmentService) Get(ctx context.Context, id, actorID string, isAdmin bool) (*models.Assignment, error) {
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && a.StudentID != actorID && a.AssignedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this assignment")
	}
	return a, nil
}

// List returns assignments matching the filter with pagination metadata. The
// status of every returned row is re-derived against the current time so
// overdue work reads as missing without a background job.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	now := time.Now().UTC()
	for i := range list {
		list[i].Status = list[i].DeriveStatus(now)
	}
	return list, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Update patches assignment metadata. Moving the due date re-derives the
// status so a missing assignment can become assigned again.
func (s *AssignmentService) Update(ctx context.Context, id, actorID string, isAdmin bool, req models.UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && a.AssignedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigner may modify the assignment")
	}

	if req.Title != nil {
		a.Title = *req.Title
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.DueDate != nil {
		a.DueDate = *req.DueDate
	}
	if req.MaxPoints != nil {
		a.MaxPoints = *req.MaxPoints
	}
	if req.EstimatedTime != nil {
		a.EstimatedTime = *req.EstimatedTime
	}
	if req.Difficulty != nil {
		a.Difficulty = *req.Difficulty
	}
	if req.Tags != nil {
		a.Tags = req.Tags
	}

	a.Status = a.DeriveStatus(time.Now().UTC())
	a.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	return a, nil
}

// Delete removes an assignment. Graded assignments are kept for the record.
func (s *AssignmentService) Delete(ctx context.Context, id, actorID string, isAdmin bool) error {
	a, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && a.AssignedBy != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the assigner may delete the assignment")
	}
	if a.Grading != nil {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "graded assignments cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// Submit records the student's work. Submissions after the due date are
// accepted and flagged late; a submission on a returned assignment marks it
// resubmitted.
func (s *AssignmentService) Submit(ctx context.Context, id, actorID string, req models.SubmitAssignmentRequest) (*models.Assignment, error) {
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.StudentID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned student may submit")
	}
	if a.Grading != nil && a.Status == models.AssignmentGraded {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "graded assignments cannot be resubmitted")
	}

	now := time.Now().UTC()
	attempts := 1
	if a.Submission != nil {
		attempts = a.Submission.SubmissionAttempts + 1
	}
	submission := &models.Submission{
		SubmittedAt:        now,
		Text:               req.Text,
		FileURL:            req.FileURL,
		ExternalLink:       req.ExternalLink,
		Files:              req.Files,
		LateSubmission:     now.After(a.DueDate),
		SubmissionAttempts: attempts,
	}
	if !submission.HasContent() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission requires text, a file or a link")
	}

	wasReturned := a.Status == models.AssignmentReturned
	a.Submission = submission
	if wasReturned {
		a.Status = models.AssignmentResubmitted
	} else {
		a.Status = a.DeriveStatus(now)
	}
	a.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	s.logger.Info("assignment submitted",
		zap.String("assignment_id", a.ID),
		zap.Bool("late", submission.LateSubmission),
		zap.Int("attempt", attempts))
	return a, nil
}

// Grade scores a submitted assignment. The grade is capped by maxPoints.
func (s *AssignmentService) Grade(ctx context.Context, id, actorID string, isAdmin bool, req models.GradeAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && a.AssignedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigner may grade")
	}
	if a.Submission == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "nothing submitted to grade")
	}
	if req.Grade > a.MaxPoints {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade exceeds maxPoints")
	}

	now := time.Now().UTC()
	a.Grading = &models.Grading{
		Grade:    req.Grade,
		Feedback: req.Feedback,
		Rubric:   req.Rubric,
		GradedBy: actorID,
		GradedAt: now,
	}
	a.Status = models.AssignmentGraded
	a.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}
	s.notify(ctx, a, models.NotifGradePosted)
	return a, nil
}

// Return sends a graded or submitted assignment back for rework.
func (s *AssignmentService) Return(ctx context.Context, id, actorID string, isAdmin bool) (*models.Assignment, error) {
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && a.AssignedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigner may return work")
	}
	if a.Submission == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "nothing submitted to return")
	}

	a.Status = models.AssignmentReturned
	a.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to return assignment")
	}
	return a, nil
}

// RequestExtension appends a pending due-date extension request.
func (s *AssignmentService) RequestExtension(ctx context.Context, id, actorID string, req models.RequestExtensionRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extension payload")
	}
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.StudentID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned student may request an extension")
	}
	if !req.NewDueDate.After(a.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "newDueDate must be after the current due date")
	}

	a.Extensions = append(a.Extensions, models.Extension{
		RequestedBy: actorID,
		RequestedAt: time.Now().UTC(),
		Reason:      req.Reason,
		NewDueDate:  req.NewDueDate,
	})
	a.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save extension request")
	}
	return a, nil
}

// ApproveExtension approves a pending request, moves the due date and
// re-derives the status so a missing assignment becomes assigned again.
func (s *AssignmentService) ApproveExtension(ctx context.Context, id, actorID string, isAdmin bool, req models.ApproveExtensionRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && a.AssignedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigner may approve extensions")
	}
	if req.ExtensionIndex >= len(a.Extensions) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "extension request not found")
	}
	ext := &a.Extensions[req.ExtensionIndex]
	if ext.Approved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "extension already approved")
	}

	now := time.Now().UTC()
	ext.Approved = true
	ext.ApprovedBy = &actorID
	ext.ApprovedAt = &now
	a.DueDate = ext.NewDueDate
	a.Status = a.DeriveStatus(now)
	a.UpdatedBy = &actorID

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve extension")
	}
	s.notify(ctx, a, models.NotifExtensionApproved)
	return a, nil
}

// AddComment appends to the assignment discussion log. Private comments are
// hidden from the student by the handler layer.
func (s *AssignmentService) AddComment(ctx context.Context, id, actorID string, isAdmin bool, req models.AddCommentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	a, err := s.Get(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}
	if req.IsPrivate && a.StudentID == actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students cannot post private comments")
	}

	a.Comments = append(a.Comments, models.AssignmentComment{
		AuthorID:  actorID,
		Comment:   req.Comment,
		IsPrivate: req.IsPrivate,
		CreatedAt: time.Now().UTC(),
	})
	a.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save comment")
	}
	return a, nil
}

// Statistics aggregates assignment counts and grades for the filter.
func (s *AssignmentService) Statistics(ctx context.Context, filter models.AssignmentFilter) (*models.AssignmentStatistics, error) {
	stats, err := s.repo.Statistics(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute statistics")
	}
	return stats, nil
}

func (s *AssignmentService) find(ctx context.Context, id string) (*models.Assignment, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return a, nil
}

func (s *AssignmentService) notify(ctx context.Context, a *models.Assignment, typ models.NotificationType) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyAssignment(ctx, a, typ)
}
