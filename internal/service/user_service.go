package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
}

// UpdateProfileRequest patches the caller's own profile sub-documents.
type UpdateProfileRequest struct {
	PersonalInfo    *models.PersonalInfo    `json:"personalInfo"`
	AcademicProfile *models.AcademicProfile `json:"academicProfile"`
	StudentProfile  *models.StudentProfile  `json:"studentProfile"`
	TutorProfile    *models.TutorProfile    `json:"tutorProfile"`
	AdvisorProfile  *models.AdvisorProfile  `json:"advisorProfile"`
}

// UserService provides user administration use cases.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// List returns users matching the filter with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// UpdateProfile patches profile sub-documents. Only the sub-document matching
// the user's role is applied along with the shared ones.
func (s *UserService) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.PersonalInfo != nil {
		user.PersonalInfo = *req.PersonalInfo
	}
	if req.AcademicProfile != nil {
		user.AcademicProfile = *req.AcademicProfile
	}
	switch user.Role {
	case models.RoleStudent:
		if req.StudentProfile != nil {
			user.StudentProfile = *req.StudentProfile
		}
	case models.RoleTutor:
		if req.TutorProfile != nil {
			user.TutorProfile = *req.TutorProfile
		}
	case models.RoleAdvisor:
		if req.AdvisorProfile != nil {
			user.AdvisorProfile = *req.AdvisorProfile
		}
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	user.UpdatedAt = time.Now().UTC()
	return user, nil
}

// ChangeStatus moves an account through its lifecycle. Accounts are never
// physically removed; Deactivate uses status=deleted.
func (s *UserService) ChangeStatus(ctx context.Context, id string, status models.UserStatus) error {
	switch status {
	case models.UserStatusActive, models.UserStatusInactive, models.UserStatusSuspended, models.UserStatusDeleted:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown user status")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	s.logger.Info("user status changed", zap.String("user_id", id), zap.String("status", string(status)))
	return nil
}

// Deactivate soft-deletes an account.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	return s.ChangeStatus(ctx, id, models.UserStatusDeleted)
}
