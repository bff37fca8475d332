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

type availabilityRepository interface {
	Create(ctx context.Context, slot *models.AvailabilitySlot) error
	FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	FindOverlapping(ctx context.Context, slot *models.AvailabilitySlot, excludeID string) ([]models.AvailabilitySlot, error)
	List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error)
	Update(ctx context.Context, slot *models.AvailabilitySlot) error
	UpdateStatus(ctx context.Context, id string, status models.SlotStatus) error
	BulkUpdateStatus(ctx context.Context, ids []string, status models.SlotStatus) (int64, error)
	Delete(ctx context.Context, id string) error
}

type availabilityUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AvailabilityService manages professionals' availability slots.
type AvailabilityService struct {
	repo      availabilityRepository
	users     availabilityUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService instance.
func NewAvailabilityService(repo availabilityRepository, users availabilityUserRepository, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AvailabilityService{repo: repo, users: users, validator: validate, logger: logger}
}

// Create registers a new slot after checking shape and overlap. Overlap with
// any existing slot of the same owner on the same recurrence key is rejected.
func (s *AvailabilityService) Create(ctx context.Context, req models.CreateSlotRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if !req.UserRole.IsProfessional() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "availability slots belong to tutors or advisors")
	}
	owner, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot owner not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot owner")
	}
	if owner.Role != req.UserRole {
		return nil, appErrors.Clone(appErrors.ErrValidation, "userRole does not match the user's actual role")
	}
	if err := validateSlotWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if req.ScheduleType == models.ScheduleRecurring && req.DayOfWeek == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recurring slots require dayOfWeek")
	}
	if req.ScheduleType == models.ScheduleSpecificDates && req.SpecificDate == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "specific_dates slots require specificDate")
	}

	now := time.Now().UTC()
	sessionType := req.SessionType
	if sessionType == "" {
		sessionType = models.SessionIndividual
	}
	maxParticipants := req.MaxParticipants
	if maxParticipants < 1 {
		maxParticipants = 1
	}
	slot := &models.AvailabilitySlot{
		ID:                uuid.NewString(),
		UserID:            req.UserID,
		UserRole:          req.UserRole,
		ScheduleType:      req.ScheduleType,
		DayOfWeek:         req.DayOfWeek,
		SpecificDate:      req.SpecificDate,
		RecurrenceEndDate: req.RecurrenceEndDate,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		SessionType:       sessionType,
		MaxParticipants:   maxParticipants,
		Duration:          req.Duration,
		Location:          req.Location,
		Subject:           req.Subject,
		Topic:             req.Topic,
		Status:            models.SlotAvailable,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	overlapping, err := s.repo.FindOverlapping(ctx, slot, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot overlap")
	}
	if len(overlapping) > 0 {
		return nil, appErrors.Clone(appErrors.ErrScheduleConflict, "slot overlaps an existing availability window")
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create slot")
	}
	s.logger.Info("availability slot created", zap.String("slot_id", slot.ID), zap.String("user_id", slot.UserID))
	return slot, nil
}

// Get returns a slot by id.
func (s *AvailabilityService) Get(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	return slot, nil
}

// List returns slots matching the filter with pagination metadata.
func (s *AvailabilityService) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, *models.Pagination, error) {
	slots, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	return slots, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Update patches a slot on behalf of its owner or an admin. Changing the time
// window of a booked slot is not allowed; overlap is re-checked whenever the
// window or recurrence key moves.
func (s *AvailabilityService) Update(ctx context.Context, id, actorID string, isAdmin bool, req models.UpdateSlotRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	slot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if slot.UserID != actorID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner may modify the slot")
	}

	windowChanged := req.StartTime != nil || req.EndTime != nil || req.DayOfWeek != nil || req.SpecificDate != nil
	if windowChanged && slot.Status == models.SlotBooked {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot reschedule a booked slot")
	}

	if req.DayOfWeek != nil {
		slot.DayOfWeek = req.DayOfWeek
	}
	if req.SpecificDate != nil {
		slot.SpecificDate = req.SpecificDate
	}
	if req.StartTime != nil {
		slot.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		slot.EndTime = *req.EndTime
	}
	if req.SessionType != nil {
		slot.SessionType = *req.SessionType
	}
	if req.MaxParticipants != nil {
		slot.MaxParticipants = *req.MaxParticipants
	}
	if req.Duration != nil {
		slot.Duration = *req.Duration
	}
	if req.Location != nil {
		slot.Location = *req.Location
	}
	if req.Subject != nil {
		slot.Subject = *req.Subject
	}
	if req.Topic != nil {
		slot.Topic = *req.Topic
	}
	if req.Status != nil {
		slot.Status = *req.Status
	}

	if err := validateSlotWindow(slot.StartTime, slot.EndTime); err != nil {
		return nil, err
	}
	if windowChanged {
		overlapping, err := s.repo.FindOverlapping(ctx, slot, slot.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot overlap")
		}
		if len(overlapping) > 0 {
			return nil, appErrors.Clone(appErrors.ErrScheduleConflict, "slot overlaps an existing availability window")
		}
	}

	if err := s.repo.Update(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot")
	}
	return slot, nil
}

// ChangeStatus flips a single slot's status on behalf of its owner or an admin.
func (s *AvailabilityService) ChangeStatus(ctx context.Context, id, actorID string, isAdmin bool, status models.SlotStatus) error {
	if !models.ValidSlotStatus(status) {
		return appErrors.Clone(appErrors.ErrValidation, "unknown slot status")
	}
	slot, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if slot.UserID != actorID && !isAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner may modify the slot")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot status")
	}
	return nil
}

// BulkChangeStatus flips a set of slots and reports how many actually changed.
// The route is admin-only, so no ownership scoping applies here.
func (s *AvailabilityService) BulkChangeStatus(ctx context.Context, req models.BulkSlotStatusRequest) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	n, err := s.repo.BulkUpdateStatus(ctx, req.SlotIDs, req.Status)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slots")
	}
	return n, nil
}

// Delete removes a slot. Booked slots cannot be deleted.
func (s *AvailabilityService) Delete(ctx context.Context, id, actorID string, isAdmin bool) error {
	slot, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if slot.UserID != actorID && !isAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner may delete the slot")
	}
	if slot.Status == models.SlotBooked {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "cannot delete a booked slot")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete slot")
	}
	return nil
}

// validateSlotWindow checks "HH:MM" shape and strict ordering of the
// half-open window.
func validateSlotWindow(start, end string) error {
	if _, err := time.Parse("15:04", start); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "startTime must be HH:MM")
	}
	if _, err := time.Parse("15:04", end); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "endTime must be HH:MM")
	}
	if start >= end {
		return appErrors.Clone(appErrors.ErrValidation, "startTime must be before endTime")
	}
	return nil
}
