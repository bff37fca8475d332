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
	"github.com/tutorlink/tutoring-api/internal/repository"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type appointmentRepository interface {
	Create(ctx context.Context, appt *models.Appointment) error
	Cancel(ctx context.Context, appt *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	FindConflicting(ctx context.Context, studentID, professionalID string, scheduledDate time.Time, duration int, excludeID string) ([]models.Appointment, error)
	Update(ctx context.Context, appt *models.Appointment) error
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	ListUpcoming(ctx context.Context, userID string, limit int) ([]models.Appointment, error)
}

type appointmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type appointmentSlotRepository interface {
	FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error)
}

// appointmentNotifier lets the appointment flow emit notifications without a
// hard dependency on the notification service.
type appointmentNotifier interface {
	NotifyAppointment(ctx context.Context, appt *models.Appointment, typ models.NotificationType)
}

// appointmentTransitions is the allowed status state machine.
var appointmentTransitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.AppointmentScheduled:  {models.AppointmentConfirmed, models.AppointmentCancelled, models.AppointmentNoShow},
	models.AppointmentConfirmed:  {models.AppointmentInProgress, models.AppointmentCompleted, models.AppointmentCancelled, models.AppointmentNoShow},
	models.AppointmentInProgress: {models.AppointmentCompleted},
}

func transitionAllowed(from, to models.AppointmentStatus) bool {
	for _, s := range appointmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AppointmentService books and manages tutoring and advising sessions.
type AppointmentService struct {
	repo      appointmentRepository
	users     appointmentUserRepository
	slots     appointmentSlotRepository
	notifier  appointmentNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAppointmentService constructs an AppointmentService instance. The
// notifier may be nil.
func NewAppointmentService(repo appointmentRepository, users appointmentUserRepository, slots appointmentSlotRepository, notifier appointmentNotifier, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AppointmentService{repo: repo, users: users, slots: slots, notifier: notifier, validator: validate, logger: logger}
}

// Create books an appointment. The professional's role must match the
// appointment type, neither party may have an active appointment within one
// duration of the time, and an attached slot must belong to the professional
// and be available. Slot booking is atomic with the insert.
func (s *AppointmentService) Create(ctx context.Context, actorID string, req models.CreateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	if req.ScheduledDate.Before(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "scheduledDate must be in the future")
	}

	professional, err := s.users.FindByID(ctx, req.ProfessionalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professional not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professional")
	}
	expectedType, ok := models.AppointmentTypeForRole(professional.Role)
	if !ok || expectedType != req.AppointmentType {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment type does not match the professional's role")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointments are booked for students")
	}

	conflicts, err := s.repo.FindConflicting(ctx, req.StudentID, req.ProfessionalID, req.ScheduledDate, req.Duration, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
	}
	if len(conflicts) > 0 {
		return nil, appErrors.Clone(appErrors.ErrScheduleConflict, "one of the parties already has an appointment near that time")
	}

	if req.AvailabilitySlotID != nil {
		slot, err := s.slots.FindByID(ctx, *req.AvailabilitySlotID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "availability slot not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
		}
		if slot.UserID != req.ProfessionalID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "slot does not belong to the professional")
		}
		if slot.Status != models.SlotAvailable {
			return nil, appErrors.Clone(appErrors.ErrScheduleConflict, "availability slot is not available")
		}
	}

	now := time.Now().UTC()
	maxGroup := req.MaxGroupSize
	if !req.IsGroupSession {
		maxGroup = 1
	} else if maxGroup < 1 {
		maxGroup = 1
	}
	var participants models.GroupParticipantList
	if req.IsGroupSession {
		participants = models.GroupParticipantList{{
			StudentID: req.StudentID,
			Status:    "confirmed",
			JoinedAt:  &now,
		}}
	}
	appt := &models.Appointment{
		ID:                 uuid.NewString(),
		StudentID:          req.StudentID,
		ProfessionalID:     req.ProfessionalID,
		AppointmentType:    req.AppointmentType,
		Subject:            req.Subject,
		Topic:              req.Topic,
		ScheduledDate:      req.ScheduledDate,
		Duration:           req.Duration,
		Location:           req.Location,
		MeetingLink:        req.MeetingLink,
		IsGroupSession:     req.IsGroupSession,
		GroupParticipants:  participants,
		MaxGroupSize:       maxGroup,
		Status:             models.AppointmentScheduled,
		AvailabilitySlotID: req.AvailabilitySlotID,
		CreatedBy:          &actorID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := validateGroupSize(appt); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		if errors.Is(err, repository.ErrSlotNotAvailable) {
			return nil, appErrors.Clone(appErrors.ErrScheduleConflict, "availability slot was booked concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("student_id", appt.StudentID),
		zap.String("professional_id", appt.ProfessionalID))
	s.notify(ctx, appt, models.NotifAppointmentConfirmed)
	return appt, nil
}

// Get returns an appointment visible to the actor.
func (s *AppointmentService) Get(ctx context.Context, id, actorID string, isAdmin bool) (*models.Appointment, error) {
	appt, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !appt.IsParticipant(actorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this appointment")
	}
	return appt, nil
}

// List returns appointments matching the filter with pagination metadata.
func (s *AppointmentService) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error) {
	appts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	return appts, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Upcoming returns the actor's next active appointments.
func (s *AppointmentService) Upcoming(ctx context.Context, actorID string, limit int) ([]models.Appointment, error) {
	appts, err := s.repo.ListUpcoming(ctx, actorID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming appointments")
	}
	return appts, nil
}

// Update patches appointment details. Rescheduling re-runs the conflict scan
// and status changes must follow the state machine.
func (s *AppointmentService) Update(ctx context.Context, id, actorID string, isAdmin bool, req models.UpdateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	appt, err := s.Get(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}

	if req.Status != nil && *req.Status != appt.Status {
		if *req.Status == models.AppointmentCancelled {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "use the cancel operation to cancel an appointment")
		}
		if !transitionAllowed(appt.Status, *req.Status) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "status transition not allowed")
		}
		appt.Status = *req.Status
		if *req.Status == models.AppointmentCompleted {
			now := time.Now().UTC()
			appt.CompletedAt = &now
		}
	}

	rescheduled := false
	if req.ScheduledDate != nil && !req.ScheduledDate.Equal(appt.ScheduledDate) {
		appt.ScheduledDate = *req.ScheduledDate
		rescheduled = true
	}
	if req.Duration != nil && *req.Duration != appt.Duration {
		appt.Duration = *req.Duration
		rescheduled = true
	}
	if req.Subject != nil {
		appt.Subject = *req.Subject
	}
	if req.Topic != nil {
		appt.Topic = *req.Topic
	}
	if req.Location != nil {
		appt.Location = *req.Location
	}
	if req.MeetingLink != nil {
		appt.MeetingLink = *req.MeetingLink
	}

	if rescheduled {
		conflicts, err := s.repo.FindConflicting(ctx, appt.StudentID, appt.ProfessionalID, appt.ScheduledDate, appt.Duration, appt.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check conflicts")
		}
		if len(conflicts) > 0 {
			return nil, appErrors.Clone(appErrors.ErrScheduleConflict, "one of the parties already has an appointment near that time")
		}
	}

	if err := validateGroupSize(appt); err != nil {
		return nil, err
	}
	appt.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}
	return appt, nil
}

// Cancel cancels an active appointment and releases its slot atomically.
func (s *AppointmentService) Cancel(ctx context.Context, id, actorID string, isAdmin bool, req models.CancelAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}
	appt, err := s.Get(ctx, id, actorID, isAdmin)
	if err != nil {
		return nil, err
	}
	switch appt.Status {
	case models.AppointmentScheduled, models.AppointmentConfirmed:
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only scheduled or confirmed appointments can be cancelled")
	}

	appt.Status = models.AppointmentCancelled
	appt.CancellationReason = &req.CancellationReason
	appt.CancelledBy = &actorID
	appt.UpdatedBy = &actorID

	if err := s.repo.Cancel(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel appointment")
	}
	s.logger.Info("appointment cancelled", zap.String("appointment_id", appt.ID), zap.String("cancelled_by", actorID))
	s.notify(ctx, appt, models.NotifAppointmentCancelled)
	return appt, nil
}

// Rate records a participant's rating of a completed session. Each party
// writes its own rating fields.
func (s *AppointmentService) Rate(ctx context.Context, id, actorID string, req models.RateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}
	appt, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.IsParticipant(actorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this appointment")
	}
	if appt.Status != models.AppointmentCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only completed appointments can be rated")
	}

	if actorID == appt.StudentID {
		appt.StudentRating = &req.Rating
		if req.Feedback != "" {
			appt.StudentFeedback = &req.Feedback
		}
	} else {
		appt.ProfessionalRating = &req.Rating
		if req.Feedback != "" {
			appt.ProfessionalNotes = &req.Feedback
		}
	}

	appt.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save rating")
	}
	return appt, nil
}

// AddNote appends to the internal note log. Notes are professional-facing.
func (s *AppointmentService) AddNote(ctx context.Context, id, actorID string, actorRole models.UserRole, req models.AddNoteRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	if !actorRole.IsProfessional() && actorRole != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "internal notes are restricted to professionals")
	}
	appt, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && !appt.IsParticipant(actorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this appointment")
	}

	appt.InternalNotes = append(appt.InternalNotes, models.InternalNote{
		AuthorID:  actorID,
		Note:      req.Note,
		CreatedAt: time.Now().UTC(),
	})
	appt.UpdatedBy = &actorID
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save note")
	}
	return appt, nil
}

func (s *AppointmentService) find(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	return appt, nil
}

func (s *AppointmentService) notify(ctx context.Context, appt *models.Appointment, typ models.NotificationType) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyAppointment(ctx, appt, typ)
}

// validateGroupSize rejects group rosters larger than maxGroupSize. Checked
// on every save.
func validateGroupSize(appt *models.Appointment) error {
	if appt.IsGroupSession && len(appt.GroupParticipants) > appt.MaxGroupSize {
		return appErrors.Clone(appErrors.ErrValidation, "participant count exceeds maxGroupSize")
	}
	return nil
}
