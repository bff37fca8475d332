package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateBatch(ctx context.Context, list []models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	RecordClick(ctx context.Context, id string, at time.Time) error
	RecordResponse(ctx context.Context, id, response string, at time.Time) error
	Delete(ctx context.Context, id string) error
	CountUnread(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context, userID string) (*models.NotificationStats, error)
	ExistsForReference(ctx context.Context, userID string, typ models.NotificationType, appointmentID, assignmentID *string) (bool, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
}

type sweepAppointmentRepository interface {
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
}

type sweepAssignmentRepository interface {
	ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error)
	ListGradedSince(ctx context.Context, since time.Time) ([]models.Assignment, error)
}

// NotificationService creates and manages notifications, including the
// on-demand system sweep that generates reminders. Delivery is simulated;
// only the in-app log is written.
type NotificationService struct {
	repo           notificationRepository
	appointments   sweepAppointmentRepository
	assignments    sweepAssignmentRepository
	cache          *redis.Client
	unreadTTL      time.Duration
	reminderWindow time.Duration
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewNotificationService constructs a NotificationService instance. The cache
// client may be nil.
func NewNotificationService(repo notificationRepository, appointments sweepAppointmentRepository, assignments sweepAssignmentRepository, cache *redis.Client, unreadTTL, reminderWindow time.Duration, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if unreadTTL <= 0 {
		unreadTTL = time.Minute
	}
	if reminderWindow <= 0 {
		reminderWindow = 24 * time.Hour
	}
	return &NotificationService{
		repo:           repo,
		appointments:   appointments,
		assignments:    assignments,
		cache:          cache,
		unreadTTL:      unreadTTL,
		reminderWindow: reminderWindow,
		validator:      validate,
		logger:         logger,
	}
}

// Create addresses a single recipient.
func (s *NotificationService) Create(ctx context.Context, actorID string, req models.CreateNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	n := s.build(actorID, req.UserID, req.Title, req.Message, req.Type, req.Priority, req.Category)
	n.ActionURL = req.ActionURL
	n.ActionLabel = req.ActionLabel
	n.RelatedAppointment = req.RelatedAppointment
	n.RelatedAssignment = req.RelatedAssignment

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	s.bustUnreadCache(ctx, n.UserID)
	return n, nil
}

// Bulk fans one message out to many recipients in a single transaction.
func (s *NotificationService) Bulk(ctx context.Context, actorID string, req models.BulkNotificationRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}

	batch := make([]models.Notification, 0, len(req.UserIDs))
	for _, userID := range req.UserIDs {
		batch = append(batch, *s.build(actorID, userID, req.Title, req.Message, req.Type, req.Priority, req.Category))
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notifications")
	}
	for _, n := range batch {
		s.bustUnreadCache(ctx, n.UserID)
	}
	s.logger.Info("bulk notification sent", zap.Int("recipients", len(batch)), zap.String("type", string(req.Type)))
	return len(batch), nil
}

// List returns the actor's notifications with pagination metadata.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return list, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, actorID string) error {
	if _, err := s.findOwned(ctx, id, actorID); err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark read")
	}
	s.bustUnreadCache(ctx, actorID)
	return nil
}

// MarkAllRead flags everything unread for the actor and reports the count.
func (s *NotificationService) MarkAllRead(ctx context.Context, actorID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, actorID, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark all read")
	}
	s.bustUnreadCache(ctx, actorID)
	return n, nil
}

// Click records that the actor followed the call to action.
func (s *NotificationService) Click(ctx context.Context, id, actorID string) error {
	if _, err := s.findOwned(ctx, id, actorID); err != nil {
		return err
	}
	if err := s.repo.RecordClick(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record click")
	}
	s.bustUnreadCache(ctx, actorID)
	return nil
}

// Respond stores the actor's textual response.
func (s *NotificationService) Respond(ctx context.Context, id, actorID string, req models.RespondNotificationRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}
	if _, err := s.findOwned(ctx, id, actorID); err != nil {
		return err
	}
	if err := s.repo.RecordResponse(ctx, id, req.Response, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record response")
	}
	s.bustUnreadCache(ctx, actorID)
	return nil
}

// Delete removes one of the actor's notifications.
func (s *NotificationService) Delete(ctx context.Context, id, actorID string, isAdmin bool) error {
	n, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && n.UserID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "no access to this notification")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	s.bustUnreadCache(ctx, n.UserID)
	return nil
}

// UnreadCount returns the actor's unread count, served from the cache when
// warm.
func (s *NotificationService) UnreadCount(ctx context.Context, actorID string) (int, error) {
	key := s.unreadKey(actorID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			if count, err := strconv.Atoi(raw); err == nil {
				return count, nil
			}
		}
	}

	count, err := s.repo.CountUnread(ctx, actorID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, strconv.Itoa(count), s.unreadTTL).Err(); err != nil {
			s.logger.Warn("failed to cache unread count", zap.Error(err))
		}
	}
	return count, nil
}

// Stats aggregates the actor's notifications.
func (s *NotificationService) Stats(ctx context.Context, actorID string) (*models.NotificationStats, error) {
	stats, err := s.repo.Stats(ctx, actorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute stats")
	}
	return stats, nil
}

// Sweep generates system notifications: reminders for appointments starting
// and assignments due inside the window, and grade notices for recently
// graded work. The reference check keeps repeated sweeps idempotent.
func (s *NotificationService) Sweep(ctx context.Context) (*models.SweepResult, error) {
	now := time.Now().UTC()
	result := &models.SweepResult{}

	appts, err := s.appointments.ListStartingBetween(ctx, now, now.Add(s.reminderWindow))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan appointments")
	}
	for i := range appts {
		appt := &appts[i]
		for _, userID := range []string{appt.StudentID, appt.ProfessionalID} {
			created, err := s.createOnce(ctx, userID, models.NotifAppointmentReminder, &appt.ID, nil,
				"Upcoming appointment",
				fmt.Sprintf("Your %s session on %s starts at %s.", appt.AppointmentType, appt.Subject, appt.ScheduledDate.Format(time.RFC1123)),
				models.PriorityHigh)
			if err != nil {
				s.logger.Warn("sweep: appointment reminder failed", zap.Error(err))
				continue
			}
			if created {
				result.AppointmentReminders++
			}
		}
	}

	due, err := s.assignments.ListDueBetween(ctx, now, now.Add(s.reminderWindow))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan assignments")
	}
	for i := range due {
		a := &due[i]
		created, err := s.createOnce(ctx, a.StudentID, models.NotifAssignmentDue, nil, &a.ID,
			"Assignment due soon",
			fmt.Sprintf("%q is due %s.", a.Title, a.DueDate.Format(time.RFC1123)),
			models.PriorityHigh)
		if err != nil {
			s.logger.Warn("sweep: assignment reminder failed", zap.Error(err))
			continue
		}
		if created {
			result.AssignmentReminders++
		}
	}

	graded, err := s.assignments.ListGradedSince(ctx, now.Add(-s.reminderWindow))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan graded assignments")
	}
	for i := range graded {
		a := &graded[i]
		created, err := s.createOnce(ctx, a.StudentID, models.NotifGradePosted, nil, &a.ID,
			"Assignment graded",
			fmt.Sprintf("%q has been graded.", a.Title),
			models.PriorityMedium)
		if err != nil {
			s.logger.Warn("sweep: grade notification failed", zap.Error(err))
			continue
		}
		if created {
			result.GradeNotifications++
		}
	}

	s.logger.Info("notification sweep finished",
		zap.Int("appointment_reminders", result.AppointmentReminders),
		zap.Int("assignment_reminders", result.AssignmentReminders),
		zap.Int("grade_notifications", result.GradeNotifications))
	return result, nil
}

// NotifyAppointment emits an event notification to both parties. Errors are
// logged, never propagated; notifications are best effort.
func (s *NotificationService) NotifyAppointment(ctx context.Context, appt *models.Appointment, typ models.NotificationType) {
	title := "Appointment update"
	message := fmt.Sprintf("Your %s session on %s has been updated.", appt.AppointmentType, appt.Subject)
	switch typ {
	case models.NotifAppointmentConfirmed:
		title = "Appointment booked"
		message = fmt.Sprintf("Your %s session on %s is scheduled for %s.", appt.AppointmentType, appt.Subject, appt.ScheduledDate.Format(time.RFC1123))
	case models.NotifAppointmentCancelled:
		title = "Appointment cancelled"
		message = fmt.Sprintf("Your %s session on %s was cancelled.", appt.AppointmentType, appt.Subject)
	}
	for _, userID := range []string{appt.StudentID, appt.ProfessionalID} {
		n := s.build(appt.ProfessionalID, userID, title, message, typ, models.PriorityHigh, "appointments")
		n.RelatedAppointment = &appt.ID
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Warn("failed to create appointment notification", zap.Error(err))
			continue
		}
		s.bustUnreadCache(ctx, userID)
	}
}

// NotifyAssignment emits an event notification to the student.
func (s *NotificationService) NotifyAssignment(ctx context.Context, a *models.Assignment, typ models.NotificationType) {
	title := "Assignment update"
	message := fmt.Sprintf("%q has been updated.", a.Title)
	switch typ {
	case models.NotifAssignmentDue:
		title = "New assignment"
		message = fmt.Sprintf("%q is due %s.", a.Title, a.DueDate.Format(time.RFC1123))
	case models.NotifGradePosted:
		title = "Assignment graded"
		message = fmt.Sprintf("%q has been graded.", a.Title)
	case models.NotifExtensionApproved:
		title = "Extension approved"
		message = fmt.Sprintf("The due date of %q moved to %s.", a.Title, a.DueDate.Format(time.RFC1123))
	}
	n := s.build(a.AssignedBy, a.StudentID, title, message, typ, models.PriorityMedium, "assignments")
	n.RelatedAssignment = &a.ID
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Warn("failed to create assignment notification", zap.Error(err))
		return
	}
	s.bustUnreadCache(ctx, a.StudentID)
}

// NotifyReport tells the target student their report is ready.
func (s *NotificationService) NotifyReport(ctx context.Context, report *models.Report) {
	if report.TargetStudentID == nil {
		return
	}
	n := s.build(report.GeneratedBy, *report.TargetStudentID,
		"Report available",
		fmt.Sprintf("%q covering %s to %s is ready.", report.Title, report.PeriodStart.Format("2006-01-02"), report.PeriodEnd.Format("2006-01-02")),
		models.NotifReportReady, models.PriorityMedium, "reports")
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Warn("failed to create report notification", zap.Error(err))
		return
	}
	s.bustUnreadCache(ctx, *report.TargetStudentID)
}

func (s *NotificationService) createOnce(ctx context.Context, userID string, typ models.NotificationType, appointmentID, assignmentID *string, title, message string, priority models.NotificationPriority) (bool, error) {
	exists, err := s.repo.ExistsForReference(ctx, userID, typ, appointmentID, assignmentID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	n := s.build("", userID, title, message, typ, priority, "system")
	n.RelatedAppointment = appointmentID
	n.RelatedAssignment = assignmentID
	if err := s.repo.Create(ctx, n); err != nil {
		return false, err
	}
	s.bustUnreadCache(ctx, userID)
	return true, nil
}

func (s *NotificationService) build(actorID, userID, title, message string, typ models.NotificationType, priority models.NotificationPriority, category string) *models.Notification {
	now := time.Now().UTC()
	if priority == "" {
		priority = models.PriorityMedium
	}
	n := &models.Notification{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    title,
		Message:  message,
		Type:     typ,
		Priority: priority,
		Category: category,
		Deliveries: models.NotificationDeliveryLog{
			{Channel: "in_app", Status: "delivered", SentAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if actorID != "" {
		n.CreatedBy = &actorID
	}
	return n
}

func (s *NotificationService) find(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	return n, nil
}

func (s *NotificationService) findOwned(ctx context.Context, id, actorID string) (*models.Notification, error) {
	n, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this notification")
	}
	return n, nil
}

func (s *NotificationService) unreadKey(userID string) string {
	return "notifications:unread:" + userID
}

func (s *NotificationService) bustUnreadCache(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.unreadKey(userID)).Err(); err != nil && err != redis.Nil {
		s.logger.Warn("failed to invalidate unread cache", zap.Error(err))
	}
}
