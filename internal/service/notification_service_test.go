package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type notificationRepoStub struct {
	notifications map[string]*models.Notification
	unread        int
	countCalls    int
	readAt        []string
}

func (s *notificationRepoStub) Create(ctx context.Context, n *models.Notification) error {
	if s.notifications == nil {
		s.notifications = make(map[string]*models.Notification)
	}
	s.notifications[n.ID] = n
	return nil
}

func (s *notificationRepoStub) CreateBatch(ctx context.Context, list []models.Notification) error {
	for i := range list {
		n := list[i]
		if s.notifications == nil {
			s.notifications = make(map[string]*models.Notification)
		}
		s.notifications[n.ID] = &n
	}
	return nil
}

func (s *notificationRepoStub) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	if n, ok := s.notifications[id]; ok {
		copied := *n
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *notificationRepoStub) MarkRead(ctx context.Context, id string, at time.Time) error {
	s.readAt = append(s.readAt, id)
	return nil
}

func (s *notificationRepoStub) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	var n int64
	for _, notif := range s.notifications {
		if notif.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *notificationRepoStub) RecordClick(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (s *notificationRepoStub) RecordResponse(ctx context.Context, id, response string, at time.Time) error {
	return nil
}

func (s *notificationRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.notifications, id)
	return nil
}

func (s *notificationRepoStub) CountUnread(ctx context.Context, userID string) (int, error) {
	s.countCalls++
	return s.unread, nil
}

func (s *notificationRepoStub) Stats(ctx context.Context, userID string) (*models.NotificationStats, error) {
	return &models.NotificationStats{Total: len(s.notifications)}, nil
}

func (s *notificationRepoStub) ExistsForReference(ctx context.Context, userID string, typ models.NotificationType, appointmentID, assignmentID *string) (bool, error) {
	for _, n := range s.notifications {
		if n.UserID != userID || n.Type != typ {
			continue
		}
		if appointmentID != nil && n.RelatedAppointment != nil && *n.RelatedAppointment == *appointmentID {
			return true, nil
		}
		if assignmentID != nil && n.RelatedAssignment != nil && *n.RelatedAssignment == *assignmentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *notificationRepoStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	var out []models.Notification
	for _, n := range s.notifications {
		out = append(out, *n)
	}
	return out, len(out), nil
}

type sweepAppointmentStub struct {
	starting []models.Appointment
}

func (s *sweepAppointmentStub) ListStartingBetween(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	return s.starting, nil
}

type sweepAssignmentStub struct {
	due    []models.Assignment
	graded []models.Assignment
}

func (s *sweepAssignmentStub) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	return s.due, nil
}

func (s *sweepAssignmentStub) ListGradedSince(ctx context.Context, since time.Time) ([]models.Assignment, error) {
	return s.graded, nil
}

func newNotificationService(repo *notificationRepoStub, appts *sweepAppointmentStub, asgs *sweepAssignmentStub) *NotificationService {
	if appts == nil {
		appts = &sweepAppointmentStub{}
	}
	if asgs == nil {
		asgs = &sweepAssignmentStub{}
	}
	return NewNotificationService(repo, appts, asgs, nil, 0, 0, nil, nil)
}

func TestNotificationCreate(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := newNotificationService(repo, nil, nil)

	n, err := svc.Create(context.Background(), "admin-1", models.CreateNotificationRequest{
		UserID:  "student-1",
		Title:   "Welcome",
		Message: "Your account is ready.",
		Type:    models.NotifSystemAlert,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PriorityMedium, n.Priority)
	require.Len(t, n.Deliveries, 1)
	assert.Equal(t, "in_app", n.Deliveries[0].Channel)
	assert.Equal(t, "delivered", n.Deliveries[0].Status)
	require.NotNil(t, n.CreatedBy)
	assert.Equal(t, "admin-1", *n.CreatedBy)
}

func TestNotificationBulk(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := newNotificationService(repo, nil, nil)

	sent, err := svc.Bulk(context.Background(), "admin-1", models.BulkNotificationRequest{
		UserIDs: []string{"student-1", "student-2", "student-3"},
		Title:   "Maintenance",
		Message: "Platform down tonight.",
		Type:    models.NotifSystemAlert,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Len(t, repo.notifications, 3)
}

func TestNotificationMarkReadOnlyOwn(t *testing.T) {
	repo := &notificationRepoStub{notifications: map[string]*models.Notification{
		"ntf-1": {ID: "ntf-1", UserID: "student-1"},
	}}
	svc := newNotificationService(repo, nil, nil)

	err := svc.MarkRead(context.Background(), "ntf-1", "student-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.MarkRead(context.Background(), "ntf-1", "student-1"))
	assert.Equal(t, []string{"ntf-1"}, repo.readAt)
}

func TestNotificationUnreadCountWithoutCache(t *testing.T) {
	repo := &notificationRepoStub{unread: 7}
	svc := newNotificationService(repo, nil, nil)

	count, err := svc.UnreadCount(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	_, err = svc.UnreadCount(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.countCalls)
}

func TestNotificationSweep(t *testing.T) {
	repo := &notificationRepoStub{}
	appts := &sweepAppointmentStub{starting: []models.Appointment{{
		ID:             "appt-1",
		StudentID:      "student-1",
		ProfessionalID: "tutor-1",
		Subject:        "Mathematics",
		ScheduledDate:  time.Now().UTC().Add(3 * time.Hour),
	}}}
	asgs := &sweepAssignmentStub{
		due: []models.Assignment{{
			ID: "asg-1", StudentID: "student-1", Title: "Worksheet 3",
			DueDate: time.Now().UTC().Add(12 * time.Hour),
		}},
		graded: []models.Assignment{{
			ID: "asg-2", StudentID: "student-1", Title: "Worksheet 2",
		}},
	}
	svc := newNotificationService(repo, appts, asgs)

	result, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.AppointmentReminders)
	assert.Equal(t, 1, result.AssignmentReminders)
	assert.Equal(t, 1, result.GradeNotifications)
	assert.Len(t, repo.notifications, 4)
}

func TestNotificationSweepIdempotent(t *testing.T) {
	repo := &notificationRepoStub{}
	appts := &sweepAppointmentStub{starting: []models.Appointment{{
		ID:             "appt-1",
		StudentID:      "student-1",
		ProfessionalID: "tutor-1",
		Subject:        "Mathematics",
		ScheduledDate:  time.Now().UTC().Add(3 * time.Hour),
	}}}
	svc := newNotificationService(repo, appts, nil)

	first, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.AppointmentReminders)

	second, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.AppointmentReminders)
	assert.Len(t, repo.notifications, 2)
}

func TestNotificationNotifyAppointmentReachesBothParties(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := newNotificationService(repo, nil, nil)

	svc.NotifyAppointment(context.Background(), &models.Appointment{
		ID:             "appt-1",
		StudentID:      "student-1",
		ProfessionalID: "tutor-1",
		Subject:        "Mathematics",
		ScheduledDate:  time.Now().UTC().Add(24 * time.Hour),
	}, models.NotifAppointmentConfirmed)

	require.Len(t, repo.notifications, 2)
	recipients := map[string]bool{}
	for _, n := range repo.notifications {
		recipients[n.UserID] = true
		assert.Equal(t, models.NotifAppointmentConfirmed, n.Type)
	}
	assert.True(t, recipients["student-1"])
	assert.True(t, recipients["tutor-1"])
}

func TestNotificationNotifyReportSkipsWithoutTarget(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := newNotificationService(repo, nil, nil)

	svc.NotifyReport(context.Background(), &models.Report{ID: "rep-1", Title: "Activity overview"})
	assert.Empty(t, repo.notifications)

	target := "student-1"
	svc.NotifyReport(context.Background(), &models.Report{
		ID:              "rep-2",
		Title:           "Progress report",
		TargetStudentID: &target,
		GeneratedBy:     "advisor-1",
		PeriodStart:     time.Now().UTC().Add(-30 * 24 * time.Hour),
		PeriodEnd:       time.Now().UTC(),
	})
	require.Len(t, repo.notifications, 1)
	for _, n := range repo.notifications {
		assert.Equal(t, models.NotifReportReady, n.Type)
		assert.Equal(t, "student-1", n.UserID)
	}
}
