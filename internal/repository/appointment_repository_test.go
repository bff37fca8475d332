package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutoring-api/internal/models"
)

func testAppointment(slotID *string) *models.Appointment {
	now := time.Now()
	return &models.Appointment{
		ID:                 "a1",
		StudentID:          "s1",
		ProfessionalID:     "t1",
		AppointmentType:    models.AppointmentTutoring,
		Subject:            "math",
		ScheduledDate:      now.Add(24 * time.Hour),
		Duration:           60,
		Location:           "virtual",
		Status:             models.AppointmentScheduled,
		AvailabilitySlotID: slotID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestAppointmentCreateBooksSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	slotID := "slot1"
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_slots SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), testAppointment(&slotID))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentCreateSlotAlreadyBooked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	slotID := "slot1"
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_slots SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), testAppointment(&slotID))
	assert.ErrorIs(t, err, ErrSlotNotAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentCreateWithoutSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), testAppointment(nil))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentCancelReleasesSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	slotID := "slot1"
	appt := testAppointment(&slotID)
	reason := "sick"
	cancelledBy := "s1"
	appt.CancellationReason = &reason
	appt.CancelledBy = &cancelledBy

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_slots SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Cancel(context.Background(), appt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentFindConflicting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "professional_id", "appointment_type", "subject", "topic",
		"scheduled_date", "duration", "location", "meeting_link", "is_group_session",
		"group_participants", "max_group_size", "status", "cancellation_reason", "cancelled_by",
		"internal_notes", "student_rating", "student_feedback", "professional_rating",
		"professional_notes", "availability_slot_id", "created_by", "updated_by",
		"completed_at", "created_at", "updated_at",
	}).AddRow(
		"a9", "s1", "t2", string(models.AppointmentTutoring), "math", "",
		now, 60, "virtual", "", false,
		[]byte(`[]`), 1, string(models.AppointmentScheduled), nil, nil,
		[]byte(`[]`), nil, nil, nil,
		nil, nil, nil, nil,
		nil, now, now,
	)
	mock.ExpectQuery("FROM appointments").WillReturnRows(rows)

	appts, err := repo.FindConflicting(context.Background(), "s1", "t1", now, 60, "")
	require.NoError(t, err)
	assert.Len(t, appts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentListSubjectMatchesSubstring(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "student_id", "professional_id", "appointment_type", "subject", "topic",
		"scheduled_date", "duration", "location", "meeting_link", "is_group_session",
		"group_participants", "max_group_size", "status", "cancellation_reason", "cancelled_by",
		"internal_notes", "student_rating", "student_feedback", "professional_rating",
		"professional_notes", "availability_slot_id", "created_by", "updated_by",
		"completed_at", "created_at", "updated_at",
	}).AddRow(
		"a1", "s1", "t1", string(models.AppointmentTutoring), "Mathematics", "",
		now, 60, "virtual", "", false,
		[]byte(`[]`), 1, string(models.AppointmentScheduled), nil, nil,
		[]byte(`[]`), nil, nil, nil,
		nil, nil, nil, nil,
		nil, now, now,
	)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("subject ILIKE").WillReturnRows(rows)

	appts, total, err := repo.List(context.Background(), models.AppointmentFilter{Subject: "math"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, appts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
