package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutoring-api/internal/models"
)

func slotRows(now time.Time) *sqlmock.Rows {
	day := "Monday"
	return sqlmock.NewRows([]string{
		"id", "user_id", "user_role", "schedule_type", "day_of_week", "specific_date",
		"recurrence_end_date", "start_time", "end_time", "session_type", "max_participants",
		"duration", "location", "subject", "topic", "status",
		"created_by", "updated_by", "created_at", "updated_at",
	}).AddRow(
		"slot1", "t1", string(models.RoleTutor), string(models.ScheduleRecurring), day, nil,
		nil, "09:00", "10:00", string(models.SessionIndividual), 1,
		60, "virtual", "math", "", string(models.SlotAvailable),
		nil, nil, now, now,
	)
}

func TestSlotFindOverlappingRecurring(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("FROM availability_slots").WillReturnRows(slotRows(time.Now()))

	day := "Monday"
	slots, err := repo.FindOverlapping(context.Background(), &models.AvailabilitySlot{
		UserID:       "t1",
		ScheduleType: models.ScheduleRecurring,
		DayOfWeek:    &day,
		StartTime:    "09:30",
		EndTime:      "10:30",
	}, "")
	require.NoError(t, err)
	assert.Len(t, slots, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotFindOverlappingOnlyScansAvailable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("status = 'available'").WillReturnRows(slotRows(time.Now()))

	day := "Monday"
	_, err := repo.FindOverlapping(context.Background(), &models.AvailabilitySlot{
		UserID:       "t1",
		ScheduleType: models.ScheduleRecurring,
		DayOfWeek:    &day,
		StartTime:    "09:30",
		EndTime:      "10:30",
	}, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotBulkUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec("UPDATE availability_slots SET status").WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.BulkUpdateStatus(context.Background(), []string{"slot1", "slot2"}, models.SlotCancelled)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotListSubjectMatchesSubstring(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("subject ILIKE").WillReturnRows(slotRows(time.Now()))

	slots, total, err := repo.List(context.Background(), models.SlotFilter{Subject: "math"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, slots, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotListByDateMatchesWeekday(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM availability_slots").WillReturnRows(slotRows(time.Now()))

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday
	slots, total, err := repo.List(context.Background(), models.SlotFilter{Date: &date})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, slots, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
