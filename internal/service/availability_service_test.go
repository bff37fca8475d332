package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type slotRepoStub struct {
	slots       map[string]*models.AvailabilitySlot
	overlapping []models.AvailabilitySlot
	deleted     []string
}

func (s *slotRepoStub) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	if s.slots == nil {
		s.slots = make(map[string]*models.AvailabilitySlot)
	}
	s.slots[slot.ID] = slot
	return nil
}

func (s *slotRepoStub) FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	if slot, ok := s.slots[id]; ok {
		copied := *slot
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *slotRepoStub) FindOverlapping(ctx context.Context, slot *models.AvailabilitySlot, excludeID string) ([]models.AvailabilitySlot, error) {
	var out []models.AvailabilitySlot
	for _, o := range s.overlapping {
		if o.Status == models.SlotAvailable {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *slotRepoStub) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error) {
	var out []models.AvailabilitySlot
	for _, slot := range s.slots {
		out = append(out, *slot)
	}
	return out, len(out), nil
}

func (s *slotRepoStub) Update(ctx context.Context, slot *models.AvailabilitySlot) error {
	s.slots[slot.ID] = slot
	return nil
}

func (s *slotRepoStub) UpdateStatus(ctx context.Context, id string, status models.SlotStatus) error {
	s.slots[id].Status = status
	return nil
}

func (s *slotRepoStub) BulkUpdateStatus(ctx context.Context, ids []string, status models.SlotStatus) (int64, error) {
	var n int64
	for _, id := range ids {
		if slot, ok := s.slots[id]; ok {
			slot.Status = status
			n++
		}
	}
	return n, nil
}

func (s *slotRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.slots, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func newSlotService(repo *slotRepoStub) *AvailabilityService {
	return NewAvailabilityService(repo, appointmentParties(), nil, nil)
}

func validSlotRequest() models.CreateSlotRequest {
	day := "Monday"
	return models.CreateSlotRequest{
		UserID:       "tutor-1",
		UserRole:     models.RoleTutor,
		ScheduleType: models.ScheduleRecurring,
		DayOfWeek:    &day,
		StartTime:    "09:00",
		EndTime:      "10:00",
		Duration:     60,
		Subject:      "Mathematics",
	}
}

func TestSlotCreate(t *testing.T) {
	repo := &slotRepoStub{}
	svc := newSlotService(repo)

	slot, err := svc.Create(context.Background(), validSlotRequest())
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, slot.Status)
	assert.Equal(t, models.SessionIndividual, slot.SessionType)
	assert.Equal(t, 1, slot.MaxParticipants)
	assert.Len(t, repo.slots, 1)
}

func TestSlotCreateRejectsOverlap(t *testing.T) {
	repo := &slotRepoStub{overlapping: []models.AvailabilitySlot{{ID: "existing", Status: models.SlotAvailable}}}
	svc := newSlotService(repo)

	_, err := svc.Create(context.Background(), validSlotRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.slots)
}

func TestSlotCreateIgnoresCancelledWindows(t *testing.T) {
	repo := &slotRepoStub{overlapping: []models.AvailabilitySlot{
		{ID: "gone", Status: models.SlotCancelled},
		{ID: "done", Status: models.SlotCompleted},
	}}
	svc := newSlotService(repo)

	slot, err := svc.Create(context.Background(), validSlotRequest())
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, slot.Status)
	assert.Len(t, repo.slots, 1)
}

func TestSlotCreateRejectsStudentOwner(t *testing.T) {
	svc := newSlotService(&slotRepoStub{})

	req := validSlotRequest()
	req.UserRole = models.RoleStudent
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotCreateRejectsUnknownOwner(t *testing.T) {
	svc := newSlotService(&slotRepoStub{})

	req := validSlotRequest()
	req.UserID = "tutor-99"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSlotCreateRejectsRoleMismatch(t *testing.T) {
	svc := newSlotService(&slotRepoStub{})

	req := validSlotRequest()
	req.UserID = "advisor-1"
	req.UserRole = models.RoleTutor
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotCreateRejectsInvertedWindow(t *testing.T) {
	svc := newSlotService(&slotRepoStub{})

	req := validSlotRequest()
	req.StartTime = "11:00"
	req.EndTime = "10:00"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotCreateRecurringRequiresDayOfWeek(t *testing.T) {
	svc := newSlotService(&slotRepoStub{})

	req := validSlotRequest()
	req.DayOfWeek = nil
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotUpdateBookedWindowRejected(t *testing.T) {
	repo := &slotRepoStub{}
	svc := newSlotService(repo)

	slot, err := svc.Create(context.Background(), validSlotRequest())
	require.NoError(t, err)
	repo.slots[slot.ID].Status = models.SlotBooked

	newStart := "10:00"
	_, err = svc.Update(context.Background(), slot.ID, "tutor-1", false, models.UpdateSlotRequest{StartTime: &newStart})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestSlotUpdateByNonOwnerRejected(t *testing.T) {
	repo := &slotRepoStub{}
	svc := newSlotService(repo)

	slot, err := svc.Create(context.Background(), validSlotRequest())
	require.NoError(t, err)

	topic := "Algebra"
	_, err = svc.Update(context.Background(), slot.ID, "tutor-2", false, models.UpdateSlotRequest{Topic: &topic})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSlotUpdateByAdmin(t *testing.T) {
	repo := &slotRepoStub{}
	svc := newSlotService(repo)

	slot, err := svc.Create(context.Background(), validSlotRequest())
	require.NoError(t, err)

	topic := "Algebra"
	updated, err := svc.Update(context.Background(), slot.ID, "admin-1", true, models.UpdateSlotRequest{Topic: &topic})
	require.NoError(t, err)
	assert.Equal(t, "Algebra", updated.Topic)
}

func TestSlotChangeStatusByAdmin(t *testing.T) {
	repo := &slotRepoStub{}
	svc := newSlotService(repo)

	slot, err := svc.Create(context.Background(), validSlotRequest())
	require.NoError(t, err)

	err = svc.ChangeStatus(context.Background(), slot.ID, "admin-1", true, models.SlotCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.SlotCancelled, repo.slots[slot.ID].Status)
}

func TestSlotChangeStatusByNonOwnerRejected(t *testing.T) {
	repo := &slotRepoStub{}
	svc := newSlotService(repo)

	slot, err := svc.Create(context.Background(), validSlotRequest())
	require.NoError(t, err)

	err = svc.ChangeStatus(context.Background(), slot.ID, "tutor-2", false, models.SlotCancelled)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSlotDeleteBookedRejected(t *testing.T) {
	repo := &slotRepoStub{}
	svc := newSlotService(repo)

	slot, err := svc.Create(context.Background(), validSlotRequest())
	require.NoError(t, err)
	repo.slots[slot.ID].Status = models.SlotBooked

	err = svc.Delete(context.Background(), slot.ID, "tutor-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestSlotBulkChangeStatusSpansOwners(t *testing.T) {
	repo := &slotRepoStub{slots: map[string]*models.AvailabilitySlot{
		"a": {ID: "a", UserID: "tutor-1", Status: models.SlotAvailable},
		"b": {ID: "b", UserID: "tutor-2", Status: models.SlotAvailable},
	}}
	svc := newSlotService(repo)

	n, err := svc.BulkChangeStatus(context.Background(), models.BulkSlotStatusRequest{
		SlotIDs: []string{"a", "b"},
		Status:  models.SlotCancelled,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, models.SlotCancelled, repo.slots["a"].Status)
	assert.Equal(t, models.SlotCancelled, repo.slots["b"].Status)
}
