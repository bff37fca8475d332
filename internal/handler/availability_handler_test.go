package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutoring-api/internal/models"
	"github.com/tutorlink/tutoring-api/internal/service"
)

type slotRepoMock struct {
	slots      map[string]*models.AvailabilitySlot
	lastFilter *models.SlotFilter
	listCalls  int
}

func newSlotRepoMock() *slotRepoMock {
	return &slotRepoMock{slots: map[string]*models.AvailabilitySlot{}}
}

func (m *slotRepoMock) Create(_ context.Context, slot *models.AvailabilitySlot) error {
	stored := *slot
	m.slots[slot.ID] = &stored
	return nil
}

func (m *slotRepoMock) FindByID(_ context.Context, id string) (*models.AvailabilitySlot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (m *slotRepoMock) FindOverlapping(_ context.Context, _ *models.AvailabilitySlot, _ string) ([]models.AvailabilitySlot, error) {
	return nil, nil
}

func (m *slotRepoMock) List(_ context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error) {
	m.listCalls++
	m.lastFilter = &filter
	var out []models.AvailabilitySlot
	for _, s := range m.slots {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *slotRepoMock) Update(_ context.Context, slot *models.AvailabilitySlot) error {
	stored := *slot
	m.slots[slot.ID] = &stored
	return nil
}

func (m *slotRepoMock) UpdateStatus(_ context.Context, id string, status models.SlotStatus) error {
	if s, ok := m.slots[id]; ok {
		s.Status = status
	}
	return nil
}

func (m *slotRepoMock) BulkUpdateStatus(_ context.Context, ids []string, status models.SlotStatus) (int64, error) {
	var n int64
	for _, id := range ids {
		if s, ok := m.slots[id]; ok {
			s.Status = status
			n++
		}
	}
	return n, nil
}

func (m *slotRepoMock) Delete(_ context.Context, id string) error {
	delete(m.slots, id)
	return nil
}

type slotUserRepoMock struct {
	users map[string]*models.User
}

func (m *slotUserRepoMock) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func newAvailabilityHandler(repo *slotRepoMock) *AvailabilityHandler {
	users := &slotUserRepoMock{users: map[string]*models.User{
		"tutor-1": {ID: "tutor-1", Role: models.RoleTutor, Status: models.UserStatusActive},
	}}
	return NewAvailabilityHandler(service.NewAvailabilityService(repo, users, nil, nil))
}

func TestAvailabilityHandlerAvailableRequiresSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newSlotRepoMock()
	handler := newAvailabilityHandler(repo)

	c, w := notificationTestContext(t, nil, http.MethodGet, "/availability/available", nil)

	handler.Available(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, repo.listCalls)
}

func TestAvailabilityHandlerAvailableDefaultsToTutors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newSlotRepoMock()
	handler := newAvailabilityHandler(repo)

	c, w := notificationTestContext(t, nil, http.MethodGet, "/availability/available?subject=math", nil)

	handler.Available(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, repo.lastFilter)
	assert.Equal(t, "math", repo.lastFilter.Subject)
	require.NotNil(t, repo.lastFilter.UserRole)
	assert.Equal(t, models.RoleTutor, *repo.lastFilter.UserRole)
	require.NotNil(t, repo.lastFilter.Status)
	assert.Equal(t, models.SlotAvailable, *repo.lastFilter.Status)
}

func TestAvailabilityHandlerAvailableKeepsExplicitRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newSlotRepoMock()
	handler := newAvailabilityHandler(repo)

	c, w := notificationTestContext(t, nil, http.MethodGet, "/availability/available?subject=math&userRole=advisor", nil)

	handler.Available(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, repo.lastFilter)
	require.NotNil(t, repo.lastFilter.UserRole)
	assert.Equal(t, models.RoleAdvisor, *repo.lastFilter.UserRole)
}
