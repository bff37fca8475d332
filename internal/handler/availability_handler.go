package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutoring-api/internal/models"
	"github.com/tutorlink/tutoring-api/internal/service"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
	"github.com/tutorlink/tutoring-api/pkg/response"
)

// AvailabilityHandler exposes availability slot endpoints.
type AvailabilityHandler struct {
	slots *service.AvailabilityService
}

// NewAvailabilityHandler constructs AvailabilityHandler.
func NewAvailabilityHandler(slots *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{slots: slots}
}

// Create godoc
// @Summary Create availability slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body models.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /availability [post]
func (h *AvailabilityHandler) Create(c *gin.Context) {
	var req models.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}

	claims := claimsFromContext(c)
	if !isAdmin(claims) {
		req.UserID = claims.UserID
		req.UserRole = claims.Role
	}

	slot, err := h.slots.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// List godoc
// @Summary List availability slots
// @Tags Availability
// @Produce json
// @Param userId query string false "Filter by owner"
// @Param userRole query string false "Filter by owner role"
// @Param subject query string false "Filter by subject"
// @Param status query string false "Filter by status"
// @Param scheduleType query string false "Filter by schedule type"
// @Param date query string false "Cover date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	filter := slotFilterFromQuery(c)

	slots, pagination, err := h.slots.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, pagination)
}

// Available godoc
// @Summary List open slots for booking
// @Tags Availability
// @Produce json
// @Param subject query string true "Filter by subject"
// @Param userRole query string false "Professional role, defaults to tutor"
// @Param date query string false "Cover date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /availability/available [get]
func (h *AvailabilityHandler) Available(c *gin.Context) {
	filter := slotFilterFromQuery(c)
	if filter.Subject == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subject query parameter is required"))
		return
	}
	if filter.UserRole == nil {
		role := models.RoleTutor
		filter.UserRole = &role
	}
	status := models.SlotAvailable
	filter.Status = &status

	slots, pagination, err := h.slots.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, pagination)
}

// MySlots godoc
// @Summary List the caller's slots
// @Tags Availability
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /availability/my-slots [get]
func (h *AvailabilityHandler) MySlots(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := slotFilterFromQuery(c)
	filter.UserID = claims.UserID

	slots, pagination, err := h.slots.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, pagination)
}

// Get godoc
// @Summary Get slot detail
// @Tags Availability
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /availability/{id} [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	slot, err := h.slots.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Update godoc
// @Summary Update availability slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body models.UpdateSlotRequest true "Slot patch"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /availability/{id} [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	var req models.UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}

	claims := claimsFromContext(c)
	slot, err := h.slots.Update(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// ChangeStatus godoc
// @Summary Change slot status
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body map[string]string true "Status payload"
// @Success 204 {object} response.Envelope
// @Router /availability/{id}/status [patch]
func (h *AvailabilityHandler) ChangeStatus(c *gin.Context) {
	var payload struct {
		Status models.SlotStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}

	claims := claimsFromContext(c)
	if err := h.slots.ChangeStatus(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), payload.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkStatus godoc
// @Summary Bulk update slot status
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body models.BulkSlotStatusRequest true "Bulk status payload"
// @Success 200 {object} response.Envelope
// @Router /availability/bulk/status [patch]
func (h *AvailabilityHandler) BulkStatus(c *gin.Context) {
	var req models.BulkSlotStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk payload"))
		return
	}

	updated, err := h.slots.BulkChangeStatus(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": updated}, nil)
}

// Delete godoc
// @Summary Delete availability slot
// @Tags Availability
// @Produce json
// @Param id path string true "Slot ID"
// @Success 204 {object} response.Envelope
// @Router /availability/{id} [delete]
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.slots.Delete(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func slotFilterFromQuery(c *gin.Context) models.SlotFilter {
	var filter models.SlotFilter
	filter.UserID = c.Query("userId")
	if role := c.Query("userRole"); role != "" {
		r := models.UserRole(role)
		filter.UserRole = &r
	}
	filter.Subject = strings.TrimSpace(c.Query("subject"))
	if status := c.Query("status"); status != "" {
		s := models.SlotStatus(status)
		filter.Status = &s
	}
	if st := c.Query("scheduleType"); st != "" {
		t := models.ScheduleType(st)
		filter.ScheduleType = &t
	}
	if date := c.Query("date"); date != "" {
		if d, err := time.Parse("2006-01-02", date); err == nil {
			filter.Date = &d
		}
	}
	filter.Page, filter.Limit = pageParams(c)
	return filter
}
