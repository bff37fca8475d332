package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutoring-api/internal/models"
	"github.com/tutorlink/tutoring-api/internal/service"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
	"github.com/tutorlink/tutoring-api/pkg/response"
)

// AppointmentHandler exposes appointment endpoints.
type AppointmentHandler struct {
	appointments *service.AppointmentService
}

// NewAppointmentHandler constructs AppointmentHandler.
func NewAppointmentHandler(appointments *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments}
}

// Create godoc
// @Summary Book an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body models.CreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req models.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}

	appt, err := h.appointments.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appt)
}

// List godoc
// @Summary List appointments
// @Description Students and professionals see their own; admins see all
// @Tags Appointments
// @Produce json
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by type"
// @Param subject query string false "Filter by subject"
// @Param dateFrom query string false "Period start (RFC3339)"
// @Param dateTo query string false "Period end (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)

	var filter models.AppointmentFilter
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleTutor, models.RoleAdvisor:
		filter.ProfessionalID = claims.UserID
	}
	if status := c.Query("status"); status != "" {
		s := models.AppointmentStatus(status)
		filter.Status = &s
	}
	if typ := c.Query("type"); typ != "" {
		t := models.AppointmentType(typ)
		filter.Type = &t
	}
	filter.Subject = strings.TrimSpace(c.Query("subject"))
	if from := c.Query("dateFrom"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("dateTo"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = &t
		}
	}
	filter.Page, filter.Limit = pageParams(c)

	appts, pagination, err := h.appointments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appts, pagination)
}

// Upcoming godoc
// @Summary Next appointments for the caller
// @Tags Appointments
// @Produce json
// @Param limit query int false "Max results"
// @Success 200 {object} response.Envelope
// @Router /appointments/upcoming [get]
func (h *AppointmentHandler) Upcoming(c *gin.Context) {
	claims := claimsFromContext(c)

	limit := 10
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && v > 0 {
		limit = v
	}

	appts, err := h.appointments.Upcoming(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appts, nil)
}

// Get godoc
// @Summary Get appointment detail
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	appt, err := h.appointments.Get(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Update godoc
// @Summary Update appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body models.UpdateAppointmentRequest true "Appointment patch"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id} [put]
func (h *AppointmentHandler) Update(c *gin.Context) {
	var req models.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}

	claims := claimsFromContext(c)
	appt, err := h.appointments.Update(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Cancel godoc
// @Summary Cancel appointment
// @Description Releases the linked availability slot
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body models.CancelAppointmentRequest true "Cancellation payload"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/cancel [patch]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	var req models.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancellation payload"))
		return
	}

	claims := claimsFromContext(c)
	appt, err := h.appointments.Cancel(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Rate godoc
// @Summary Rate a completed appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body models.RateAppointmentRequest true "Rating payload"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/rate [post]
func (h *AppointmentHandler) Rate(c *gin.Context) {
	var req models.RateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rating payload"))
		return
	}

	claims := claimsFromContext(c)
	appt, err := h.appointments.Rate(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// AddNote godoc
// @Summary Add internal note
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body models.AddNoteRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/notes [post]
func (h *AppointmentHandler) AddNote(c *gin.Context) {
	var req models.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}

	claims := claimsFromContext(c)
	appt, err := h.appointments.AddNote(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}
