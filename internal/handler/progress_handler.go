package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutoring-api/internal/models"
	"github.com/tutorlink/tutoring-api/internal/service"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
	"github.com/tutorlink/tutoring-api/pkg/response"
)

// ProgressHandler exposes progress tracking endpoints.
type ProgressHandler struct {
	progress *service.ProgressService
}

// NewProgressHandler constructs ProgressHandler.
func NewProgressHandler(progress *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// Create godoc
// @Summary Start tracking a student
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body models.CreateProgressRequest true "Progress payload"
// @Success 201 {object} response.Envelope
// @Router /progress [post]
func (h *ProgressHandler) Create(c *gin.Context) {
	var req models.CreateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid progress payload"))
		return
	}

	claims := claimsFromContext(c)
	record, err := h.progress.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List godoc
// @Summary List progress records
// @Tags Progress
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param subject query string false "Filter by subject"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /progress [get]
func (h *ProgressHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)

	filter := progressFilterFromQuery(c)
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleTutor, models.RoleAdvisor:
		filter.TrackedBy = claims.UserID
	}

	records, pagination, err := h.progress.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Mine godoc
// @Summary List the caller's progress records
// @Tags Progress
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /progress/my-progress [get]
func (h *ProgressHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)

	filter := progressFilterFromQuery(c)
	filter.StudentID = claims.UserID

	records, pagination, err := h.progress.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Statistics godoc
// @Summary Progress statistics
// @Tags Progress
// @Produce json
// @Param studentId query string false "Scope to a student"
// @Success 200 {object} response.Envelope
// @Router /progress/statistics [get]
func (h *ProgressHandler) Statistics(c *gin.Context) {
	claims := claimsFromContext(c)

	filter := progressFilterFromQuery(c)
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	stats, err := h.progress.Statistics(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Get godoc
// @Summary Get progress record
// @Tags Progress
// @Produce json
// @Param id path string true "Progress ID"
// @Success 200 {object} response.Envelope
// @Router /progress/{id} [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	record, err := h.progress.Get(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Update godoc
// @Summary Update progress record
// @Tags Progress
// @Accept json
// @Produce json
// @Param id path string true "Progress ID"
// @Param payload body models.UpdateProgressRequest true "Progress patch"
// @Success 200 {object} response.Envelope
// @Router /progress/{id} [put]
func (h *ProgressHandler) Update(c *gin.Context) {
	var req models.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid progress payload"))
		return
	}

	claims := claimsFromContext(c)
	record, err := h.progress.Update(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// AddHistory godoc
// @Summary Append a progress history entry
// @Tags Progress
// @Accept json
// @Produce json
// @Param id path string true "Progress ID"
// @Param payload body models.AddHistoryRequest true "History payload"
// @Success 200 {object} response.Envelope
// @Router /progress/{id}/history [post]
func (h *ProgressHandler) AddHistory(c *gin.Context) {
	var req models.AddHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid history payload"))
		return
	}

	claims := claimsFromContext(c)
	record, err := h.progress.AddHistory(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// UpdateGoal godoc
// @Summary Update a goal's status
// @Tags Progress
// @Accept json
// @Produce json
// @Param id path string true "Progress ID"
// @Param payload body models.UpdateGoalStatusRequest true "Goal payload"
// @Success 200 {object} response.Envelope
// @Router /progress/{id}/goals [patch]
func (h *ProgressHandler) UpdateGoal(c *gin.Context) {
	var req models.UpdateGoalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid goal payload"))
		return
	}

	claims := claimsFromContext(c)
	record, err := h.progress.UpdateGoalStatus(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete progress record
// @Tags Progress
// @Produce json
// @Param id path string true "Progress ID"
// @Success 204 {object} response.Envelope
// @Router /progress/{id} [delete]
func (h *ProgressHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.progress.Delete(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func progressFilterFromQuery(c *gin.Context) models.ProgressFilter {
	var filter models.ProgressFilter
	filter.StudentID = c.Query("studentId")
	filter.Subject = strings.TrimSpace(c.Query("subject"))
	filter.Page, filter.Limit = pageParams(c)
	return filter
}
