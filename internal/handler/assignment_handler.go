package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutoring-api/internal/models"
	"github.com/tutorlink/tutoring-api/internal/service"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
	"github.com/tutorlink/tutoring-api/pkg/response"
)

// AssignmentHandler exposes assignment endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// Create godoc
// @Summary Assign a material to a student
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body models.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req models.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	claims := claimsFromContext(c)
	assignment, err := h.assignments.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// List godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param assignedBy query string false "Filter by assigner"
// @Param materialId query string false "Filter by material"
// @Param status query string false "Filter by status"
// @Param overdue query bool false "Only overdue"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)

	filter := assignmentFilterFromQuery(c)
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleTutor, models.RoleAdvisor:
		filter.AssignedBy = claims.UserID
	}

	assignments, pagination, err := h.assignments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Mine godoc
// @Summary List the caller's assignments
// @Tags Assignments
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments/my-assignments [get]
func (h *AssignmentHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)

	filter := assignmentFilterFromQuery(c)
	filter.StudentID = claims.UserID

	assignments, pagination, err := h.assignments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Pending godoc
// @Summary List open assignments with a future due date
// @Tags Assignments
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments/pending [get]
func (h *AssignmentHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)

	filter := assignmentFilterFromQuery(c)
	filter.Pending = true
	if claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	assignments, pagination, err := h.assignments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Statistics godoc
// @Summary Assignment statistics
// @Tags Assignments
// @Produce json
// @Param studentId query string false "Scope to a student"
// @Success 200 {object} response.Envelope
// @Router /assignments/statistics [get]
func (h *AssignmentHandler) Statistics(c *gin.Context) {
	claims := claimsFromContext(c)

	filter := assignmentFilterFromQuery(c)
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleTutor, models.RoleAdvisor:
		filter.AssignedBy = claims.UserID
	}

	stats, err := h.assignments.Statistics(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Get godoc
// @Summary Get assignment detail
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	assignment, err := h.assignments.Get(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Update godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.UpdateAssignmentRequest true "Assignment patch"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	var req models.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	claims := claimsFromContext(c)
	assignment, err := h.assignments.Update(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete godoc
// @Summary Delete assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.assignments.Delete(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit work for an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.SubmitAssignmentRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submit [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	var req models.SubmitAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	claims := claimsFromContext(c)
	assignment, err := h.assignments.Submit(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.GradeAssignmentRequest true "Grading payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/grade [post]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	var req models.GradeAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grading payload"))
		return
	}

	claims := claimsFromContext(c)
	assignment, err := h.assignments.Grade(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Return godoc
// @Summary Return an assignment for rework
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/return [post]
func (h *AssignmentHandler) Return(c *gin.Context) {
	claims := claimsFromContext(c)
	assignment, err := h.assignments.Return(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// RequestExtension godoc
// @Summary Request a due date extension
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.RequestExtensionRequest true "Extension payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/request-extension [post]
func (h *AssignmentHandler) RequestExtension(c *gin.Context) {
	var req models.RequestExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid extension payload"))
		return
	}

	claims := claimsFromContext(c)
	assignment, err := h.assignments.RequestExtension(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// ApproveExtension godoc
// @Summary Approve an extension request
// @Description Moves the due date and re-evaluates the assignment status
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.ApproveExtensionRequest true "Approval payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/approve-extension [post]
func (h *AssignmentHandler) ApproveExtension(c *gin.Context) {
	var req models.ApproveExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}

	claims := claimsFromContext(c)
	assignment, err := h.assignments.ApproveExtension(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// AddComment godoc
// @Summary Comment on an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.AddCommentRequest true "Comment payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/comments [post]
func (h *AssignmentHandler) AddComment(c *gin.Context) {
	var req models.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}

	claims := claimsFromContext(c)
	assignment, err := h.assignments.AddComment(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

func assignmentFilterFromQuery(c *gin.Context) models.AssignmentFilter {
	var filter models.AssignmentFilter
	filter.StudentID = c.Query("studentId")
	filter.AssignedBy = c.Query("assignedBy")
	filter.MaterialID = c.Query("materialId")
	if status := c.Query("status"); status != "" {
		s := models.AssignmentStatus(status)
		filter.Status = &s
	}
	filter.Overdue = c.Query("overdue") == "true"
	filter.Page, filter.Limit = pageParams(c)
	return filter
}
