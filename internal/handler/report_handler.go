package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutoring-api/internal/models"
	"github.com/tutorlink/tutoring-api/internal/service"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
	"github.com/tutorlink/tutoring-api/pkg/response"
)

// ReportHandler exposes report endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Create godoc
// @Summary Register a report for generation
// @Description The report is generated asynchronously; poll until status is generated
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body models.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req models.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report payload"))
		return
	}

	claims := claimsFromContext(c)
	report, err := h.reports.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Templates godoc
// @Summary List report templates
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/templates [get]
func (h *ReportHandler) Templates(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.reports.Templates(), nil)
}

// List godoc
// @Summary List reports
// @Tags Reports
// @Produce json
// @Param type query string false "Filter by type"
// @Param status query string false "Filter by status"
// @Param targetStudentId query string false "Filter by target student"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)

	var filter models.ReportFilter
	if typ := c.Query("type"); typ != "" {
		t := models.ReportType(typ)
		filter.Type = &t
	}
	if status := c.Query("status"); status != "" {
		s := models.ReportStatus(status)
		filter.Status = &s
	}
	filter.TargetStudentID = c.Query("targetStudentId")
	switch claims.Role {
	case models.RoleStudent:
		filter.TargetStudentID = claims.UserID
	case models.RoleTutor, models.RoleAdvisor:
		filter.GeneratedBy = claims.UserID
	}
	filter.Page, filter.Limit = pageParams(c)

	reports, pagination, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// Get godoc
// @Summary Get report detail
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Deliver godoc
// @Summary Deliver a generated report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body models.DeliverReportRequest true "Delivery payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/deliver [post]
func (h *ReportHandler) Deliver(c *gin.Context) {
	var req models.DeliverReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delivery payload"))
		return
	}

	claims := claimsFromContext(c)
	report, err := h.reports.Deliver(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Download godoc
// @Summary Download the rendered report
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Report ID"
// @Success 200 {file} binary
// @Router /reports/{id}/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	raw, contentType, err := h.reports.Download(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=report-%s", c.Param("id")))
	c.Data(http.StatusOK, contentType, raw)
}

// Delete godoc
// @Summary Delete report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 204 {object} response.Envelope
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.reports.Delete(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
