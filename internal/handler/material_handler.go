package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutoring-api/internal/models"
	"github.com/tutorlink/tutoring-api/internal/service"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
	"github.com/tutorlink/tutoring-api/pkg/response"
)

// MaterialHandler exposes educational material endpoints.
type MaterialHandler struct {
	materials *service.MaterialService
}

// NewMaterialHandler constructs MaterialHandler.
func NewMaterialHandler(materials *service.MaterialService) *MaterialHandler {
	return &MaterialHandler{materials: materials}
}

// Create godoc
// @Summary Create educational material
// @Tags Materials
// @Accept json
// @Produce json
// @Param payload body models.CreateMaterialRequest true "Material payload"
// @Success 201 {object} response.Envelope
// @Router /materials [post]
func (h *MaterialHandler) Create(c *gin.Context) {
	var req models.CreateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid material payload"))
		return
	}

	claims := claimsFromContext(c)
	material, err := h.materials.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, material)
}

// List godoc
// @Summary List materials
// @Tags Materials
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param type query string false "Filter by type"
// @Param difficulty query string false "Filter by difficulty"
// @Param status query string false "Filter by status"
// @Param search query string false "Search title and description"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /materials [get]
func (h *MaterialHandler) List(c *gin.Context) {
	filter := materialFilterFromQuery(c)

	materials, pagination, err := h.materials.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, pagination)
}

// Mine godoc
// @Summary List the caller's materials
// @Tags Materials
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /materials/my-materials [get]
func (h *MaterialHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)

	filter := materialFilterFromQuery(c)
	filter.CreatedBy = claims.UserID

	materials, pagination, err := h.materials.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, pagination)
}

// Popular godoc
// @Summary Most downloaded published materials
// @Tags Materials
// @Produce json
// @Param limit query int false "Max results"
// @Success 200 {object} response.Envelope
// @Router /materials/popular [get]
func (h *MaterialHandler) Popular(c *gin.Context) {
	limit := 10
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && v > 0 {
		limit = v
	}

	materials, err := h.materials.Popular(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, nil)
}

// Get godoc
// @Summary Get material detail
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 200 {object} response.Envelope
// @Router /materials/{id} [get]
func (h *MaterialHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	material, err := h.materials.Get(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Update godoc
// @Summary Update material
// @Tags Materials
// @Accept json
// @Produce json
// @Param id path string true "Material ID"
// @Param payload body models.UpdateMaterialRequest true "Material patch"
// @Success 200 {object} response.Envelope
// @Router /materials/{id} [put]
func (h *MaterialHandler) Update(c *gin.Context) {
	var req models.UpdateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid material payload"))
		return
	}

	claims := claimsFromContext(c)
	material, err := h.materials.Update(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// ChangeStatus godoc
// @Summary Change material status
// @Tags Materials
// @Accept json
// @Produce json
// @Param id path string true "Material ID"
// @Param payload body models.ChangeMaterialStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /materials/{id}/status [patch]
func (h *MaterialHandler) ChangeStatus(c *gin.Context) {
	var req models.ChangeMaterialStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}

	claims := claimsFromContext(c)
	material, err := h.materials.ChangeStatus(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Rate godoc
// @Summary Rate a material
// @Tags Materials
// @Accept json
// @Produce json
// @Param id path string true "Material ID"
// @Param payload body models.RateMaterialRequest true "Rating payload"
// @Success 200 {object} response.Envelope
// @Router /materials/{id}/rate [post]
func (h *MaterialHandler) Rate(c *gin.Context) {
	var req models.RateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rating payload"))
		return
	}

	claims := claimsFromContext(c)
	material, err := h.materials.Rate(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Share godoc
// @Summary Share a material with users
// @Tags Materials
// @Accept json
// @Produce json
// @Param id path string true "Material ID"
// @Param payload body models.ShareMaterialRequest true "Share payload"
// @Success 200 {object} response.Envelope
// @Router /materials/{id}/share [post]
func (h *MaterialHandler) Share(c *gin.Context) {
	var req models.ShareMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid share payload"))
		return
	}

	claims := claimsFromContext(c)
	material, err := h.materials.Share(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Download godoc
// @Summary Register a download
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 200 {object} response.Envelope
// @Router /materials/{id}/download [post]
func (h *MaterialHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	material, err := h.materials.Download(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Delete godoc
// @Summary Delete material
// @Tags Materials
// @Produce json
// @Param id path string true "Material ID"
// @Success 204 {object} response.Envelope
// @Router /materials/{id} [delete]
func (h *MaterialHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.materials.Delete(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func materialFilterFromQuery(c *gin.Context) models.MaterialFilter {
	var filter models.MaterialFilter
	filter.Subject = strings.TrimSpace(c.Query("subject"))
	if typ := c.Query("type"); typ != "" {
		t := models.MaterialType(typ)
		filter.Type = &t
	}
	filter.Difficulty = c.Query("difficulty")
	if status := c.Query("status"); status != "" {
		s := models.MaterialStatus(status)
		filter.Status = &s
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.Limit = pageParams(c)
	return filter
}
