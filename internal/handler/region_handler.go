package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opportunity-tracker-api/internal/service"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
	"github.com/noah-isme/opportunity-tracker-api/pkg/response"
)

// RegionHandler exposes region directory endpoints.
type RegionHandler struct {
	regions *service.RegionService
}

// NewRegionHandler constructs RegionHandler.
func NewRegionHandler(regions *service.RegionService) *RegionHandler {
	return &RegionHandler{regions: regions}
}

// List godoc
// @Summary List regions
// @Tags Regions
// @Produce json
// @Param active query bool false "Only active regions"
// @Success 200 {object} response.Envelope
// @Router /regions [get]
func (h *RegionHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	regions, err := h.regions.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regions, nil)
}

// Get godoc
// @Summary Get region detail
// @Tags Regions
// @Produce json
// @Param id path string true "Region ID"
// @Success 200 {object} response.Envelope
// @Router /regions/{id} [get]
func (h *RegionHandler) Get(c *gin.Context) {
	region, err := h.regions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, region, nil)
}

// Create godoc
// @Summary Create region
// @Tags Regions
// @Accept json
// @Produce json
// @Param payload body service.CreateRegionRequest true "Region payload"
// @Success 201 {object} response.Envelope
// @Router /regions [post]
func (h *RegionHandler) Create(c *gin.Context) {
	var req service.CreateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid region payload"))
		return
	}
	region, err := h.regions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, region)
}

// Update godoc
// @Summary Update region
// @Tags Regions
// @Accept json
// @Produce json
// @Param id path string true "Region ID"
// @Param payload body service.UpdateRegionRequest true "Region payload"
// @Success 200 {object} response.Envelope
// @Router /regions/{id} [put]
func (h *RegionHandler) Update(c *gin.Context) {
	var req service.UpdateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid region payload"))
		return
	}
	region, err := h.regions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, region, nil)
}

// Delete godoc
// @Summary Delete region
// @Tags Regions
// @Produce json
// @Param id path string true "Region ID"
// @Success 204 {object} response.Envelope
// @Router /regions/{id} [delete]
func (h *RegionHandler) Delete(c *gin.Context) {
	if err := h.regions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
