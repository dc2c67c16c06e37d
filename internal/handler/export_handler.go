package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	"github.com/noah-isme/opportunity-tracker-api/internal/service"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
	"github.com/noah-isme/opportunity-tracker-api/pkg/response"
)

// ExportHandler streams rendered lead exports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Leads godoc
// @Summary Export filtered leads as a file
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv, xlsx or pdf (default csv)"
// @Param status query string false "Filter by status"
// @Param stage query string false "Filter by stage"
// @Param regionId query string false "Filter by region"
// @Success 200 {file} binary
// @Router /exports/leads [get]
func (h *ExportHandler) Leads(c *gin.Context) {
	format, err := service.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	var filter models.LeadFilter
	if status := c.Query("status"); status != "" {
		s := models.LeadStatus(strings.ToUpper(status))
		filter.Status = &s
	}
	if stage := c.Query("stage"); stage != "" {
		s := models.LeadStage(strings.ToUpper(stage))
		filter.Stage = &s
	}
	filter.RegionID = c.Query("regionId")
	filter.Search = strings.TrimSpace(c.Query("search"))

	result, err := h.exports.Leads(c.Request.Context(), filter, format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Header("Content-Length", strconv.Itoa(len(result.Payload)))
	c.Data(200, result.ContentType, result.Payload)
}

// Performance godoc
// @Summary Export per-user funnel performance as a file
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv, xlsx or pdf (default csv)"
// @Success 200 {file} binary
// @Router /exports/performance [get]
func (h *ExportHandler) Performance(c *gin.Context) {
	format, err := service.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	result, err := h.exports.Performance(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Header("Content-Length", strconv.Itoa(len(result.Payload)))
	c.Data(200, result.ContentType, result.Payload)
}
