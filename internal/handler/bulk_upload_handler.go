package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opportunity-tracker-api/internal/service"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
	"github.com/noah-isme/opportunity-tracker-api/pkg/response"
)

// BulkUploadHandler exposes the spreadsheet intake pipeline.
type BulkUploadHandler struct {
	bulk *service.BulkUploadService
}

// NewBulkUploadHandler constructs BulkUploadHandler.
func NewBulkUploadHandler(bulk *service.BulkUploadService) *BulkUploadHandler {
	return &BulkUploadHandler{bulk: bulk}
}

// Upload godoc
// @Summary Upload a lead spreadsheet
// @Description Parses the first sheet into pending rows awaiting verification
// @Tags BulkUpload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "XLSX file"
// @Success 201 {object} response.Envelope
// @Router /bulk-uploads [post]
func (h *BulkUploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	batch, rows, err := h.bulk.Parse(c.Request.Context(), fileHeader.Filename, file, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"batch": batch, "rows": rows})
}

// List godoc
// @Summary List upload batches
// @Tags BulkUpload
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bulk-uploads [get]
func (h *BulkUploadHandler) List(c *gin.Context) {
	batches, err := h.bulk.ListBatches(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, nil)
}

// Get godoc
// @Summary Get an upload batch with its rows
// @Tags BulkUpload
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /bulk-uploads/{id} [get]
func (h *BulkUploadHandler) Get(c *gin.Context) {
	batch, rows, err := h.bulk.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"batch": batch, "rows": rows}, nil)
}

// Template godoc
// @Summary Download the empty upload template workbook
// @Tags BulkUpload
// @Produce octet-stream
// @Success 200 {file} binary
// @Router /bulk-uploads/template [get]
func (h *BulkUploadHandler) Template(c *gin.Context) {
	payload, err := h.bulk.Template()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="bulk-upload-template.xlsx"`)
	c.Header("Content-Length", strconv.Itoa(len(payload)))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}

// Results godoc
// @Summary Download the annotated verification results workbook
// @Tags BulkUpload
// @Produce octet-stream
// @Param id path string true "Batch ID"
// @Success 200 {file} binary
// @Router /bulk-uploads/{id}/results [get]
func (h *BulkUploadHandler) Results(c *gin.Context) {
	name, payload, err := h.bulk.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Length", strconv.Itoa(len(payload)))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}

// StartVerification godoc
// @Summary Start background verification of a batch
// @Tags BulkUpload
// @Produce json
// @Param id path string true "Batch ID"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bulk-uploads/{id}/verify [post]
func (h *BulkUploadHandler) StartVerification(c *gin.Context) {
	if err := h.bulk.StartVerification(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "verifying"}, nil)
}

// CancelVerification godoc
// @Summary Cancel a running verification
// @Description The worker stops at the next row boundary
// @Tags BulkUpload
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bulk-uploads/{id}/cancel [post]
func (h *BulkUploadHandler) CancelVerification(c *gin.Context) {
	if err := h.bulk.CancelVerification(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "cancelled"}, nil)
}

// EditRow godoc
// @Summary Correct a verified or failed row manually
// @Tags BulkUpload
// @Accept json
// @Produce json
// @Param rowId path string true "Row ID"
// @Param payload body service.EditRowRequest true "Row payload"
// @Success 200 {object} response.Envelope
// @Router /bulk-uploads/rows/{rowId} [put]
func (h *BulkUploadHandler) EditRow(c *gin.Context) {
	var req service.EditRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid row payload"))
		return
	}
	row, err := h.bulk.EditRow(c.Request.Context(), c.Param("rowId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// DeleteRow godoc
// @Summary Remove a row from a batch
// @Tags BulkUpload
// @Produce json
// @Param rowId path string true "Row ID"
// @Success 204 {object} response.Envelope
// @Router /bulk-uploads/rows/{rowId} [delete]
func (h *BulkUploadHandler) DeleteRow(c *gin.Context) {
	if err := h.bulk.DeleteRow(c.Request.Context(), c.Param("rowId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Commit godoc
// @Summary Commit a verified batch into the lead store
// @Tags BulkUpload
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bulk-uploads/{id}/commit [post]
func (h *BulkUploadHandler) Commit(c *gin.Context) {
	batch, err := h.bulk.Commit(c.Request.Context(), c.Param("id"), claimsFromContext(c), clientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}
