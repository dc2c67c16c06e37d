package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	"github.com/noah-isme/opportunity-tracker-api/internal/service"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
	"github.com/noah-isme/opportunity-tracker-api/pkg/response"
)

// LeadHandler exposes the lead lifecycle endpoints.
type LeadHandler struct {
	leads *service.LeadService
}

// NewLeadHandler constructs LeadHandler.
func NewLeadHandler(leads *service.LeadService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// List godoc
// @Summary List leads
// @Description Non-admin callers see their own leads unless filtering by the POOL status
// @Tags Leads
// @Produce json
// @Param status query string false "Filter by status"
// @Param stage query string false "Filter by stage"
// @Param regionId query string false "Filter by region"
// @Param assignedTo query string false "Filter by assignee"
// @Param createdBy query string false "Filter by creator"
// @Param search query string false "Search by school name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leads [get]
func (h *LeadHandler) List(c *gin.Context) {
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
	filter.AssignedToUserID = c.Query("assignedTo")
	filter.CreatedBy = c.Query("createdBy")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	leads, pagination, err := h.leads.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leads, pagination)
}

// Get godoc
// @Summary Get lead detail with history
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Router /leads/{id} [get]
func (h *LeadHandler) Get(c *gin.Context) {
	lead, err := h.leads.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// CheckDuplicates godoc
// @Summary Check a candidate lead for duplicates
// @Description Runs the duplicate cascade without creating anything
// @Tags Leads
// @Produce json
// @Param schoolName query string true "School name"
// @Param zipCode query string true "ZIP code"
// @Param phone query string false "Contact phone"
// @Success 200 {object} response.Envelope
// @Router /leads/check-duplicates [get]
func (h *LeadHandler) CheckDuplicates(c *gin.Context) {
	result := h.leads.CheckDuplicates(
		c.Request.Context(),
		strings.TrimSpace(c.Query("schoolName")),
		strings.TrimSpace(c.Query("zipCode")),
		c.Query("phone"),
	)
	response.JSON(c, http.StatusOK, result, nil)
}

// Create godoc
// @Summary Create lead
// @Description Exact duplicates are refused. Similar leads park in PENDING for admin review
// @Tags Leads
// @Accept json
// @Produce json
// @Param payload body service.CreateLeadRequest true "Lead payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	var req service.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lead payload"))
		return
	}
	lead, err := h.leads.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lead)
}

// Update godoc
// @Summary Update lead details
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body service.UpdateLeadRequest true "Lead payload"
// @Success 200 {object} response.Envelope
// @Router /leads/{id} [put]
func (h *LeadHandler) Update(c *gin.Context) {
	var req service.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lead payload"))
		return
	}
	lead, err := h.leads.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Approve godoc
// @Summary Approve a pending lead
// @Description Assigns the lead to its creator and starts the lock window
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body object false "Optional lock_months override (1, 3 or 6)"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leads/{id}/approve [post]
func (h *LeadHandler) Approve(c *gin.Context) {
	var req struct {
		LockMonths int `json:"lock_months"`
	}
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approve payload"))
			return
		}
	}
	lead, err := h.leads.Approve(c.Request.Context(), c.Param("id"), req.LockMonths, claimsFromContext(c), clientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Reject godoc
// @Summary Reject a pending lead into the pool
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leads/{id}/reject [post]
func (h *LeadHandler) Reject(c *gin.Context) {
	lead, err := h.leads.Reject(c.Request.Context(), c.Param("id"), claimsFromContext(c), clientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Claim godoc
// @Summary Claim a pool lead
// @Description Atomically moves a POOL lead to the caller with a fresh lock
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leads/{id}/claim [post]
func (h *LeadHandler) Claim(c *gin.Context) {
	lead, err := h.leads.Claim(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// StageTransition godoc
// @Summary Advance a lead through the funnel
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body service.StageTransitionRequest true "Stage payload"
// @Success 200 {object} response.Envelope
// @Router /leads/{id}/stage [post]
func (h *LeadHandler) StageTransition(c *gin.Context) {
	var req service.StageTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid stage payload"))
		return
	}
	lead, err := h.leads.AddStageTransition(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// AddNote godoc
// @Summary Append a note to a lead
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body service.NoteRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Router /leads/{id}/notes [post]
func (h *LeadHandler) AddNote(c *gin.Context) {
	var req service.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid note payload"))
		return
	}
	lead, err := h.leads.AddNote(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// Override godoc
// @Summary Override lead status or stage
// @Description Direct admin write to one lifecycle axis, recorded in the audit log
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param payload body service.OverrideRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Router /leads/{id}/override [post]
func (h *LeadHandler) Override(c *gin.Context) {
	var req service.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}
	lead, err := h.leads.Override(c.Request.Context(), c.Param("id"), req, claimsFromContext(c), clientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lead, nil)
}

// BulkAssign godoc
// @Summary Assign several pool leads to one user
// @Tags Leads
// @Accept json
// @Produce json
// @Param payload body service.BulkAssignRequest true "Assignment payload"
// @Success 204 {object} response.Envelope
// @Router /leads/bulk-assign [post]
func (h *LeadHandler) BulkAssign(c *gin.Context) {
	var req service.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	if err := h.leads.BulkAssign(c.Request.Context(), req, claimsFromContext(c), clientMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
