package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
)

type leadRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	ListUpdates(ctx context.Context, leadID string) ([]models.LeadUpdate, error)
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error)
	Create(ctx context.Context, lead *models.Lead) error
	Update(ctx context.Context, lead *models.Lead) error
	Approve(ctx context.Context, id string, lockedUntil time.Time) (bool, error)
	Reject(ctx context.Context, id string) (bool, error)
	Claim(ctx context.Context, id, userID, userName string, lockedUntil time.Time) (bool, error)
	SetStatus(ctx context.Context, id string, status models.LeadStatus) error
	SetStage(ctx context.Context, id string, stage models.LeadStage) error
	ApplyUpdate(ctx context.Context, update *models.LeadUpdate, status *models.LeadStatus) error
	InsertNote(ctx context.Context, update *models.LeadUpdate) error
	BulkAssign(ctx context.Context, leadIDs []string, userID, userName string, lockedUntil time.Time, history *models.LeadUpdate, notification *models.Notification) error
}

type leadUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type leadNotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
}

type leadRegionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Region, error)
}

// CreateLeadRequest is the intake payload for a new lead.
type CreateLeadRequest struct {
	SchoolName    string `json:"school_name" validate:"required"`
	RegionID      string `json:"region_id" validate:"required"`
	Address       string `json:"address" validate:"required"`
	ZipCode       string `json:"zip_code" validate:"required,zipcode"`
	Landmark      string `json:"landmark"`
	ContactPerson string `json:"contact_person" validate:"required"`
	Designation   string `json:"designation"`
	ContactEmail  string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone  string `json:"contact_phone" validate:"required,phone"`
	IsChain       bool   `json:"is_chain"`
	ChainName     string `json:"chain_name"`
	Remarks       string `json:"remarks"`
	PlaceID       string `json:"place_id"`
}

// UpdateLeadRequest overwrites the contact and verification fields.
type UpdateLeadRequest struct {
	SchoolName    string `json:"school_name" validate:"required"`
	RegionID      string `json:"region_id" validate:"required"`
	Address       string `json:"address" validate:"required"`
	ZipCode       string `json:"zip_code" validate:"required,zipcode"`
	Landmark      string `json:"landmark"`
	ContactPerson string `json:"contact_person" validate:"required"`
	Designation   string `json:"designation"`
	ContactEmail  string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone  string `json:"contact_phone" validate:"required,phone"`
	IsChain       bool   `json:"is_chain"`
	ChainName     string `json:"chain_name"`
	Remarks       string `json:"remarks"`
	PlaceID       string `json:"place_id"`
}

// StageTransitionRequest advances a lead through the funnel. The stage
// is validated against the enum instead of travelling as free text.
type StageTransitionRequest struct {
	Stage       models.LeadStage    `json:"stage" validate:"required"`
	Note        string              `json:"note"`
	Probability *int                `json:"probability" validate:"omitempty,oneof=10 20 30 40 50 60 70 80 90 95"`
	Attachments []models.Attachment `json:"attachments"`
}

// NoteRequest appends a free-text note that never changes lead state.
type NoteRequest struct {
	Note        string              `json:"note" validate:"required"`
	Attachments []models.Attachment `json:"attachments"`
}

// OverrideRequest is a direct admin write to one lifecycle axis.
type OverrideRequest struct {
	Status *models.LeadStatus `json:"status"`
	Stage  *models.LeadStage  `json:"stage"`
}

// BulkAssignRequest assigns several pool leads to one user.
type BulkAssignRequest struct {
	LeadIDs []string `json:"lead_ids" validate:"required,min=1"`
	UserID  string   `json:"user_id" validate:"required"`
}

// LeadService implements the lead lifecycle: intake with duplicate
// gating, the approval queue, the shared pool and the funnel history.
type LeadService struct {
	repo          leadRepository
	users         leadUserRepository
	regions       leadRegionRepository
	notifications leadNotificationRepository
	duplicates    *DuplicateService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewLeadService creates an instance of LeadService.
func NewLeadService(repo leadRepository, users leadUserRepository, regions leadRegionRepository, notifications leadNotificationRepository, duplicates *DuplicateService, validate *validator.Validate, logger *zap.Logger) *LeadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &LeadService{
		repo:          repo,
		users:         users,
		regions:       regions,
		notifications: notifications,
		duplicates:    duplicates,
		validator:     validate,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// List returns leads with pagination. Non-admin callers are scoped to
// leads they own or created, plus the shared pool when requested.
func (s *LeadService) List(ctx context.Context, filter models.LeadFilter, actor *models.JWTClaims) ([]models.Lead, *models.Pagination, error) {
	if actor != nil && actor.Role != models.RoleAdmin {
		if filter.Status == nil || *filter.Status != models.StatusPool {
			filter.AssignedToUserID = actor.UserID
		}
	}

	leads, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leads")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return leads, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a lead with its full history, most recent first.
func (s *LeadService) Get(ctx context.Context, id string) (*models.Lead, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}

	updates, err := s.repo.ListUpdates(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead history")
	}
	lead.Updates = updates
	return lead, nil
}

// CheckDuplicates runs the duplicate cascade for a candidate without
// creating anything. Used by the intake form before submission.
func (s *LeadService) CheckDuplicates(ctx context.Context, schoolName, zipCode, contactPhone string) DuplicateResult {
	return s.duplicates.Check(ctx, schoolName, zipCode, NormalizePhone(contactPhone), "")
}

// Create ingests a lead. An exact duplicate refuses the intake. A
// similar match parks the lead in PENDING for an admin decision.
// With no match at all the lead auto-approves: LOCKED, assigned to
// its creator for the creator's default lock window.
func (s *LeadService) Create(ctx context.Context, req CreateLeadRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lead payload")
	}

	creator, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load creator")
	}

	region, err := s.resolveRegionName(ctx, req.RegionID)
	if err != nil {
		return nil, err
	}

	result := s.duplicates.Check(ctx, req.SchoolName, req.ZipCode, NormalizePhone(req.ContactPhone), "")
	if result.Exact() {
		dupErr := appErrors.Clone(appErrors.ErrDuplicateLead, "")
		dupErr.Err = fmt.Errorf("%d matching lead(s)", len(result.Matches))
		return nil, dupErr
	}

	lead := &models.Lead{
		SchoolName:    strings.TrimSpace(req.SchoolName),
		RegionID:      req.RegionID,
		RegionName:    region,
		Address:       req.Address,
		ZipCode:       strings.TrimSpace(req.ZipCode),
		Landmark:      req.Landmark,
		ContactPerson: req.ContactPerson,
		Designation:   req.Designation,
		ContactEmail:  strings.ToLower(req.ContactEmail),
		ContactPhone:  NormalizePhone(req.ContactPhone),
		IsChain:       req.IsChain,
		ChainName:     req.ChainName,
		Remarks:       req.Remarks,
		PlaceID:       req.PlaceID,
		Stage:         models.StageNew,
		CreatedBy:     actor.UserID,
	}

	if result.Found() {
		lead.Status = models.StatusPending
	} else {
		lockedUntil := s.now().AddDate(0, creator.DefaultLockInMonths, 0)
		lead.Status = models.StatusLocked
		lead.AssignedToUserID = &creator.ID
		lead.AssignedToName = &creator.FullName
		lead.LockedUntil = &lockedUntil
	}

	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lead")
	}

	note := "Lead created"
	if lead.Status == models.StatusPending {
		note = "Lead created, awaiting approval (similar lead exists)"
	}
	if err := s.repo.InsertNote(ctx, &models.LeadUpdate{
		LeadID:    lead.ID,
		Stage:     models.StageNew,
		Note:      note,
		UpdatedBy: actor.UserID,
	}); err != nil {
		s.logger.Warn("failed to record lead creation history", zap.Error(err))
	}

	return lead, nil
}

// Update overwrites contact and verification fields. Lifecycle fields
// are untouchable here.
func (s *LeadService) Update(ctx context.Context, id string, req UpdateLeadRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lead payload")
	}

	lead, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	region, err := s.resolveRegionName(ctx, req.RegionID)
	if err != nil {
		return nil, err
	}

	lead.SchoolName = strings.TrimSpace(req.SchoolName)
	lead.RegionID = req.RegionID
	lead.RegionName = region
	lead.Address = req.Address
	lead.ZipCode = strings.TrimSpace(req.ZipCode)
	lead.Landmark = req.Landmark
	lead.ContactPerson = req.ContactPerson
	lead.Designation = req.Designation
	lead.ContactEmail = strings.ToLower(req.ContactEmail)
	lead.ContactPhone = NormalizePhone(req.ContactPhone)
	lead.IsChain = req.IsChain
	lead.ChainName = req.ChainName
	lead.Remarks = req.Remarks
	lead.PlaceID = req.PlaceID

	if err := s.repo.Update(ctx, lead); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lead")
	}
	return lead, nil
}

// Approve locks a pending lead to its creator. lockMonths overrides
// the lock window; zero falls back to the creator's default. A lead
// that left PENDING in the meantime surfaces as a conflict rather
// than a silent overwrite.
func (s *LeadService) Approve(ctx context.Context, id string, lockMonths int, actor *models.JWTClaims, meta models.LoginRequest) (*models.Lead, error) {
	switch lockMonths {
	case 0, 1, 3, 6:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "lock months must be 1, 3 or 6")
	}
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}

	creator, err := s.users.FindByID(ctx, lead.CreatedBy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead creator")
	}

	months := lockMonths
	if months == 0 {
		months = creator.DefaultLockInMonths
	}
	lockedUntil := s.now().AddDate(0, months, 0)
	affected, err := s.repo.Approve(ctx, id, lockedUntil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve lead")
	}
	if !affected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lead is no longer pending")
	}

	if err := s.repo.InsertNote(ctx, &models.LeadUpdate{
		LeadID:    id,
		Stage:     lead.Stage,
		Note:      "Lead approved",
		UpdatedBy: actor.UserID,
	}); err != nil {
		s.logger.Warn("failed to record approval history", zap.Error(err))
	}

	s.notify(ctx, creator.ID, "Lead approved", fmt.Sprintf("%s has been approved and locked to you", lead.SchoolName), models.NotificationSuccess, "/leads/"+id)
	s.audit(ctx, actor, models.AuditActionLeadApprove, id, nil, map[string]interface{}{"status": models.StatusLocked, "locked_until": lockedUntil}, meta)

	return s.Get(ctx, id)
}

// Reject moves a pending lead to the shared pool and clears its
// assignment.
func (s *LeadService) Reject(ctx context.Context, id string, actor *models.JWTClaims, meta models.LoginRequest) (*models.Lead, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}

	affected, err := s.repo.Reject(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject lead")
	}
	if !affected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lead is no longer pending")
	}

	if err := s.repo.InsertNote(ctx, &models.LeadUpdate{
		LeadID:    id,
		Stage:     lead.Stage,
		Note:      "Lead rejected and moved to pool",
		UpdatedBy: actor.UserID,
	}); err != nil {
		s.logger.Warn("failed to record rejection history", zap.Error(err))
	}

	s.notify(ctx, lead.CreatedBy, "Lead rejected", fmt.Sprintf("%s was moved to the pool", lead.SchoolName), models.NotificationWarning, "/leads/"+id)
	s.audit(ctx, actor, models.AuditActionLeadReject, id, nil, map[string]interface{}{"status": models.StatusPool}, meta)

	return s.Get(ctx, id)
}

// Claim locks a pool lead to the claiming user. When two users race
// for the same lead the loser gets a conflict.
func (s *LeadService) Claim(ctx context.Context, id string, actor *models.JWTClaims) (*models.Lead, error) {
	claimer, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load claiming user")
	}

	lockedUntil := s.now().AddDate(0, claimer.DefaultLockInMonths, 0)
	affected, err := s.repo.Claim(ctx, id, claimer.ID, claimer.FullName, lockedUntil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim lead")
	}
	if !affected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lead is not in the pool")
	}

	if err := s.repo.InsertNote(ctx, &models.LeadUpdate{
		LeadID:    id,
		Stage:     models.StageNew,
		Note:      fmt.Sprintf("Claimed from pool by %s", claimer.FullName),
		UpdatedBy: claimer.ID,
	}); err != nil {
		s.logger.Warn("failed to record claim history", zap.Error(err))
	}

	return s.Get(ctx, id)
}

// AddStageTransition appends a history event and moves the lead's
// funnel stage, syncing the status axis for terminal stages.
func (s *LeadService) AddStageTransition(ctx context.Context, id string, req StageTransitionRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stage transition payload")
	}
	if !models.ValidStage(req.Stage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", req.Stage))
	}

	if _, err := s.loadOwned(ctx, id, actor); err != nil {
		return nil, err
	}

	var status *models.LeadStatus
	switch req.Stage {
	case models.StageConverted:
		converted := models.StatusConverted
		status = &converted
	case models.StageCancelled:
		cancelled := models.StatusCancelled
		status = &cancelled
	}

	attachments, err := marshalAttachments(req.Attachments)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attachments")
	}

	update := &models.LeadUpdate{
		LeadID:      id,
		Stage:       req.Stage,
		Note:        req.Note,
		Probability: req.Probability,
		Attachments: attachments,
		UpdatedBy:   actor.UserID,
	}

	if err := s.repo.ApplyUpdate(ctx, update, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply stage transition")
	}

	return s.Get(ctx, id)
}

// AddNote appends a free-text note to the history. The lead's stage
// and status stay untouched.
func (s *LeadService) AddNote(ctx context.Context, id string, req NoteRequest, actor *models.JWTClaims) (*models.Lead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}

	lead, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	attachments, err := marshalAttachments(req.Attachments)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attachments")
	}

	if err := s.repo.InsertNote(ctx, &models.LeadUpdate{
		LeadID:      id,
		Stage:       lead.Stage,
		Note:        req.Note,
		Attachments: attachments,
		UpdatedBy:   actor.UserID,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add note")
	}

	return s.Get(ctx, id)
}

// Override writes directly to one or both lifecycle axes. Admin only;
// used for corrections like soft deletion (INACTIVE) or undoing a
// wrong transition.
func (s *LeadService) Override(ctx context.Context, id string, req OverrideRequest, actor *models.JWTClaims, meta models.LoginRequest) (*models.Lead, error) {
	if req.Status == nil && req.Stage == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to override")
	}
	if req.Status != nil && !models.ValidStatus(*req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", *req.Status))
	}
	if req.Stage != nil && !models.ValidStage(*req.Stage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", *req.Stage))
	}

	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}

	if req.Status != nil {
		if err := s.repo.SetStatus(ctx, id, *req.Status); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to override status")
		}
	}
	if req.Stage != nil {
		if err := s.repo.SetStage(ctx, id, *req.Stage); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to override stage")
		}
	}

	s.audit(ctx, actor, models.AuditActionLeadOverride, id,
		map[string]interface{}{"status": lead.Status, "stage": lead.Stage},
		map[string]interface{}{"status": req.Status, "stage": req.Stage}, meta)

	return s.Get(ctx, id)
}

// BulkAssign locks a set of pool leads to one user in a single
// transaction with a single notification. The lock window uses a
// 30-day month approximation, unlike the calendar months used by
// create, approve and claim.
func (s *LeadService) BulkAssign(ctx context.Context, req BulkAssignRequest, actor *models.JWTClaims, meta models.LoginRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk assign payload")
	}

	assignee, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
	}
	if !assignee.Active {
		return appErrors.Clone(appErrors.ErrValidation, "assignee account is inactive")
	}

	lockedUntil := s.now().Add(time.Duration(assignee.DefaultLockInMonths) * 30 * 24 * time.Hour)

	history := &models.LeadUpdate{
		Stage:     models.StageNew,
		Note:      fmt.Sprintf("Assigned to %s by %s", assignee.FullName, actor.FullName),
		UpdatedBy: actor.UserID,
		CreatedAt: s.now(),
	}
	notification := &models.Notification{
		UserID:  assignee.ID,
		Title:   "Leads assigned",
		Message: fmt.Sprintf("%d lead(s) have been assigned to you", len(req.LeadIDs)),
		Type:    models.NotificationInfo,
		Link:    "/leads",
	}

	if err := s.repo.BulkAssign(ctx, req.LeadIDs, assignee.ID, assignee.FullName, lockedUntil, history, notification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk assign leads")
	}

	s.audit(ctx, actor, models.AuditActionBulkAssign, assignee.ID, nil,
		map[string]interface{}{"lead_ids": req.LeadIDs, "locked_until": lockedUntil}, meta)

	return nil
}

// loadOwned fetches a lead and enforces write access: admins always,
// otherwise only the current assignee or creator.
func (s *LeadService) loadOwned(ctx context.Context, id string, actor *models.JWTClaims) (*models.Lead, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}

	if actor.Role == models.RoleAdmin {
		return lead, nil
	}
	if lead.AssignedToUserID != nil && *lead.AssignedToUserID == actor.UserID {
		return lead, nil
	}
	if lead.CreatedBy == actor.UserID {
		return lead, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "lead is not assigned to you")
}

func (s *LeadService) resolveRegionName(ctx context.Context, regionID string) (string, error) {
	region, err := s.regions.FindByID(ctx, regionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrValidation, "unknown region")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load region")
	}
	return region.Name, nil
}

func (s *LeadService) notify(ctx context.Context, userID, title, message string, kind models.NotificationType, link string) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Create(ctx, &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    kind,
		Link:    link,
	}); err != nil {
		s.logger.Warn("failed to create notification", zap.Error(err))
	}
}

func (s *LeadService) audit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValues, newValues map[string]interface{}, meta models.LoginRequest) {
	oldPayload, _ := json.Marshal(oldValues)
	newPayload, _ := json.Marshal(newValues)
	if oldValues == nil {
		oldPayload = nil
	}
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "leads",
		ResourceID: &resourceID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record lead audit log", zap.Error(err))
	}
}

func marshalAttachments(attachments []models.Attachment) (json.RawMessage, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	return json.Marshal(attachments)
}
