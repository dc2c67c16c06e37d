package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
)

type leadRepoStub struct {
	leads   map[string]*models.Lead
	updates []models.LeadUpdate

	created      []*models.Lead
	notes        []*models.LeadUpdate
	applied      []*models.LeadUpdate
	appliedState []*models.LeadStatus

	approveAffected bool
	approvedUntil   time.Time
	rejectAffected  bool
	claimAffected   bool
	claimArgs       []interface{}

	bulkLeadIDs      []string
	bulkLockedUntil  time.Time
	bulkNotification *models.Notification

	byNameZip []models.Lead
	byPhone   []models.Lead
	byName    []models.Lead
	lookupErr error
}

func (s *leadRepoStub) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	if lead, ok := s.leads[id]; ok {
		copied := *lead
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *leadRepoStub) ListUpdates(ctx context.Context, leadID string) ([]models.LeadUpdate, error) {
	return s.updates, nil
}

func (s *leadRepoStub) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error) {
	var out []models.Lead
	for _, lead := range s.leads {
		out = append(out, *lead)
	}
	return out, len(out), nil
}

func (s *leadRepoStub) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = "lead-" + lead.SchoolName
	}
	s.created = append(s.created, lead)
	return nil
}

func (s *leadRepoStub) Update(ctx context.Context, lead *models.Lead) error { return nil }

func (s *leadRepoStub) Approve(ctx context.Context, id string, lockedUntil time.Time) (bool, error) {
	s.approvedUntil = lockedUntil
	return s.approveAffected, nil
}

func (s *leadRepoStub) Reject(ctx context.Context, id string) (bool, error) {
	return s.rejectAffected, nil
}

func (s *leadRepoStub) Claim(ctx context.Context, id, userID, userName string, lockedUntil time.Time) (bool, error) {
	s.claimArgs = []interface{}{id, userID, userName, lockedUntil}
	return s.claimAffected, nil
}

func (s *leadRepoStub) SetStatus(ctx context.Context, id string, status models.LeadStatus) error {
	if lead, ok := s.leads[id]; ok {
		lead.Status = status
	}
	return nil
}

func (s *leadRepoStub) SetStage(ctx context.Context, id string, stage models.LeadStage) error {
	if lead, ok := s.leads[id]; ok {
		lead.Stage = stage
	}
	return nil
}

func (s *leadRepoStub) ApplyUpdate(ctx context.Context, update *models.LeadUpdate, status *models.LeadStatus) error {
	s.applied = append(s.applied, update)
	s.appliedState = append(s.appliedState, status)
	return nil
}

func (s *leadRepoStub) InsertNote(ctx context.Context, update *models.LeadUpdate) error {
	s.notes = append(s.notes, update)
	return nil
}

func (s *leadRepoStub) BulkAssign(ctx context.Context, leadIDs []string, userID, userName string, lockedUntil time.Time, history *models.LeadUpdate, notification *models.Notification) error {
	s.bulkLeadIDs = leadIDs
	s.bulkLockedUntil = lockedUntil
	s.bulkNotification = notification
	return nil
}

func (s *leadRepoStub) FindByNameAndZip(ctx context.Context, schoolName, zipCode, excludeID string) ([]models.Lead, error) {
	return s.byNameZip, s.lookupErr
}

func (s *leadRepoStub) FindByPhone(ctx context.Context, contactPhone, excludeID string) ([]models.Lead, error) {
	return s.byPhone, s.lookupErr
}

func (s *leadRepoStub) FindByName(ctx context.Context, schoolName, zipCode, excludeID string) ([]models.Lead, error) {
	return s.byName, s.lookupErr
}

type leadUserRepoStub struct {
	users map[string]*models.User
	logs  []*models.AuditLog
}

func (s *leadUserRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *leadUserRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

type leadRegionRepoStub struct {
	regions map[string]*models.Region
}

func (s *leadRegionRepoStub) FindByID(ctx context.Context, id string) (*models.Region, error) {
	if region, ok := s.regions[id]; ok {
		return region, nil
	}
	return nil, sql.ErrNoRows
}

type notificationSinkStub struct {
	created []*models.Notification
}

func (s *notificationSinkStub) Create(ctx context.Context, n *models.Notification) error {
	s.created = append(s.created, n)
	return nil
}

func newLeadServiceFixture(repo *leadRepoStub, users *leadUserRepoStub) (*LeadService, *notificationSinkStub) {
	if repo.leads == nil {
		repo.leads = map[string]*models.Lead{}
	}
	notifications := &notificationSinkStub{}
	regions := &leadRegionRepoStub{regions: map[string]*models.Region{
		"region-1": {ID: "region-1", Name: "North", Active: true},
	}}
	svc := NewLeadService(repo, users, regions, notifications, NewDuplicateService(repo, nil), NewValidator(), nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }
	return svc, notifications
}

func distributorClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleDistributor, FullName: "Dana Seller"}
}

func validCreateRequest() CreateLeadRequest {
	return CreateLeadRequest{
		SchoolName:    "Greenwood High",
		RegionID:      "region-1",
		Address:       "Sarjapur Rd",
		ZipCode:       "560035",
		ContactPerson: "Priya",
		ContactPhone:  "+91 98765 43210",
	}
}

func TestCreateAutoApprovesWithoutDuplicates(t *testing.T) {
	repo := &leadRepoStub{}
	users := &leadUserRepoStub{users: map[string]*models.User{
		"u1": {ID: "u1", FullName: "Dana Seller", DefaultLockInMonths: 3, Active: true},
	}}
	svc, _ := newLeadServiceFixture(repo, users)

	lead, err := svc.Create(context.Background(), validCreateRequest(), distributorClaims("u1"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusLocked, lead.Status)
	assert.Equal(t, models.StageNew, lead.Stage)
	require.NotNil(t, lead.AssignedToUserID)
	assert.Equal(t, "u1", *lead.AssignedToUserID)
	require.NotNil(t, lead.LockedUntil)
	assert.Equal(t, time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC), *lead.LockedUntil)
	assert.Equal(t, "919876543210", lead.ContactPhone)
	assert.Equal(t, "North", lead.RegionName)
	require.Len(t, repo.notes, 1)
}

func TestCreateParksSimilarMatchInPending(t *testing.T) {
	repo := &leadRepoStub{
		byName: []models.Lead{{ID: "other", SchoolName: "Greenwood High", ZipCode: "110001"}},
	}
	users := &leadUserRepoStub{users: map[string]*models.User{
		"u1": {ID: "u1", FullName: "Dana Seller", DefaultLockInMonths: 3, Active: true},
	}}
	svc, _ := newLeadServiceFixture(repo, users)

	lead, err := svc.Create(context.Background(), validCreateRequest(), distributorClaims("u1"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, lead.Status)
	assert.Nil(t, lead.AssignedToUserID)
	assert.Nil(t, lead.LockedUntil)
}

func TestCreateRefusesExactDuplicate(t *testing.T) {
	repo := &leadRepoStub{
		byNameZip: []models.Lead{{ID: "other", SchoolName: "Greenwood High", ZipCode: "560035"}},
	}
	users := &leadUserRepoStub{users: map[string]*models.User{
		"u1": {ID: "u1", DefaultLockInMonths: 3, Active: true},
	}}
	svc, _ := newLeadServiceFixture(repo, users)

	_, err := svc.Create(context.Background(), validCreateRequest(), distributorClaims("u1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateLead.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestCreateRejectsBadZip(t *testing.T) {
	repo := &leadRepoStub{}
	users := &leadUserRepoStub{users: map[string]*models.User{"u1": {ID: "u1", Active: true}}}
	svc, _ := newLeadServiceFixture(repo, users)

	req := validCreateRequest()
	req.ZipCode = "1234"
	_, err := svc.Create(context.Background(), req, distributorClaims("u1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApproveLocksToCreator(t *testing.T) {
	repo := &leadRepoStub{
		leads: map[string]*models.Lead{
			"l1": {ID: "l1", SchoolName: "Greenwood High", Status: models.StatusPending, Stage: models.StageNew, CreatedBy: "u1"},
		},
		approveAffected: true,
	}
	users := &leadUserRepoStub{users: map[string]*models.User{
		"u1":    {ID: "u1", FullName: "Dana Seller", DefaultLockInMonths: 6},
		"admin": {ID: "admin", FullName: "Ava Admin"},
	}}
	svc, notifications := newLeadServiceFixture(repo, users)

	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin, FullName: "Ava Admin"}
	_, err := svc.Approve(context.Background(), "l1", 0, admin, models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC), repo.approvedUntil)
	require.Len(t, notifications.created, 1)
	assert.Equal(t, "u1", notifications.created[0].UserID)
	require.Len(t, users.logs, 1)
	assert.Equal(t, models.AuditActionLeadApprove, users.logs[0].Action)
}

func TestApproveLockMonthsOverride(t *testing.T) {
	repo := &leadRepoStub{
		leads: map[string]*models.Lead{
			"l1": {ID: "l1", SchoolName: "Greenwood High", Status: models.StatusPending, Stage: models.StageNew, CreatedBy: "u1"},
		},
		approveAffected: true,
	}
	users := &leadUserRepoStub{users: map[string]*models.User{
		"u1":    {ID: "u1", FullName: "Dana Seller", DefaultLockInMonths: 6},
		"admin": {ID: "admin", FullName: "Ava Admin"},
	}}
	svc, _ := newLeadServiceFixture(repo, users)

	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	_, err := svc.Approve(context.Background(), "l1", 1, admin, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC), repo.approvedUntil)

	_, err = svc.Approve(context.Background(), "l1", 4, admin, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApproveConflictsWhenNotPending(t *testing.T) {
	repo := &leadRepoStub{
		leads: map[string]*models.Lead{
			"l1": {ID: "l1", Status: models.StatusLocked, CreatedBy: "u1"},
		},
		approveAffected: false,
	}
	users := &leadUserRepoStub{users: map[string]*models.User{"u1": {ID: "u1", DefaultLockInMonths: 3}}}
	svc, _ := newLeadServiceFixture(repo, users)

	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	_, err := svc.Approve(context.Background(), "l1", 0, admin, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestClaimConflictsWhenNotInPool(t *testing.T) {
	repo := &leadRepoStub{
		leads:         map[string]*models.Lead{"l1": {ID: "l1", Status: models.StatusLocked}},
		claimAffected: false,
	}
	users := &leadUserRepoStub{users: map[string]*models.User{
		"u2": {ID: "u2", FullName: "Sam Scout", DefaultLockInMonths: 1, Active: true},
	}}
	svc, _ := newLeadServiceFixture(repo, users)

	_, err := svc.Claim(context.Background(), "l1", distributorClaims("u2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestClaimUsesCalendarMonths(t *testing.T) {
	repo := &leadRepoStub{
		leads:         map[string]*models.Lead{"l1": {ID: "l1", Status: models.StatusPool}},
		claimAffected: true,
	}
	users := &leadUserRepoStub{users: map[string]*models.User{
		"u2": {ID: "u2", FullName: "Sam Scout", DefaultLockInMonths: 1, Active: true},
	}}
	svc, _ := newLeadServiceFixture(repo, users)

	_, err := svc.Claim(context.Background(), "l1", distributorClaims("u2"))
	require.NoError(t, err)
	require.Len(t, repo.claimArgs, 4)
	assert.Equal(t, time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC), repo.claimArgs[3])
}

func TestStageTransitionSyncsTerminalStatus(t *testing.T) {
	assigned := "u1"
	repo := &leadRepoStub{
		leads: map[string]*models.Lead{
			"l1": {ID: "l1", Status: models.StatusLocked, Stage: models.StageNegotiation, AssignedToUserID: &assigned, CreatedBy: "u1"},
		},
	}
	users := &leadUserRepoStub{users: map[string]*models.User{"u1": {ID: "u1"}}}
	svc, _ := newLeadServiceFixture(repo, users)

	_, err := svc.AddStageTransition(context.Background(), "l1", StageTransitionRequest{
		Stage: models.StageConverted,
		Note:  "Signed the contract",
	}, distributorClaims("u1"))
	require.NoError(t, err)

	require.Len(t, repo.applied, 1)
	require.NotNil(t, repo.appliedState[0])
	assert.Equal(t, models.StatusConverted, *repo.appliedState[0])
}

func TestStageTransitionRejectsUnknownStage(t *testing.T) {
	assigned := "u1"
	repo := &leadRepoStub{
		leads: map[string]*models.Lead{
			"l1": {ID: "l1", AssignedToUserID: &assigned, CreatedBy: "u1"},
		},
	}
	users := &leadUserRepoStub{users: map[string]*models.User{"u1": {ID: "u1"}}}
	svc, _ := newLeadServiceFixture(repo, users)

	_, err := svc.AddStageTransition(context.Background(), "l1", StageTransitionRequest{
		Stage: "LOST_INTEREST",
	}, distributorClaims("u1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.applied)
}

func TestStageTransitionRejectsOffStepProbability(t *testing.T) {
	assigned := "u1"
	repo := &leadRepoStub{
		leads: map[string]*models.Lead{
			"l1": {ID: "l1", AssignedToUserID: &assigned, CreatedBy: "u1"},
		},
	}
	users := &leadUserRepoStub{users: map[string]*models.User{"u1": {ID: "u1"}}}
	svc, _ := newLeadServiceFixture(repo, users)

	offStep := 33
	_, err := svc.AddStageTransition(context.Background(), "l1", StageTransitionRequest{
		Stage:       models.StageNegotiation,
		Probability: &offStep,
	}, distributorClaims("u1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.applied)

	onStep := 95
	_, err = svc.AddStageTransition(context.Background(), "l1", StageTransitionRequest{
		Stage:       models.StageNegotiation,
		Probability: &onStep,
	}, distributorClaims("u1"))
	require.NoError(t, err)
}

func TestStageTransitionForbiddenForNonOwner(t *testing.T) {
	assigned := "u1"
	repo := &leadRepoStub{
		leads: map[string]*models.Lead{
			"l1": {ID: "l1", AssignedToUserID: &assigned, CreatedBy: "u1"},
		},
	}
	users := &leadUserRepoStub{users: map[string]*models.User{}}
	svc, _ := newLeadServiceFixture(repo, users)

	_, err := svc.AddStageTransition(context.Background(), "l1", StageTransitionRequest{
		Stage: models.StageContacted,
	}, distributorClaims("u9"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestBulkAssignUsesThirtyDayMonths(t *testing.T) {
	repo := &leadRepoStub{
		leads: map[string]*models.Lead{"l1": {ID: "l1"}, "l2": {ID: "l2"}},
	}
	users := &leadUserRepoStub{users: map[string]*models.User{
		"u2": {ID: "u2", FullName: "Sam Scout", DefaultLockInMonths: 3, Active: true},
	}}
	svc, _ := newLeadServiceFixture(repo, users)

	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin, FullName: "Ava Admin"}
	err := svc.BulkAssign(context.Background(), BulkAssignRequest{
		LeadIDs: []string{"l1", "l2"},
		UserID:  "u2",
	}, admin, models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{"l1", "l2"}, repo.bulkLeadIDs)
	// 3 months at 30 days each, not calendar months.
	assert.Equal(t, time.Date(2026, 6, 13, 10, 0, 0, 0, time.UTC), repo.bulkLockedUntil)
	require.NotNil(t, repo.bulkNotification)
	assert.Equal(t, "u2", repo.bulkNotification.UserID)
}

func TestBulkAssignRejectsInactiveAssignee(t *testing.T) {
	repo := &leadRepoStub{}
	users := &leadUserRepoStub{users: map[string]*models.User{
		"u2": {ID: "u2", Active: false},
	}}
	svc, _ := newLeadServiceFixture(repo, users)

	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	err := svc.BulkAssign(context.Background(), BulkAssignRequest{LeadIDs: []string{"l1"}, UserID: "u2"}, admin, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOverrideValidatesEnums(t *testing.T) {
	repo := &leadRepoStub{leads: map[string]*models.Lead{"l1": {ID: "l1", Status: models.StatusLocked, Stage: models.StageNew}}}
	users := &leadUserRepoStub{users: map[string]*models.User{}}
	svc, _ := newLeadServiceFixture(repo, users)

	bad := models.LeadStatus("GONE")
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	_, err := svc.Override(context.Background(), "l1", OverrideRequest{Status: &bad}, admin, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOverrideSoftDeletes(t *testing.T) {
	repo := &leadRepoStub{leads: map[string]*models.Lead{"l1": {ID: "l1", Status: models.StatusLocked, Stage: models.StageNew}}}
	users := &leadUserRepoStub{users: map[string]*models.User{}}
	svc, _ := newLeadServiceFixture(repo, users)

	inactive := models.StatusInactive
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	lead, err := svc.Override(context.Background(), "l1", OverrideRequest{Status: &inactive}, admin, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, lead.Status)
	require.Len(t, users.logs, 1)
	assert.Equal(t, models.AuditActionLeadOverride, users.logs[0].Action)
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	deadline := now.Add(10*24*time.Hour + time.Hour)
	lead := &models.Lead{LockedUntil: &deadline}
	assert.Equal(t, 10, lead.DaysRemaining(now))
	assert.False(t, lead.LockExpired(now))

	past := now.Add(-time.Hour)
	lead.LockedUntil = &past
	assert.Equal(t, 0, lead.DaysRemaining(now))
	assert.True(t, lead.LockExpired(now))

	lead.LockedUntil = nil
	assert.Equal(t, 0, lead.DaysRemaining(now))
	assert.False(t, lead.LockExpired(now))
}
