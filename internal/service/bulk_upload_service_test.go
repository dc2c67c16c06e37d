package service

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	"github.com/noah-isme/opportunity-tracker-api/internal/places"
	"github.com/noah-isme/opportunity-tracker-api/pkg/config"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
)

type bulkRepoStub struct {
	batches map[string]*models.BulkUploadBatch
	rows    map[string][]models.BulkUploadRow

	statusChanges []models.BatchStatus
	updatedRows   []*models.BulkUploadRow
	deletedRows   []string
}

func (s *bulkRepoStub) CreateBatch(ctx context.Context, batch *models.BulkUploadBatch, rows []models.BulkUploadRow) error {
	if batch.ID == "" {
		batch.ID = "batch-1"
	}
	if s.batches == nil {
		s.batches = map[string]*models.BulkUploadBatch{}
		s.rows = map[string][]models.BulkUploadRow{}
	}
	s.batches[batch.ID] = batch
	s.rows[batch.ID] = rows
	return nil
}

func (s *bulkRepoStub) FindBatch(ctx context.Context, id string) (*models.BulkUploadBatch, error) {
	if batch, ok := s.batches[id]; ok {
		copied := *batch
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *bulkRepoStub) ListBatches(ctx context.Context, createdBy string) ([]models.BulkUploadBatch, error) {
	var out []models.BulkUploadBatch
	for _, b := range s.batches {
		if b.CreatedBy == createdBy {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *bulkRepoStub) UpdateBatchStatus(ctx context.Context, id string, status models.BatchStatus) error {
	s.statusChanges = append(s.statusChanges, status)
	if batch, ok := s.batches[id]; ok {
		batch.Status = status
	}
	return nil
}

func (s *bulkRepoStub) ListRows(ctx context.Context, batchID string) ([]models.BulkUploadRow, error) {
	rows := make([]models.BulkUploadRow, len(s.rows[batchID]))
	copy(rows, s.rows[batchID])
	return rows, nil
}

func (s *bulkRepoStub) FindRow(ctx context.Context, id string) (*models.BulkUploadRow, error) {
	for _, rows := range s.rows {
		for i := range rows {
			if rows[i].ID == id {
				copied := rows[i]
				return &copied, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (s *bulkRepoStub) UpdateRow(ctx context.Context, row *models.BulkUploadRow) error {
	copied := *row
	s.updatedRows = append(s.updatedRows, &copied)
	for batchID, rows := range s.rows {
		for i := range rows {
			if rows[i].ID == row.ID || (rows[i].Position == row.Position && rows[i].BatchID == row.BatchID) {
				s.rows[batchID][i] = *row
			}
		}
	}
	return nil
}

func (s *bulkRepoStub) DeleteRow(ctx context.Context, id string) error {
	s.deletedRows = append(s.deletedRows, id)
	return nil
}

type bulkUserRepoStub struct {
	byName map[string]*models.User
	byID   map[string]*models.User
	logs   []*models.AuditLog
}

func (s *bulkUserRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

// Lookup is case-insensitive, matching the LOWER() comparison the real
// repository runs.
func (s *bulkUserRepoStub) FindByNameOrEmail(ctx context.Context, nameOrEmail string) (*models.User, error) {
	if user, ok := s.byName[strings.ToLower(nameOrEmail)]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *bulkUserRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

type bulkLeadRepoStub struct {
	created     []*models.Lead
	overwritten []*models.Lead
	existing    []models.Lead
}

func (s *bulkLeadRepoStub) Create(ctx context.Context, lead *models.Lead) error {
	s.created = append(s.created, lead)
	return nil
}

func (s *bulkLeadRepoStub) Overwrite(ctx context.Context, lead *models.Lead) error {
	s.overwritten = append(s.overwritten, lead)
	return nil
}

func (s *bulkLeadRepoStub) FindByNameAndZip(ctx context.Context, schoolName, zipCode, excludeID string) ([]models.Lead, error) {
	var out []models.Lead
	for _, lead := range s.existing {
		if lead.SchoolName == schoolName && lead.ZipCode == zipCode {
			out = append(out, lead)
		}
	}
	return out, nil
}

type placeSearchStub struct {
	predictions []places.Prediction
	details     *places.Details
	err         error
}

func (s *placeSearchStub) Autocomplete(ctx context.Context, input string) ([]places.Prediction, error) {
	return s.predictions, s.err
}

func (s *placeSearchStub) GetDetails(ctx context.Context, placeID string) (*places.Details, error) {
	return s.details, s.err
}

func newBulkFixture(repo *bulkRepoStub, users *bulkUserRepoStub, leads *bulkLeadRepoStub, search *placeSearchStub) *BulkUploadService {
	if repo.batches == nil {
		repo.batches = map[string]*models.BulkUploadBatch{}
		repo.rows = map[string][]models.BulkUploadRow{}
	}
	regions := &leadRegionRepoStub{regions: map[string]*models.Region{
		"region-1": {ID: "region-1", Name: "North"},
	}}
	svc := NewBulkUploadService(repo, users, leads, regions, &notificationSinkStub{}, search, NewValidator(), nil, config.BulkUploadConfig{
		Enabled: true,
		MaxRows: 100,
	})
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func buildWorkbook(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		record := make([]interface{}, len(row))
		for j, v := range row {
			record[j] = v
		}
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &record))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParsePersistsPendingRows(t *testing.T) {
	repo := &bulkRepoStub{}
	svc := newBulkFixture(repo, &bulkUserRepoStub{}, &bulkLeadRepoStub{}, &placeSearchStub{})

	buf := buildWorkbook(t, [][]string{
		{"Contact Person", "School Name", "Designation", "Incharge"},
		{"Priya", "Greenwood High", "Principal", "Sam Scout"},
		{"", "", "", ""},
		{"Raj", "Lakeside Academy", "Coordinator", "Sam Scout"},
	})

	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	batch, rows, err := svc.Parse(context.Background(), "leads.xlsx", buf, admin)
	require.NoError(t, err)

	assert.Equal(t, models.BatchParsed, batch.Status)
	assert.Equal(t, 2, batch.RowCount)
	require.Len(t, rows, 2)
	assert.Equal(t, "Greenwood High", rows[0].OriginalSchoolName)
	assert.Equal(t, models.RowPending, rows[0].Status)
	assert.Equal(t, "Lakeside Academy", rows[1].OriginalSchoolName)
}

func TestVerifyRowResolvesEverything(t *testing.T) {
	users := &bulkUserRepoStub{byName: map[string]*models.User{
		"sam scout": {ID: "u2", FullName: "Sam Scout", AssignedRegions: []string{"region-1"}},
	}}
	search := &placeSearchStub{
		predictions: []places.Prediction{{PlaceID: "p1", MainText: "Greenwood High"}},
		details: &places.Details{
			PlaceID:          "p1",
			Name:             "Greenwood High",
			FormattedAddress: "Sarjapur Rd, Bengaluru 560035",
			PostalCode:       "560035",
			PhoneNumber:      "080 1234 5678",
		},
	}
	svc := newBulkFixture(&bulkRepoStub{}, users, &bulkLeadRepoStub{}, search)

	row := &models.BulkUploadRow{
		OriginalSchoolName:    "greenwood",
		OriginalContactPerson: "Priya",
		OriginalDesignation:   "Principal",
		OriginalIncharge:      "Sam Scout",
		Status:                models.RowPending,
	}
	svc.verifyRow(context.Background(), row)

	assert.Equal(t, models.RowVerified, row.Status)
	assert.Equal(t, "Greenwood High", row.SchoolName)
	assert.Equal(t, "560035", row.ZipCode)
	assert.Equal(t, "u2", row.AssignedToUserID)
	assert.Equal(t, "region-1", row.RegionID)
	assert.Equal(t, "North", row.RegionName)
	assert.Equal(t, "Priya", row.ContactPerson)
}

func TestVerifyRowUserNotFound(t *testing.T) {
	users := &bulkUserRepoStub{byName: map[string]*models.User{}}
	svc := newBulkFixture(&bulkRepoStub{}, users, &bulkLeadRepoStub{}, &placeSearchStub{})

	row := &models.BulkUploadRow{OriginalSchoolName: "x", OriginalIncharge: "Nobody", Status: models.RowPending}
	svc.verifyRow(context.Background(), row)

	assert.Equal(t, models.RowUserNotFound, row.Status)
	assert.Contains(t, row.Message, "Nobody")
}

func TestVerifyRowMultipleRegionsDefaultsToFirst(t *testing.T) {
	users := &bulkUserRepoStub{byName: map[string]*models.User{
		"sam scout": {ID: "u2", FullName: "Sam Scout", AssignedRegions: []string{"region-1", "region-2"}},
	}}
	search := &placeSearchStub{
		predictions: []places.Prediction{{PlaceID: "p1"}},
		details:     &places.Details{PlaceID: "p1", Name: "Greenwood High", PostalCode: "560035"},
	}
	svc := newBulkFixture(&bulkRepoStub{}, users, &bulkLeadRepoStub{}, search)

	row := &models.BulkUploadRow{OriginalSchoolName: "greenwood", OriginalIncharge: "Sam Scout", Status: models.RowPending}
	svc.verifyRow(context.Background(), row)

	assert.Equal(t, models.RowVerified, row.Status)
	assert.Equal(t, "region-1", row.RegionID)
	assert.Contains(t, row.Message, "Multiple regions assigned - Defaulted to first")
}

func TestVerifyRowNoMatchAndMultipleMatches(t *testing.T) {
	users := &bulkUserRepoStub{byName: map[string]*models.User{
		"sam scout": {ID: "u2", FullName: "Sam Scout", AssignedRegions: []string{"region-1"}},
	}}

	svc := newBulkFixture(&bulkRepoStub{}, users, &bulkLeadRepoStub{}, &placeSearchStub{})
	row := &models.BulkUploadRow{OriginalSchoolName: "ghost school", OriginalIncharge: "Sam Scout", Status: models.RowPending}
	svc.verifyRow(context.Background(), row)
	assert.Equal(t, models.RowNoMatch, row.Status)

	svc = newBulkFixture(&bulkRepoStub{}, users, &bulkLeadRepoStub{}, &placeSearchStub{
		predictions: []places.Prediction{
			{PlaceID: "p1", MainText: "Common Name School", Description: "Common Name School, East Town"},
			{PlaceID: "p2", MainText: "Common Name Academy", Description: "Common Name Academy, West Town"},
		},
	})
	row = &models.BulkUploadRow{OriginalSchoolName: "common name", OriginalIncharge: "Sam Scout", Status: models.RowPending}
	svc.verifyRow(context.Background(), row)
	assert.Equal(t, models.RowMultipleMatches, row.Status)
	assert.Contains(t, row.Message, "2 places match")
}

func TestVerifyRowNarrowsByRegion(t *testing.T) {
	users := &bulkUserRepoStub{byName: map[string]*models.User{
		"sam scout": {ID: "u2", FullName: "Sam Scout", AssignedRegions: []string{"region-1"}},
	}}
	search := &placeSearchStub{
		predictions: []places.Prediction{
			{PlaceID: "p1", MainText: "Greenwood High", Description: "Greenwood High, North, Bengaluru"},
			{PlaceID: "p2", MainText: "Greenwood High", Description: "Greenwood High, South, Mysuru"},
		},
		details: &places.Details{PlaceID: "p1", Name: "Greenwood High", PostalCode: "560035"},
	}
	svc := newBulkFixture(&bulkRepoStub{}, users, &bulkLeadRepoStub{}, search)

	row := &models.BulkUploadRow{OriginalSchoolName: "Greenwood High", OriginalIncharge: "Sam Scout", Status: models.RowPending}
	svc.verifyRow(context.Background(), row)

	assert.Equal(t, models.RowVerified, row.Status)
	assert.Contains(t, row.Message, "Auto-selected via Region")
	assert.Equal(t, "560035", row.ZipCode)
}

func TestVerifyRowNarrowsByExactName(t *testing.T) {
	users := &bulkUserRepoStub{byName: map[string]*models.User{
		"sam scout": {ID: "u2", FullName: "Sam Scout", AssignedRegions: []string{"region-1"}},
	}}
	search := &placeSearchStub{
		predictions: []places.Prediction{
			{PlaceID: "p1", MainText: "Greenwood High", Description: "Greenwood High, North, Bengaluru"},
			{PlaceID: "p2", MainText: "Greenwood High International", Description: "Greenwood High International, North, Bengaluru"},
		},
		details: &places.Details{PlaceID: "p1", Name: "Greenwood High", PostalCode: "560035"},
	}
	svc := newBulkFixture(&bulkRepoStub{}, users, &bulkLeadRepoStub{}, search)

	row := &models.BulkUploadRow{OriginalSchoolName: "greenwood high", OriginalIncharge: "Sam Scout", Status: models.RowPending}
	svc.verifyRow(context.Background(), row)

	assert.Equal(t, models.RowVerified, row.Status)
	assert.Contains(t, row.Message, "Auto-selected via Region + Exact Name")
}

func TestVerifyRowDuplicateByNameAndZipOnly(t *testing.T) {
	users := &bulkUserRepoStub{byName: map[string]*models.User{
		"sam scout": {ID: "u2", FullName: "Sam Scout", AssignedRegions: []string{"region-1"}},
	}}
	search := &placeSearchStub{
		predictions: []places.Prediction{{PlaceID: "p1", MainText: "Greenwood High"}},
		details: &places.Details{
			PlaceID:     "p1",
			Name:        "Greenwood High",
			PostalCode:  "560035",
			PhoneNumber: "080 1234 5678",
		},
	}

	// Same phone on an unrelated lead does not mark the row.
	leads := &bulkLeadRepoStub{existing: []models.Lead{
		{ID: "other-1", SchoolName: "Lakeside Academy", ZipCode: "560001", ContactPhone: "08012345678", Stage: models.StageNegotiation},
	}}
	svc := newBulkFixture(&bulkRepoStub{}, users, leads, search)
	row := &models.BulkUploadRow{OriginalSchoolName: "Greenwood High", OriginalIncharge: "Sam Scout", Status: models.RowPending}
	svc.verifyRow(context.Background(), row)
	assert.Equal(t, models.RowVerified, row.Status)

	// Same name and zip does, with the stage deciding update vs skip.
	leads = &bulkLeadRepoStub{existing: []models.Lead{
		{ID: "existing-1", SchoolName: "Greenwood High", ZipCode: "560035", Stage: models.StageNegotiation},
	}}
	svc = newBulkFixture(&bulkRepoStub{}, users, leads, search)
	row = &models.BulkUploadRow{OriginalSchoolName: "Greenwood High", OriginalIncharge: "Sam Scout", Status: models.RowPending}
	svc.verifyRow(context.Background(), row)
	assert.Equal(t, models.RowDuplicate, row.Status)
	assert.Contains(t, row.Message, "Will Skip")

	leads.existing[0].Stage = models.StageNew
	svc = newBulkFixture(&bulkRepoStub{}, users, leads, search)
	row = &models.BulkUploadRow{OriginalSchoolName: "Greenwood High", OriginalIncharge: "Sam Scout", Status: models.RowPending}
	svc.verifyRow(context.Background(), row)
	assert.Equal(t, models.RowDuplicate, row.Status)
	assert.Contains(t, row.Message, "Will Update")
}

func TestCommitSplitsCreateAndUpdate(t *testing.T) {
	repo := &bulkRepoStub{
		batches: map[string]*models.BulkUploadBatch{
			"batch-1": {ID: "batch-1", Status: models.BatchVerified, CreatedBy: "admin"},
		},
		rows: map[string][]models.BulkUploadRow{
			"batch-1": {
				{ID: "r1", BatchID: "batch-1", Position: 1, SchoolName: "New School", ZipCode: "560001", AssignedToUserID: "u2", Status: models.RowVerified},
				{ID: "r2", BatchID: "batch-1", Position: 2, SchoolName: "Old School", ZipCode: "560002", AssignedToUserID: "u2", Status: models.RowDuplicate, Message: "Lead exists (NEW stage) - Will Update"},
				{ID: "r3", BatchID: "batch-1", Position: 3, SchoolName: "Worked School", ZipCode: "560003", Status: models.RowDuplicate, Message: "Lead exists (NEGOTIATION stage) - Will Skip"},
				{ID: "r4", BatchID: "batch-1", Position: 4, SchoolName: "Ghost", Status: models.RowNoMatch},
			},
		},
	}
	users := &bulkUserRepoStub{byID: map[string]*models.User{
		"u2": {ID: "u2", FullName: "Sam Scout", DefaultLockInMonths: 3, Active: true},
	}}
	leads := &bulkLeadRepoStub{existing: []models.Lead{{ID: "existing-1", SchoolName: "Old School", ZipCode: "560002", Stage: models.StageNew}}}
	svc := newBulkFixture(repo, users, leads, &placeSearchStub{})

	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	batch, err := svc.Commit(context.Background(), "batch-1", admin, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.BatchCommitted, batch.Status)

	require.Len(t, leads.created, 1)
	assert.Equal(t, "New School", leads.created[0].SchoolName)
	assert.Equal(t, models.StatusLocked, leads.created[0].Status)
	assert.Equal(t, models.StageNew, leads.created[0].Stage)
	require.NotNil(t, leads.created[0].LockedUntil)
	assert.Equal(t, time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC), *leads.created[0].LockedUntil)

	require.Len(t, leads.overwritten, 1)
	assert.Equal(t, "existing-1", leads.overwritten[0].ID)

	require.Len(t, users.logs, 1)
	assert.Equal(t, models.AuditActionBulkCommit, users.logs[0].Action)
}

func TestCommitRequiresVerifiedBatch(t *testing.T) {
	repo := &bulkRepoStub{
		batches: map[string]*models.BulkUploadBatch{
			"batch-1": {ID: "batch-1", Status: models.BatchVerifying},
		},
		rows: map[string][]models.BulkUploadRow{},
	}
	svc := newBulkFixture(repo, &bulkUserRepoStub{}, &bulkLeadRepoStub{}, &placeSearchStub{})

	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	_, err := svc.Commit(context.Background(), "batch-1", admin, models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestVerifyBatchStopsOnCancellation(t *testing.T) {
	repo := &bulkRepoStub{
		batches: map[string]*models.BulkUploadBatch{
			"batch-1": {ID: "batch-1", Status: models.BatchCancelled},
		},
		rows: map[string][]models.BulkUploadRow{
			"batch-1": {
				{ID: "r1", BatchID: "batch-1", Position: 1, OriginalSchoolName: "a", Status: models.RowPending},
			},
		},
	}
	svc := newBulkFixture(repo, &bulkUserRepoStub{}, &bulkLeadRepoStub{}, &placeSearchStub{})

	require.NoError(t, svc.verifyBatch(context.Background(), "batch-1"))
	assert.Empty(t, repo.updatedRows)
	assert.Equal(t, models.BatchCancelled, repo.batches["batch-1"].Status)
}

func TestEditRowRemarksVerified(t *testing.T) {
	repo := &bulkRepoStub{
		batches: map[string]*models.BulkUploadBatch{"batch-1": {ID: "batch-1", Status: models.BatchVerified}},
		rows: map[string][]models.BulkUploadRow{
			"batch-1": {{ID: "r1", BatchID: "batch-1", Position: 1, Status: models.RowNoMatch}},
		},
	}
	svc := newBulkFixture(repo, &bulkUserRepoStub{}, &bulkLeadRepoStub{}, &placeSearchStub{})

	row, err := svc.EditRow(context.Background(), "r1", EditRowRequest{
		SchoolName:    "Greenwood High",
		Address:       "Sarjapur Rd",
		ZipCode:       "560035",
		ContactPerson: "Priya",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RowVerified, row.Status)
	assert.Equal(t, "Corrected manually", row.Message)
}

func TestTemplateHasExpectedColumns(t *testing.T) {
	svc := newBulkFixture(&bulkRepoStub{}, &bulkUserRepoStub{}, &bulkLeadRepoStub{}, &placeSearchStub{})

	payload, err := svc.Template()
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Contact Person", "School Name", "Designation", "Incharge"}, rows[0])
}

func TestResultsAnnotatesEveryRow(t *testing.T) {
	repo := &bulkRepoStub{
		batches: map[string]*models.BulkUploadBatch{"batch-1": {ID: "batch-1", FileName: "leads.xlsx", Status: models.BatchVerified}},
		rows: map[string][]models.BulkUploadRow{
			"batch-1": {
				{ID: "r1", BatchID: "batch-1", Position: 1, OriginalSchoolName: "Greenwood", SchoolName: "Greenwood High", RegionName: "North", Status: models.RowVerified},
				{ID: "r2", BatchID: "batch-1", Position: 2, OriginalSchoolName: "Lakeside", Status: models.RowUserNotFound, Message: "Incharge not found"},
			},
		},
	}
	svc := newBulkFixture(repo, &bulkUserRepoStub{}, &bulkLeadRepoStub{}, &placeSearchStub{})

	name, payload, err := svc.Results(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, "leads-results.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Greenwood High", rows[1][5])
	assert.Equal(t, "VERIFIED", rows[1][10])
	assert.Equal(t, "Incharge not found", rows[2][11])
}
