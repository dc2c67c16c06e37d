package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	"github.com/noah-isme/opportunity-tracker-api/internal/places"
	"github.com/noah-isme/opportunity-tracker-api/pkg/config"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
	"github.com/noah-isme/opportunity-tracker-api/pkg/jobs"
	"github.com/noah-isme/opportunity-tracker-api/pkg/storage"
)

type bulkUploadRepository interface {
	CreateBatch(ctx context.Context, batch *models.BulkUploadBatch, rows []models.BulkUploadRow) error
	FindBatch(ctx context.Context, id string) (*models.BulkUploadBatch, error)
	ListBatches(ctx context.Context, createdBy string) ([]models.BulkUploadBatch, error)
	UpdateBatchStatus(ctx context.Context, id string, status models.BatchStatus) error
	ListRows(ctx context.Context, batchID string) ([]models.BulkUploadRow, error)
	FindRow(ctx context.Context, id string) (*models.BulkUploadRow, error)
	UpdateRow(ctx context.Context, row *models.BulkUploadRow) error
	DeleteRow(ctx context.Context, id string) error
}

type bulkUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByNameOrEmail(ctx context.Context, nameOrEmail string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type bulkLeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	Overwrite(ctx context.Context, lead *models.Lead) error
	FindByNameAndZip(ctx context.Context, schoolName, zipCode, excludeID string) ([]models.Lead, error)
}

type placeSearcher interface {
	Autocomplete(ctx context.Context, input string) ([]places.Prediction, error)
	GetDetails(ctx context.Context, placeID string) (*places.Details, error)
}

// EditRowRequest corrects a row before commit. Saving a correction
// re-marks the row VERIFIED.
type EditRowRequest struct {
	SchoolName    string `json:"school_name" validate:"required"`
	Address       string `json:"address" validate:"required"`
	ZipCode       string `json:"zip_code" validate:"required,zipcode"`
	Landmark      string `json:"landmark"`
	ContactPerson string `json:"contact_person" validate:"required"`
	Designation   string `json:"designation"`
	ContactPhone  string `json:"contact_phone" validate:"omitempty,phone"`
	ContactEmail  string `json:"contact_email" validate:"omitempty,email"`
}

// BulkUploadService runs the spreadsheet intake pipeline: parse,
// background verification against the place search and the duplicate
// index, manual correction and the final commit into the lead store.
type BulkUploadService struct {
	repo          bulkUploadRepository
	users         bulkUserRepository
	leads         bulkLeadRepository
	regions       leadRegionRepository
	notifications leadNotificationRepository
	placeSearch   placeSearcher
	archive       *storage.LocalStorage
	queue         *jobs.Queue
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           config.BulkUploadConfig
	now           func() time.Time
}

// NewBulkUploadService constructs the pipeline and its worker queue.
// Call Start before enqueueing verification runs and Stop on
// shutdown.
func NewBulkUploadService(repo bulkUploadRepository, users bulkUserRepository, leads bulkLeadRepository, regions leadRegionRepository, notifications leadNotificationRepository, placeSearch placeSearcher, validate *validator.Validate, logger *zap.Logger, cfg config.BulkUploadConfig) *BulkUploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	s := &BulkUploadService{
		repo:          repo,
		users:         users,
		leads:         leads,
		regions:       regions,
		notifications: notifications,
		placeSearch:   placeSearch,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("bulk-verify", s.handleVerifyJob, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// SetArchive keeps a copy of every uploaded workbook on disk. Archive
// failures never block the pipeline.
func (s *BulkUploadService) SetArchive(archive *storage.LocalStorage) {
	s.archive = archive
}

// Start launches the verification workers.
func (s *BulkUploadService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the verification workers.
func (s *BulkUploadService) Stop() {
	s.queue.Stop()
}

// Parse reads an uploaded spreadsheet and persists it as a batch of
// PENDING rows. Expected columns: contact person, school name,
// designation, incharge.
func (s *BulkUploadService) Parse(ctx context.Context, fileName string, reader io.Reader, actor *models.JWTClaims) (*models.BulkUploadBatch, []models.BulkUploadRow, error) {
	if !s.cfg.Enabled {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "bulk upload is disabled")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read upload")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read spreadsheet")
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet has no sheets")
	}

	rawRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read sheet rows")
	}
	if len(rawRows) < 2 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet has no data rows")
	}

	dataRows := rawRows[1:]
	if s.cfg.MaxRows > 0 && len(dataRows) > s.cfg.MaxRows {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("spreadsheet exceeds the %d row limit", s.cfg.MaxRows))
	}

	rows := make([]models.BulkUploadRow, 0, len(dataRows))
	for i, raw := range dataRows {
		row := models.BulkUploadRow{
			Position:              i + 1,
			OriginalContactPerson: cell(raw, 0),
			OriginalSchoolName:    cell(raw, 1),
			OriginalDesignation:   cell(raw, 2),
			OriginalIncharge:      cell(raw, 3),
			Status:                models.RowPending,
		}
		if row.OriginalSchoolName == "" {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "no usable rows found")
	}

	batch := &models.BulkUploadBatch{
		FileName:  fileName,
		Status:    models.BatchParsed,
		RowCount:  len(rows),
		CreatedBy: actor.UserID,
	}
	if err := s.repo.CreateBatch(ctx, batch, rows); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist batch")
	}

	if s.archive != nil {
		if _, err := s.archive.Save(batch.ID+"-"+fileName, data); err != nil {
			s.logger.Warn("failed to archive uploaded workbook", zap.String("batch_id", batch.ID), zap.Error(err))
		}
	}
	return batch, rows, nil
}

// GetBatch returns a batch with its rows in spreadsheet order.
func (s *BulkUploadService) GetBatch(ctx context.Context, id string) (*models.BulkUploadBatch, []models.BulkUploadRow, error) {
	batch, err := s.repo.FindBatch(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	rows, err := s.repo.ListRows(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch rows")
	}
	return batch, rows, nil
}

// ListBatches returns the caller's batches, newest first.
func (s *BulkUploadService) ListBatches(ctx context.Context, actor *models.JWTClaims) ([]models.BulkUploadBatch, error) {
	batches, err := s.repo.ListBatches(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	return batches, nil
}

var bulkTemplateHeaders = []string{"Contact Person", "School Name", "Designation", "Incharge"}

// Template renders an empty upload workbook with the expected column
// order.
func (s *BulkUploadService) Template() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	sheet := f.GetSheetName(0)
	for i, header := range bulkTemplateHeaders {
		cellName, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build template")
		}
		if err := f.SetCellValue(sheet, cellName, header); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build template")
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	return buf.Bytes(), nil
}

var bulkResultHeaders = []string{
	"Row", "Contact Person", "School Name", "Designation", "Incharge",
	"Resolved School", "Address", "ZIP", "Region", "Assigned To", "Status", "Message",
}

// Results renders a batch and its per-row verification outcomes as a
// workbook, one annotated row per spreadsheet row.
func (s *BulkUploadService) Results(ctx context.Context, batchID string) (string, []byte, error) {
	batch, rows, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return "", nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, "Results"); err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render results")
	}
	sheet = "Results"
	if err := f.SetSheetRow(sheet, "A1", &bulkResultHeaders); err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render results")
	}
	for i, row := range rows {
		values := []interface{}{
			row.Position,
			row.OriginalContactPerson,
			row.OriginalSchoolName,
			row.OriginalDesignation,
			row.OriginalIncharge,
			row.SchoolName,
			row.Address,
			row.ZipCode,
			row.RegionName,
			row.AssignedToName,
			string(row.Status),
			row.Message,
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render results")
		}
		if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
			return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render results")
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render results")
	}
	name := strings.TrimSuffix(batch.FileName, ".xlsx") + "-results.xlsx"
	return name, buf.Bytes(), nil
}

// StartVerification flips a parsed batch to VERIFYING and hands it to
// the background workers.
func (s *BulkUploadService) StartVerification(ctx context.Context, batchID string) error {
	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if batch.Status != models.BatchParsed && batch.Status != models.BatchCancelled {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("batch is %s", batch.Status))
	}

	if err := s.repo.UpdateBatchStatus(ctx, batchID, models.BatchVerifying); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start verification")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: batchID, Type: "verify-batch", Payload: batchID}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue verification")
	}
	return nil
}

// CancelVerification requests a stop. The worker checks the batch
// status between rows, so cancellation lands at a row boundary.
func (s *BulkUploadService) CancelVerification(ctx context.Context, batchID string) error {
	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if batch.Status != models.BatchVerifying {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("batch is %s", batch.Status))
	}
	if err := s.repo.UpdateBatchStatus(ctx, batchID, models.BatchCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel verification")
	}
	return nil
}

// EditRow applies a manual correction and re-marks the row VERIFIED.
func (s *BulkUploadService) EditRow(ctx context.Context, rowID string, req EditRowRequest) (*models.BulkUploadRow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid row payload")
	}

	row, err := s.repo.FindRow(ctx, rowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "row not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load row")
	}
	if row.Status == models.RowUploaded {
		return nil, appErrors.Clone(appErrors.ErrConflict, "row was already committed")
	}

	row.SchoolName = strings.TrimSpace(req.SchoolName)
	row.Address = req.Address
	row.ZipCode = strings.TrimSpace(req.ZipCode)
	row.Landmark = req.Landmark
	row.ContactPerson = req.ContactPerson
	row.Designation = req.Designation
	row.ContactPhone = NormalizePhone(req.ContactPhone)
	row.ContactEmail = strings.ToLower(req.ContactEmail)
	row.Status = models.RowVerified
	row.Message = "Corrected manually"

	if err := s.repo.UpdateRow(ctx, row); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update row")
	}
	return row, nil
}

// DeleteRow removes a row from a batch before commit.
func (s *BulkUploadService) DeleteRow(ctx context.Context, rowID string) error {
	row, err := s.repo.FindRow(ctx, rowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "row not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load row")
	}
	if row.Status == models.RowUploaded {
		return appErrors.Clone(appErrors.ErrConflict, "row was already committed")
	}
	if err := s.repo.DeleteRow(ctx, rowID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete row")
	}
	return nil
}

// Commit writes every committable row into the lead store: VERIFIED
// rows become new LOCKED leads assigned to their incharge, Will-Update
// duplicates overwrite the existing lead. Every other row is skipped.
func (s *BulkUploadService) Commit(ctx context.Context, batchID string, actor *models.JWTClaims, meta models.LoginRequest) (*models.BulkUploadBatch, error) {
	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if batch.Status != models.BatchVerified {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("batch is %s, not verified", batch.Status))
	}

	rows, err := s.repo.ListRows(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch rows")
	}

	committed := 0
	assignees := map[string]int{}
	for i := range rows {
		row := &rows[i]
		if !row.Committable() {
			continue
		}
		if err := s.commitRow(ctx, row); err != nil {
			s.logger.Warn("failed to commit row",
				zap.String("batch_id", batchID),
				zap.Int("position", row.Position),
				zap.Error(err))
			row.Status = models.RowError
			row.Message = "Commit failed: " + err.Error()
			if err := s.repo.UpdateRow(ctx, row); err != nil {
				s.logger.Warn("failed to persist row failure", zap.Error(err))
			}
			continue
		}
		row.Status = models.RowUploaded
		row.Message = "Uploaded"
		if err := s.repo.UpdateRow(ctx, row); err != nil {
			s.logger.Warn("failed to persist row outcome", zap.Error(err))
		}
		committed++
		if row.AssignedToUserID != "" {
			assignees[row.AssignedToUserID]++
		}
	}

	if err := s.repo.UpdateBatchStatus(ctx, batchID, models.BatchCommitted); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize batch")
	}
	batch.Status = models.BatchCommitted

	for userID, count := range assignees {
		if err := s.notifications.Create(ctx, &models.Notification{
			UserID:  userID,
			Title:   "Leads uploaded",
			Message: fmt.Sprintf("%d lead(s) from a bulk upload have been assigned to you", count),
			Type:    models.NotificationInfo,
			Link:    "/leads",
		}); err != nil {
			s.logger.Warn("failed to notify assignee", zap.Error(err))
		}
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"batch_id": batchID, "committed": committed})
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionBulkCommit,
		Resource:   "bulk_uploads",
		ResourceID: &batchID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record bulk commit audit log", zap.Error(err))
	}

	return batch, nil
}

func (s *BulkUploadService) commitRow(ctx context.Context, row *models.BulkUploadRow) error {
	incharge, err := s.users.FindByID(ctx, row.AssignedToUserID)
	if err != nil {
		return fmt.Errorf("load incharge: %w", err)
	}
	lockedUntil := s.now().AddDate(0, incharge.DefaultLockInMonths, 0)

	lead := &models.Lead{
		SchoolName:       row.SchoolName,
		RegionID:         row.RegionID,
		RegionName:       row.RegionName,
		Address:          row.Address,
		ZipCode:          row.ZipCode,
		Landmark:         row.Landmark,
		ContactPerson:    row.ContactPerson,
		Designation:      row.Designation,
		ContactEmail:     row.ContactEmail,
		ContactPhone:     row.ContactPhone,
		PlaceID:          row.PlaceID,
		Status:           models.StatusLocked,
		Stage:            models.StageNew,
		AssignedToUserID: &incharge.ID,
		AssignedToName:   &incharge.FullName,
		LockedUntil:      &lockedUntil,
		CreatedBy:        incharge.ID,
	}

	if row.WillUpdate() {
		existing, err := s.leads.FindByNameAndZip(ctx, row.SchoolName, row.ZipCode, "")
		if err != nil {
			return fmt.Errorf("find existing lead: %w", err)
		}
		if len(existing) > 0 {
			lead.ID = existing[0].ID
			return s.leads.Overwrite(ctx, lead)
		}
	}
	return s.leads.Create(ctx, lead)
}

func (s *BulkUploadService) handleVerifyJob(ctx context.Context, job jobs.Job) error {
	batchID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return s.verifyBatch(ctx, batchID)
}

// verifyBatch walks every PENDING row through incharge resolution,
// place lookup, region derivation and duplicate detection. The row
// delay keeps the place-search quota happy. Cancellation is checked
// at each row boundary.
func (s *BulkUploadService) verifyBatch(ctx context.Context, batchID string) error {
	rows, err := s.repo.ListRows(ctx, batchID)
	if err != nil {
		return fmt.Errorf("list rows: %w", err)
	}

	for i := range rows {
		row := &rows[i]
		if row.Status != models.RowPending {
			continue
		}

		batch, err := s.repo.FindBatch(ctx, batchID)
		if err != nil {
			return fmt.Errorf("reload batch: %w", err)
		}
		if batch.Status != models.BatchVerifying {
			s.logger.Info("verification stopped",
				zap.String("batch_id", batchID),
				zap.String("status", string(batch.Status)))
			return nil
		}

		s.verifyRow(ctx, row)
		if err := s.repo.UpdateRow(ctx, row); err != nil {
			s.logger.Warn("failed to persist row verification", zap.Error(err))
		}

		if s.cfg.RowDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.RowDelay):
			}
		}
	}

	batch, err := s.repo.FindBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("reload batch: %w", err)
	}
	if batch.Status == models.BatchVerifying {
		if err := s.repo.UpdateBatchStatus(ctx, batchID, models.BatchVerified); err != nil {
			return fmt.Errorf("finish batch: %w", err)
		}
	}
	return nil
}

func (s *BulkUploadService) verifyRow(ctx context.Context, row *models.BulkUploadRow) {
	incharge, err := s.users.FindByNameOrEmail(ctx, row.OriginalIncharge)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			row.Status = models.RowUserNotFound
			row.Message = fmt.Sprintf("Incharge %q not found", row.OriginalIncharge)
			return
		}
		row.Status = models.RowError
		row.Message = "Incharge lookup failed"
		return
	}
	row.AssignedToUserID = incharge.ID
	row.AssignedToName = incharge.FullName

	regionNote := ""
	switch len(incharge.AssignedRegions) {
	case 0:
		row.Status = models.RowError
		row.Message = fmt.Sprintf("Incharge %s has no region assigned", incharge.FullName)
		return
	case 1:
		row.RegionID = incharge.AssignedRegions[0]
	default:
		row.RegionID = incharge.AssignedRegions[0]
		regionNote = "Multiple regions assigned - Defaulted to first"
	}
	if region, err := s.regions.FindByID(ctx, row.RegionID); err == nil {
		row.RegionName = region.Name
	}

	predictions, err := s.placeSearch.Autocomplete(ctx, row.OriginalSchoolName)
	if err != nil {
		row.Status = models.RowError
		row.Message = "Place lookup failed"
		return
	}
	if len(predictions) == 0 {
		row.Status = models.RowNoMatch
		row.Message = fmt.Sprintf("No place found for %q", row.OriginalSchoolName)
		return
	}
	chosen, matchNote := narrowPredictions(predictions, row.RegionName, row.OriginalSchoolName)
	if chosen == nil {
		row.Status = models.RowMultipleMatches
		row.Message = fmt.Sprintf("%d places match %q", len(predictions), row.OriginalSchoolName)
		return
	}

	details, err := s.placeSearch.GetDetails(ctx, chosen.PlaceID)
	if err != nil {
		row.Status = models.RowError
		row.Message = "Place details lookup failed"
		return
	}

	row.SchoolName = details.Name
	row.Address = details.FormattedAddress
	row.ZipCode = details.PostalCode
	row.PlaceID = details.PlaceID
	row.ContactPerson = row.OriginalContactPerson
	row.Designation = row.OriginalDesignation
	row.ContactPhone = NormalizePhone(details.PhoneNumber)

	// Commit matches the existing lead by (name, zip) so the duplicate
	// stage queries only that pair, not the full cascade.
	existing, err := s.leads.FindByNameAndZip(ctx, row.SchoolName, row.ZipCode, "")
	if err != nil {
		s.logger.Warn("bulk duplicate lookup failed", zap.Error(err))
		existing = nil
	}
	if len(existing) > 0 {
		row.Status = models.RowDuplicate
		if existing[0].Stage == models.StageNew {
			row.Message = "Lead exists (NEW stage) - Will Update"
		} else {
			row.Message = fmt.Sprintf("Lead exists (%s stage) - Will Skip", existing[0].Stage)
		}
		return
	}

	row.Status = models.RowVerified
	row.Message = "Verified"
	if matchNote != "" {
		row.Message = "Verified (" + matchNote + ")"
	}
	if regionNote != "" {
		row.Message += ". " + regionNote
	}
}

// narrowPredictions resolves a multi-prediction result to a single
// place: first keep predictions whose description mentions the
// resolved region, then require an exact case-insensitive name match.
// Returns nil when neither pass narrows to exactly one.
func narrowPredictions(predictions []places.Prediction, regionName, schoolName string) (*places.Prediction, string) {
	if len(predictions) == 1 {
		return &predictions[0], ""
	}

	candidates := predictions
	if regionName != "" {
		regionLower := strings.ToLower(regionName)
		var regionMatches []places.Prediction
		for _, p := range candidates {
			if strings.Contains(strings.ToLower(p.Description), regionLower) {
				regionMatches = append(regionMatches, p)
			}
		}
		if len(regionMatches) > 0 {
			candidates = regionMatches
		}
	}
	if len(candidates) == 1 {
		return &candidates[0], "Auto-selected via Region"
	}

	inputLower := strings.ToLower(strings.TrimSpace(schoolName))
	var exactMatches []places.Prediction
	for _, p := range candidates {
		if strings.ToLower(p.MainText) == inputLower {
			exactMatches = append(exactMatches, p)
		}
	}
	if len(exactMatches) == 1 {
		return &exactMatches[0], "Auto-selected via Region + Exact Name"
	}
	return nil, ""
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
