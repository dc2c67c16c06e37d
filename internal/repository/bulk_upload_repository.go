package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
)

const bulkRowColumns = `id, batch_id, position, original_contact_person, original_school_name, original_designation, original_incharge, school_name, address, zip_code, landmark, region_id, region_name, place_id, contact_person, designation, contact_phone, contact_email, assigned_to_user_id, assigned_to_name, status, message, created_at, updated_at`

// BulkUploadRepository persists upload batches and their rows so a
// verification run survives beyond the request that started it.
type BulkUploadRepository struct {
	db *sqlx.DB
}

// NewBulkUploadRepository creates a new instance of BulkUploadRepository.
func NewBulkUploadRepository(db *sqlx.DB) *BulkUploadRepository {
	return &BulkUploadRepository{db: db}
}

// CreateBatch inserts a batch and all of its parsed rows in one
// transaction.
func (r *BulkUploadRepository) CreateBatch(ctx context.Context, batch *models.BulkUploadBatch, rows []models.BulkUploadRow) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const batchQuery = `INSERT INTO bulk_upload_batches (id, file_name, status, row_count, created_by, created_at, updated_at) VALUES (:id, :file_name, :status, :row_count, :created_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, batchQuery, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}

	const rowQuery = `INSERT INTO bulk_upload_rows (id, batch_id, position, original_contact_person, original_school_name, original_designation, original_incharge, school_name, address, zip_code, landmark, region_id, region_name, place_id, contact_person, designation, contact_phone, contact_email, assigned_to_user_id, assigned_to_name, status, message, created_at, updated_at)
		VALUES (:id, :batch_id, :position, :original_contact_person, :original_school_name, :original_designation, :original_incharge, :school_name, :address, :zip_code, :landmark, :region_id, :region_name, :place_id, :contact_person, :designation, :contact_phone, :contact_email, :assigned_to_user_id, :assigned_to_name, :status, :message, :created_at, :updated_at)`
	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.BatchID = batch.ID
		row.CreatedAt = now
		row.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, rowQuery, row); err != nil {
			return fmt.Errorf("create batch row %d: %w", row.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create batch: %w", err)
	}
	return nil
}

// FindBatch returns a batch by identifier.
func (r *BulkUploadRepository) FindBatch(ctx context.Context, id string) (*models.BulkUploadBatch, error) {
	const query = `SELECT id, file_name, status, row_count, created_by, created_at, updated_at FROM bulk_upload_batches WHERE id = $1 LIMIT 1`
	var batch models.BulkUploadBatch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find batch by id: %w", err)
	}
	return &batch, nil
}

// ListBatches returns batches created by a user, newest first.
func (r *BulkUploadRepository) ListBatches(ctx context.Context, createdBy string) ([]models.BulkUploadBatch, error) {
	const query = `SELECT id, file_name, status, row_count, created_by, created_at, updated_at FROM bulk_upload_batches WHERE created_by = $1 ORDER BY created_at DESC`
	var batches []models.BulkUploadBatch
	if err := r.db.SelectContext(ctx, &batches, query, createdBy); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// UpdateBatchStatus advances the batch lifecycle state.
func (r *BulkUploadRepository) UpdateBatchStatus(ctx context.Context, id string, status models.BatchStatus) error {
	const query = `UPDATE bulk_upload_batches SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return nil
}

// ListRows returns a batch's rows in spreadsheet order.
func (r *BulkUploadRepository) ListRows(ctx context.Context, batchID string) ([]models.BulkUploadRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM bulk_upload_rows WHERE batch_id = $1 ORDER BY position ASC`, bulkRowColumns)
	var rows []models.BulkUploadRow
	if err := r.db.SelectContext(ctx, &rows, query, batchID); err != nil {
		return nil, fmt.Errorf("list batch rows: %w", err)
	}
	return rows, nil
}

// FindRow returns one row by identifier.
func (r *BulkUploadRepository) FindRow(ctx context.Context, id string) (*models.BulkUploadRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM bulk_upload_rows WHERE id = $1 LIMIT 1`, bulkRowColumns)
	var row models.BulkUploadRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find batch row by id: %w", err)
	}
	return &row, nil
}

// UpdateRow persists the outcome of a verification or commit step.
func (r *BulkUploadRepository) UpdateRow(ctx context.Context, row *models.BulkUploadRow) error {
	row.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bulk_upload_rows SET school_name = :school_name, address = :address, zip_code = :zip_code, landmark = :landmark, region_id = :region_id, region_name = :region_name, place_id = :place_id, contact_person = :contact_person, designation = :designation, contact_phone = :contact_phone, contact_email = :contact_email, assigned_to_user_id = :assigned_to_user_id, assigned_to_name = :assigned_to_name, status = :status, message = :message, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("update batch row: %w", err)
	}
	return nil
}

// DeleteRow removes a row from a batch.
func (r *BulkUploadRepository) DeleteRow(ctx context.Context, id string) error {
	const query = `DELETE FROM bulk_upload_rows WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete batch row: %w", err)
	}
	return nil
}
