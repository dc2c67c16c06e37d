package models

import (
	"strings"
	"time"
)

// RowStatus is the verification state of one bulk-upload row.
type RowStatus string

const (
	RowPending         RowStatus = "PENDING"
	RowVerified        RowStatus = "VERIFIED"
	RowDuplicate       RowStatus = "DUPLICATE"
	RowError           RowStatus = "ERROR"
	RowUserNotFound    RowStatus = "USER_NOT_FOUND"
	RowNoMatch         RowStatus = "NO_MATCH"
	RowMultipleMatches RowStatus = "MULTIPLE_MATCHES"
	RowUploaded        RowStatus = "UPLOADED"
)

// BatchStatus is the lifecycle state of a whole upload batch.
type BatchStatus string

const (
	BatchParsed    BatchStatus = "PARSED"
	BatchVerifying BatchStatus = "VERIFYING"
	BatchVerified  BatchStatus = "VERIFIED"
	BatchCancelled BatchStatus = "CANCELLED"
	BatchCommitted BatchStatus = "COMMITTED"
)

// BulkUploadBatch groups the rows of one spreadsheet upload.
type BulkUploadBatch struct {
	ID        string      `db:"id" json:"id"`
	FileName  string      `db:"file_name" json:"file_name"`
	Status    BatchStatus `db:"status" json:"status"`
	RowCount  int         `db:"row_count" json:"row_count"`
	CreatedBy string      `db:"created_by" json:"created_by"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// BulkUploadRow is one spreadsheet row moving through the
// verification pipeline. Original* columns are the raw parsed values;
// Verified* columns are filled by incharge resolution and the place
// lookup and are what commit writes.
type BulkUploadRow struct {
	ID       string `db:"id" json:"id"`
	BatchID  string `db:"batch_id" json:"batch_id"`
	Position int    `db:"position" json:"position"`

	OriginalContactPerson string `db:"original_contact_person" json:"original_contact_person"`
	OriginalSchoolName    string `db:"original_school_name" json:"original_school_name"`
	OriginalDesignation   string `db:"original_designation" json:"original_designation"`
	OriginalIncharge      string `db:"original_incharge" json:"original_incharge"`

	SchoolName       string `db:"school_name" json:"school_name"`
	Address          string `db:"address" json:"address"`
	ZipCode          string `db:"zip_code" json:"zip_code"`
	Landmark         string `db:"landmark" json:"landmark"`
	RegionID         string `db:"region_id" json:"region_id"`
	RegionName       string `db:"region_name" json:"region_name"`
	PlaceID          string `db:"place_id" json:"place_id"`
	ContactPerson    string `db:"contact_person" json:"contact_person"`
	Designation      string `db:"designation" json:"designation"`
	ContactPhone     string `db:"contact_phone" json:"contact_phone"`
	ContactEmail     string `db:"contact_email" json:"contact_email"`
	AssignedToUserID string `db:"assigned_to_user_id" json:"assigned_to_user_id"`
	AssignedToName   string `db:"assigned_to_name" json:"assigned_to_name"`

	Status    RowStatus `db:"status" json:"status"`
	Message   string    `db:"message" json:"message,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WillUpdate reports whether a DUPLICATE row was marked for an upsert
// of the existing NEW-stage lead at commit time.
func (r *BulkUploadRow) WillUpdate() bool {
	return r.Status == RowDuplicate && strings.Contains(r.Message, "Will Update")
}

// Committable reports whether commit may write this row.
func (r *BulkUploadRow) Committable() bool {
	return r.Status == RowVerified || r.WillUpdate()
}
