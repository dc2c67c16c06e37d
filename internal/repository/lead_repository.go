package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
)

const leadColumns = `id, school_name, region_id, region_name, address, zip_code, landmark, contact_person, designation, contact_email, contact_phone, is_chain, chain_name, remarks, place_id, status, stage, probability, assigned_to_user_id, assigned_to_name, locked_until, contacted_date, created_at, created_by`

// LeadRepository provides database access for leads and their history.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository creates a new instance of LeadRepository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// FindByID returns a lead by identifier, without history.
func (r *LeadRepository) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE id = $1 LIMIT 1`, leadColumns)
	var lead models.Lead
	if err := r.db.GetContext(ctx, &lead, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lead by id: %w", err)
	}
	return &lead, nil
}

// ListUpdates returns a lead's history, most recent first.
func (r *LeadRepository) ListUpdates(ctx context.Context, leadID string) ([]models.LeadUpdate, error) {
	const query = `SELECT id, lead_id, stage, note, probability, attachments, updated_by, created_at FROM lead_updates WHERE lead_id = $1 ORDER BY created_at DESC`
	var updates []models.LeadUpdate
	if err := r.db.SelectContext(ctx, &updates, query, leadID); err != nil {
		return nil, fmt.Errorf("list lead updates: %w", err)
	}
	return updates, nil
}

// List returns leads based on filters with total count.
func (r *LeadRepository) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error) {
	baseQuery := `FROM leads WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Stage != nil {
		conditions = append(conditions, fmt.Sprintf("stage = $%d", len(args)+1))
		args = append(args, *filter.Stage)
	}
	if filter.RegionID != "" {
		conditions = append(conditions, fmt.Sprintf("region_id = $%d", len(args)+1))
		args = append(args, filter.RegionID)
	}
	if filter.AssignedToUserID != "" {
		conditions = append(conditions, fmt.Sprintf("assigned_to_user_id = $%d", len(args)+1))
		args = append(args, filter.AssignedToUserID)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(school_name) LIKE $%d OR LOWER(contact_person) LIKE $%d OR zip_code LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"school_name": true,
		"region_name": true,
		"status":      true,
		"stage":       true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", leadColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	return leads, total, nil
}

// Create inserts a new lead.
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO leads (id, school_name, region_id, region_name, address, zip_code, landmark, contact_person, designation, contact_email, contact_phone, is_chain, chain_name, remarks, place_id, status, stage, probability, assigned_to_user_id, assigned_to_name, locked_until, contacted_date, created_at, created_by)
		VALUES (:id, :school_name, :region_id, :region_name, :address, :zip_code, :landmark, :contact_person, :designation, :contact_email, :contact_phone, :is_chain, :chain_name, :remarks, :place_id, :status, :stage, :probability, :assigned_to_user_id, :assigned_to_name, :locked_until, :contacted_date, :created_at, :created_by)`
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// Update overwrites the contact and verification fields of a lead.
// Lifecycle fields go through the dedicated transition methods.
func (r *LeadRepository) Update(ctx context.Context, lead *models.Lead) error {
	const query = `UPDATE leads SET school_name = :school_name, region_id = :region_id, region_name = :region_name, address = :address, zip_code = :zip_code, landmark = :landmark, contact_person = :contact_person, designation = :designation, contact_email = :contact_email, contact_phone = :contact_phone, is_chain = :is_chain, chain_name = :chain_name, remarks = :remarks, place_id = :place_id WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return nil
}

// Overwrite replaces the full verified payload of an existing lead,
// including assignment. Used by the bulk-upload "Will Update" path.
func (r *LeadRepository) Overwrite(ctx context.Context, lead *models.Lead) error {
	const query = `UPDATE leads SET school_name = :school_name, region_id = :region_id, region_name = :region_name, address = :address, zip_code = :zip_code, landmark = :landmark, contact_person = :contact_person, designation = :designation, contact_email = :contact_email, contact_phone = :contact_phone, is_chain = :is_chain, chain_name = :chain_name, remarks = :remarks, place_id = :place_id, status = :status, stage = :stage, assigned_to_user_id = :assigned_to_user_id, assigned_to_name = :assigned_to_name, locked_until = :locked_until, created_by = :created_by WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("overwrite lead: %w", err)
	}
	return nil
}

// Approve locks a pending lead to its creator. The status precondition
// is applied atomically; zero affected rows means the lead was not
// PENDING anymore (or does not exist).
func (r *LeadRepository) Approve(ctx context.Context, id string, lockedUntil time.Time) (bool, error) {
	const query = `UPDATE leads l SET status = $2, assigned_to_user_id = l.created_by, assigned_to_name = u.full_name, locked_until = $3 FROM users u WHERE l.id = $1 AND u.id = l.created_by AND l.status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.StatusLocked, lockedUntil, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("approve lead: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve lead rows affected: %w", err)
	}
	return affected > 0, nil
}

// Reject moves a pending lead to the pool and clears assignment.
func (r *LeadRepository) Reject(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE leads SET status = $2, assigned_to_user_id = NULL, assigned_to_name = NULL WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, models.StatusPool, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("reject lead: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject lead rows affected: %w", err)
	}
	return affected > 0, nil
}

// Claim locks a pool lead to the claiming user. The POOL precondition
// makes concurrent claims race safely: the loser sees zero affected
// rows instead of silently overwriting the winner.
func (r *LeadRepository) Claim(ctx context.Context, id, userID, userName string, lockedUntil time.Time) (bool, error) {
	const query = `UPDATE leads SET status = $2, assigned_to_user_id = $3, assigned_to_name = $4, locked_until = $5 WHERE id = $1 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, models.StatusLocked, userID, userName, lockedUntil, models.StatusPool)
	if err != nil {
		return false, fmt.Errorf("claim lead: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim lead rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetStatus is a direct admin override of the status axis.
func (r *LeadRepository) SetStatus(ctx context.Context, id string, status models.LeadStatus) error {
	const query = `UPDATE leads SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("set lead status: %w", err)
	}
	return nil
}

// SetStage is a direct admin override of the stage axis.
func (r *LeadRepository) SetStage(ctx context.Context, id string, stage models.LeadStage) error {
	const query = `UPDATE leads SET stage = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, stage); err != nil {
		return fmt.Errorf("set lead stage: %w", err)
	}
	return nil
}

// ApplyUpdate appends a history event and applies its side effects to
// the lead in one transaction: the stage snapshot, an optional status
// change for terminal stages and an optional probability revision.
func (r *LeadRepository) ApplyUpdate(ctx context.Context, update *models.LeadUpdate, status *models.LeadStatus) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertQuery = `INSERT INTO lead_updates (id, lead_id, stage, note, probability, attachments, updated_by, created_at) VALUES (:id, :lead_id, :stage, :note, :probability, :attachments, :updated_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, update); err != nil {
		return fmt.Errorf("insert lead update: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE leads SET stage = $2 WHERE id = $1`, update.LeadID, update.Stage); err != nil {
		return fmt.Errorf("apply update stage: %w", err)
	}
	if status != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE leads SET status = $2 WHERE id = $1`, update.LeadID, *status); err != nil {
			return fmt.Errorf("apply update status: %w", err)
		}
	}
	if update.Probability != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE leads SET probability = $2 WHERE id = $1`, update.LeadID, *update.Probability); err != nil {
			return fmt.Errorf("apply update probability: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply update: %w", err)
	}
	return nil
}

// InsertNote appends a pure history event with no lead side effects.
func (r *LeadRepository) InsertNote(ctx context.Context, update *models.LeadUpdate) error {
	if update.ID == "" {
		update.ID = uuid.NewString()
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lead_updates (id, lead_id, stage, note, probability, attachments, updated_by, created_at) VALUES (:id, :lead_id, :stage, :note, :probability, :attachments, :updated_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, update); err != nil {
		return fmt.Errorf("insert lead note: %w", err)
	}
	return nil
}

// BulkAssign locks every listed pool lead to the target user and
// writes one notification, all-or-nothing.
func (r *LeadRepository) BulkAssign(ctx context.Context, leadIDs []string, userID, userName string, lockedUntil time.Time, history *models.LeadUpdate, notification *models.Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk assign: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const assignQuery = `UPDATE leads SET status = $2, assigned_to_user_id = $3, assigned_to_name = $4, locked_until = $5 WHERE id = ANY($1)`
	if _, err := tx.ExecContext(ctx, assignQuery, pq.Array(leadIDs), models.StatusLocked, userID, userName, lockedUntil); err != nil {
		return fmt.Errorf("bulk assign leads: %w", err)
	}

	const historyQuery = `INSERT INTO lead_updates (id, lead_id, stage, note, probability, attachments, updated_by, created_at) VALUES ($1, $2, $3, $4, NULL, NULL, $5, $6)`
	for _, leadID := range leadIDs {
		if _, err := tx.ExecContext(ctx, historyQuery, uuid.NewString(), leadID, history.Stage, history.Note, history.UpdatedBy, history.CreatedAt); err != nil {
			return fmt.Errorf("bulk assign history: %w", err)
		}
	}

	if notification != nil {
		if notification.ID == "" {
			notification.ID = uuid.NewString()
		}
		const notifQuery = `INSERT INTO notifications (id, user_id, title, message, type, read, link, created_at) VALUES (:id, :user_id, :title, :message, :type, :read, :link, :created_at)`
		if _, err := tx.NamedExecContext(ctx, notifQuery, notification); err != nil {
			return fmt.Errorf("bulk assign notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk assign: %w", err)
	}
	return nil
}

// FindByNameAndZip returns leads sharing school name and ZIP code.
func (r *LeadRepository) FindByNameAndZip(ctx context.Context, schoolName, zipCode, excludeID string) ([]models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE school_name = $1 AND zip_code = $2 AND id <> $3`, leadColumns)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, schoolName, zipCode, excludeID); err != nil {
		return nil, fmt.Errorf("find leads by name and zip: %w", err)
	}
	return leads, nil
}

// FindByPhone returns leads sharing the contact phone.
func (r *LeadRepository) FindByPhone(ctx context.Context, contactPhone, excludeID string) ([]models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE contact_phone = $1 AND id <> $2`, leadColumns)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, contactPhone, excludeID); err != nil {
		return nil, fmt.Errorf("find leads by phone: %w", err)
	}
	return leads, nil
}

// FindByName returns leads sharing the school name in a different ZIP.
func (r *LeadRepository) FindByName(ctx context.Context, schoolName, zipCode, excludeID string) ([]models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE school_name = $1 AND zip_code <> $2 AND id <> $3`, leadColumns)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, schoolName, zipCode, excludeID); err != nil {
		return nil, fmt.Errorf("find leads by name: %w", err)
	}
	return leads, nil
}

// StatusCount is one row of a status aggregation.
type StatusCount struct {
	Status models.LeadStatus `db:"status"`
	Count  int               `db:"count"`
}

// StageCount is one row of a stage aggregation.
type StageCount struct {
	Stage models.LeadStage `db:"stage"`
	Count int              `db:"count"`
}

// CountByStatus aggregates leads per status, excluding soft-deleted
// INACTIVE leads from active views.
func (r *LeadRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM leads WHERE status <> $1 GROUP BY status`
	var counts []StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, models.StatusInactive); err != nil {
		return nil, fmt.Errorf("count leads by status: %w", err)
	}
	return counts, nil
}

// CountByStage aggregates leads per stage, excluding INACTIVE leads.
func (r *LeadRepository) CountByStage(ctx context.Context) ([]StageCount, error) {
	const query = `SELECT stage, COUNT(*) AS count FROM leads WHERE status <> $1 GROUP BY stage`
	var counts []StageCount
	if err := r.db.SelectContext(ctx, &counts, query, models.StatusInactive); err != nil {
		return nil, fmt.Errorf("count leads by stage: %w", err)
	}
	return counts, nil
}

// CountByStageForUser aggregates one user's leads per stage, counting
// leads the user owns or created.
func (r *LeadRepository) CountByStageForUser(ctx context.Context, userID string) ([]StageCount, error) {
	const query = `SELECT stage, COUNT(*) AS count FROM leads WHERE status <> $1 AND (assigned_to_user_id = $2 OR created_by = $2) GROUP BY stage`
	var counts []StageCount
	if err := r.db.SelectContext(ctx, &counts, query, models.StatusInactive, userID); err != nil {
		return nil, fmt.Errorf("count user leads by stage: %w", err)
	}
	return counts, nil
}

// UserStageCount is one row of the per-user stage aggregation.
type UserStageCount struct {
	UserID    string           `db:"user_id"`
	Stage     models.LeadStage `db:"stage"`
	Count     int              `db:"count"`
	Generated int              `db:"generated"`
}

// CountPerUserStage aggregates stages per owning-or-creating user for
// the admin performance view.
func (r *LeadRepository) CountPerUserStage(ctx context.Context) ([]UserStageCount, error) {
	const query = `SELECT COALESCE(assigned_to_user_id, created_by) AS user_id, stage, COUNT(*) AS count, COUNT(*) FILTER (WHERE created_by = COALESCE(assigned_to_user_id, created_by)) AS generated FROM leads WHERE status <> $1 GROUP BY COALESCE(assigned_to_user_id, created_by), stage`
	var counts []UserStageCount
	if err := r.db.SelectContext(ctx, &counts, query, models.StatusInactive); err != nil {
		return nil, fmt.Errorf("count leads per user stage: %w", err)
	}
	return counts, nil
}
