package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
)

// RegionRepository provides database access for region reference data.
type RegionRepository struct {
	db *sqlx.DB
}

// NewRegionRepository creates a new instance of RegionRepository.
func NewRegionRepository(db *sqlx.DB) *RegionRepository {
	return &RegionRepository{db: db}
}

// List returns all regions, optionally only active ones.
func (r *RegionRepository) List(ctx context.Context, activeOnly bool) ([]models.Region, error) {
	query := `SELECT id, name, remarks, active, created_at, updated_at FROM regions`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`

	var regions []models.Region
	if err := r.db.SelectContext(ctx, &regions, query); err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return regions, nil
}

// FindByID returns a region by identifier.
func (r *RegionRepository) FindByID(ctx context.Context, id string) (*models.Region, error) {
	const query = `SELECT id, name, remarks, active, created_at, updated_at FROM regions WHERE id = $1 LIMIT 1`
	var region models.Region
	if err := r.db.GetContext(ctx, &region, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find region by id: %w", err)
	}
	return &region, nil
}

// FindByName returns a region matching the name case-insensitively.
func (r *RegionRepository) FindByName(ctx context.Context, name string) (*models.Region, error) {
	const query = `SELECT id, name, remarks, active, created_at, updated_at FROM regions WHERE LOWER(name) = $1 LIMIT 1`
	var region models.Region
	if err := r.db.GetContext(ctx, &region, query, strings.ToLower(strings.TrimSpace(name))); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find region by name: %w", err)
	}
	return &region, nil
}

// Create inserts a new region.
func (r *RegionRepository) Create(ctx context.Context, region *models.Region) error {
	if region.ID == "" {
		region.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if region.CreatedAt.IsZero() {
		region.CreatedAt = now
	}
	region.UpdatedAt = now

	const query = `INSERT INTO regions (id, name, remarks, active, created_at, updated_at) VALUES (:id, :name, :remarks, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, region); err != nil {
		return fmt.Errorf("create region: %w", err)
	}
	return nil
}

// Update updates mutable fields of a region.
func (r *RegionRepository) Update(ctx context.Context, region *models.Region) error {
	region.UpdatedAt = time.Now().UTC()
	const query = `UPDATE regions SET name = :name, remarks = :remarks, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, region); err != nil {
		return fmt.Errorf("update region: %w", err)
	}
	return nil
}

// Delete removes a region. References from users and leads keep the
// orphaned id; nothing cascades.
func (r *RegionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM regions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete region: %w", err)
	}
	return nil
}
