package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
)

type regionRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Region, error)
	FindByID(ctx context.Context, id string) (*models.Region, error)
	FindByName(ctx context.Context, name string) (*models.Region, error)
	Create(ctx context.Context, region *models.Region) error
	Update(ctx context.Context, region *models.Region) error
	Delete(ctx context.Context, id string) error
}

// CreateRegionRequest payload for creating regions.
type CreateRegionRequest struct {
	Name    string `json:"name" validate:"required"`
	Remarks string `json:"remarks"`
	Active  bool   `json:"active"`
}

// UpdateRegionRequest payload for updating regions.
type UpdateRegionRequest struct {
	Name    string `json:"name" validate:"required"`
	Remarks string `json:"remarks"`
	Active  *bool  `json:"active"`
}

// RegionService manages the region reference list.
type RegionService struct {
	repo      regionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegionService creates an instance of RegionService.
func NewRegionService(repo regionRepository, validate *validator.Validate, logger *zap.Logger) *RegionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RegionService{repo: repo, validator: validate, logger: logger}
}

// List returns all regions, optionally only active ones.
func (s *RegionService) List(ctx context.Context, activeOnly bool) ([]models.Region, error) {
	regions, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list regions")
	}
	return regions, nil
}

// Get returns a region by ID.
func (s *RegionService) Get(ctx context.Context, id string) (*models.Region, error) {
	region, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "region not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load region")
	}
	return region, nil
}

// Create adds a region after checking the name is unique
// case-insensitively.
func (s *RegionService) Create(ctx context.Context, req CreateRegionRequest) (*models.Region, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create region payload")
	}

	if _, err := s.repo.FindByName(ctx, req.Name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "region name already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check region uniqueness")
	}

	region := &models.Region{
		Name:    strings.TrimSpace(req.Name),
		Remarks: req.Remarks,
		Active:  req.Active,
	}
	if err := s.repo.Create(ctx, region); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create region")
	}
	return region, nil
}

// Update modifies a region. A rename must not collide with another
// region's name.
func (s *RegionService) Update(ctx context.Context, id string, req UpdateRegionRequest) (*models.Region, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update region payload")
	}

	region, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "region not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load region")
	}

	if existing, err := s.repo.FindByName(ctx, req.Name); err == nil {
		if existing.ID != region.ID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "region name already exists")
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check region uniqueness")
	}

	region.Name = strings.TrimSpace(req.Name)
	region.Remarks = req.Remarks
	if req.Active != nil {
		region.Active = *req.Active
	}

	if err := s.repo.Update(ctx, region); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update region")
	}
	return region, nil
}

// Delete removes a region. Users and leads referencing it keep the
// orphaned id.
func (s *RegionService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "region not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load region")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete region")
	}
	return nil
}
