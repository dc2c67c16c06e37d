package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
)

// DuplicateMatchType ranks how strongly an existing lead matches.
type DuplicateMatchType string

const (
	MatchNone       DuplicateMatchType = "NONE"
	MatchExactName  DuplicateMatchType = "EXACT_NAME_ZIP"
	MatchExactPhone DuplicateMatchType = "EXACT_PHONE"
	MatchSimilar    DuplicateMatchType = "SIMILAR_NAME"
)

// DuplicateResult is the outcome of a duplicate check.
type DuplicateResult struct {
	Type    DuplicateMatchType `json:"type"`
	Matches []models.Lead      `json:"matches,omitempty"`
}

// Exact reports whether the match blocks auto-approval outright.
func (r DuplicateResult) Exact() bool {
	return r.Type == MatchExactName || r.Type == MatchExactPhone
}

// Found reports whether any match was detected.
func (r DuplicateResult) Found() bool {
	return r.Type != MatchNone
}

type duplicateLeadRepository interface {
	FindByNameAndZip(ctx context.Context, schoolName, zipCode, excludeID string) ([]models.Lead, error)
	FindByPhone(ctx context.Context, contactPhone, excludeID string) ([]models.Lead, error)
	FindByName(ctx context.Context, schoolName, zipCode, excludeID string) ([]models.Lead, error)
}

// DuplicateService detects existing leads that match a candidate.
type DuplicateService struct {
	repo   duplicateLeadRepository
	logger *zap.Logger
}

// NewDuplicateService creates an instance of DuplicateService.
func NewDuplicateService(repo duplicateLeadRepository, logger *zap.Logger) *DuplicateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateService{repo: repo, logger: logger}
}

// Check runs the match cascade: same school name and ZIP, then same
// normalized phone, then same name in a different ZIP. The first hit
// wins. A failed read degrades to no-match so lead intake never
// blocks on the duplicate index; creation then proceeds down the
// clean-lead path.
func (s *DuplicateService) Check(ctx context.Context, schoolName, zipCode, contactPhone, excludeID string) DuplicateResult {
	if matches, err := s.repo.FindByNameAndZip(ctx, schoolName, zipCode, excludeID); err != nil {
		s.logger.Warn("duplicate name+zip lookup failed", zap.Error(err))
		return DuplicateResult{Type: MatchNone}
	} else if len(matches) > 0 {
		return DuplicateResult{Type: MatchExactName, Matches: matches}
	}

	if phone := NormalizePhone(contactPhone); phone != "" {
		if matches, err := s.repo.FindByPhone(ctx, phone, excludeID); err != nil {
			s.logger.Warn("duplicate phone lookup failed", zap.Error(err))
			return DuplicateResult{Type: MatchNone}
		} else if len(matches) > 0 {
			return DuplicateResult{Type: MatchExactPhone, Matches: matches}
		}
	}

	if matches, err := s.repo.FindByName(ctx, schoolName, zipCode, excludeID); err != nil {
		s.logger.Warn("duplicate name lookup failed", zap.Error(err))
		return DuplicateResult{Type: MatchNone}
	} else if len(matches) > 0 {
		return DuplicateResult{Type: MatchSimilar, Matches: matches}
	}

	return DuplicateResult{Type: MatchNone}
}
