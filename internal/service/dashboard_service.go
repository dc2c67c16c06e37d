package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/opportunity-tracker-api/internal/dto"
	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	"github.com/noah-isme/opportunity-tracker-api/internal/repository"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
)

const (
	cacheKeyAdminDashboard = "dashboard:admin"
	cacheKeyUserDashboard  = "dashboard:user:"
)

type dashboardLeadRepository interface {
	CountByStatus(ctx context.Context) ([]repository.StatusCount, error)
	CountByStage(ctx context.Context) ([]repository.StageCount, error)
	CountByStageForUser(ctx context.Context, userID string) ([]repository.StageCount, error)
	CountPerUserStage(ctx context.Context) ([]repository.UserStageCount, error)
}

type dashboardUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// funnelOrder fixes the display order of the sales funnel.
var funnelOrder = []models.LeadStage{
	models.StageNew,
	models.StageContacted,
	models.StageDemoScheduled,
	models.StageDemoShowed,
	models.StageQuotationSent,
	models.StageNegotiation,
	models.StageConverted,
	models.StageCancelled,
	models.StageExpired,
}

// DashboardService aggregates lead counts into the admin and
// per-user dashboard payloads, cached for the configured TTL.
type DashboardService struct {
	leads  dashboardLeadRepository
	users  dashboardUserRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewDashboardService creates an instance of DashboardService.
func NewDashboardService(leads dashboardLeadRepository, users dashboardUserRepository, cache *CacheService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{leads: leads, users: users, cache: cache, logger: logger}
}

// Admin builds the adminwide dashboard: topline status counts, the
// stage funnel and the per-distributor performance table.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	var cached dto.AdminDashboardResponse
	if hit, _ := s.cache.Get(ctx, cacheKeyAdminDashboard, &cached); hit {
		return &cached, nil
	}

	statusCounts, err := s.leads.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count leads by status")
	}
	stageCounts, err := s.leads.CountByStage(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count leads by stage")
	}
	perUser, err := s.leads.CountPerUserStage(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count leads per user")
	}

	resp := &dto.AdminDashboardResponse{
		StageFunnel: buildFunnel(stageCounts),
	}
	for _, sc := range statusCounts {
		resp.TotalLeads += sc.Count
		switch sc.Status {
		case models.StatusPending:
			resp.PendingApproval = sc.Count
		case models.StatusLocked:
			resp.ActiveLeads = sc.Count
		case models.StatusPool:
			resp.PoolLeads = sc.Count
		case models.StatusConverted:
			resp.Converted = sc.Count
		case models.StatusCancelled:
			resp.Cancelled = sc.Count
		}
	}

	resp.UserPerformance = s.buildPerformance(ctx, perUser)

	if err := s.cache.Set(ctx, cacheKeyAdminDashboard, resp, 0); err != nil {
		s.logger.Warn("failed to cache admin dashboard", zap.Error(err))
	}
	return resp, nil
}

// User builds one distributor's dashboard from their own funnel.
func (s *DashboardService) User(ctx context.Context, userID string) (*dto.UserDashboardResponse, error) {
	key := cacheKeyUserDashboard + userID
	var cached dto.UserDashboardResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	stageCounts, err := s.leads.CountByStageForUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count user leads")
	}

	byStage := map[models.LeadStage]int{}
	total := 0
	for _, sc := range stageCounts {
		byStage[sc.Stage] = sc.Count
		total += sc.Count
	}

	resp := &dto.UserDashboardResponse{
		TotalLeads:  total,
		DemosShowed: byStage[models.StageDemoShowed] + byStage[models.StageQuotationSent] + byStage[models.StageNegotiation] + byStage[models.StageConverted],
		QuotesSent:  byStage[models.StageQuotationSent] + byStage[models.StageNegotiation] + byStage[models.StageConverted],
		Converted:   byStage[models.StageConverted],
		Failed:      byStage[models.StageCancelled] + byStage[models.StageExpired],
		StageFunnel: buildFunnel(stageCounts),
	}

	if err := s.cache.Set(ctx, key, resp, 0); err != nil {
		s.logger.Warn("failed to cache user dashboard", zap.Error(err))
	}
	return resp, nil
}

// buildPerformance folds the per-user stage rows into one line per
// user. Funnel counts are inclusive: a converted lead also counts as
// a demo showed, a quotation sent and a negotiation.
func (s *DashboardService) buildPerformance(ctx context.Context, rows []repository.UserStageCount) []dto.UserPerformance {
	byUser := map[string]*dto.UserPerformance{}
	for _, row := range rows {
		perf, ok := byUser[row.UserID]
		if !ok {
			perf = &dto.UserPerformance{UserID: row.UserID}
			byUser[row.UserID] = perf
		}
		perf.Generated += row.Generated
		switch row.Stage {
		case models.StageDemoShowed:
			perf.DemoShowed += row.Count
		case models.StageQuotationSent:
			perf.DemoShowed += row.Count
			perf.QuotationSent += row.Count
		case models.StageNegotiation:
			perf.DemoShowed += row.Count
			perf.QuotationSent += row.Count
			perf.Negotiation += row.Count
		case models.StageConverted:
			perf.DemoShowed += row.Count
			perf.QuotationSent += row.Count
			perf.Negotiation += row.Count
			perf.Converted += row.Count
		case models.StageCancelled:
			perf.Cancelled += row.Count
		case models.StageExpired:
			perf.Expired += row.Count
		}
	}

	users, _, err := s.users.List(ctx, models.UserFilter{PageSize: 100})
	if err != nil {
		s.logger.Warn("failed to resolve user names for dashboard", zap.Error(err))
	}
	names := map[string]string{}
	for _, u := range users {
		names[u.ID] = u.FullName
	}

	performance := make([]dto.UserPerformance, 0, len(byUser))
	for id, perf := range byUser {
		perf.FullName = names[id]
		performance = append(performance, *perf)
	}
	sort.Slice(performance, func(i, j int) bool {
		if performance[i].Converted != performance[j].Converted {
			return performance[i].Converted > performance[j].Converted
		}
		return performance[i].FullName < performance[j].FullName
	})
	return performance
}

func buildFunnel(counts []repository.StageCount) []dto.FunnelStage {
	byStage := map[models.LeadStage]int{}
	for _, sc := range counts {
		byStage[sc.Stage] = sc.Count
	}
	funnel := make([]dto.FunnelStage, 0, len(funnelOrder))
	for _, stage := range funnelOrder {
		funnel = append(funnel, dto.FunnelStage{Stage: string(stage), Count: byStage[stage]})
	}
	return funnel
}
