package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	"github.com/noah-isme/opportunity-tracker-api/internal/repository"
)

type dashboardLeadRepoStub struct {
	statusCounts []repository.StatusCount
	stageCounts  []repository.StageCount
	userStages   []repository.StageCount
	perUser      []repository.UserStageCount
}

func (s *dashboardLeadRepoStub) CountByStatus(ctx context.Context) ([]repository.StatusCount, error) {
	return s.statusCounts, nil
}

func (s *dashboardLeadRepoStub) CountByStage(ctx context.Context) ([]repository.StageCount, error) {
	return s.stageCounts, nil
}

func (s *dashboardLeadRepoStub) CountByStageForUser(ctx context.Context, userID string) ([]repository.StageCount, error) {
	return s.userStages, nil
}

func (s *dashboardLeadRepoStub) CountPerUserStage(ctx context.Context) ([]repository.UserStageCount, error) {
	return s.perUser, nil
}

type dashboardUserRepoStub struct {
	users []models.User
}

func (s *dashboardUserRepoStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return s.users, len(s.users), nil
}

func TestAdminDashboardAggregates(t *testing.T) {
	leads := &dashboardLeadRepoStub{
		statusCounts: []repository.StatusCount{
			{Status: models.StatusPending, Count: 3},
			{Status: models.StatusLocked, Count: 10},
			{Status: models.StatusPool, Count: 2},
			{Status: models.StatusConverted, Count: 5},
			{Status: models.StatusCancelled, Count: 1},
		},
		stageCounts: []repository.StageCount{
			{Stage: models.StageNew, Count: 8},
			{Stage: models.StageConverted, Count: 5},
		},
		perUser: []repository.UserStageCount{
			{UserID: "u1", Stage: models.StageConverted, Count: 2, Generated: 1},
			{UserID: "u1", Stage: models.StageNegotiation, Count: 1, Generated: 1},
			{UserID: "u2", Stage: models.StageDemoShowed, Count: 4, Generated: 4},
		},
	}
	users := &dashboardUserRepoStub{users: []models.User{
		{ID: "u1", FullName: "Dana Seller"},
		{ID: "u2", FullName: "Sam Scout"},
	}}
	svc := NewDashboardService(leads, users, NewCacheService(nil, nil, 0, nil, false), nil)

	resp, err := svc.Admin(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 21, resp.TotalLeads)
	assert.Equal(t, 3, resp.PendingApproval)
	assert.Equal(t, 10, resp.ActiveLeads)
	assert.Equal(t, 2, resp.PoolLeads)
	assert.Equal(t, 5, resp.Converted)
	assert.Equal(t, 1, resp.Cancelled)

	require.Len(t, resp.StageFunnel, len(funnelOrder))
	assert.Equal(t, "NEW", resp.StageFunnel[0].Stage)
	assert.Equal(t, 8, resp.StageFunnel[0].Count)

	require.Len(t, resp.UserPerformance, 2)
	// Conversions sort first; funnel counts are inclusive of later stages.
	dana := resp.UserPerformance[0]
	assert.Equal(t, "Dana Seller", dana.FullName)
	assert.Equal(t, 2, dana.Converted)
	assert.Equal(t, 3, dana.Negotiation)
	assert.Equal(t, 3, dana.QuotationSent)
	assert.Equal(t, 3, dana.DemoShowed)
	assert.Equal(t, 2, dana.Generated)

	sam := resp.UserPerformance[1]
	assert.Equal(t, "Sam Scout", sam.FullName)
	assert.Equal(t, 4, sam.DemoShowed)
	assert.Equal(t, 0, sam.Converted)
}

func TestUserDashboardInclusiveCounts(t *testing.T) {
	leads := &dashboardLeadRepoStub{
		userStages: []repository.StageCount{
			{Stage: models.StageContacted, Count: 2},
			{Stage: models.StageDemoShowed, Count: 1},
			{Stage: models.StageQuotationSent, Count: 1},
			{Stage: models.StageConverted, Count: 3},
			{Stage: models.StageCancelled, Count: 2},
			{Stage: models.StageExpired, Count: 1},
		},
	}
	svc := NewDashboardService(leads, &dashboardUserRepoStub{}, NewCacheService(nil, nil, 0, nil, false), nil)

	resp, err := svc.User(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 10, resp.TotalLeads)
	assert.Equal(t, 5, resp.DemosShowed)
	assert.Equal(t, 4, resp.QuotesSent)
	assert.Equal(t, 3, resp.Converted)
	assert.Equal(t, 3, resp.Failed)
}
