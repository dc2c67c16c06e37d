package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
)

func newLeadRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLeadRepositoryApproveAppliesStatusPrecondition(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	lockedUntil := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads l SET status = $2")).
		WithArgs("lead-1", models.StatusLocked, lockedUntil, models.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Approve(context.Background(), "lead-1", lockedUntil)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryApproveReportsLostRace(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads l SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Approve(context.Background(), "lead-1", time.Now())
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryClaimRequiresPoolStatus(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	lockedUntil := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET status = $2, assigned_to_user_id = $3")).
		WithArgs("lead-9", models.StatusLocked, "user-2", "Sam Seller", lockedUntil, models.StatusPool).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Claim(context.Background(), "lead-9", "user-2", "Sam Seller", lockedUntil)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_name")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryListBuildsFilterArgs(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	status := models.StatusPool

	rows := sqlmock.NewRows([]string{"id", "school_name", "status", "stage"}).
		AddRow("lead-1", "Greenwood High", "POOL", "NEW")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, school_name")).
		WithArgs(models.StatusPool, "region-1", "%green%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(models.StatusPool, "region-1", "%green%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	leads, total, err := repo.List(context.Background(), models.LeadFilter{
		Status:   &status,
		RegionID: "region-1",
		Search:   "Green",
	})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryApplyUpdateSyncsTerminalStatus(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_updates")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET stage = $2")).
		WithArgs("lead-3", models.StageConverted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET status = $2")).
		WithArgs("lead-3", models.StatusConverted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	status := models.StatusConverted
	err := repo.ApplyUpdate(context.Background(), &models.LeadUpdate{
		LeadID:    "lead-3",
		Stage:     models.StageConverted,
		Note:      "Signed the order",
		UpdatedBy: "user-1",
	}, &status)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryBulkAssignIsTransactional(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	lockedUntil := time.Date(2026, 6, 13, 0, 0, 0, 0, time.UTC)
	createdAt := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leads SET status = $2, assigned_to_user_id = $3")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_updates")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_updates")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.BulkAssign(context.Background(), []string{"lead-1", "lead-2"}, "user-2", "Sam Seller", lockedUntil,
		&models.LeadUpdate{Stage: models.StageNew, Note: "Assigned from pool", UpdatedBy: "admin-1", CreatedAt: createdAt},
		&models.Notification{UserID: "user-2", Title: "Leads assigned", Message: "2 leads assigned to you", Type: models.NotificationInfo, CreatedAt: createdAt})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryCountByStatusExcludesInactive(t *testing.T) {
	db, mock, cleanup := newLeadRepoMock(t)
	defer cleanup()

	repo := NewLeadRepository(db)
	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("LOCKED", 5).
		AddRow("POOL", 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM leads WHERE status <> $1")).
		WithArgs(models.StatusInactive).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, models.StatusLocked, counts[0].Status)
	require.Equal(t, 5, counts[0].Count)
	require.NoError(t, mock.ExpectationsWereMet())
}
