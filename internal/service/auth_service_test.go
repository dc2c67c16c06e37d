package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/opportunity-tracker-api/internal/models"
	appErrors "github.com/noah-isme/opportunity-tracker-api/pkg/errors"
)

type authRepoStub struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	tokens        map[string]*models.RefreshToken
	created       []*models.RefreshToken
	revokedIDs    []string
	revokedUserID string
	lastLoginID   string
	auditActions  []string
	passwordHash  string
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{
		usersByEmail: map[string]*models.User{},
		usersByID:    map[string]*models.User{},
		tokens:       map[string]*models.RefreshToken{},
	}
}

func (s *authRepoStub) addUser(u *models.User) {
	s.usersByEmail[u.Email] = u
	s.usersByID[u.ID] = u
}

func (s *authRepoStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := s.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) UpdateLastLogin(_ context.Context, id string, _ time.Time) error {
	s.lastLoginID = id
	return nil
}

func (s *authRepoStub) UpdatePassword(_ context.Context, _ string, hash string, _ time.Time) error {
	s.passwordHash = hash
	return nil
}

func (s *authRepoStub) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	s.revokedUserID = userID
	return nil
}

func (s *authRepoStub) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.tokens[token.Token] = token
	s.created = append(s.created, token)
	return nil
}

func (s *authRepoStub) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := s.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	s.revokedIDs = append(s.revokedIDs, id)
	return nil
}

func (s *authRepoStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.auditActions = append(s.auditActions, log.Action)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *authRepoStub) {
	t.Helper()
	repo := newAuthRepoStub()
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "opportunity-tracker-api",
	})
	return svc, repo
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginIssuesTokensAndAudits(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.addUser(&models.User{
		ID:                  "user-1",
		Email:               "dana@example.com",
		FullName:            "Dana Seller",
		Role:                models.RoleDistributor,
		Active:              true,
		DefaultLockInMonths: 3,
		PasswordHash:        hashPassword(t, "s3cret99"),
	})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "dana@example.com", Password: "s3cret99"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, 3, res.User.DefaultLockInMonths)
	assert.Equal(t, "user-1", repo.lastLoginID)
	assert.Contains(t, repo.auditActions, models.AuditActionLogin)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleDistributor, claims.Role)
}

func TestLoginRefusesInactiveBeforePasswordCheck(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.addUser(&models.User{
		ID:           "user-2",
		Email:        "gone@example.com",
		Active:       false,
		PasswordHash: hashPassword(t, "whatever1"),
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "gone@example.com", Password: "whatever1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.addUser(&models.User{
		ID:           "user-1",
		Email:        "dana@example.com",
		Active:       true,
		PasswordHash: hashPassword(t, "s3cret99"),
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "dana@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.addUser(&models.User{ID: "user-1", Email: "dana@example.com", Active: true})
	repo.tokens["old-token"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "user-1",
		Token:     "old-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)

	assert.NotEqual(t, "old-token", res.RefreshToken)
	assert.Contains(t, repo.revokedIDs, "rt-1")
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.tokens["stale"] = &models.RefreshToken{
		ID:        "rt-2",
		UserID:    "user-1",
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRefusesForeignToken(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.tokens["theirs"] = &models.RefreshToken{
		ID:        "rt-3",
		UserID:    "user-9",
		Token:     "theirs",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	err := svc.Logout(context.Background(), "theirs", "user-1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.addUser(&models.User{
		ID:           "user-1",
		Email:        "dana@example.com",
		Active:       true,
		PasswordHash: hashPassword(t, "oldpass1"),
	})

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "oldpass1",
		NewPassword: "newpass1",
	})
	require.NoError(t, err)

	assert.Equal(t, "user-1", repo.revokedUserID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordHash), []byte("newpass1")))
	assert.Contains(t, repo.auditActions, models.AuditActionPasswordChange)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.addUser(&models.User{
		ID:           "user-1",
		Email:        "dana@example.com",
		Active:       true,
		PasswordHash: hashPassword(t, "s3cret99"),
	})
	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "dana@example.com", Password: "s3cret99"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "different", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(res.AccessToken)
	require.Error(t, err)
}
