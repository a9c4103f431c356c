package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolahku/roster-api/internal/models"
	appErrors "github.com/sekolahku/roster-api/pkg/errors"
)

type mockUserRepo struct {
	users         map[string]*models.User
	usersByEmail  map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revokedIDs    []string
	auditActions  []string
	lastLogin     *time.Time
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:         make(map[string]*models.User),
		usersByEmail:  make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockUserRepo) addUser(user *models.User) {
	m.users[user.ID] = user
	m.usersByEmail[user.Email] = user
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin = &ts
	return nil
}

func (m *mockUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	cp := *token
	m.refreshTokens[token.Token] = &cp
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := m.refreshTokens[token]; ok {
		cp := *stored
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedIDs = append(m.revokedIDs, id)
	for _, stored := range m.refreshTokens {
		if stored.ID == id {
			stored.Revoked = true
			stored.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, stored := range m.refreshTokens {
		if stored.UserID == userID {
			stored.Revoked = true
		}
	}
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditActions = append(m.auditActions, log.Action)
	return nil
}

func testAuthService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "roster-api",
	})
}

func seedUser(t *testing.T, repo *mockUserRepo, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "user-1",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		FullName:     "Admin One",
		Role:         models.RoleAdmin,
		Active:       active,
	}
	repo.addUser(user)
	return user
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, true)
	service := testAuthService(repo)

	resp, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "admin@example.com", resp.User.Email)
	assert.NotNil(t, repo.lastLogin)
	assert.Contains(t, repo.auditActions, models.AuditActionLogin)

	claims, err := service.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, true)
	service := testAuthService(repo)

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	service := testAuthService(newMockUserRepo())

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "s3cret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, false)
	service := testAuthService(repo)

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, true)
	service := testAuthService(repo)

	login, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)

	refreshed, err := service.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	require.Len(t, repo.revokedIDs, 1, "consumed token must be rotated out")

	// The old token is now revoked and cannot be replayed.
	_, err = service.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, true)
	service := testAuthService(repo)

	repo.refreshTokens["stale"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "user-1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}

	_, err := service.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, true)
	service := testAuthService(repo)

	login, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)

	require.NoError(t, service.Logout(context.Background(), login.RefreshToken, "user-1", "127.0.0.1", "test-agent"))
	assert.Len(t, repo.revokedIDs, 1)
	assert.Contains(t, repo.auditActions, models.AuditActionLogout)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, true)
	service := testAuthService(repo)

	login, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)

	err = service.Logout(context.Background(), login.RefreshToken, "someone-else", "", "")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
	assert.Empty(t, repo.revokedIDs)
}

func TestAuthServiceValidateTokenRejectsForgedSignature(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, true)
	service := testAuthService(repo)

	login, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}
