package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
)

type authRepoStub struct {
	users map[string]*models.User

	loginStateID       string
	loginStateAttempts int
	loginStateLocked   *time.Time
	loginStateLast     *time.Time
}

func (s *authRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.users == nil {
		s.users = make(map[string]*models.User)
	}
	s.users[user.ID] = user
	return nil
}

func (s *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authRepoStub) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	return err == nil, nil
}

func (s *authRepoStub) UpdateProfile(ctx context.Context, user *models.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *authRepoStub) UpdateLoginState(ctx context.Context, id string, attempts int, lockedUntil, lastLogin *time.Time) error {
	s.loginStateID = id
	s.loginStateAttempts = attempts
	s.loginStateLocked = lockedUntil
	s.loginStateLast = lastLogin
	return nil
}

func newAuthService(repo *authRepoStub) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "tutorlink-test",
	})
}

func activeUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		Status:       models.UserStatusActive,
	}
}

func TestSignupDefaultsToStudent(t *testing.T) {
	repo := &authRepoStub{}
	svc := newAuthService(repo)

	res, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "ana@example.com",
		Password: "secret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.NotEmpty(t, res.Token)

	stored := repo.users[res.User.ID]
	require.NotNil(t, stored)
	assert.Equal(t, models.UserStatusActive, stored.Status)
	assert.NotEqual(t, "secret-pass", stored.PasswordHash)
}

func TestSignupRejectsAdminRole(t *testing.T) {
	svc := newAuthService(&authRepoStub{})

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "root@example.com",
		Password: "secret-pass",
		Role:     models.RoleAdmin,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSignupDuplicateEmail(t *testing.T) {
	repo := &authRepoStub{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "ana@example.com"},
	}}
	svc := newAuthService(repo)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "ana@example.com",
		Password: "secret-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateEmail.Code, appErrors.FromError(err).Code)
}

func TestSigninSuccessResetsLoginState(t *testing.T) {
	user := activeUser(t, "ana@example.com", "secret-pass")
	user.LoginAttempts = 3
	repo := &authRepoStub{users: map[string]*models.User{user.ID: user}}
	svc := newAuthService(repo)

	res, err := svc.Signin(context.Background(), models.SigninRequest{
		Email:    "ana@example.com",
		Password: "secret-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	assert.Equal(t, user.ID, repo.loginStateID)
	assert.Zero(t, repo.loginStateAttempts)
	assert.Nil(t, repo.loginStateLocked)
	require.NotNil(t, repo.loginStateLast)
}

func TestSigninWrongPasswordCountsAttempt(t *testing.T) {
	user := activeUser(t, "ana@example.com", "secret-pass")
	user.LoginAttempts = 1
	repo := &authRepoStub{users: map[string]*models.User{user.ID: user}}
	svc := newAuthService(repo)

	_, err := svc.Signin(context.Background(), models.SigninRequest{
		Email:    "ana@example.com",
		Password: "wrong-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 2, repo.loginStateAttempts)
	assert.Nil(t, repo.loginStateLocked)
}

func TestSigninLocksAfterMaxAttempts(t *testing.T) {
	user := activeUser(t, "ana@example.com", "secret-pass")
	user.LoginAttempts = 4
	repo := &authRepoStub{users: map[string]*models.User{user.ID: user}}
	svc := newAuthService(repo)

	_, err := svc.Signin(context.Background(), models.SigninRequest{
		Email:    "ana@example.com",
		Password: "wrong-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	require.NotNil(t, repo.loginStateLocked)
	assert.True(t, repo.loginStateLocked.After(time.Now()))
	assert.Zero(t, repo.loginStateAttempts)
}

func TestSigninLockedAccount(t *testing.T) {
	user := activeUser(t, "ana@example.com", "secret-pass")
	until := time.Now().Add(10 * time.Minute)
	user.LockedUntil = &until
	repo := &authRepoStub{users: map[string]*models.User{user.ID: user}}
	svc := newAuthService(repo)

	_, err := svc.Signin(context.Background(), models.SigninRequest{
		Email:    "ana@example.com",
		Password: "secret-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccountLocked.Code, appErrors.FromError(err).Code)
}

func TestSigninExpiredLockAllowsLogin(t *testing.T) {
	user := activeUser(t, "ana@example.com", "secret-pass")
	until := time.Now().Add(-time.Minute)
	user.LockedUntil = &until
	repo := &authRepoStub{users: map[string]*models.User{user.ID: user}}
	svc := newAuthService(repo)

	_, err := svc.Signin(context.Background(), models.SigninRequest{
		Email:    "ana@example.com",
		Password: "secret-pass",
	})
	require.NoError(t, err)
}

func TestSigninDisabledAccount(t *testing.T) {
	user := activeUser(t, "ana@example.com", "secret-pass")
	user.Status = models.UserStatusSuspended
	repo := &authRepoStub{users: map[string]*models.User{user.ID: user}}
	svc := newAuthService(repo)

	_, err := svc.Signin(context.Background(), models.SigninRequest{
		Email:    "ana@example.com",
		Password: "secret-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccountDisabled.Code, appErrors.FromError(err).Code)
}

func TestSigninUnknownEmail(t *testing.T) {
	svc := newAuthService(&authRepoStub{})

	_, err := svc.Signin(context.Background(), models.SigninRequest{
		Email:    "nobody@example.com",
		Password: "secret-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestParseTokenRoundTrip(t *testing.T) {
	user := activeUser(t, "ana@example.com", "secret-pass")
	repo := &authRepoStub{users: map[string]*models.User{user.ID: user}}
	svc := newAuthService(repo)

	res, err := svc.Signin(context.Background(), models.SigninRequest{
		Email:    "ana@example.com",
		Password: "secret-pass",
	})
	require.NoError(t, err)

	claims, err := svc.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestParseTokenRejectsForgedSignature(t *testing.T) {
	user := activeUser(t, "ana@example.com", "secret-pass")
	repo := &authRepoStub{users: map[string]*models.User{user.ID: user}}
	svc := newAuthService(repo)

	res, err := svc.Signin(context.Background(), models.SigninRequest{
		Email:    "ana@example.com",
		Password: "secret-pass",
	})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{Secret: "other-secret", Expiration: time.Hour})
	_, err = other.ParseToken(res.Token)
	require.Error(t, err)
}
