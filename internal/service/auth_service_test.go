package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.auth.Register(ctx, models.RegisterRequest{Name: "Tina", Email: "Tina@Example.com", Password: "secret1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, "tina@example.com", registered.User.Email)
	assert.Equal(t, models.RoleTeacher, registered.User.Role)
	assert.NotEmpty(t, registered.Token)

	login, err := env.auth.Login(ctx, models.LoginRequest{Email: "tina@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, login.User.ID)
	assert.Equal(t, int64(time.Hour.Seconds()), login.ExpiresIn)

	identity, err := env.auth.Resolve(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User, identity)
}

func TestRegisterDefaultsToStudentAndRejectsAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.auth.Register(ctx, models.RegisterRequest{Name: "Sam", Email: "sam@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.User.Role)

	_, err = env.auth.Register(ctx, models.RegisterRequest{Name: "Eve", Email: "eve@example.com", Password: "secret1", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := models.RegisterRequest{Name: "Sam", Email: "sam@example.com", Password: "secret1"}

	_, err := env.auth.Register(ctx, req)
	require.NoError(t, err)
	_, err = env.auth.Register(ctx, req)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.auth.Register(ctx, models.RegisterRequest{Name: "Sam", Email: "sam@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, wrongPassword := env.auth.Login(ctx, models.LoginRequest{Email: "sam@example.com", Password: "nope"})
	_, unknownEmail := env.auth.Login(ctx, models.LoginRequest{Email: "ghost@example.com", Password: "nope"})
	require.Error(t, wrongPassword)
	assert.Equal(t, wrongPassword, unknownEmail)
	assert.ErrorIs(t, unknownEmail, appErrors.ErrInvalidCredentials)
}

func TestResolveFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	resp, err := env.auth.Register(ctx, models.RegisterRequest{Name: "Sam", Email: "sam@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = env.auth.Resolve(ctx, "")
	assert.ErrorIs(t, err, appErrors.ErrTokenMissing)

	_, err = env.auth.Resolve(ctx, "not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrTokenMissing)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: resp.User.ID,
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "learnhub-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = env.auth.Resolve(ctx, signed)
	assert.ErrorIs(t, err, appErrors.ErrTokenInvalid)

	env.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = env.auth.Resolve(ctx, resp.Token)
	assert.ErrorIs(t, err, appErrors.ErrTokenInvalid)
}

func TestResolveUsesCurrentAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	resp, err := env.auth.Register(ctx, models.RegisterRequest{Name: "Sam", Email: "sam@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, env.store.Users().Delete(ctx, resp.User.ID))
	_, err = env.auth.Resolve(ctx, resp.Token)
	assert.ErrorIs(t, err, appErrors.ErrTokenInvalid)
}

type failingAccounts struct{ err error }

func (f failingAccounts) Create(ctx context.Context, user *models.User) error { return f.err }
func (f failingAccounts) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, f.err
}
func (f failingAccounts) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, f.err
}

func TestAuthStoreFailureIsUnavailable(t *testing.T) {
	svc := NewAuthService(failingAccounts{err: errors.New("connection refused")}, nil, nil, AuthConfig{Secret: "s", BcryptCost: 4})
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "sam@example.com", Password: "x"})
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Name: "Sam", Email: "sam@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}
