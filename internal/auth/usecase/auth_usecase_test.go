package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	authdomain "msomi-backend/internal/auth/domain"
	authdto "msomi-backend/internal/auth/dto"
	"msomi-backend/internal/auth/repository"
	"msomi-backend/pkg/config"
)

func newTestAuth(t *testing.T) AuthUsecase {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.ClassRep{}, &authdomain.RefreshToken{}))

	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 24 * time.Hour,
	}
	return NewAuthUsecase(repository.NewRepRepository(db), cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Register(&authdto.RegisterRequest{
		Email:    "rep@campus.test",
		Password: "secret123",
		Name:     "Asha",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "rep@campus.test", resp.Rep.Email)
	require.Empty(t, resp.Rep.Password)

	login, err := auth.Login(&authdto.LoginRequest{
		Email:    "rep@campus.test",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.Equal(t, resp.Rep.ID, login.Rep.ID)
	require.Empty(t, login.Rep.Password)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	auth := newTestAuth(t)

	_, err := auth.Register(&authdto.RegisterRequest{
		Email:    "rep@campus.test",
		Password: "secret123",
		Name:     "Asha",
	})
	require.NoError(t, err)

	_, err = auth.Register(&authdto.RegisterRequest{
		Email:    "rep@campus.test",
		Password: "other456",
		Name:     "Brian",
	})
	require.Error(t, err)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	auth := newTestAuth(t)

	_, err := auth.Register(&authdto.RegisterRequest{
		Email:    "rep@campus.test",
		Password: "secret123",
		Name:     "Asha",
	})
	require.NoError(t, err)

	_, err = auth.Login(&authdto.LoginRequest{
		Email:    "rep@campus.test",
		Password: "wrong-pass",
	})
	require.Error(t, err)

	_, err = auth.Login(&authdto.LoginRequest{
		Email:    "nobody@campus.test",
		Password: "secret123",
	})
	require.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Register(&authdto.RegisterRequest{
		Email:    "rep@campus.test",
		Password: "secret123",
		Name:     "Asha",
	})
	require.NoError(t, err)

	rep, err := auth.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.Rep.ID, rep.ID)

	_, err = auth.ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestRefreshTokenRotation(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Register(&authdto.RegisterRequest{
		Email:    "rep@campus.test",
		Password: "secret123",
		Name:     "Asha",
	})
	require.NoError(t, err)

	refreshed, err := auth.RefreshToken(resp.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.Equal(t, resp.Rep.ID, refreshed.Rep.ID)
	require.Empty(t, refreshed.Rep.Password)

	_, err = auth.RefreshToken("bogus")
	require.Error(t, err)
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Register(&authdto.RegisterRequest{
		Email:    "rep@campus.test",
		Password: "secret123",
		Name:     "Asha",
	})
	require.NoError(t, err)

	require.NoError(t, auth.Logout(resp.RefreshToken))

	_, err = auth.RefreshToken(resp.RefreshToken)
	require.Error(t, err)
}
