package usecase

import (
	"errors"
	"time"

	authdomain "msomi-backend/internal/auth/domain"
	authdto "msomi-backend/internal/auth/dto"
	"msomi-backend/internal/auth/repository"
	"msomi-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthUsecase issues and validates class rep sessions
type AuthUsecase interface {
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	ValidateToken(tokenString string) (*authdomain.ClassRep, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	repRepo repository.RepRepository
	config  *config.Config
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(repRepo repository.RepRepository, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		repRepo: repRepo,
		config:  cfg,
	}
}

func (u *authUsecase) Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	existing, err := u.repRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return nil, errors.New("email already registered")
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	rep := &authdomain.ClassRep{
		Email:    req.Email,
		Password: hashedPassword,
		Name:     req.Name,
	}

	if err := u.repRepo.Create(rep); err != nil {
		return nil, err
	}

	return u.generateTokens(rep)
}

func (u *authUsecase) Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	rep, err := u.repRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if rep == nil {
		return nil, errors.New("invalid email or password")
	}

	if !repository.CheckPasswordHash(req.Password, rep.Password) {
		return nil, errors.New("invalid email or password")
	}

	return u.generateTokens(rep)
}

func (u *authUsecase) RefreshToken(refreshToken string) (*authdto.TokenResponse, error) {
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, errors.New("invalid refresh token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	storedToken, err := u.repRepo.FindRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if storedToken == nil || storedToken.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("refresh token expired")
	}

	repID, ok := claims["rep_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	rep, err := u.repRepo.FindByID(repID)
	if err != nil {
		return nil, err
	}

	if rep == nil {
		return nil, errors.New("account not found")
	}

	return u.generateTokens(rep)
}

func (u *authUsecase) Logout(refreshToken string) error {
	return u.repRepo.DeleteRefreshToken(refreshToken)
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.ClassRep, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	repID, ok := claims["rep_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	rep, err := u.repRepo.FindByID(repID)
	if err != nil {
		return nil, err
	}

	if rep == nil {
		return nil, errors.New("account not found")
	}

	return rep, nil
}

func (u *authUsecase) generateTokens(rep *authdomain.ClassRep) (*authdto.TokenResponse, error) {
	accessToken, err := u.generateAccessToken(rep)
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.generateRefreshToken(rep)
	if err != nil {
		return nil, err
	}

	refreshTokenEntity := &authdomain.RefreshToken{
		Token:     refreshToken,
		RepID:     rep.ID,
		ExpiresAt: time.Now().Add(u.config.JWTRefreshExpiry),
	}
	if err := u.repRepo.SaveRefreshToken(refreshTokenEntity); err != nil {
		return nil, err
	}

	// Never hand the password hash back to callers.
	rep.Password = ""

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Rep:          rep,
	}, nil
}

func (u *authUsecase) generateAccessToken(rep *authdomain.ClassRep) (string, error) {
	claims := jwt.MapClaims{
		"rep_id": rep.ID,
		"email":  rep.Email,
		"exp":    time.Now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":    time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) generateRefreshToken(rep *authdomain.ClassRep) (string, error) {
	claims := jwt.MapClaims{
		"rep_id":   rep.ID,
		"token_id": uuid.New().String(),
		"exp":      time.Now().Add(u.config.JWTRefreshExpiry).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}
