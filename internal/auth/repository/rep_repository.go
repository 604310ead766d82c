package repository

import (
	"errors"
	"time"

	authdomain "msomi-backend/internal/auth/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RepRepository persists class rep accounts and their refresh tokens
type RepRepository interface {
	Create(rep *authdomain.ClassRep) error
	FindByEmail(email string) (*authdomain.ClassRep, error)
	FindByID(id string) (*authdomain.ClassRep, error)
	SaveRefreshToken(token *authdomain.RefreshToken) error
	FindRefreshToken(token string) (*authdomain.RefreshToken, error)
	DeleteRefreshToken(token string) error
}

// repRepository implements RepRepository interface
type repRepository struct {
	db *gorm.DB
}

// NewRepRepository creates a new instance of repRepository
func NewRepRepository(db *gorm.DB) RepRepository {
	return &repRepository{
		db: db,
	}
}

func (r *repRepository) Create(rep *authdomain.ClassRep) error {
	rep.ID = uuid.New().String()
	rep.CreatedAt = time.Now()
	rep.UpdatedAt = time.Now()
	return r.db.Create(rep).Error
}

func (r *repRepository) FindByEmail(email string) (*authdomain.ClassRep, error) {
	var rep authdomain.ClassRep
	err := r.db.Where("email = ?", email).First(&rep).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rep, nil
}

func (r *repRepository) FindByID(id string) (*authdomain.ClassRep, error) {
	var rep authdomain.ClassRep
	err := r.db.Where("id = ?", id).First(&rep).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rep, nil
}

// SaveRefreshToken adds a new refresh token for the rep without deleting
// existing valid ones, so each device keeps its own session. Expired tokens
// are cleaned up in the same transaction.
func (r *repRepository) SaveRefreshToken(token *authdomain.RefreshToken) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rep_id = ? AND expires_at < ?", token.RepID, time.Now()).Delete(&authdomain.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
}

func (r *repRepository) FindRefreshToken(token string) (*authdomain.RefreshToken, error) {
	var refreshToken authdomain.RefreshToken
	err := r.db.Where("token = ?", token).First(&refreshToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refreshToken, nil
}

func (r *repRepository) DeleteRefreshToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.RefreshToken{}).Error
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
