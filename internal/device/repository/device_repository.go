package repository

import (
	"errors"
	"time"

	devicedomain "msomi-backend/internal/device/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository is the token directory: it owns the association between
// devices, course subscriptions and delivery tokens.
type DeviceRepository interface {
	Register(token, studentName, phoneNumber, platform string, courses []string) (*devicedomain.Device, bool, error)
	FindByID(id string) (*devicedomain.Device, error)
	FindByToken(token string) (*devicedomain.Device, error)
	FindTokensByCourse(courseCode string) ([]string, error)
	RotateToken(oldToken, newToken string) error
	MarkInvalid(token string) error
	List(limit int) ([]devicedomain.Device, error)
	MarkStaleInactive(before time.Time) (int64, error)
}

// deviceRepository implements DeviceRepository on GORM
type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new instance of deviceRepository
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{
		db: db,
	}
}

// Register saves or updates a device keyed by its token and replaces its
// course subscriptions. The created flag comes from the insert itself, so
// concurrent registrations of the same token report created at most once.
func (r *deviceRepository) Register(token, studentName, phoneNumber, platform string, courses []string) (*devicedomain.Device, bool, error) {
	device := &devicedomain.Device{
		ID:           uuid.New().String(),
		Token:        token,
		StudentName:  studentName,
		PhoneNumber:  phoneNumber,
		Platform:     platform,
		TokenStatus:  devicedomain.TokenActive,
		RegisteredAt: time.Now(),
		LastSeen:     time.Now(),
		UpdatedAt:    time.Now(),
	}

	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// INSERT ... ON CONFLICT (token) DO NOTHING. RowsAffected tells
		// insert apart from conflict, which DO UPDATE cannot.
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoNothing: true,
		}).Create(device)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1

		if !created {
			// Re-registration refreshes the record and reactivates an
			// invalidated token: the provider re-issued it, so it is
			// live again.
			if err := tx.Model(&devicedomain.Device{}).
				Where("token = ?", token).
				Updates(map[string]interface{}{
					"student_name": studentName,
					"phone_number": phoneNumber,
					"platform":     platform,
					"token_status": devicedomain.TokenActive,
					"last_seen":    time.Now(),
					"updated_at":   time.Now(),
				}).Error; err != nil {
				return err
			}
		}

		var saved devicedomain.Device
		if err := tx.Where("token = ?", token).First(&saved).Error; err != nil {
			return err
		}
		device.ID = saved.ID

		if courses == nil {
			return nil
		}

		// Replace subscriptions with the submitted course list
		if err := tx.Where("device_id = ?", saved.ID).Delete(&devicedomain.Subscription{}).Error; err != nil {
			return err
		}
		for _, course := range courses {
			sub := devicedomain.Subscription{DeviceID: saved.ID, CourseCode: course}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&sub).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	dev, err := r.FindByToken(token)
	if err != nil {
		return nil, false, err
	}
	return dev, created, nil
}

func (r *deviceRepository) FindByID(id string) (*devicedomain.Device, error) {
	var device devicedomain.Device
	err := r.db.Preload("Subscriptions").Where("id = ?", id).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepository) FindByToken(token string) (*devicedomain.Device, error) {
	var device devicedomain.Device
	err := r.db.Preload("Subscriptions").Where("token = ?", token).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

// FindTokensByCourse returns the active delivery tokens subscribed to a course.
func (r *deviceRepository) FindTokensByCourse(courseCode string) ([]string, error) {
	var tokens []string
	err := r.db.Model(&devicedomain.Device{}).
		Joins("JOIN subscriptions ON subscriptions.device_id = devices.id").
		Where("subscriptions.course_code = ? AND devices.token_status = ?", courseCode, devicedomain.TokenActive).
		Pluck("devices.token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// RotateToken swaps a refreshed provider token in place, keeping the device
// record and its subscriptions.
func (r *deviceRepository) RotateToken(oldToken, newToken string) error {
	result := r.db.Model(&devicedomain.Device{}).
		Where("token = ?", oldToken).
		Updates(map[string]interface{}{
			"token":        newToken,
			"token_status": devicedomain.TokenActive,
			"last_seen":    time.Now(),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkInvalid flags a token the provider permanently rejected. Idempotent:
// marking an already-invalid or unknown token is a no-op, not an error.
func (r *deviceRepository) MarkInvalid(token string) error {
	return r.db.Model(&devicedomain.Device{}).
		Where("token = ?", token).
		Updates(map[string]interface{}{
			"token_status": devicedomain.TokenInvalid,
			"updated_at":   time.Now(),
		}).Error
}

func (r *deviceRepository) List(limit int) ([]devicedomain.Device, error) {
	var devices []devicedomain.Device
	err := r.db.Preload("Subscriptions").
		Where("token_status = ?", devicedomain.TokenActive).
		Order("registered_at DESC").
		Limit(limit).
		Find(&devices).Error
	return devices, err
}

// MarkStaleInactive invalidates tokens of devices not seen since the given
// cutoff. Returns the number of devices affected.
func (r *deviceRepository) MarkStaleInactive(before time.Time) (int64, error) {
	result := r.db.Model(&devicedomain.Device{}).
		Where("last_seen < ? AND token_status = ?", before, devicedomain.TokenActive).
		Updates(map[string]interface{}{
			"token_status": devicedomain.TokenInvalid,
			"updated_at":   time.Now(),
		})
	return result.RowsAffected, result.Error
}
