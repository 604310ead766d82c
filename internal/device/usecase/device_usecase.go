package usecase

import (
	"errors"
	"log"

	devicedomain "msomi-backend/internal/device/domain"
	"msomi-backend/internal/device/repository"

	"gorm.io/gorm"
)

// ErrDeviceNotFound signals an operation against an unknown token.
var ErrDeviceNotFound = errors.New("device not found")

// DeviceUsecase covers registration and token lifecycle for student devices.
type DeviceUsecase interface {
	Register(token, studentName, phoneNumber, platform string, courses []string) (*devicedomain.Device, bool, error)
	Get(id string) (*devicedomain.Device, error)
	List(limit int) ([]devicedomain.Device, error)
	RefreshToken(oldToken, newToken string) error
	MarkInvalid(token, reason string) error
}

// deviceUsecase implements DeviceUsecase
type deviceUsecase struct {
	deviceRepo repository.DeviceRepository
}

// NewDeviceUsecase creates a new instance of deviceUsecase
func NewDeviceUsecase(deviceRepo repository.DeviceRepository) DeviceUsecase {
	return &deviceUsecase{
		deviceRepo: deviceRepo,
	}
}

// Register upserts a device keyed by token. The second return value reports
// whether the device was newly created; the repository derives it from the
// insert itself, so concurrent registrations cannot both report created.
func (u *deviceUsecase) Register(token, studentName, phoneNumber, platform string, courses []string) (*devicedomain.Device, bool, error) {
	return u.deviceRepo.Register(token, studentName, phoneNumber, platform, courses)
}

func (u *deviceUsecase) Get(id string) (*devicedomain.Device, error) {
	device, err := u.deviceRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

func (u *deviceUsecase) List(limit int) ([]devicedomain.Device, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return u.deviceRepo.List(limit)
}

func (u *deviceUsecase) RefreshToken(oldToken, newToken string) error {
	err := u.deviceRepo.RotateToken(oldToken, newToken)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDeviceNotFound
	}
	return err
}

// MarkInvalid flags a token as dead. Idempotent by contract of the directory.
func (u *deviceUsecase) MarkInvalid(token, reason string) error {
	if reason != "" {
		log.Printf("[Device] Marking token invalid: %s", reason)
	}
	return u.deviceRepo.MarkInvalid(token)
}
