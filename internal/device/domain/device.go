package domain

import "time"

// Token lifecycle states. Invalid tokens are kept for audit, never deleted.
const (
	TokenActive  = "active"
	TokenInvalid = "invalid"
)

// Device represents a registered student device holding one push token.
// Re-registration with the same token updates the row instead of duplicating it.
type Device struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Token        string    `json:"-" gorm:"uniqueIndex;not null"` // Don't expose token in JSON
	StudentName  string    `json:"student_name"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	TokenStatus  string    `json:"token_status" gorm:"index;not null;default:active"`
	Platform     string    `json:"platform"` // Device/OS metadata from registration
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
	UpdatedAt    time.Time `json:"updated_at"`

	Subscriptions []Subscription `json:"subscriptions" gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

// Subscription links a device to one course feed. A device may follow many
// courses and a course has many devices.
type Subscription struct {
	ID         uint   `json:"-" gorm:"primaryKey"`
	DeviceID   string `json:"-" gorm:"index:idx_device_course,unique;not null"`
	CourseCode string `json:"course_code" gorm:"index:idx_device_course,unique;index;not null"`
}
