package dto

// RegisterDeviceRequest registers or updates a student device by its token.
type RegisterDeviceRequest struct {
	DeviceToken string   `json:"deviceToken" binding:"required"`
	StudentName string   `json:"studentName"`
	PhoneNumber string   `json:"phoneNumber"`
	Platform    string   `json:"platform"`
	Courses     []string `json:"courses"`
}

// RefreshTokenRequest rotates a provider-issued token in place.
type RefreshTokenRequest struct {
	OldToken string `json:"oldToken" binding:"required"`
	NewToken string `json:"newToken" binding:"required"`
}

// MarkInvalidRequest flags a token the provider will no longer accept.
type MarkInvalidRequest struct {
	Token  string `json:"token" binding:"required"`
	Reason string `json:"reason"`
}
