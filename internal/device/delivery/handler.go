package delivery

import (
	"errors"
	"net/http"
	"strconv"

	devicedto "msomi-backend/internal/device/dto"
	"msomi-backend/internal/device/usecase"

	"github.com/gin-gonic/gin"
)

// DeviceHandler exposes device registration and token lifecycle routes.
type DeviceHandler struct {
	deviceUsecase usecase.DeviceUsecase
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(deviceUsecase usecase.DeviceUsecase) *DeviceHandler {
	return &DeviceHandler{
		deviceUsecase: deviceUsecase,
	}
}

// Register stores or updates a device keyed by its push token.
func (h *DeviceHandler) Register(c *gin.Context) {
	var req devicedto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "deviceToken is required"})
		return
	}

	device, created, err := h.deviceUsecase.Register(req.DeviceToken, req.StudentName, req.PhoneNumber, req.Platform, req.Courses)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	status := http.StatusOK
	message := "Device updated"
	if created {
		status = http.StatusCreated
		message = "Device registered"
	}
	c.JSON(status, gin.H{
		"success":  true,
		"message":  message,
		"deviceId": device.ID,
	})
}

// List returns active devices, newest registrations first.
func (h *DeviceHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	devices, err := h.deviceUsecase.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(devices), "devices": devices})
}

// GetTokens returns the token lifecycle info for one device.
func (h *DeviceHandler) GetTokens(c *gin.Context) {
	device, err := h.deviceUsecase.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"deviceId":      device.ID,
		"tokenStatus":   device.TokenStatus,
		"platform":      device.Platform,
		"lastSeen":      device.LastSeen,
		"subscriptions": device.Subscriptions,
	})
}

// RefreshToken rotates a provider-issued token in place.
func (h *DeviceHandler) RefreshToken(c *gin.Context) {
	var req devicedto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "oldToken and newToken are required"})
		return
	}

	if err := h.deviceUsecase.RefreshToken(req.OldToken, req.NewToken); err != nil {
		if errors.Is(err, usecase.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkInvalid flags a token as permanently dead.
func (h *DeviceHandler) MarkInvalid(c *gin.Context) {
	var req devicedto.MarkInvalidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "token is required"})
		return
	}

	if err := h.deviceUsecase.MarkInvalid(req.Token, req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
