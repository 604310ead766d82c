package api

import (
	authUsecasePkg "msomi-backend/internal/auth/usecase"
	deviceDelivery "msomi-backend/internal/device/delivery"
	deviceUsecasePkg "msomi-backend/internal/device/usecase"
	notifDelivery "msomi-backend/internal/notification/delivery"
	"msomi-backend/internal/notification/queue"
	fanoutUsecasePkg "msomi-backend/internal/notification/usecase"
	"msomi-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	authUsecase   authUsecasePkg.AuthUsecase
	config        *config.Config
	db            *gorm.DB
	queue         *queue.Queue
	notifHandler  *notifDelivery.NotificationHandler
	deviceHandler *deviceDelivery.DeviceHandler
}

func NewHandler(
	authUc authUsecasePkg.AuthUsecase,
	deviceUc deviceUsecasePkg.DeviceUsecase,
	fanoutUc fanoutUsecasePkg.FanoutUsecase,
	q *queue.Queue,
	db *gorm.DB,
	cfg *config.Config,
) *Handler {
	return &Handler{
		authUsecase:   authUc,
		config:        cfg,
		db:            db,
		queue:         q,
		notifHandler:  notifDelivery.NewNotificationHandler(fanoutUc),
		deviceHandler: deviceDelivery.NewDeviceHandler(deviceUc),
	}
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Setup routes
	SetupRoutes(r, h.authUsecase, h.notifHandler, h.deviceHandler, h.db, h.queue)

	return r.Run(addr)
}
