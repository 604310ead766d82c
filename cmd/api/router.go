package api

import (
	"net/http"

	authDelivery "msomi-backend/internal/auth/delivery"
	authUsecasePkg "msomi-backend/internal/auth/usecase"
	deviceDelivery "msomi-backend/internal/device/delivery"
	notifDelivery "msomi-backend/internal/notification/delivery"
	"msomi-backend/internal/notification/queue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func SetupRoutes(
	r *gin.Engine,
	authUsecase authUsecasePkg.AuthUsecase,
	notifHandler *notifDelivery.NotificationHandler,
	deviceHandler *deviceDelivery.DeviceHandler,
	db *gorm.DB,
	q *queue.Queue,
) {
	authHandler := authDelivery.NewAuthHandler(authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			status := gin.H{"status": "ok"}
			code := http.StatusOK

			if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
				status["status"] = "degraded"
				status["database"] = "down"
				code = http.StatusServiceUnavailable
			}
			if err := q.Ping(c.Request.Context()); err != nil {
				status["status"] = "degraded"
				status["redis"] = "down"
				code = http.StatusServiceUnavailable
			}
			c.JSON(code, status)
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authDelivery.AuthMiddleware(authUsecase), authHandler.Me)
		}

		// Device routes (registration is open to student apps)
		devices := api.Group("/devices")
		{
			devices.POST("/register", deviceHandler.Register)
			devices.GET("", authDelivery.AuthMiddleware(authUsecase), deviceHandler.List)
			devices.GET("/:id/tokens", authDelivery.AuthMiddleware(authUsecase), deviceHandler.GetTokens)
		}

		// FCM token lifecycle routes
		fcm := api.Group("/fcm")
		{
			fcm.POST("/refresh", deviceHandler.RefreshToken)
			fcm.POST("/invalid", authDelivery.AuthMiddleware(authUsecase), deviceHandler.MarkInvalid)
		}

		// Notification routes (sending requires a class rep session)
		notifications := api.Group("/notifications")
		{
			notifications.POST("/course", authDelivery.AuthMiddleware(authUsecase), notifHandler.SendCourseAlert)
			notifications.POST("/send", authDelivery.AuthMiddleware(authUsecase), notifHandler.Send)
			notifications.GET("/history", notifHandler.GetHistory)
		}

		// Queue routes (protected)
		queueGroup := api.Group("/queue")
		queueGroup.Use(authDelivery.AuthMiddleware(authUsecase))
		{
			queueGroup.GET("/status", notifHandler.GetQueueStats)
			queueGroup.GET("/jobs/:id", notifHandler.GetJob)
			queueGroup.POST("/jobs/:id/retry", notifHandler.RetryJob)
			queueGroup.POST("/clear", notifHandler.ClearQueue)
		}
	}
}
