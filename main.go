package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "msomi-backend/cmd/api"
	authdomain "msomi-backend/internal/auth/domain"
	authRepo "msomi-backend/internal/auth/repository"
	authUsecase "msomi-backend/internal/auth/usecase"
	devicedomain "msomi-backend/internal/device/domain"
	deviceRepo "msomi-backend/internal/device/repository"
	deviceScheduler "msomi-backend/internal/device/scheduler"
	deviceUsecase "msomi-backend/internal/device/usecase"
	notifdomain "msomi-backend/internal/notification/domain"
	"msomi-backend/internal/notification/dispatch"
	"msomi-backend/internal/notification/queue"
	notifRepo "msomi-backend/internal/notification/repository"
	fanoutUsecase "msomi-backend/internal/notification/usecase"
	"msomi-backend/pkg/config"
	"msomi-backend/pkg/database"
	"msomi-backend/pkg/fcm"
	"msomi-backend/pkg/telegram"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&devicedomain.Device{},
		&devicedomain.Subscription{},
		&notifdomain.DeliveryRecord{},
		&authdomain.ClassRep{},
		&authdomain.RefreshToken{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis (job queue backend)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Initialize repositories (dependency injection)
	deviceRepository := deviceRepo.NewDeviceRepository(db)
	ledgerRepository := notifRepo.NewLedgerRepository(db)
	repRepository := authRepo.NewRepRepository(db)

	// Initialize FCM client (optional, push delivery is disabled without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials, cfg.FirebaseProjectID)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			log.Println("[Main] FCM client initialized")
		}
	} else {
		log.Println("[WARN] No Firebase credentials configured, FCM disabled")
	}

	// Initialize Telegram sender (optional)
	var telegramSender fanoutUsecase.TelegramSender
	if cfg.TelegramBotToken != "" {
		sender, err := telegram.NewSender(cfg.TelegramBotToken)
		if err != nil {
			log.Printf("[WARN] Failed to initialize Telegram sender: %v", err)
		} else {
			telegramSender = sender
			log.Println("[Main] Telegram sender initialized")
		}
	}

	// Invalidation collector batches dead-token reports from the dispatcher
	// back into the device directory.
	collector := dispatch.NewCollector(deviceRepository, 5*time.Second, 50)

	var dispatcher *dispatch.Dispatcher
	if fcmClient != nil {
		dispatcher = dispatch.NewDispatcher(fcmClient, collector, cfg.FCMChunkSize, 30*time.Second)
	}

	// Initialize job queue and worker pool
	jobQueue := queue.NewQueue(rdb, queue.Options{
		Workers: cfg.QueueWorkers,
	})

	// Initialize use cases (dependency injection)
	fanoutUc := fanoutUsecase.NewFanoutUsecase(jobQueue, deviceRepository, dispatcher, ledgerRepository, telegramSender)
	deviceUc := deviceUsecase.NewDeviceUsecase(deviceRepository)
	authUc := authUsecase.NewAuthUsecase(repRepository, cfg)

	// Start queue workers
	jobQueue.Process(fanoutUc.HandleJob)
	jobQueue.Start()

	// Start stale device sweeper
	sweeper := deviceScheduler.NewStaleDeviceSweeper(deviceRepository, cfg.StaleDeviceAfter)
	sweeper.Start()

	// Initialize HTTP handler
	handler := api.NewHandler(authUc, deviceUc, fanoutUc, jobQueue, db, cfg)

	// Start server
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := handler.Start(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for shutdown signal, then drain workers and pending invalidations
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Main] Shutting down")
	sweeper.Stop()
	jobQueue.Stop()
	collector.Close()
	log.Println("[Main] Shutdown complete")
}
