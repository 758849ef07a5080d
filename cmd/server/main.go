package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"safedrive/internal/app"
	"safedrive/internal/config"
	"safedrive/internal/handler"
	"safedrive/internal/mpesa"
	internalRedis "safedrive/internal/redis"
	"safedrive/internal/repository/postgres"
	"safedrive/internal/service"
)

func main() {
	// Load .env if present, then configuration from the environment.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	// Redis-backed settings cache.
	settingsCache := internalRedis.NewSettingsCache(redisClient)

	// Repositories.
	userRepo := postgres.NewUserRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	tripRepo := postgres.NewTripRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)

	// M-Pesa gateway client.
	gateway := mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.Mpesa.BaseURL,
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		CallbackURL:    cfg.Mpesa.CallbackURL,
		AuthTimeout:    cfg.Mpesa.AuthTimeout,
		CallTimeout:    cfg.Mpesa.CallTimeout,
	})

	// Services.
	notificationService := service.NewNotificationService()
	settingsService := service.NewSettingsService(settingsRepo, settingsCache)
	fareEstimator := service.NewFareEstimator()
	userService := service.NewUserService(userRepo)
	driverService := service.NewDriverService(driverRepo)
	tripService := service.NewTripService(db, tripRepo, driverRepo, fareEstimator, settingsService, notificationService)
	reconciliationService := service.NewReconciliationService(db, paymentRepo, tripRepo, notificationService)
	paymentService := service.NewPaymentService(paymentRepo, tripRepo, gateway, reconciliationService)

	// Handlers.
	userHandler := handler.NewUserHandler(userService)
	driverHandler := handler.NewDriverHandler(driverService)
	tripHandler := handler.NewTripHandler(tripService, fareEstimator, settingsService)
	paymentHandler := handler.NewPaymentHandler(paymentService, reconciliationService)
	settingsHandler := handler.NewSettingsHandler(settingsService)

	// Router.
	router := app.NewRouter(app.RouterDeps{
		UserHandler:     userHandler,
		DriverHandler:   driverHandler,
		TripHandler:     tripHandler,
		PaymentHandler:  paymentHandler,
		SettingsHandler: settingsHandler,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
		JWTSecret:       cfg.JWT.Secret,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
