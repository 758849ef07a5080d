package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"safedrive/internal/domain"
	"safedrive/internal/handler"
	"safedrive/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	UserHandler     *handler.UserHandler
	DriverHandler   *handler.DriverHandler
	TripHandler     *handler.TripHandler
	PaymentHandler  *handler.PaymentHandler
	SettingsHandler *handler.SettingsHandler
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
	JWTSecret       string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	auth := middleware.Auth(deps.JWTSecret)
	idempotency := middleware.Idempotency(deps.RedisClient)

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// User routes. Registration is open; lookup requires auth.
		users := v1.Group("/users")
		{
			users.POST("/register", deps.UserHandler.RegisterUser)
			users.GET("/:id", auth, deps.UserHandler.GetUser)
		}

		// Driver routes.
		drivers := v1.Group("/drivers", auth)
		{
			drivers.POST("", idempotency, deps.DriverHandler.RegisterDriver)
			drivers.GET("/me", deps.DriverHandler.GetStats)
			drivers.GET("", middleware.RequireRole(string(domain.RoleAdmin)), deps.DriverHandler.ListDrivers)
		}

		// Trip routes.
		trips := v1.Group("/trips", auth, idempotency)
		{
			trips.POST("/estimate", deps.TripHandler.Estimate)
			trips.POST("", deps.TripHandler.CreateTrip)
			trips.GET("", deps.TripHandler.ListTrips)
			trips.GET("/available", deps.TripHandler.ListAvailable)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.PUT("/:id/accept", deps.TripHandler.AcceptTrip)
			trips.PUT("/:id/start", deps.TripHandler.StartDriving)
			trips.PUT("/:id/complete", deps.TripHandler.CompleteTrip)
			trips.DELETE("/:id", deps.TripHandler.CancelTrip)
			trips.POST("/:id/rate", deps.TripHandler.RateTrip)
		}

		// Payment routes. The gateway callback is unauthenticated:
		// M-Pesa does not send bearer tokens.
		payments := v1.Group("/payments")
		{
			payments.POST("/callback", deps.PaymentHandler.Callback)
			payments.POST("/initiate", auth, idempotency, deps.PaymentHandler.InitiatePayment)
			payments.GET("", auth, deps.PaymentHandler.ListPayments)
			payments.GET("/:id", auth, deps.PaymentHandler.GetPayment)
			payments.GET("/:id/status", auth, deps.PaymentHandler.CheckStatus)
		}

		// Admin settings.
		admin := v1.Group("/admin", auth, middleware.RequireRole(string(domain.RoleAdmin)))
		{
			admin.GET("/settings/:key", deps.SettingsHandler.GetSetting)
			admin.PUT("/settings/:key", deps.SettingsHandler.SetSetting)
		}
	}

	return router
}
