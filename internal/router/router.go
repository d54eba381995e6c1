// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/licenseforge/licenseforge/internal/config"
	"github.com/licenseforge/licenseforge/internal/crypto"
	"github.com/licenseforge/licenseforge/internal/events"
	"github.com/licenseforge/licenseforge/internal/handlers"
	"github.com/licenseforge/licenseforge/internal/middleware"
	"github.com/licenseforge/licenseforge/internal/repository"
	"github.com/licenseforge/licenseforge/internal/services"
	"github.com/licenseforge/licenseforge/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, cryptoStore *crypto.Store) (*gin.Engine, error) {
	// Initialize repositories
	licenseRepo := repository.NewLicenseRepository(db)
	activationLedger := repository.NewActivationLedger(db)
	generatorRepo := repository.NewGeneratorRepository(db)
	metaRepo := repository.NewMetaRepository(db)

	// Event dispatcher and listeners
	dispatcher := events.NewDispatcher()
	notificationService := services.NewNotificationService(cfg)
	dispatcher.Subscribe(notificationService)

	// Initialize services
	licenseService := services.NewLicenseService(licenseRepo, activationLedger, generatorRepo, metaRepo, cryptoStore, dispatcher)
	generatorService := services.NewGeneratorService(generatorRepo)
	orderService := services.NewOrderService(licenseService, cfg)
	exportService, err := services.NewExportService(licenseService, cfg)
	if err != nil {
		return nil, err
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg)
	licenseHandler := handlers.NewLicenseHandler(licenseService, exportService)
	generatorHandler := handlers.NewGeneratorHandler(generatorService, licenseService)
	webhookHandler := handlers.NewWebhookHandler(orderService, cfg)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandler.IssueToken)
		}

		// License routes
		licenses := v1.Group("/licenses")
		licenses.Use(middleware.AuthRequired())
		{
			licenses.POST("", licenseHandler.CreateLicense)
			licenses.GET("", licenseHandler.ListLicenses)
			licenses.POST("/import", middleware.BulkRateLimit(), licenseHandler.ImportLicenses)
			licenses.GET("/export", licenseHandler.ExportLicenses)
			licenses.POST("/activate", middleware.ActivateRateLimit(), licenseHandler.ActivateLicense)
			licenses.GET("/:id_or_key", licenseHandler.GetLicense)
			licenses.PUT("/:id_or_key", licenseHandler.UpdateLicense)
			licenses.DELETE("/:id_or_key", licenseHandler.DeleteLicense)
			licenses.GET("/:id_or_key/activations", licenseHandler.ListActivations)
			licenses.POST("/:id_or_key/meta", licenseHandler.AddMeta)
			licenses.GET("/:id_or_key/meta", licenseHandler.GetMeta)
			licenses.PUT("/:id_or_key/meta/:meta_id", licenseHandler.UpdateMeta)
			licenses.DELETE("/:id_or_key/meta/:meta_id", licenseHandler.DeleteMeta)
		}

		// Activation routes (token-addressed)
		activations := v1.Group("/activations")
		activations.Use(middleware.AuthRequired())
		{
			activations.DELETE("/:token", licenseHandler.DeactivateLicense)
			activations.PUT("/:token", licenseHandler.ReactivateLicense)
		}

		// Generator routes
		generators := v1.Group("/generators")
		generators.Use(middleware.AuthRequired())
		{
			generators.POST("", generatorHandler.CreateGenerator)
			generators.GET("", generatorHandler.ListGenerators)
			generators.GET("/:id", generatorHandler.GetGenerator)
			generators.PUT("/:id", generatorHandler.UpdateGenerator)
			generators.DELETE("/:id", generatorHandler.DeleteGenerator)
			generators.POST("/:id/generate", middleware.BulkRateLimit(), generatorHandler.GenerateLicenses)
		}

		// Webhook routes (signature-verified, no JWT)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/orders/backfill", webhookHandler.BackfillOrders)
		}
	}

	return r, nil
}
