// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/config"
	"github.com/cubitdynamics/cubit-backend/internal/handlers"
	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/metrics"
	"github.com/cubitdynamics/cubit-backend/internal/middleware"
	"github.com/cubitdynamics/cubit-backend/internal/repository"
	"github.com/cubitdynamics/cubit-backend/internal/services"
)

const apiVersion = "1.0.0"

// Services holds the application services shared by the router and the
// background jobs started from main.
type Services struct {
	Auth    *services.AuthService
	User    *services.UserService
	Product *services.ProductService
	Content *services.ContentService
	Order   *services.OrderService
	License *services.LicenseService
	Admin   *services.AdminService
}

func NewServices(db *gorm.DB, cfg *config.Config, recorder *metrics.Recorder) (*Services, error) {
	loc, err := cfg.License.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid license timezone: %w", err)
	}

	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	gateway, err := services.NewPaymentGateway(cfg.Payment)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	notificationService := services.NewNotificationService(db, cfg)
	orderStore := repository.NewOrderRepository(db)

	licenseService := services.NewLicenseService(
		repository.NewLicenseRepository(db),
		orderStore,
		services.WithClock(licensing.NewSystemClock(loc)),
		services.WithMetrics(recorder),
	)

	return &Services{
		Auth:    services.NewAuthService(db, cfg, notificationService),
		User:    services.NewUserService(db),
		Product: services.NewProductService(db, storageService, cfg.Payment.Currency),
		Content: services.NewContentService(db, storageService),
		Order:   services.NewOrderService(orderStore, licenseService, gateway, notificationService, cfg.Payment.Currency, recorder),
		License: licenseService,
		Admin:   services.NewAdminService(db, notificationService),
	}, nil
}

func Initialize(db *gorm.DB, cfg *config.Config, svc *Services, recorder *metrics.Recorder) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svc.Auth)
	userHandler := handlers.NewUserHandler(svc.User)
	productHandler := handlers.NewProductHandler(svc.Product)
	contentHandler := handlers.NewContentHandler(svc.Content)
	orderHandler := handlers.NewOrderHandler(svc.Order)
	licenseHandler := handlers.NewLicenseHandler(svc.License)
	activationHandler := handlers.NewActivationHandler(svc.License)
	adminHandler := handlers.NewAdminHandler(svc.Admin)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	if recorder != nil {
		r.Use(middleware.Metrics(recorder))
	}
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": apiVersion,
		})
	})

	if recorder != nil && cfg.Metrics.Path != "" {
		r.GET(cfg.Metrics.Path, gin.WrapH(recorder.Handler()))
	}

	if cfg.AWS.AccessKeyID == "" {
		r.Static(services.LocalUploadPrefix, cfg.AWS.LocalUploadDir)
	}

	v1 := r.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.POST("/change-password", middleware.AuthRequired(), authHandler.ChangePassword)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		users := v1.Group("/users")
		users.Use(middleware.AuthRequired())
		{
			users.GET("/profile", userHandler.GetProfile)
			users.PUT("/profile", userHandler.UpdateProfile)
			users.DELETE("/account", userHandler.DeleteAccount)
		}

		products := v1.Group("/products")
		{
			products.GET("", productHandler.ListProducts)
			products.GET("/:slug", productHandler.GetProduct)
		}

		pages := v1.Group("/pages")
		{
			pages.GET("", contentHandler.ListPages)
			pages.GET("/:slug", contentHandler.GetPage)
		}

		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.POST("", orderHandler.Checkout)
			orders.GET("", orderHandler.GetMyOrders)
			orders.GET("/:id", orderHandler.GetMyOrder)
			orders.POST("/:id/cancel", orderHandler.CancelMyOrder)
		}

		licenses := v1.Group("/licenses")
		licenses.Use(middleware.AuthRequired())
		{
			licenses.GET("", licenseHandler.GetMyLicenses)
			licenses.GET("/:id", licenseHandler.GetMyLicense)
			licenses.POST("/:id/activate", licenseHandler.ActivateLicense)
		}

		// Desktop clients authenticate with system identifier and key.
		activation := v1.Group("/activation")
		activation.Use(middleware.ActivationRateLimit())
		{
			activation.GET("/check", activationHandler.Check)
			activation.POST("/check", activationHandler.Check)
			activation.POST("/activate", activationHandler.Activate)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			dashboard := admin.Group("/dashboard")
			{
				dashboard.GET("/stats", adminHandler.GetDashboardStats)
			}

			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.GetUsers)
				adminUsers.PUT("/:id/status", adminHandler.UpdateUserStatus)
			}

			adminProducts := admin.Group("/products")
			{
				adminProducts.GET("", productHandler.AdminListProducts)
				adminProducts.POST("", productHandler.CreateProduct)
				adminProducts.POST("/images", middleware.UploadRateLimit(), productHandler.UploadProductImages)
				adminProducts.DELETE("/images", productHandler.DeleteProductImage)
				adminProducts.GET("/:id", productHandler.AdminGetProduct)
				adminProducts.PUT("/:id", productHandler.UpdateProduct)
				adminProducts.DELETE("/:id", productHandler.ArchiveProduct)
			}

			adminPages := admin.Group("/pages")
			{
				adminPages.GET("", contentHandler.AdminListPages)
				adminPages.POST("", contentHandler.CreatePage)
				adminPages.POST("/images", middleware.UploadRateLimit(), contentHandler.UploadPageImages)
				adminPages.PUT("/:id", contentHandler.UpdatePage)
				adminPages.POST("/:id/publish", contentHandler.PublishPage)
				adminPages.POST("/:id/unpublish", contentHandler.UnpublishPage)
				adminPages.DELETE("/:id", contentHandler.DeletePage)
			}

			adminOrders := admin.Group("/orders")
			{
				adminOrders.GET("", orderHandler.AdminListOrders)
				adminOrders.GET("/:id", orderHandler.AdminGetOrder)
				adminOrders.POST("/:id/cancel", orderHandler.AdminCancelOrder)
				adminOrders.POST("/:id/fulfill", orderHandler.AdminFulfillOrder)
				adminOrders.POST("/:id/refund", orderHandler.AdminRefundOrder)
			}

			adminLicenses := admin.Group("/licenses")
			{
				adminLicenses.GET("", licenseHandler.AdminListLicenses)
				adminLicenses.POST("/devices", licenseHandler.AdminAddDevice)
				adminLicenses.POST("/expire", licenseHandler.AdminExpireOverdue)
				adminLicenses.GET("/:id", licenseHandler.AdminGetLicense)
				adminLicenses.POST("/:id/deactivate", licenseHandler.AdminDeactivateLicense)
			}

			adminAnalytics := admin.Group("/analytics")
			{
				adminAnalytics.GET("", adminHandler.GetAnalytics)
				adminAnalytics.GET("/history", adminHandler.GetAnalyticsHistory)
				adminAnalytics.POST("/snapshot", adminHandler.SnapshotAnalytics)
			}

			adminSettings := admin.Group("/settings")
			{
				adminSettings.GET("", adminHandler.GetSettings)
				adminSettings.PUT("", adminHandler.UpdateSetting)
			}

			admin.GET("/audit-logs", adminHandler.GetAuditLogs)

			adminNotifications := admin.Group("/notifications")
			{
				adminNotifications.GET("", adminHandler.GetNotifications)
				adminNotifications.PUT("/:id/read", adminHandler.MarkNotificationRead)
			}
		}
	}

	return r
}
