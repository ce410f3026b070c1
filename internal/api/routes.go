package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/config"
	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/middleware"
)

// Services bundles the core services the routes depend on.
type Services struct {
	Users       core.UserService
	Restaurants core.RestaurantService
	Billing     core.BillingService
	Menu        core.MenuService
	Feedback    core.FeedbackService
	Snapshots   core.SnapshotService
}

// SetupRoutes configures all application routes. Global middleware (logging,
// recovery, CORS) is expected to be installed on router by the caller.
//
// The role and ownership checks here repeat what the client route guards
// enforce; the client checks are a convenience only.
func SetupRoutes(router *gin.Engine, appConfig *config.Config, logger *zap.Logger, verifier middleware.TokenVerifier, svc Services) {
	authMW := middleware.NewAuthMiddleware(verifier, logger)
	requireUser := middleware.RequireUser(svc.Users, logger)
	requireRestaurant := middleware.RequireRestaurant(svc.Restaurants, logger)

	authHandler := NewAuthHandler(svc.Users, svc.Snapshots, logger)
	restaurantHandler := NewRestaurantHandler(svc.Restaurants, logger)
	menuHandler := NewMenuHandler(svc.Menu, logger)
	feedbackHandler := NewFeedbackHandler(svc.Feedback, logger)
	billingHandler := NewBillingHandler(svc.Billing, appConfig.BillingWebhookSecret, logger)
	adminHandler := NewAdminHandler(svc.Users, svc.Restaurants, logger)

	apiV1 := router.Group("/api/v1")
	{
		public := apiV1.Group("/public/menu/:slug")
		{
			public.GET("", menuHandler.PublicMenu)
			public.POST("/feedback", feedbackHandler.Submit)
		}

		if appConfig.BillingWebhookSecret != "" {
			apiV1.POST("/billing/webhook", billingHandler.HandleWebhook)
		} else {
			logger.Warn("BILLING_WEBHOOK_SECRET not set; billing webhook disabled")
		}

		apiV1.POST("/users/initialize", authMW.VerifyToken(), authHandler.InitializeUserProfile)

		authed := apiV1.Group("", authMW.VerifyToken(), requireUser)
		{
			authed.GET("/auth/me", authHandler.Me)
			authed.POST("/restaurants", restaurantHandler.Setup)

			owner := authed.Group("", requireRestaurant)
			{
				owner.GET("/restaurants/me", restaurantHandler.Get)
				owner.PUT("/restaurants/me", restaurantHandler.Update)
				owner.POST("/restaurants/me/qrcode", restaurantHandler.RegenerateQRCode)
				owner.GET("/restaurants/me/qrcode.png", restaurantHandler.QRCodePNG)

				owner.GET("/categories", menuHandler.ListCategories)
				owner.POST("/categories", menuHandler.CreateCategory)
				owner.PUT("/categories/:categoryId", menuHandler.UpdateCategory)
				owner.DELETE("/categories/:categoryId", menuHandler.DeleteCategory)

				owner.GET("/menu-items", menuHandler.ListItems)
				owner.POST("/menu-items", menuHandler.CreateItem)
				owner.PUT("/menu-items/:itemId", menuHandler.UpdateItem)
				owner.DELETE("/menu-items/:itemId", menuHandler.DeleteItem)

				owner.GET("/feedback", feedbackHandler.List)
				owner.GET("/subscription", billingHandler.GetSubscription)
			}

			admin := authed.Group("/admin", middleware.RequireAdmin())
			{
				admin.GET("/users", adminHandler.ListUsers)
				admin.PUT("/users/:userId/role", adminHandler.UpdateUserRole)
				admin.DELETE("/users/:userId", adminHandler.RemoveUser)
				admin.GET("/restaurants", adminHandler.ListRestaurants)
				admin.PUT("/restaurants/:restaurantId/status", adminHandler.SetRestaurantStatus)
				admin.GET("/feedback", feedbackHandler.AdminList)
			}
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "menuboard backend is healthy."})
	})
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
