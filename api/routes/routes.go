package routes

import (
	"net/http"

	"github.com/ArowuTest/clinic-membership-backend/internal/handlers"
	"github.com/ArowuTest/clinic-membership-backend/internal/middleware"
	"github.com/ArowuTest/clinic-membership-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandlerDependencies holds everything the router wires together
type HandlerDependencies struct {
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	PackageHandler *handlers.PackageHandler
	HealthHandler  *handlers.HealthHandler

	Tokens         *jwt.TokenService
	Users          middleware.UserResolver
	Logger         *zap.Logger
	AllowedOrigins []string
	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
}

// SetupRouter sets up the router
func SetupRouter(deps HandlerDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))
	if deps.HTTPMetrics != nil {
		router.Use(deps.HTTPMetrics.Middleware())
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "NOT_FOUND", "message": "Resource not found"},
		})
	})

	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	requireAuth := middleware.JWTAuthMiddleware(deps.Tokens, deps.Users, deps.Logger)

	api := router.Group("/api")
	{
		api.GET("/health", deps.HealthHandler.Health)
		api.GET("/version", deps.HealthHandler.Version)

		auth := api.Group("/auth")
		{
			auth.POST("/send-otp", deps.AuthHandler.SendOTP)
			auth.POST("/verify-otp", deps.AuthHandler.VerifyOTP)
		}

		user := api.Group("/user", requireAuth)
		{
			user.GET("/profile", deps.UserHandler.GetProfile)
			user.PUT("/profile", deps.UserHandler.UpdateProfile)
			user.POST("/send-phone-change-otp", deps.UserHandler.SendPhoneChangeOTP)
			user.PUT("/phone", deps.UserHandler.UpdatePhone)
		}

		packages := api.Group("/packages")
		{
			packages.GET("/available", deps.PackageHandler.GetAvailable)
			packages.POST("/purchase", requireAuth, deps.PackageHandler.Purchase)
			packages.GET("/history", requireAuth, deps.PackageHandler.History)
			packages.PUT("/subscription/:id/status", requireAuth, deps.PackageHandler.UpdatePaymentStatus)
		}
	}

	return router
}
