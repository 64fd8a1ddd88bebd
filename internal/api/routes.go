package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/internal/config"
	"github.com/legendstarrx/scriptsea/internal/core"
	"github.com/legendstarrx/scriptsea/internal/middleware"
)

// Public endpoints that send mail or create accounts are limited per address.
const (
	publicRateLimit  = 5
	publicRateWindow = time.Minute
)

// Services bundles everything the routes need.
type Services struct {
	Verifier     core.TokenVerifier
	Admins       core.AdminRegistry
	Auth         AuthService
	Verification VerificationService
	Generation   GenerationService
	Payments     PaymentService
	Admin        AdminService
	Sessions     SessionFactory
	// Webhooks holds one verifier per configured gateway.
	Webhooks []core.WebhookVerifier
	Limiter  *middleware.RateLimiter
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (request ID, logging, recovery, CORS) is applied to the router
// by the caller before this function is called.
func SetupRoutes(router *gin.Engine, appConfig *config.Config, logger *zap.Logger, svc Services) error {
	if svc.Verifier == nil {
		return errors.New("token verifier is required to secure routes")
	}
	if err := middleware.ConfigureClientIP(router, appConfig); err != nil {
		return err
	}
	if svc.Limiter == nil {
		svc.Limiter = middleware.NewRateLimiter()
	}
	authMW := middleware.NewAuthMiddleware(svc.Verifier, logger)
	limit := middleware.RateLimit(svc.Limiter, publicRateLimit, publicRateWindow)

	authHandler := NewAuthHandler(svc.Auth, logger)
	userHandler := NewUserHandler(svc.Auth, logger)
	verifyHandler := NewVerifyHandler(svc.Verification, appConfig.ClientURL, logger)
	generationHandler := NewGenerationHandler(svc.Generation, logger)
	webhookHandler := NewWebhookHandler(svc.Payments, logger)
	adminHandler := NewAdminHandler(svc.Admin, logger)
	sessionHandler := NewSessionHandler(svc.Sessions, svc.Verifier, svc.Auth, appConfig.ClientURL, logger)

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.GET("/check-ip", authHandler.CheckIP)
			authGroup.POST("/signup", limit, authHandler.Signup)
			authGroup.POST("/login", authMW.VerifyToken(), authHandler.Login)
			authGroup.POST("/resend-verification", limit, authHandler.ResendVerification)
			authGroup.POST("/password-reset", limit, authHandler.PasswordReset)
		}

		userGroup := apiV1.Group("/user", authMW.VerifyToken())
		{
			userGroup.GET("/profile", userHandler.GetProfile)
			userGroup.POST("/ip", userHandler.RecordIP)
		}

		apiV1.POST("/scripts/generate", authMW.VerifyToken(), generationHandler.Generate)

		// The stream authenticates with token frames, not a header.
		apiV1.GET("/session/stream", sessionHandler.Stream)

		// Gateways authenticate with signatures over the raw body.
		webhookGroup := apiV1.Group("/webhooks")
		for _, v := range svc.Webhooks {
			webhookGroup.POST("/"+v.Gateway(), webhookHandler.Handle(v))
		}

		adminGroup := apiV1.Group("/admin", authMW.VerifyToken(), middleware.RequireAdmin(svc.Admins, logger))
		{
			adminGroup.GET("/users", adminHandler.ListUsers)
			adminGroup.PUT("/users/:userId/plan", adminHandler.UpdatePlan)
			adminGroup.PUT("/users/:userId/ban", adminHandler.SetBanned)
			adminGroup.DELETE("/users/:userId", adminHandler.DeleteUser)
			adminGroup.POST("/users/:userId/revoke-sessions", adminHandler.RevokeSessions)
			adminGroup.GET("/banned-ips", adminHandler.ListBannedIPs)
			adminGroup.POST("/banned-ips", adminHandler.BanIP)
			adminGroup.DELETE("/banned-ips/:ip", adminHandler.UnbanIP)
			adminGroup.GET("/payments", adminHandler.ListPayments)
		}
	}

	router.GET("/verify", verifyHandler.Verify)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "ScriptSea backend is healthy."})
	})

	logger.Info("API routes configured under /api/v1, /verify and /health",
		zap.Int("webhook_gateways", len(svc.Webhooks)))
	return nil
}
