package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legendstarrx/scriptsea/configs"
	"github.com/legendstarrx/scriptsea/internal/api"
	"github.com/legendstarrx/scriptsea/internal/config"
	"github.com/legendstarrx/scriptsea/internal/core"
	"github.com/legendstarrx/scriptsea/internal/db"
	"github.com/legendstarrx/scriptsea/internal/gateway"
	"github.com/legendstarrx/scriptsea/internal/generator"
	"github.com/legendstarrx/scriptsea/internal/identity"
	"github.com/legendstarrx/scriptsea/internal/middleware"
	"github.com/legendstarrx/scriptsea/pkg/cache"
	"github.com/legendstarrx/scriptsea/pkg/mailer"
	"github.com/legendstarrx/scriptsea/pkg/messagequeue"
)

func main() {
	// --- 1. Logger ---
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- 2. Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	if strings.ToLower(appConfig.GinMode) == "release" {
		if zapLogger, err = zap.NewProduction(); err != nil {
			log.Fatalf("CRITICAL_ERROR: Failed to initialize production logger: %v", err)
		}
		defer zapLogger.Sync()
	}

	catalog, err := configs.LoadCatalog(appConfig.PlanCatalogPath)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load plan catalog", zap.String("path", appConfig.PlanCatalogPath), zap.Error(err))
	}

	if appConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: appConfig.SentryDSN, Environment: appConfig.GinMode}); err != nil {
			zapLogger.Warn("Sentry initialization failed; panics are only logged", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Background workers stop when rootCtx is cancelled.
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// --- 3. Firebase (Firestore + Auth) ---
	initCtx, cancelInitCtx := context.WithTimeout(rootCtx, 15*time.Second)
	defer cancelInitCtx()
	if err := db.InitFirebase(initCtx, appConfig, zapLogger); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
	}
	firestoreClient := db.GetFirestoreClient()
	defer firestoreClient.Close()

	provider, err := identity.NewFromApp(db.GetFirebaseAuthClient(), appConfig.IdentityTimeout, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firebase Auth client unavailable", zap.Error(err))
	}

	// --- 4. Repositories (every call bounded by STORE_TIMEOUT) ---
	profileRepo := db.WithProfileTimeout(db.NewFirestoreProfileRepository(firestoreClient), appConfig.StoreTimeout)
	bannedIPRepo := db.WithBannedIPTimeout(db.NewFirestoreBannedIPRepository(firestoreClient), appConfig.StoreTimeout)
	paymentRepo := db.WithPaymentTimeout(db.NewFirestorePaymentRepository(firestoreClient), appConfig.StoreTimeout)
	auditRepo := db.WithAuditTimeout(db.NewFirestoreAuditRepository(firestoreClient), appConfig.StoreTimeout)

	// --- 5. Local cache tier ---
	var localCache cache.Cache
	if appConfig.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(initCtx, cache.RedisConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
		defer redisCache.Close()
		localCache = redisCache
		zapLogger.Info("Profile cache backed by Redis", zap.String("addr", appConfig.RedisAddr))
	} else {
		localCache = cache.NewMemoryCache()
		zapLogger.Info("Profile cache kept in process memory")
	}

	// --- 6. Mail and queue ---
	var sender mailer.Sender = mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     appConfig.SMTPHost,
		Port:     appConfig.SMTPPort,
		Username: appConfig.SMTPUsername,
		Password: appConfig.SMTPPassword,
		From:     appConfig.MailFrom,
	})
	var events core.EventPublisher
	if appConfig.AMQPURL != "" {
		mq, err := messagequeue.NewRabbitMQService(appConfig.AMQPURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mq.Close()

		worker := mailer.NewWorker(sender, zapLogger)
		go func() {
			if err := worker.Run(rootCtx, mq); err != nil {
				zapLogger.Error("Mail worker stopped", zap.Error(err))
			}
		}()
		sender = mailer.NewQueuedMailer(mq)
		events = mq
		zapLogger.Info("Mail and payment events routed through RabbitMQ")
	}
	notifier := mailer.NewNotifier(sender)

	// --- 7. Core services ---
	admins := core.SingleAdmin(appConfig.AdminEmail)
	auditService := core.NewAuditService(auditRepo, zapLogger)
	policy := core.NewPolicyEvaluator(bannedIPRepo, admins, provider, auditService, zapLogger)
	ledger := core.NewQuotaLedger(profileRepo)
	source := core.NewProfileSource(profileRepo, core.NewProfileCache(localCache, appConfig.CacheTTL), appConfig.StoreTimeout, zapLogger)
	verification := core.NewVerificationService(profileRepo, notifier, appConfig.AppBaseURL, zapLogger)
	provisioner := core.NewProvisioner(profileRepo, admins, verification, zapLogger)
	authService := core.NewAuthService(policy, provider, profileRepo, source, provisioner, verification, notifier, zapLogger)
	paymentService := core.NewPaymentService(profileRepo, paymentRepo, ledger, catalog, events, zapLogger)
	adminService := core.NewAdminService(profileRepo, bannedIPRepo, ledger, paymentService, provider, source, policy, auditService, zapLogger)

	if appConfig.OpenAIAPIKey == "" {
		zapLogger.Warn("OPENAI_API_KEY is not set; script generation requests will fail")
	}
	scriptGenerator := generator.NewOpenAIGenerator(appConfig.OpenAIAPIKey, appConfig.OpenAIModel, zapLogger)
	generationService := core.NewGenerationService(policy, source, ledger, scriptGenerator, zapLogger)

	var webhooks []core.WebhookVerifier
	if appConfig.PaystackSecretKey != "" {
		webhooks = append(webhooks, gateway.NewPaystack(appConfig.PaystackSecretKey))
	}
	if appConfig.StripeWebhookSecret != "" {
		webhooks = append(webhooks, gateway.NewStripe(appConfig.StripeWebhookSecret))
	}

	if appConfig.CleanupInterval > 0 {
		go core.NewCleanupJob(profileRepo, ledger, zapLogger).Start(rootCtx, appConfig.CleanupInterval)
	}

	limiter := middleware.NewRateLimiter()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	}()

	// --- 8. Gin engine and global middleware ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	if err := api.RegisterValidators(); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to register request validators", zap.Error(err))
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	corsMW, err := middleware.CORSMiddleware(appConfig)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Invalid CORS configuration", zap.Error(err))
	}
	router.Use(corsMW)

	// --- 9. Routes ---
	err = api.SetupRoutes(router, appConfig, zapLogger, api.Services{
		Verifier:     provider,
		Admins:       admins,
		Auth:         authService,
		Verification: verification,
		Generation:   generationService,
		Payments:     paymentService,
		Admin:        adminService,
		Sessions: api.NewSessionFactory(core.SessionDeps{
			Source:      source,
			Profiles:    profileRepo,
			Provisioner: provisioner,
			Policy:      policy,
			Logger:      zapLogger,
		}),
		Webhooks: webhooks,
		Limiter:  limiter,
	})
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to set up routes", zap.Error(err))
	}

	// --- 10. HTTP server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Covers script generation; the session stream clears it on upgrade.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	zapLogger.Info("Starting HTTP server", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 11. Graceful shutdown ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	cancelRoot()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shut down", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully.")
}
