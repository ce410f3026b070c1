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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/api"
	"github.com/example/menuboard/internal/config"
	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/events"
	"github.com/example/menuboard/internal/middleware"
	"github.com/example/menuboard/internal/qrcode"
	"github.com/example/menuboard/pkg/cache"
	"github.com/example/menuboard/pkg/mailer"
	"github.com/example/menuboard/pkg/messagequeue"
)

func main() {
	// .env is a development convenience; production sets the environment directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Println("Warning: Error loading .env file:", err)
		}
	}

	// --- 1. Logger ---
	var zapLogger *zap.Logger
	var err error
	if strings.ToLower(os.Getenv("GIN_MODE")) == "release" {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- 2. Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	plans, err := config.LoadPlans(appConfig.PlansConfigPath)
	if err != nil {
		zapLogger.Warn("Falling back to built-in plan catalog", zap.String("path", appConfig.PlansConfigPath), zap.Error(err))
		plans = config.DefaultPlans()
	}
	zapLogger.Info("Application configuration loaded successfully.",
		zap.String("store", appConfig.StoreDriver),
		zap.String("auth", appConfig.AuthMode))

	// --- 3. Firebase, store and token verifier ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()

	var fbClients *db.FirebaseClients
	if appConfig.UsesFirebase() {
		fbClients, err = db.InitFirebase(initCtx, appConfig, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
		}
		defer fbClients.Close()
	}

	var store *db.Store
	switch appConfig.StoreDriver {
	case config.StoreFirestore:
		store = db.NewFirestoreStore(fbClients.Firestore)
	case config.StoreMemory:
		zapLogger.Warn("Using the in-memory store; data is lost on restart")
		store = db.NewMemoryStore()
	}

	var verifier middleware.TokenVerifier
	switch appConfig.AuthMode {
	case config.AuthFirebase:
		verifier = middleware.NewFirebaseVerifier(fbClients.Auth)
	case config.AuthJWT:
		zapLogger.Warn("AUTH_MODE=jwt accepts locally signed development tokens")
		verifier = middleware.NewJWTVerifier([]byte(appConfig.JWTSecret))
	}

	// --- 4. Cache and message queue ---
	var menuCacheBackend cache.Cache = cache.Nop{}
	if appConfig.RedisAddr != "" {
		rc, err := cache.NewRedisCache(initCtx, cache.NewRedisCacheConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		}, zapLogger)
		if err != nil {
			zapLogger.Warn("Redis unavailable; public menu cache disabled", zap.Error(err))
		} else {
			defer rc.Close()
			menuCacheBackend = rc
		}
	}

	var mq messagequeue.MessageQueue
	if appConfig.RabbitMQURL != "" {
		rmq, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL}, zapLogger)
		if err != nil {
			zapLogger.Warn("RabbitMQ unavailable; billing queue and feedback events disabled", zap.Error(err))
		} else {
			defer rmq.Close()
			mq = rmq
		}
	}

	// --- 5. Services ---
	auditService := core.NewAuditService(store.Audit)
	menuCache := core.NewMenuCache(menuCacheBackend, appConfig.MenuCacheTTL, store.Restaurants, zapLogger)
	billingService := core.NewBillingService(store.Subscriptions, plans, menuCache, auditService, zapLogger)

	var notifier core.FeedbackNotifier
	if mq != nil {
		notifier = events.NewFeedbackPublisher(mq, appConfig.FeedbackQueue, zapLogger)
	}

	services := api.Services{
		Users: core.NewUserService(store.Users, auditService, zapLogger),
		Restaurants: core.NewRestaurantService(store.Restaurants, qrcode.NewGenerator(), menuCache, auditService,
			core.RestaurantSettings{TrialDays: appConfig.TrialDays, PublicMenuBaseURL: appConfig.PublicMenuBaseURL}, zapLogger),
		Billing:   billingService,
		Menu:      core.NewMenuService(store, billingService, plans, menuCache, zapLogger),
		Feedback:  core.NewFeedbackService(store.Restaurants, store.Feedback, notifier, zapLogger),
		Snapshots: core.NewSnapshotService(store.Restaurants, billingService),
	}
	zapLogger.Info("Core services initialized successfully.")

	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if mq != nil {
		consumer := events.NewBillingConsumer(mq, appConfig.BillingQueue, billingService, zapLogger)
		go func() {
			if err := consumer.Run(runCtx); err != nil {
				zapLogger.Error("Billing consumer stopped", zap.Error(err))
			}
		}()

		if appConfig.MailEnabled() {
			smtpMailer, err := mailer.NewSMTPMailer(mailer.Config{
				Host:     appConfig.SMTPHost,
				Port:     appConfig.SMTPPort,
				Username: appConfig.SMTPUsername,
				Password: appConfig.SMTPPassword,
				From:     appConfig.MailFrom,
			})
			if err != nil {
				zapLogger.Fatal("CRITICAL_ERROR: Invalid SMTP configuration", zap.Error(err))
			}
			feedbackMailer := events.NewFeedbackMailer(mq, appConfig.FeedbackQueue, store.Restaurants, store.Users,
				smtpMailer, appConfig.ClientURL, zapLogger)
			go func() {
				if err := feedbackMailer.Run(runCtx); err != nil {
					zapLogger.Error("Feedback mailer stopped", zap.Error(err))
				}
			}()
		}
	} else if appConfig.MailEnabled() {
		zapLogger.Warn("SMTP_HOST is set but RABBITMQ_URL is not; feedback email disabled")
	}

	// --- 6. Gin engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig))

	api.SetupRoutes(router, appConfig, zapLogger, verifier, services)

	// --- 7. HTTP server with graceful shutdown ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	stopBackground()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown due to error during graceful shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully.")
}
