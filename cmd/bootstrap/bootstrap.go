package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"referharmony/config"
	deliveryHttp "referharmony/internal/delivery/http"
	"referharmony/internal/delivery/http/handler"
	"referharmony/internal/delivery/http/middleware"
	"referharmony/internal/infrastructure/cache"
	"referharmony/internal/infrastructure/database"
	"referharmony/internal/repository"
	"referharmony/internal/service"
	"referharmony/internal/usecase"
	"referharmony/pkg/jwt"
	"referharmony/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server
	Dispatcher  *service.NotificationDispatcher
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Setup logger
	setupLogger()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg
	logrus.Info("Configuration loaded successfully")

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	logrus.Info("Database connected successfully")

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient
	logrus.Info("Redis connected successfully")

	// Initialize all layers
	server, dispatcher, err := initializeServer(cfg, db, redisClient)
	if err != nil {
		return nil, err
	}
	app.Server = server
	app.Dispatcher = dispatcher

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
}

// initializeServer creates and configures the HTTP server
func initializeServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*http.Server, *service.NotificationDispatcher, error) {
	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize repositories
	userRepo := repository.NewUserRepository()
	referralRepo := repository.NewReferralRepository()
	auditLogRepo := repository.NewAuditLogRepository()
	notificationLogRepo := repository.NewNotificationLogRepository()

	// Initialize logger
	log := logrus.StandardLogger()

	// Initialize services
	matchScorer := service.NewMatchScorer(cfg.Match)
	auditService := service.NewAuditService(db, log, auditLogRepo)

	sequenceService := service.NewSequenceService(db, redisClient, log, referralRepo)
	if err := sequenceService.SyncOnStartup(context.Background()); err != nil {
		logrus.Warnf("Referral sequence sync failed, numbering will fall back to counting: %v", err)
	} else {
		logrus.Info("Referral sequence synced successfully")
	}

	// Notification channels; unset credentials disable a channel
	// without failing startup
	var emailSender service.EmailSender
	if cfg.SMTP.Host != "" {
		emailSender = service.NewSMTPEmailSender(cfg.SMTP)
	} else {
		logrus.Warn("SMTP not configured, email notifications disabled")
	}
	var smsSender service.SMSSender
	if sender := service.NewTwilioSMSSender(cfg.Twilio); sender != nil {
		smsSender = sender
	} else {
		logrus.Warn("Twilio not configured, SMS notifications disabled")
	}
	dispatcher := service.NewNotificationDispatcher(db, log, notificationLogRepo, emailSender, smsSender)

	// Initialize usecases
	authUsecase := usecase.NewAuthUsecase(db, log, userRepo, jwtService, redisClient, auditService)
	userUsecase := usecase.NewUserUsecase(db, log, userRepo, auditService)
	referralUsecase := usecase.NewReferralUsecase(db, log, cfg.Referral, referralRepo, userRepo, matchScorer, sequenceService, dispatcher, auditService)
	analyticsUsecase := usecase.NewAnalyticsUsecase(db, log, referralRepo)
	auditLogUsecase := usecase.NewAuditLogUsecase(db, log, auditLogRepo)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authUsecase, customValidator)
	userHandler := handler.NewUserHandler(userUsecase, customValidator)
	referralHandler := handler.NewReferralHandler(referralUsecase, customValidator)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsUsecase)
	auditLogHandler := handler.NewAuditLogHandler(auditLogUsecase)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService, redisClient)
	corsMiddleware := middleware.NewCORSMiddleware()

	// Initialize router
	router := deliveryHttp.NewRouter(authHandler, userHandler, referralHandler, analyticsHandler, auditLogHandler, authMiddleware, corsMiddleware)
	httpRouter := router.Setup()

	// Create server
	serverAddr := fmt.Sprintf(":%s", cfg.App.Port)
	return &http.Server{
		Addr:    serverAddr,
		Handler: httpRouter,
	}, dispatcher, nil
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	// Start server in goroutine
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Let in-flight notifications drain before closing connections
	if app.Dispatcher != nil {
		app.Dispatcher.Wait()
	}

	// Close connections
	app.Close()

	logrus.Info("Server shutdown complete")
}

// Close closes all connections (database, redis, etc.)
func (app *App) Close() {
	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
