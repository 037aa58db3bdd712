// Package main provides the main entry point for the Publora publishing pipeline
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/publora/publora/app/handlers"
	"github.com/publora/publora/app/middleware"
	"github.com/publora/publora/app/router"
	"github.com/publora/publora/app/scheduler"
	"github.com/publora/publora/app/services"
	businessflow "github.com/publora/publora/business_flow"
	"github.com/publora/publora/config"
	"github.com/publora/publora/repository"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Publora application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Expose Prometheus metrics on a dedicated port
	if cfg.Metrics.Enabled {
		stopMetrics := startMetricsServer(cfg.Metrics)
		app.stopFuncs = append(app.stopFuncs, stopMetrics)
	}

	// Setup graceful shutdown
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger to stdout, a rotated file, or both
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(rotated)
	default: // both
		log.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}
}

// startMetricsServer serves the Prometheus registry on its own listener so
// scrapes never compete with API traffic
func startMetricsServer(cfg config.MetricsConfig) func() {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("Metrics server starting on %s%s", srv.Addr, path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig, deployment config.DeploymentConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB and password if provided in config
	opt.DB = cfg.RedisDB
	if deployment.RedisPassword != "" {
		opt.Password = deployment.RedisPassword
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// devSecret generates an ephemeral secret for development runs where the
// operator has not configured one. Production startup already failed earlier
// if a required secret was missing.
func devSecret(name string, bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate development %s: %v", name, err)
	}
	log.Printf("WARNING: %s not configured, using an ephemeral development value", name)
	return hex.EncodeToString(buf)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, cfg.Deployment)
	if err != nil {
		return nil, err
	}

	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	orgRepo := repository.NewOrganizationRepository(db)
	itemRepo := repository.NewContentItemRepository(db)
	versionRepo := repository.NewContentVersionRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	previewRepo := repository.NewAdaptationPreviewRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	dlqRepo := repository.NewPublishDLQRepository(db)
	accountRepo := repository.NewSocialAccountRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	eventRepo := repository.NewEngagementEventRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// OAuth state signing and credential encryption; production startup has
	// already verified these secrets exist
	cookieSecret := cfg.OAuth.CookieSecret
	if cookieSecret == "" {
		cookieSecret = devSecret("OAUTH_COOKIE_SECRET", 32)
	}
	stateSigner, err := services.NewStateSigner(cookieSecret, cfg.OAuth.StateTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state signer: %w", err)
	}

	encKey := cfg.Vault.TokenEncKey
	if encKey == "" {
		encKey = devSecret("TOKEN_ENC_KEY", 32)
	}
	vault, err := services.NewCredentialVault(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential vault: %w", err)
	}

	providers := services.NewProviderRegistry(cfg.OAuth)
	publisher := services.NewPublisher()

	// Initialize flows
	organizationFlow := businessflow.NewOrganizationFlow(orgRepo, tokenService)
	contentFlow := businessflow.NewContentFlow(orgRepo, itemRepo, versionRepo, db)
	approvalFlow := businessflow.NewApprovalFlow(itemRepo, versionRepo, approvalRepo, previewRepo, db)
	scheduleFlow := businessflow.NewScheduleFlow(itemRepo, versionRepo, scheduleRepo, db)
	oauthFlow := businessflow.NewOAuthFlow(
		accountRepo,
		tokenRepo,
		orgRepo,
		providers,
		stateSigner,
		vault,
		cfg.OAuth,
		rc,
		db,
	)
	webhookFlow := businessflow.NewWebhookFlow(eventRepo, cfg.OAuth, rc)
	dlqFlow := businessflow.NewDLQFlow(dlqRepo, scheduleRepo)

	// Initialize handlers
	organizationHandler := handlers.NewOrganizationHandler(organizationFlow)
	contentHandler := handlers.NewContentHandler(contentFlow)
	approvalHandler := handlers.NewApprovalHandler(approvalFlow)
	scheduleHandler := handlers.NewScheduleHandler(scheduleFlow)
	oauthHandler := handlers.NewOAuthHandler(oauthFlow, cfg.Security, cfg.OAuth.StateTTL)
	webhookHandler := handlers.NewWebhookHandler(webhookFlow)
	dlqHandler := handlers.NewDLQHandler(dlqFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		organizationHandler,
		contentHandler,
		approvalHandler,
		scheduleHandler,
		oauthHandler,
		webhookHandler,
		dlqHandler,
		authMiddleware,
		rc,
		cfg,
	)

	if cfg.Scheduler.PublishEnabled {
		sched := scheduler.NewPublishScheduler(scheduleRepo, versionRepo, dlqRepo, oauthFlow, publisher, cfg.Scheduler)
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
	}

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
