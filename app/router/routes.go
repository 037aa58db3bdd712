// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/publora/publora/app/dto"
	"github.com/publora/publora/app/handlers"
	"github.com/publora/publora/app/middleware"
	"github.com/publora/publora/config"
	"github.com/publora/publora/utils"
	"github.com/redis/go-redis/v9"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app                 *fiber.App
	organizationHandler handlers.OrganizationHandlerInterface
	contentHandler      handlers.ContentHandlerInterface
	approvalHandler     handlers.ApprovalHandlerInterface
	scheduleHandler     handlers.ScheduleHandlerInterface
	oauthHandler        handlers.OAuthHandlerInterface
	webhookHandler      handlers.WebhookHandlerInterface
	dlqHandler          handlers.DLQHandlerInterface
	authMiddleware      *middleware.AuthMiddleware
	redisClient         *redis.Client
	cfg                 *config.ProductionConfig
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	organizationHandler handlers.OrganizationHandlerInterface,
	contentHandler handlers.ContentHandlerInterface,
	approvalHandler handlers.ApprovalHandlerInterface,
	scheduleHandler handlers.ScheduleHandlerInterface,
	oauthHandler handlers.OAuthHandlerInterface,
	webhookHandler handlers.WebhookHandlerInterface,
	dlqHandler handlers.DLQHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	redisClient *redis.Client,
	cfg *config.ProductionConfig,
) Router {
	// Configure Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Publora API",
		ServerHeader: "Publora",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:                 app,
		organizationHandler: organizationHandler,
		contentHandler:      contentHandler,
		approvalHandler:     approvalHandler,
		scheduleHandler:     scheduleHandler,
		oauthHandler:        oauthHandler,
		webhookHandler:      webhookHandler,
		dlqHandler:          dlqHandler,
		authMiddleware:      authMiddleware,
		redisClient:         redisClient,
		cfg:                 cfg,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// Apply general rate limiting to all API routes (aligned with nginx)
	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Skip rate limiting for health checks and webhook deliveries;
			// webhook bursts are bounded by signature verification instead
			return c.Path() == "/api/v1/health" ||
				strings.HasPrefix(c.Path(), "/api/v1/webhooks/")
		},
	}))

	auth := r.authMiddleware.Authenticate()
	idem := middleware.Idempotency(r.redisClient)

	// Stricter rate limiting for unauthenticated onboarding and OAuth redirects
	strict := limiter.New(limiter.Config{
		Max:        r.cfg.Security.AuthRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
	})

	// Organizations
	api.Post("/organizations", r.organizationHandler.CreateOrganization, strict)
	api.Get("/organizations/me", r.organizationHandler.GetOrganization, auth)
	api.Delete("/organizations/me", r.organizationHandler.DeactivateOrganization, auth)

	// Content items and versions
	content := api.Group("/content")
	content.Get("/platforms", r.approvalHandler.PlatformCatalog, auth)
	content.Post("", r.contentHandler.CreateContentItem, auth, idem)
	content.Get("", r.contentHandler.ListContentItems, auth)
	content.Get("/:uuid", r.contentHandler.GetContentItem, auth)
	content.Post("/:uuid/versions", r.contentHandler.CreateVersion, auth, idem)
	content.Post("/:uuid/versions/current", r.contentHandler.SetCurrentVersion, auth)

	// Approval and adaptation previews
	content.Post("/:uuid/approve", r.approvalHandler.ApproveContent, auth, idem)
	content.Get("/:uuid/previews", r.approvalHandler.ListPreviews, auth)
	api.Post("/adapt/preview", r.approvalHandler.AdaptPreview, auth)

	// Scheduling
	content.Post("/:uuid/schedule", r.scheduleHandler.CreateSchedule, auth, idem)
	schedules := api.Group("/schedules")
	schedules.Get("", r.scheduleHandler.ListSchedules, auth)
	schedules.Get("/due", r.scheduleHandler.ListDueSchedules, auth)
	schedules.Delete("/:uuid", r.scheduleHandler.CancelSchedule, auth)

	// Dead letter queue triage
	dlq := api.Group("/dlq")
	dlq.Get("", r.dlqHandler.ListEntries, auth)
	dlq.Get("/export", r.dlqHandler.ExportEntries, auth)
	dlq.Post("/:id/replay", r.dlqHandler.ReplayEntry, auth, idem)

	// OAuth connect flow; the callback is hit by the provider's browser
	// redirect and carries no bearer token
	oauth := api.Group("/oauth")
	oauth.Get("/:provider/start", r.oauthHandler.Start, auth)
	oauth.Get("/:provider/callback", r.oauthHandler.Callback, strict)
	oauth.Post("/:provider/dev-save", r.oauthHandler.DevSaveToken, auth)

	// Connected accounts and credential lifecycle
	api.Get("/accounts", r.oauthHandler.ListAccounts, auth)
	api.Delete("/accounts/:uuid", r.oauthHandler.DisconnectAccount, auth)
	api.Get("/tokens/:provider/status", r.oauthHandler.TokenStatus, auth)
	api.Post("/tokens/:provider/refresh", r.oauthHandler.RefreshToken, auth)

	// Platform webhooks; authenticated by verify token / HMAC signature,
	// not by bearer token
	webhooks := api.Group("/webhooks")
	webhooks.Get("/:provider", r.webhookHandler.VerifyChallenge)
	webhooks.Post("/:provider", r.webhookHandler.HandleEvent)
	api.Get("/webhook-events", r.webhookHandler.ListEvents, auth)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// SetupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             r.cfg.Security.XSSProtection,
		ContentTypeNosniff:        r.cfg.Security.XContentTypeOptions,
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                r.cfg.Security.HSTSMaxAge,
		HSTSExcludeSubdomains:     !r.cfg.Security.HSTSIncludeSubDoms,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS middleware with production settings
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Security.AllowedOrigins,
		AllowMethods: r.cfg.Security.AllowedMethods,
		AllowHeaders: r.cfg.Security.AllowedHeaders,
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
			"Idempotency-Replayed",
		},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// Skip compression for certain content types
				contentType := c.Get("Content-Type")
				return contains(contentType, "image/") ||
					contains(contentType, "video/") ||
					contains(contentType, "audio/")
			},
		}))
	}

	// Cache middleware for static content
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			// Only cache GET requests to the health and platform catalog endpoints
			return c.Method() != "GET" ||
				!contains(c.Path(), "/health") &&
					!contains(c.Path(), "/content/platforms")
		},
		Expiration:          30 * time.Minute,
		DisableCacheControl: false,
	}))

	// Advanced logging middleware
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks in production
			return c.Path() == "/api/v1/health"
		},
	}))

	// HTTP Prometheus metrics
	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	// Custom security middleware
	r.app.Use(r.securityMiddleware)

	// API key validation middleware (optional)
	r.app.Use(r.apiKeyMiddleware)

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic with request context
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Custom security middleware
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	// Add security headers
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))
	c.Set("Server", "Publora")

	// IP blacklist (if configured)
	clientIP := c.IP()
	for _, blockedIP := range r.cfg.Security.IPBlacklist {
		if clientIP == blockedIP {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "Access denied from this IP address",
				Error: dto.ErrorDetail{
					Code: "ACCESS_DENIED",
				},
			})
		}
	}

	// Continue to next middleware
	return c.Next()
}

// API key validation middleware
func (r *FiberRouter) apiKeyMiddleware(c fiber.Ctx) error {
	// Skip API key validation for endpoints hit by external systems
	if c.Path() == "/api/v1/health" ||
		strings.HasPrefix(c.Path(), "/api/v1/webhooks/") ||
		strings.HasSuffix(c.Path(), "/callback") {
		return c.Next()
	}

	if r.cfg.Security.RequireAPIKey {
		header := r.cfg.Security.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}

		apiKey := c.Get(header)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "API key is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_API_KEY",
				},
			})
		}

		isValid := false
		for _, validKey := range r.cfg.Security.AllowedAPIKeys {
			if apiKey == validKey {
				isValid = true
				break
			}
		}

		if !isValid {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid API key",
				Error: dto.ErrorDetail{
					Code: "INVALID_API_KEY",
				},
			})
		}
	}

	return c.Next()
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "publora-api",
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Log the error; scrub the bearer token so credentials never reach logs
	log.Printf("Error %d: %v", code, redactAuthorization(c, err))

	// Get RequestID for tracing
	requestID := c.Locals("requestid")

	// Return JSON error response
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// redactAuthorization strips the request's Authorization header value from an
// error message before it is logged
func redactAuthorization(c fiber.Ctx, err error) string {
	msg := err.Error()
	if authz := c.Get("Authorization"); authz != "" {
		msg = strings.ReplaceAll(msg, authz, "[REDACTED]")
		if token, ok := strings.CutPrefix(authz, "Bearer "); ok && token != "" {
			msg = strings.ReplaceAll(msg, token, "[REDACTED]")
		}
	}
	return msg
}

// Helper functions

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// contains checks if a string contains a substring
func contains(str, substr string) bool {
	return strings.Contains(str, substr)
}
