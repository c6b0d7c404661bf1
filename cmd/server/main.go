package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/toolforge/api/internal/auth"
	"github.com/toolforge/api/internal/client"
	"github.com/toolforge/api/internal/config"
	"github.com/toolforge/api/internal/handler"
	"github.com/toolforge/api/internal/middleware"
	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/pipeline"
	"github.com/toolforge/api/internal/service"
	"github.com/toolforge/api/internal/store"
	"github.com/toolforge/api/internal/worker"
	ws "github.com/toolforge/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize the generation provider client
	llmClient := client.NewLLMClient(&cfg.Provider)
	if llmClient.MissingCredential() != "" {
		log.Printf("Warning: provider credential %s not set, jobs will pause on first generation", cfg.Provider.CredentialName)
	}

	// Initialize R2 client (optional - continues if not configured)
	var storage client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			storage = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, exports disabled")
	}

	// Initialize Zitadel JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.Zitadel.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Job store and per-document lock
	retention := time.Duration(cfg.Pipeline.RetentionHours) * time.Hour
	jobStore := store.NewRedisStore(redisClient, retention)
	locker := store.NewRedisLocker(redisClient)

	// Pipeline core
	stageModels := make(map[model.Stage]string, len(cfg.Pipeline.StageModels))
	for stage, m := range cfg.Pipeline.StageModels {
		stageModels[model.Stage(stage)] = m
	}
	adapter := pipeline.NewAdapter(llmClient, pipeline.AdapterOptions{
		DefaultModel: cfg.Provider.Model,
		StageModels:  stageModels,
		CallTimeout:  time.Duration(cfg.Pipeline.StageTimeoutSeconds) * time.Second,
	})
	retry := pipeline.RetryPolicy{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Pipeline.RetryBaseMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Pipeline.RetryMaxMS) * time.Millisecond,
	}
	sequencer := pipeline.NewSequencer(jobStore, locker, hub, adapter, retry)
	harness := pipeline.NewHarness(adapter, retry)
	editor := pipeline.NewEditController(jobStore, locker, hub, adapter, retry)
	finalizer := pipeline.NewFinalizer(adapter, retry)

	// Initialize services
	enqueuer := service.NewAsynqEnqueuer(asynqClient, retention)
	jobService := service.NewJobService(jobStore, enqueuer)
	pipelineService := service.NewPipelineService(jobStore, locker, sequencer, harness, editor, finalizer)
	exportService := service.NewExportService(jobStore, storage)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, validate)
	stageHandler := handler.NewStageHandler(pipelineService, validate)
	editHandler := handler.NewEditHandler(pipelineService, validate)
	finalizeHandler := handler.NewFinalizeHandler(pipelineService, validate)
	exportHandler := handler.NewExportHandler(exportService)

	// Initialize auth handler for ForwardAuth verification
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		// Direct mode: auth is handled by the backend itself
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"provider": llmClient.MissingCredential() == "",
				"redis":    redisClient.Ping(c.Context()).Err() == nil,
				"r2":       storage != nil,
				"auth":     jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Job routes
	jobs := api.Group("/jobs")
	jobs.Post("", rateLimiter.JobsLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
	jobs.Get("/:jobId/status", jobHandler.Status)
	jobs.Get("/:jobId/result", jobHandler.Result)
	jobs.Get("/:jobId/document", jobHandler.Document)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)
	jobs.Post("/:jobId/resume", jobHandler.Resume)
	jobs.Post("/:jobId/edit", rateLimiter.EditsLimit(cfg.RateLimit.EditsPerHour), editHandler.Edit)
	jobs.Post("/:jobId/export", rateLimiter.ExportLimit(cfg.RateLimit.ExportsPerHour), exportHandler.Export)

	// Stage routes
	api.Post("/stages/:stage/run", rateLimiter.StagesLimit(cfg.RateLimit.StagesPerMin), stageHandler.Run)

	// Finalization sub-chain
	api.Post("/finalize", rateLimiter.FinalizeLimit(cfg.RateLimit.FinalizePerHour), finalizeHandler.Finalize)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, sequencer, jobStore, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	sequencer *pipeline.Sequencer,
	jobStore store.JobStore,
	hub *ws.Hub,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"pipeline": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	pipelineWorker := worker.NewPipelineWorker(sequencer, jobStore, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePipelineRun, pipelineWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
