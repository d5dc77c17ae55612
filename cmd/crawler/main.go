package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/uzzalhcse/crawlify/api/handlers"
	"github.com/uzzalhcse/crawlify/internal/browser"
	"github.com/uzzalhcse/crawlify/internal/config"
	"github.com/uzzalhcse/crawlify/internal/extraction"
	"github.com/uzzalhcse/crawlify/internal/grouplearn"
	"github.com/uzzalhcse/crawlify/internal/kvstore"
	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/internal/orchestrator"
	"github.com/uzzalhcse/crawlify/internal/pattern"
	"github.com/uzzalhcse/crawlify/internal/proxy"
	"github.com/uzzalhcse/crawlify/internal/quirks"
	"github.com/uzzalhcse/crawlify/internal/rendering"
	"github.com/uzzalhcse/crawlify/internal/storage"
	"github.com/uzzalhcse/crawlify/internal/tracer"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(true); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Crawlify Fetch Core")

	db, err := storage.NewPostgresDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var kv *kvstore.Store
	if cfg.Redis.Enabled {
		kv = kvstore.New(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := kv.Ping(ctx); err != nil {
			logger.Warn("Redis unreachable, KeyValueStore degraded", zap.Error(err))
		}
		cancel()
		defer kv.Close()
	}

	browserPool, err := browser.NewBrowserPool(&cfg.Browser)
	if err != nil {
		logger.Fatal("Failed to initialize browser pool", zap.Error(err))
	}
	defer browserPool.Close()

	proxyHealthRepo := storage.NewProxyHealthRepository(db)
	domainRiskRepo := storage.NewDomainRiskRepository(db)
	patternRepo := storage.NewPatternRepository(db)
	quirksRepo := storage.NewQuirksRepository(db)
	groupRepo := storage.NewDomainGroupRepository(db)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	seedGroups, err := groupRepo.LoadAll(seedCtx)
	if err != nil {
		logger.Warn("Failed to load seed domain groups", zap.Error(err))
	}
	seedRisks, err := domainRiskRepo.LoadAll(seedCtx)
	if err != nil {
		logger.Warn("Failed to load seed domain risk records", zap.Error(err))
	}
	seedPatterns, err := patternRepo.LoadAll(seedCtx)
	if err != nil {
		logger.Warn("Failed to load seed patterns", zap.Error(err))
	}
	seedQuirks, err := quirksRepo.LoadAll(seedCtx)
	if err != nil {
		logger.Warn("Failed to load seed site quirks", zap.Error(err))
	}
	seedCancel()

	geo := proxy.NewGeoRouter()
	risk := proxy.NewRiskClassifier(domainRiskRepo)
	risk.Seed(seedRisks)
	proxyManager := proxy.NewManager(cfg.Plans, proxyHealthRepo, geo, risk)
	proxyManager.Initialize(cfg.Proxy)

	patternRegistry := pattern.NewRegistry(patternRepo)
	patternRegistry.Seed(seedPatterns)
	healthMonitor := pattern.NewHealthMonitor(patternRegistry)
	go healthMonitor.Start()

	quirksRegistry := quirks.NewRegistry(quirksRepo)
	quirksRegistry.Seed(seedQuirks)

	groupLearner := grouplearn.NewLearner(seedGroups, groupRepo)
	patternRegistry.Subscribe(groupLearner)
	go groupLearner.Start(15 * time.Minute)

	recorder := tracer.NewRecorder(cfg.Debug)

	intelligenceBackend := rendering.NewIntelligenceBackend()
	lightweightBackend := rendering.NewLightweightBackend(intelligenceBackend, browserPool)
	playwrightBackend := rendering.NewPlaywrightBackend(browserPool)
	registry := rendering.NewRegistry(intelligenceBackend, lightweightBackend, playwrightBackend)

	extractor := extraction.New()

	var resultCache orchestrator.ResultCache
	if cfg.Redis.Enabled && kv != nil {
		resultCache = kv
	}

	orch := orchestrator.New(
		registry,
		extractor,
		proxyManager,
		patternRegistry,
		healthMonitor,
		quirksRegistry,
		risk,
		recorder,
		resultCache,
		time.Duration(cfg.Redis.ResultCacheTTLSeconds)*time.Second,
		time.Duration(cfg.Timeouts.PerTierAttemptMs)*time.Millisecond,
		time.Duration(cfg.Timeouts.SelectorWaitMs)*time.Millisecond,
	)

	app := fiber.New(fiber.Config{
		AppName:               "Crawlify Fetch Core",
		DisableStartupMessage: false,
		ErrorHandler:          errorHandler,
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		logger.Info("Request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
		)

		return err
	})

	fetchHandler := handlers.NewFetchHandler(orch, recorder)
	adminHandler := handlers.NewAdminHandler(proxyManager, patternRegistry, healthMonitor, quirksRegistry)

	setupRoutes(app, fetchHandler, adminHandler)

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := db.Health(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
		}

		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
			"time":    time.Now().UTC(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", addr))

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}

		healthMonitor.Stop()
		groupLearner.Stop()
		logger.Info("Pattern health monitor and domain group learner stopped")
	}()

	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func setupRoutes(app *fiber.App, fetchHandler *handlers.FetchHandler, adminHandler *handlers.AdminHandler) {
	api := app.Group("/api/v1")

	api.Post("/fetch", fetchHandler.Fetch)

	traces := api.Group("/traces")
	traces.Get("/", fetchHandler.ListTraces)
	traces.Get("/:id", fetchHandler.GetTrace)

	patterns := api.Group("/patterns")
	patterns.Get("/", adminHandler.GetUnhealthyPatterns)
	patterns.Get("/:id", adminHandler.GetPattern)
	patterns.Delete("/:id", adminHandler.ArchivePattern)

	notifications := api.Group("/notifications")
	notifications.Get("/", adminHandler.PendingNotifications)
	notifications.Post("/:id/ack", adminHandler.AcknowledgeNotification)

	quirks := api.Group("/quirks")
	quirks.Get("/:domain", adminHandler.GetQuirks)

	risks := api.Group("/domain-risk")
	risks.Get("/:domain", adminHandler.GetDomainRisk)

	proxies := api.Group("/proxies")
	proxies.Post("/:id/clear-cooldown", adminHandler.ClearProxyCooldown)
	proxies.Post("/domains/:domain/clear-blocks", adminHandler.ClearDomainBlocks)
	proxies.Get("/pool-stats", adminHandler.GetProxyPoolStats)
	proxies.Get("/health", adminHandler.GetProxyHealth)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	logger.Error("Request error",
		zap.Error(err),
		zap.String("path", c.Path()),
		zap.Int("status", code),
	)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
