package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/adapter/cache"
	"github.com/seu-repo/pdv-core/internal/adapter/cardterminal"
	"github.com/seu-repo/pdv-core/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/pdv-core/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/pdv-core/internal/adapter/mesh"
	"github.com/seu-repo/pdv-core/internal/adapter/remote"
	"github.com/seu-repo/pdv-core/internal/adapter/storage/postgres"
	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/ports"
	"github.com/seu-repo/pdv-core/internal/service/syncer"
	"github.com/seu-repo/pdv-core/internal/service/terminalpay"
	"github.com/seu-repo/pdv-core/internal/service/ticket"
	"github.com/seu-repo/pdv-core/internal/service/workday"
	"github.com/seu-repo/pdv-core/pkg/config"
)

const (
	serviceName    = "pdv-terminal"
	serviceVersion = "v1.0.0"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting PDV terminal",
		zap.String("service", serviceName),
		zap.String("version", serviceVersion),
		zap.String("role", cfg.Mesh.Role),
		zap.String("device_id", cfg.App.DeviceID),
	)

	switch cfg.Mesh.Role {
	case "hub":
		runHub(cfg, logger)
	case "kds", "queue":
		runPeripheral(cfg, logger)
	default:
		logger.Fatal("Unknown mesh role", zap.String("role", cfg.Mesh.Role))
	}
}

// runHub runs the full register daemon: local storage, sync engine, card
// terminal coordinator, mesh hub and the HTTP API.
func runHub(cfg *config.Config, logger *zap.Logger) {
	tz, err := time.LoadLocation(cfg.Region.Timezone)
	if err != nil {
		logger.Fatal("Invalid timezone", zap.String("timezone", cfg.Region.Timezone), zap.Error(err))
	}

	db, err := postgres.NewConnection(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer postgres.Close(db)

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Repositories
	ticketRepo := postgres.NewTicketRepository(db, logger)
	tokenRepo := postgres.NewQueueTokenRepository(db, logger)
	workdayRepo := postgres.NewWorkdayRepository(db, logger)

	// Remote API clients share one circuit breaker
	remoteClient := remote.NewClient(cfg.Remote.RequestTimeout, cfg.CircuitBreaker, logger)
	orderService := remote.NewOrderClient(remoteClient)
	remoteWorkdays := remote.NewWorkdayClient(remoteClient)

	creds := ports.Credentials{Domain: cfg.Remote.Domain, Token: cfg.Remote.Token}

	// Services
	ticketService := ticket.NewService(ticketRepo, tokenRepo, redisCache, cfg.Redis.StatsTTL, logger)
	syncEngine := syncer.NewEngine(ticketRepo, orderService, redisCache, cfg.Remote.RequestTimeout, logger)
	workdayService := workday.NewService(workdayRepo, ticketRepo, remoteWorkdays, cfg.Remote.RequestTimeout, tz, cfg.Region.DayRolloverHour, logger)

	// Card terminal
	terminalDevice := cardterminal.NewClient(logger)
	coordinator := terminalpay.NewCoordinator(terminalDevice, logger)
	terminalCfg := ports.TerminalConfig{
		BaseURL:        cfg.Terminal.BaseURL,
		APIKey:         cfg.Terminal.APIKey,
		TerminalID:     cfg.Terminal.TerminalID,
		PollInterval:   cfg.Terminal.PollInterval,
		RequestTimeout: cfg.Terminal.RequestTimeout,
	}

	// Device mesh hub
	hub := mesh.NewHub(cfg.App.DeviceID, cfg.Mesh, logger)
	go hub.Run()
	defer hub.Stop()

	// Periodic background sync
	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()
	go syncEngine.RunPeriodic(syncCtx, creds, cfg.Remote.SyncInterval)

	processor := domain.PaymentProcessor{
		ID:                   cfg.Terminal.TerminalID,
		Name:                 "card",
		SurchargeBasisPoints: cfg.Terminal.SurchargeBasisPoints,
		SurchargeFlatCents:   cfg.Terminal.SurchargeFlatCents,
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get underlying SQL DB", zap.Error(err))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		if err := sqlDB.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Database not ready")
		}
		if err := redisCache.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Cache not ready")
		}
		return c.SendString("Ready")
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		handler(c.Context())
		return nil
	})

	v1 := app.Group("/api/v1")

	ticketHandler := handlers.NewTicketHandler(
		ticketService, syncEngine, orderService, hub, creds, processor,
		cfg.App.LocationID, workdayService.CurrentBusinessDate, logger,
	)
	v1.Post("/checkout", ticketHandler.Checkout)
	v1.Post("/sync", ticketHandler.Sync)
	v1.Get("/tickets", ticketHandler.List)
	v1.Get("/tickets/stats", ticketHandler.Stats)
	v1.Post("/receipt", ticketHandler.Receipt)

	workdayHandler := handlers.NewWorkdayHandler(workdayService, creds, cfg.App.LocationID, logger)
	v1.Post("/workday/open", workdayHandler.Open)
	v1.Post("/workday/close", workdayHandler.Close)
	v1.Get("/workday", workdayHandler.Current)

	paymentHandler := handlers.NewPaymentHandler(coordinator, terminalCfg, cfg.Terminal.PollTimeout, cfg.Region.Currency, logger)
	v1.Post("/payments/terminal", paymentHandler.Charge)
	v1.Post("/payments/terminal/:id/cancel", paymentHandler.Cancel)

	app.Use("/mesh/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/mesh/ws", hub.Handler())

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down terminal...")
	stopSync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Terminal exited gracefully")
}

// runPeripheral runs a display node: a mesh client that connects to the
// hub and reacts to the messages of its role.
func runPeripheral(cfg *config.Config, logger *zap.Logger) {
	var role domain.DeviceType
	switch cfg.Mesh.Role {
	case "kds":
		role = domain.DeviceTypeKDS
	case "queue":
		role = domain.DeviceTypeQueue
	}

	client := mesh.NewClient(cfg.Mesh, cfg.App.DeviceID, role, logger)

	switch role {
	case domain.DeviceTypeKDS:
		client.On(domain.MessageTypeOrderCreated, func(env domain.Envelope) {
			var p domain.OrderCreatedPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				logger.Warn("Malformed order_created payload", zap.Error(err))
				return
			}
			logger.Info("New order",
				zap.String("ticket_id", p.TicketID),
				zap.Int("token_number", p.TokenNumber),
				zap.Int("items", len(p.Items)),
			)
		})
	case domain.DeviceTypeQueue:
		client.On(domain.MessageTypeQueueCall, func(env domain.Envelope) {
			var p domain.QueueCallPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				logger.Warn("Malformed queue_call payload", zap.Error(err))
				return
			}
			logger.Info("Calling token", zap.Int("token_number", p.TokenNumber))
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		logger.Fatal("Failed to connect to mesh hub", zap.String("hub_url", cfg.Mesh.HubURL), zap.Error(err))
	}
	defer client.Close()

	logger.Info("Connected to mesh hub", zap.String("hub_url", cfg.Mesh.HubURL))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Display node exited gracefully")
}
