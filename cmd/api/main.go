package main

import (
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"clinic-notify/internal/config"
	"clinic-notify/internal/domain"
	"clinic-notify/internal/handler"
	"clinic-notify/internal/logger"
	"clinic-notify/internal/middleware"
	"clinic-notify/internal/repository"
	"clinic-notify/internal/service/email"
	"clinic-notify/internal/service/notify"
	"clinic-notify/internal/service/xray"
	"clinic-notify/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := config.NewPostgresDB(cfg)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		zlog.Warn("Failed to connect to Redis, unread counts will not be cached", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var xraySvc xray.Service
	minioClient, err := config.NewMinIOClient(cfg)
	if err != nil {
		zlog.Warn("Failed to connect to MinIO, x-ray links will be omitted", zap.Error(err))
	} else {
		xraySvc = xray.NewService(minioClient, cfg)
	}

	repos := repository.NewRepositories(db)
	hub := ws.NewHub(cfg.PushWriteTimeout, zlog)
	emailSvc := email.NewService(cfg)

	notifService := notify.NewService(repos, hub, emailSvc, xraySvc, redisClient, cfg, zlog)
	defer notifService.Shutdown()

	handlers := handler.NewHandlers(notifService, hub, zlog)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	setupRoutes(app, handlers, cfg)

	zlog.Info("Server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("Failed to start server", zap.Error(err))
	}
}

func setupRoutes(app *fiber.App, h *handler.Handlers, cfg *config.Config) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", middleware.AuthRequired(cfg.JWTSecret), websocket.New(h.WS.Serve))

	v1 := app.Group("/api/v1")
	protected := v1.Group("", middleware.AuthRequired(cfg.JWTSecret))

	notifications := protected.Group("/notifications")
	notifications.Get("/", h.Notification.List)
	notifications.Get("/unread-count", h.Notification.GetUnreadCount)
	notifications.Post("/mark-all-read", h.Notification.MarkAllAsRead)
	notifications.Patch("/:id/read", h.Notification.MarkAsRead)
	notifications.Post("/:id/ack", h.Notification.Acknowledge)

	notifications.Get("/preferences", h.Preference.List)
	notifications.Put("/preferences", h.Preference.Update)

	notifications.Get("/metrics", middleware.RequireRole(domain.RoleAdmin), h.Metrics.Get)

	dispatch := protected.Group("", middleware.RequireAnyRole(domain.RoleAdmin, domain.RoleSystem))
	dispatch.Post("/notifications/send", h.Dispatch.Send)
	dispatch.Post("/notifications/notify-role", h.Dispatch.NotifyRole)
	dispatch.Post("/notifications/notify-branch", h.Dispatch.NotifyBranch)
}
