package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"kwrec/internal/config"
)

// Server wraps the Fiber app and configuration.
type Server struct {
	App *fiber.App
	Cfg *config.Config
}

// New creates a new server with middleware configured. limiterStorage may
// be nil, in which case rate limits are tracked in memory.
func New(cfg *config.Config, limiterStorage fiber.Storage) *Server {
	app := fiber.New(fiber.Config{
		AppName: "kwrec",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				message = e.Message
			} else {
				slog.Error("unhandled request error", "path", c.Path(), "error", err)
			}

			return c.Status(code).JSON(fiber.Map{
				"status": "error",
				"error":  message,
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))

	if cfg.RateLimitPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitPerMinute,
			Expiration: 1 * time.Minute,
			Storage:    limiterStorage,
			KeyGenerator: func(c fiber.Ctx) string {
				return c.IP()
			},
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/healthz" || c.Path() == "/metrics"
			},
			LimitReached: func(c fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"status": "error",
					"error":  "Rate limit exceeded. Please try again later.",
				})
			},
		}))
	}

	return &Server{
		App: app,
		Cfg: cfg,
	}
}

// Start starts the server on the configured address.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.Cfg.ServerAddr)
	return s.App.Listen(s.Cfg.ServerAddr, fiber.ListenConfig{DisableStartupMessage: !s.Cfg.IsDev()})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.App.Shutdown()
}
