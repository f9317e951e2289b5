package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"crashgame/internal/cache"
	"crashgame/internal/config"
	"crashgame/internal/database"
	"crashgame/internal/game"
	"crashgame/internal/logger"
	"crashgame/internal/metrics"
)

// Deps are the components the HTTP layer is built on. DB and Cache are
// optional and only reported by /health.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	DB       database.Service
	Cache    cache.Service
	Manager  *game.Manager
	Hub      *game.Hub
	Accounts game.AccountService
	Metrics  *metrics.Metrics
}

type FiberServer struct {
	*fiber.App

	cfg         *config.Config
	log         *zap.Logger
	db          database.Service
	cache       cache.Service
	gameManager *game.Manager
	gameHub     *game.Hub
	accounts    game.AccountService
	metrics     *metrics.Metrics
}

func New(d Deps) *FiberServer {
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:          "crashgame",
			AppName:               "crashgame",
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
			IdleTimeout:           120 * time.Second,
			StrictRouting:         false,
			DisableStartupMessage: !cfg.IsLocal(),
			ErrorHandler:          errorHandler,
		}),

		cfg:         cfg,
		log:         logger.OrNop(d.Log).Named("server"),
		db:          d.DB,
		cache:       d.Cache,
		gameManager: d.Manager,
		gameHub:     d.Hub,
		accounts:    d.Accounts,
		metrics:     d.Metrics,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
	}))

	return server
}

// Start launches the websocket hub and the round clock.
func (s *FiberServer) Start(ctx context.Context) error {
	go s.gameHub.Run()
	if err := s.gameManager.Start(ctx); err != nil {
		s.gameHub.Stop()
		return err
	}
	s.log.Info("game manager started")
	return nil
}

// Shutdown stops accepting requests, then stops the game and closes
// connections.
func (s *FiberServer) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")

	err := s.App.ShutdownWithContext(ctx)

	if s.gameManager != nil {
		s.gameManager.Stop()
	}
	if s.gameHub != nil {
		s.gameHub.Stop()
	}

	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil {
			s.log.Warn("close cache", zap.Error(cerr))
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil {
			s.log.Warn("close database", zap.Error(cerr))
		}
	}

	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
