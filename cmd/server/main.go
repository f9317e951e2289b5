package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"crashgame/internal/cache"
	"crashgame/internal/config"
	"crashgame/internal/database"
	"crashgame/internal/game"
	"crashgame/internal/logger"
	"crashgame/internal/metrics"
	"crashgame/internal/server"
)

func gracefulShutdown(srv *server.FiberServer, done chan<- struct{}, log *zap.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exiting")
	done <- struct{}{}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	redisService, err := cache.New(cfg.Redis, log.Named("cache"))
	if err != nil {
		return fmt.Errorf("redis is required for game functionality: %w", err)
	}
	client := redisService.GetClient()

	var db database.Service
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg, log.Named("db"))
		if err != nil {
			if cfg.AccountBackend == config.AccountBackendPostgres {
				redisService.Close()
				return err
			}
			log.Warn("postgres unavailable, continuing with redis only", zap.Error(err))
			db = nil
		}
	}

	var accounts game.AccountService = game.NewRedisAccounts(client)
	var store game.HistoryStore = game.NewRedisHistory(client)
	if db != nil {
		store = database.NewHistoryRepository(db.Pool())
		if cfg.AccountBackend == config.AccountBackendPostgres {
			repo, err := database.NewAccountRepository(db.Pool())
			if err != nil {
				return err
			}
			accounts = repo
		}
	}

	m := metrics.New()
	hub := game.NewHub(log.Named("hub"))
	manager := game.NewManager(accounts,
		game.WithPolicy(buildPolicy(cfg.Game)),
		game.WithNotifier(hub),
		game.WithHistoryStore(store),
		game.WithLogger(log.Named("game")),
		game.WithMetrics(m),
		game.WithTimings(game.Timings{
			BettingWindow: cfg.Game.BettingWindow,
			TickInterval:  cfg.Game.TickInterval,
			CrashedWindow: cfg.Game.CrashedWindow,
		}),
	)

	srv := server.New(server.Deps{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Cache:    redisService,
		Manager:  manager,
		Hub:      hub,
		Accounts: accounts,
		Metrics:  m,
	})
	srv.RegisterFiberRoutes()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start game: %w", err)
	}

	done := make(chan struct{}, 1)
	go gracefulShutdown(srv, done, log)

	log.Info("listening",
		zap.Int("port", cfg.Port),
		zap.String("accounts", cfg.AccountBackend),
		zap.String("policy", cfg.Game.CrashPolicy))

	if err := srv.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	log.Info("graceful shutdown complete")
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.Service, error) {
	if cfg.Database.AutoMigrate {
		sqlDB, err := database.OpenSQL(cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		err = database.RunMigrations(sqlDB, cfg.Database.MigrationsPath)
		sqlDB.Close()
		if err != nil {
			return nil, err
		}
		log.Info("migrations applied", zap.String("path", cfg.Database.MigrationsPath))
	}
	return database.New(ctx, cfg.Database, log)
}

func buildPolicy(cfg config.GameConfig) game.CrashPolicy {
	var policy game.CrashPolicy
	switch cfg.CrashPolicy {
	case config.CrashPolicyProvablyFair:
		policy = game.NewProvablyFairPolicy()
	default:
		policy = game.NewRandomPolicy(nil)
	}
	if cfg.MaxRoundTicks > 0 {
		policy = game.CappedPolicy{Inner: policy, MaxTicks: cfg.MaxRoundTicks}
	}
	return policy
}
