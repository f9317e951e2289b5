package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"crashgame/internal/config"
	"crashgame/internal/logger"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	// Pool exposes the connection pool for repositories.
	Pool() *pgxpool.Pool

	// Close terminates the connection pool.
	Close() error
}

type service struct {
	pool *pgxpool.Pool
	log  *zap.Logger
	name string
}

func New(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (Service, error) {
	log = logger.OrNop(log)

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s:%s: %w", cfg.Host, cfg.Port, err)
	}

	log.Info("postgres connected", zap.String("host", cfg.Host), zap.String("database", cfg.Database))
	return &service{pool: pool, log: log, name: cfg.Database}, nil
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

// Health checks the health of the database connection by pinging the database.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	st := s.pool.Stat()
	stats["total_conns"] = strconv.Itoa(int(st.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(st.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(st.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(st.MaxConns()))
	stats["acquire_count"] = strconv.FormatInt(st.AcquireCount(), 10)
	stats["empty_acquire_count"] = strconv.FormatInt(st.EmptyAcquireCount(), 10)

	if st.AcquiredConns() > st.MaxConns()*9/10 {
		stats["message"] = "The database is experiencing heavy load."
	}

	return stats
}

func (s *service) Close() error {
	s.log.Info("disconnected from database", zap.String("database", s.name))
	s.pool.Close()
	return nil
}

// OpenSQL opens a database/sql handle on the pgx driver, used by migrations.
func OpenSQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sql: %w", err)
	}
	return db, nil
}

func newMigrator(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("migration source %s: %w", migrationsPath, err)
	}
	return m, nil
}

// RunMigrations applies every pending up migration.
func RunMigrations(db *sql.DB, migrationsPath string) error {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(db *sql.DB, migrationsPath string) error {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// GetMigrationVersion reports the applied version and whether it is dirty.
func GetMigrationVersion(db *sql.DB, migrationsPath string) (uint, bool, error) {
	m, err := newMigrator(db, migrationsPath)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return version, dirty, nil
}
