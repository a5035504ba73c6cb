/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env and environment), then apply flags
  2. Build the zap logger
  3. Register extra holiday calendars from CALENDAR_FILE
  4. Open the snapshot repository (sqlite, postgres or memory)
  5. Attach the Redis summary cache and the evidence uploader
  6. Bootstrap the super administrator when ADMIN_SECRET is set
  7. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close repository and cache connections
  4. Exit

EXAMPLES:
  # SQLite file database
  ./server -db="./data/leave.db"

  # Postgres with a Redis summary cache
  DB_DRIVER=postgres POSTGRES_DSN=postgres://... REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/cache"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/observability"
	"github.com/warp/leave-engine/storage"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/store/postgres"
	"github.com/warp/leave-engine/store/sqlite"
	"github.com/warp/leave-engine/timeoff"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags
	port := flag.String("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Storage.SQLitePath, "SQLite database path")
	flag.Parse()
	cfg.App.Port = *port
	cfg.Storage.SQLitePath = *dbPath

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Calendar.File != "" {
		countries, err := factory.LoadCalendars(cfg.Calendar.File)
		if err != nil {
			return fmt.Errorf("load calendars: %w", err)
		}
		logger.Info("holiday calendars registered", zap.Any("countries", countries))
	}

	ctx := context.Background()

	repo, closeRepo, err := openRepository(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc := timeoff.NewService(repo, logger)
	svc.BcryptCost = cfg.Auth.BcryptCost

	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedis(cfg.Redis, logger)
		defer redisCache.Close()
		svc.Cache = redisCache
	}

	uploader, err := storage.NewLocal(cfg.Uploads.Dir, cfg.Uploads.BaseURL)
	if err != nil {
		return fmt.Errorf("init uploads: %w", err)
	}
	svc.Uploader = uploader

	if cfg.Auth.AdminSecret != "" {
		created, err := svc.EnsureSuperAdmin(ctx, generic.EntityID(cfg.Auth.AdminID), cfg.Auth.AdminName, cfg.Auth.AdminSecret)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logger.Info("super administrator created", zap.String("employee_id", cfg.Auth.AdminID))
		}
	}

	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.App.CORSOrigins,
		UploadDir:   uploader.Dir(),
		UploadRoute: cfg.Uploads.BaseURL,
	})

	server := &http.Server{
		Addr:         cfg.App.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openRepository selects the snapshot backend. The returned func releases it.
func openRepository(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (timeoff.Repository, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.New(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres repository")
		return repo, pool.Close, nil

	case "memory":
		logger.Warn("using in-memory repository; data is lost on exit")
		return memory.New(), func() {}, nil

	default:
		repo, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize database: %w", err)
		}
		logger.Info("using sqlite repository", zap.String("path", cfg.SQLitePath))
		return repo, func() { repo.Close() }, nil
	}
}
