package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bcnelson/tareas-api/internal/api"
	"github.com/bcnelson/tareas-api/internal/config"
	"github.com/bcnelson/tareas-api/internal/domain"
	"github.com/bcnelson/tareas-api/internal/metrics"
	"github.com/bcnelson/tareas-api/internal/ratelimit"
	"github.com/bcnelson/tareas-api/internal/storage"
	"github.com/bcnelson/tareas-api/internal/storage/memory"
	"github.com/bcnelson/tareas-api/internal/storage/sql"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize storage
	store, err := newStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	if cfg.Storage.SeedTasks {
		if err := store.Seed(context.Background(), domain.DemoTasks()); err != nil {
			log.Fatalf("Failed to seed tasks: %v", err)
		}
	}

	m := metrics.New()
	if tasks, err := store.List(context.Background()); err == nil {
		m.SetTasks(len(tasks))
	}

	// Rate-limit decision stats: always in memory, plus Redis when configured
	memStats := ratelimit.NewMemoryStats()
	m.WatchDecisions(memStats)
	stats := ratelimit.MultiStats{memStats}
	if cfg.Redis.Addr != "" {
		// Stats are best-effort: fail fast and never retry
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  300 * time.Millisecond,
			ReadTimeout:  300 * time.Millisecond,
			WriteTimeout: 300 * time.Millisecond,
			MaxRetries:   -1,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("Redis at %s unreachable, stats will be dropped until it is: %v", cfg.Redis.Addr, err)
		}
		cancel()

		errEvery := &rate.Sometimes{Interval: time.Minute}
		redisStats := ratelimit.NewAsyncStats(
			ratelimit.NewRedisStats(rdb, ratelimit.WithStatsPrefix(cfg.Redis.Prefix)),
			ratelimit.WithErrorHandler(func(err error) {
				errEvery.Do(func() { log.Printf("Failed to record stats to Redis: %v", err) })
			}),
		)
		defer redisStats.Close()
		stats = append(stats, redisStats)
		log.Printf("Recording rate-limit stats to Redis at %s", cfg.Redis.Addr)
	}

	router := api.NewRouter(cfg, api.Deps{
		Store:   store,
		Stats:   stats,
		Metrics: m,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           api.NewMetricsRouter(m, memStats),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("Serving metrics on http://%s/metrics and /debug/ratelimit", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
	}

	log.Printf("Server is running on http://%s", cfg.Server.Addr())
	log.Printf("Press Ctrl+C to stop")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		return
	}

	log.Println("Server stopped")
}

func newStore(cfg config.StorageConfig) (storage.TaskStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		log.Printf("Using SQLite task store (%s)", cfg.DSN)
		return sql.New(cfg.DSN)
	default:
		return memory.New(), nil
	}
}
