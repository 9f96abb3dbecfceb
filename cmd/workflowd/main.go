// Package main implements workflowd, the ERPNext workflow service: it serves
// the workflow catalog over HTTP, executes and resumes runs, streams progress
// as SSE, and persists checkpoints in the configured store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Yosef-Ali/erpnext-workflows/engine"
	"github.com/Yosef-Ali/erpnext-workflows/log"
	"github.com/Yosef-Ali/erpnext-workflows/registry"
	"github.com/Yosef-Ali/erpnext-workflows/server"
	"github.com/Yosef-Ali/erpnext-workflows/store"
	"github.com/Yosef-Ali/erpnext-workflows/store/memory"
	"github.com/Yosef-Ali/erpnext-workflows/store/postgres"
	"github.com/Yosef-Ali/erpnext-workflows/store/redis"
	"github.com/Yosef-Ali/erpnext-workflows/store/sqlite"
	"github.com/Yosef-Ali/erpnext-workflows/workflows"
)

// Config holds the service configuration.
type Config struct {
	Addr string

	// Checkpoint store selection: "memory", "redis", "postgres", or
	// "sqlite".
	StoreBackend string
	RedisURL     string
	DatabaseURL  string
	SQLitePath   string
	Namespace    string
	TTL          time.Duration

	RecursionLimit int
	LogLevel       string
}

// LoadConfig loads configuration from environment variables with the
// defaults the service ships with.
func LoadConfig() Config {
	return Config{
		Addr:           getEnv("WORKFLOWS_ADDR", ":8001"),
		StoreBackend:   getEnv("CHECKPOINT_STORE", "memory"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", "workflows.db"),
		Namespace:      getEnv("CHECKPOINT_NAMESPACE", store.DefaultNamespace),
		TTL:            time.Duration(getEnvInt("CHECKPOINT_TTL_HOURS", 24)) * time.Hour,
		RecursionLimit: getEnvInt("RECURSION_LIMIT", 25),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// openStore builds the checkpoint store named by cfg.StoreBackend.
func openStore(ctx context.Context, cfg Config) (store.CheckpointStore, error) {
	switch cfg.StoreBackend {
	case "memory":
		return memory.New(memory.Options{
			TTL:            cfg.TTL,
			Namespace:      cfg.Namespace,
			ExtendOnAccess: true,
		}), nil
	case "redis":
		return redis.New(redis.Options{
			URL:            cfg.RedisURL,
			Namespace:      cfg.Namespace,
			TTL:            cfg.TTL,
			ExtendOnAccess: true,
		})
	case "postgres":
		st, err := postgres.New(ctx, postgres.Options{
			ConnString:     cfg.DatabaseURL,
			Namespace:      cfg.Namespace,
			TTL:            cfg.TTL,
			ExtendOnAccess: true,
		})
		if err != nil {
			return nil, err
		}
		if err := st.InitSchema(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "sqlite":
		return sqlite.New(sqlite.Options{
			Path:           cfg.SQLitePath,
			Namespace:      cfg.Namespace,
			TTL:            cfg.TTL,
			ExtendOnAccess: true,
		})
	default:
		return nil, fmt.Errorf("unknown checkpoint store %q", cfg.StoreBackend)
	}
}

func main() {
	cfg := LoadConfig()
	logger := log.NewGolog("[workflowd] ", log.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ckpts, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("checkpoint store: %v", err)
		os.Exit(1)
	}

	reg := registry.New()
	if err := workflows.RegisterAll(reg); err != nil {
		logger.Error("workflow registration: %v", err)
		os.Exit(1)
	}

	eng := engine.New(reg, ckpts, engine.Options{
		RecursionLimit: cfg.RecursionLimit,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(reg, eng, server.Options{Logger: logger}).Handler(),
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}()

	stats := reg.Stats()
	logger.Info("serving %d workflows across %d industries on %s (checkpoints: %s)",
		stats.TotalWorkflows, len(stats.ByIndustry), cfg.Addr, cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server: %v", err)
		os.Exit(1)
	}

	// Ending live runs lets streaming handlers drain, which lets Shutdown
	// finish.
	eng.Close()
	<-shutdownDone
	if err := ckpts.Close(); err != nil {
		logger.Warn("closing checkpoint store: %v", err)
	}
}
