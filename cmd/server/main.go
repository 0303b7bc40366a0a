package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"msghub/internal/config"
	"msghub/internal/storage"
	"msghub/internal/tcp"
)

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	store, err := storage.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("database_unavailable", "error", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	// The Redis cache is optional; the server runs straight off Postgres
	// when no Redis is configured or reachable.
	var serverStore storage.Store = store
	if cfg.RedisURL != "" {
		cached, err := storage.NewCachedStore(store, cfg.RedisAddr(), cfg.RedisPassword, cfg.CacheTTL, logger)
		if err != nil {
			logger.Warn("redis_unavailable_running_uncached", "error", err.Error())
		} else {
			defer cached.Close()
			serverStore = cached
		}
	}

	addr := fmt.Sprintf(":%d", cfg.TCPPort)
	server := tcp.NewServer(addr, serverStore, cfg.EvictGrace, logger)

	logger.Info("starting_server",
		"addr", addr,
		"env", cfg.GoEnv,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("received_shutdown_signal")
		server.Stop()
		logger.Info("server_stopped_gracefully")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}
}
