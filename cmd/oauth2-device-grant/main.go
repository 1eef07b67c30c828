// Package main runs the OAuth 2.0 device authorization grant server
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-grant/internal/csrf"
	"github.com/wrale/oauth2-device-grant/internal/logger"
	"github.com/wrale/oauth2-device-grant/internal/metrics"
	"github.com/wrale/oauth2-device-grant/internal/store"
)

// Version is set by the build process
var Version = "dev"

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	l, err := logger.New(logger.Config{
		Env:     cfg.LogEnv,
		Level:   cfg.LogLevel,
		Service: "oauth2-device-grant",
		Version: Version,
	})
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		l.Fatal("parsing Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		l.Fatal("connecting to Redis", zap.Error(err))
	}

	csrfManager := csrf.NewManager(csrf.NewRedisStore(redisClient), []byte(cfg.CSRFSecret), cfg.CSRFTokenExpiry)

	srv, err := newServer(cfg, store.NewRedisStore(redisClient), csrfManager, metrics.Init(cfg.MetricsEnabled), l)
	if err != nil {
		l.Fatal("creating server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		l.Info("server listening", zap.Int("port", cfg.Port))
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		l.Fatal("starting server", zap.Error(err))

	case sig := <-shutdown:
		l.Info("starting shutdown", zap.Stringer("signal", sig))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			l.Error("shutting down server", zap.Error(err))
			if err := httpServer.Close(); err != nil {
				l.Error("closing server", zap.Error(err))
			}
		}

		if err := redisClient.Close(); err != nil {
			l.Error("closing Redis connection", zap.Error(err))
		}
	}
}
