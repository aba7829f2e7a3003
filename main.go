package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"volleykit-proxy/config"
	"volleykit-proxy/internal/classify"
	"volleykit-proxy/internal/dedup"
	"volleykit-proxy/internal/lockout"
	"volleykit-proxy/internal/logger"
	"volleykit-proxy/internal/proxy"
	"volleykit-proxy/internal/ratelimit"
	"volleykit-proxy/internal/resilience"
)

func main() {
	// Handle healthcheck subcommand (for Docker healthcheck in distroless image)
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := runHealthcheck(); err != nil {
			fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	appLogger := logger.Init()

	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		slog.ErrorContext(ctx, "invalid configuration", "error", err)
		os.Exit(1)
	}

	allowedOrigins := classify.ParseAllowedOrigins(cfg.AllowedOrigins)
	if err := classify.ValidateAllowedOrigins(allowedOrigins); err != nil {
		slog.ErrorContext(ctx, "invalid ALLOWED_ORIGINS", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "configuration loaded",
		"port", cfg.Port,
		"target_host", cfg.TargetHost,
		"kill_switch", cfg.KillSwitch,
		"allowed_origins", allowedOrigins)

	store, storeHealth := buildLockoutStore(ctx, cfg, appLogger)

	client, err := proxy.NewBackendClient(cfg.TargetHost, cfg.RequestTimeout)
	if err != nil {
		slog.ErrorContext(ctx, "invalid TARGET_HOST", "error", err)
		os.Exit(1)
	}

	var limiter proxy.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	engine := lockout.NewEngine(store, appLogger)
	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.FailureThreshold = cfg.CBFailureThreshold
	breakerCfg.OpenTimeout = cfg.CBOpenTimeout
	breaker := resilience.NewCircuitBreaker(breakerCfg)
	coalescer := dedup.New()

	pipelineCfg := proxy.Config{
		AllowedOrigins:   allowedOrigins,
		TargetHost:       cfg.TargetHost,
		KillSwitch:       cfg.KillSwitch,
		MistralOCRAPIKey: cfg.MistralOCRAPIKey,
	}
	pipeline := proxy.New(pipelineCfg, client, limiter, engine, storeHealth, breaker, coalescer, appLogger)
	handler := proxy.NewServer(pipeline, allowedOrigins, breaker, coalescer, appLogger)

	address := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         address,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "starting volleykit-proxy server", "address", address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.InfoContext(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "server exited properly")
}

// buildLockoutStore picks a Redis-backed store when REDIS_URL is set and
// reachable at start-up, falling back to the in-memory store otherwise.
// The chosen store is also returned as the proxy.StoreHealth for /health.
func buildLockoutStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lockout.Store, proxy.StoreHealth) {
	if cfg.RedisURL == "" {
		store := lockout.NewMemoryStore(10000)
		return store, store
	}

	redisStore, err := lockout.NewRedisStore(cfg.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure redis lockout store, falling back to memory", "error", err)
		store := lockout.NewMemoryStore(10000)
		return store, store
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisStore.Ping(pingCtx); err != nil {
		slog.ErrorContext(ctx, "redis lockout store unreachable at startup, falling back to memory", "error", err)
		store := lockout.NewMemoryStore(10000)
		return store, store
	}

	return redisStore, redisStore
}

// runHealthcheck performs a health check against the local server.
func runHealthcheck() error {
	port := os.Getenv("PROXY_PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%s/health", port))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}

	return nil
}
