// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/auth"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/clock"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/config"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/database"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/handler"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/ratelimit"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/repository"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/service"
	"github.com/Shivanand-hulikatti/event-registration-core/internal/token"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s: configured through the environment.\n\n%s", os.Args[0], config.Usage())
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "eventhub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.DB, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	log.Info("connected to postgres", "host", cfg.DB.Host, "db", cfg.DB.DBName)

	// ── 2. Tokens and access gate ────────────────────────────────────────
	clk := clock.Real()
	tokens, err := token.NewService(token.Config{
		Secret: []byte(cfg.Token.Secret),
		Issuer: cfg.Token.Issuer,
	}, clk)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	gate := auth.NewGate(tokens)

	// ── 3. Optional login throttling ─────────────────────────────────────
	opts := service.AccountOptions{
		TokenTTL:   cfg.Token.TTL,
		BcryptCost: cfg.Login.BcryptCost,
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		limiter, err := ratelimit.New(rdb, ratelimit.Config{
			MaxAttempts: cfg.Login.MaxAttempts,
			Window:      cfg.Login.Window,
		})
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		opts.Limiter = limiter
		log.Info("login throttling enabled", "redis", cfg.Redis.Addr,
			"max_attempts", cfg.Login.MaxAttempts, "window", cfg.Login.Window)
	} else {
		log.Warn("REDIS_ADDR not set, login throttling disabled")
	}

	// ── 4. Wire up layers ────────────────────────────────────────────────
	eventRepo := repository.NewEventRepository(pool, clk)
	regRepo := repository.NewRegistrationRepository(pool)
	accountRepo := repository.NewAccountRepository(pool)

	accounts, err := service.NewAccountService(accountRepo, tokens, clk, opts)
	if err != nil {
		return fmt.Errorf("account service: %w", err)
	}
	h := handler.New(
		service.NewEventService(eventRepo),
		service.NewRegistrationManager(regRepo, clk),
		accounts,
		gate,
		log,
	)

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(h, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
