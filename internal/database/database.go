// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string `env:"DB_HOST"     env-default:"localhost"`
	Port     string `env:"DB_PORT"     env-default:"5432"`
	User     string `env:"DB_USER"     env-default:"postgres"`
	Password string `env:"DB_PASSWORD" env-default:"postgres"`
	DBName   string `env:"DB_NAME"     env-default:"eventhub"`
	SSLMode  string `env:"DB_SSLMODE"  env-default:"disable"`
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg Config, log *slog.Logger) (*pgxpool.Pool, error) {
	return Connect(ctx, cfg.DSN(), log)
}

// Connect is NewPool for an explicit connection string.
func Connect(ctx context.Context, dsn string, log *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	// Sensible pool defaults for a small service.
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	err = retry(ctx, connectAttempts, sleep(connectBackoff), log, func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return pool, nil
}

// waitFunc blocks between attempts and fails when ctx is done.
type waitFunc func(ctx context.Context) error

func sleep(d time.Duration) waitFunc {
	return func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}
}

// retry calls fn up to attempts times, waiting between failures but not
// after the last one. It returns the last error from fn.
func retry(ctx context.Context, attempts int, wait waitFunc, log *slog.Logger, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if log != nil {
			log.Warn("db connect failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("of", attempts),
				slog.String("error", lastErr.Error()),
			)
		}
		if err := wait(ctx); err != nil {
			return err
		}
	}
	return lastErr
}
