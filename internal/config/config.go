// Package config reads service settings from environment variables,
// falling back to local-development defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Shivanand-hulikatti/event-registration-core/internal/database"
)

// Config is the full service configuration.
type Config struct {
	Port     string `env:"PORT"      env-default:"8080" env-description:"HTTP listen port"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	DB       database.Config
	Token    TokenConfig
	Redis    RedisConfig
	Login    LoginConfig
}

// TokenConfig holds session token settings.
type TokenConfig struct {
	Secret string        `env:"TOKEN_SECRET" env-description:"HMAC key, at least 32 bytes"`
	Issuer string        `env:"TOKEN_ISSUER" env-default:"eventhub"`
	TTL    time.Duration `env:"TOKEN_TTL"    env-default:"24h" env-description:"session lifetime, whole seconds"`
}

// RedisConfig locates the Redis instance used for login throttling. An
// empty Addr disables throttling.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-description:"host:port, empty disables login throttling"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// LoginConfig tunes login throttling.
type LoginConfig struct {
	MaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" env-default:"5"`
	Window      time.Duration `env:"LOGIN_WINDOW"       env-default:"15m"`
	BcryptCost  int           `env:"BCRYPT_COST"        env-default:"12"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Usage describes every recognised environment variable.
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return desc
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if len(c.Token.Secret) < 32 {
		errs = append(errs, errors.New("TOKEN_SECRET must be set to at least 32 bytes"))
	}
	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	} else if c.Token.TTL%time.Second != 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL %s must be a whole number of seconds", c.Token.TTL))
	}
	if c.Login.MaxAttempts <= 0 {
		errs = append(errs, errors.New("LOGIN_MAX_ATTEMPTS must be positive"))
	}
	if c.Login.Window <= 0 {
		errs = append(errs, errors.New("LOGIN_WINDOW must be positive"))
	}
	if c.Login.BcryptCost < 4 || c.Login.BcryptCost > 31 {
		errs = append(errs, errors.New("BCRYPT_COST must be between 4 and 31"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}
