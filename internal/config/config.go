package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrConfiguration marks a fatal startup misconfiguration. Callers must abort
// process start instead of falling back to insecure defaults.
var ErrConfiguration = errors.New("config: invalid configuration")

// DevFallbackSecret is the documented-insecure signing secret used only when
// the service runs in the dev environment without an explicit secret.
const DevFallbackSecret = "tally-dev-secret-do-not-deploy"

const envDev = "dev"

// Config holds process-wide settings loaded from the environment.
type Config struct {
	Environment string        `env:"TALLY_ENV" envDefault:"dev"`
	ListenAddr  string        `env:"TALLY_LISTEN_ADDR" envDefault:":8080"`
	PostgresDSN string        `env:"TALLY_PG_DSN"`
	AuthSecret  string        `env:"TALLY_AUTH_SECRET"`
	TokenTTL    time.Duration `env:"TALLY_TOKEN_TTL" envDefault:"30m"`
	LogLevel    string        `env:"TALLY_LOG_LEVEL" envDefault:"info"`

	RateLimitPerSecond int `env:"TALLY_RATE_LIMIT_PER_SECOND" envDefault:"25"`
	RateLimitBurst     int `env:"TALLY_RATE_LIMIT_BURST" envDefault:"50"`
}

// Load parses configuration from environment variables and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDev reports whether the process runs in the development environment.
func (c Config) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), envDev)
}

// SigningSecret returns the token signing secret, substituting the insecure
// dev fallback only in the dev environment. The fallback substitution is
// reported so callers can log a warning.
func (c Config) SigningSecret() (secret string, fallback bool) {
	s := strings.TrimSpace(c.AuthSecret)
	if s != "" {
		return s, false
	}
	return DevFallbackSecret, true
}

func (c Config) validate() error {
	if !c.IsDev() {
		if strings.TrimSpace(c.AuthSecret) == "" {
			return fmt.Errorf("%w: TALLY_AUTH_SECRET is required outside dev", ErrConfiguration)
		}
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("%w: TALLY_PG_DSN is required outside dev", ErrConfiguration)
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: TALLY_TOKEN_TTL must be positive", ErrConfiguration)
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("%w: rate limit settings must be positive", ErrConfiguration)
	}
	return nil
}
