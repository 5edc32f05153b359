// Package config loads service configuration from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	AuthModeJWT    = "jwt"
	AuthModeRemote = "remote"
)

// Config is the full service configuration.
type Config struct {
	Port           int    `env:"PORT" envDefault:"5200"`
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	ServiceToken   string `env:"SERVICE_TOKEN,required,notEmpty"`

	// Identity
	AuthMode          string `env:"AUTH_MODE" envDefault:"jwt"`
	AuthJWTSecret     string `env:"AUTH_JWT_SECRET"`
	AuthJWTIssuer     string `env:"AUTH_JWT_ISSUER"`
	AuthServiceURL    string `env:"AUTH_SERVICE_URL"`
	AuthServiceAPIKey string `env:"AUTH_SERVICE_API_KEY"`

	// View cache; empty address disables it
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	ViewCacheTTL  time.Duration `env:"VIEW_CACHE_TTL" envDefault:"5m"`

	// Web push
	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `env:"VAPID_SUBJECT"`
	PushConcurrency int    `env:"PUSH_CONCURRENCY" envDefault:"8"`

	// Cards
	AllowOwnerSelfValidation bool          `env:"ALLOW_OWNER_SELF_VALIDATION" envDefault:"false"`
	ScoreReconcileInterval   time.Duration `env:"SCORE_RECONCILE_INTERVAL" envDefault:"15m"`

	// Avatar storage (Cloudflare R2); empty bucket disables uploads
	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	CDNBaseURL        string `env:"CDN_BASE_URL"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse parses the current environment into a Config and validates it.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements env tags cannot express.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeJWT:
		if c.AuthJWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthModeRemote:
		if c.AuthServiceURL == "" {
			return errors.New("AUTH_SERVICE_URL is required when AUTH_MODE=remote")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.PushConcurrency < 1 {
		return errors.New("PUSH_CONCURRENCY must be at least 1")
	}
	if c.ScoreReconcileInterval <= 0 {
		return errors.New("SCORE_RECONCILE_INTERVAL must be positive")
	}
	return nil
}

// AllowedOriginsList splits ALLOWED_ORIGINS on commas and trims each entry.
func (c *Config) AllowedOriginsList() []string {
	var out []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// PushEnabled reports whether VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// AvatarUploadsEnabled reports whether an R2 bucket is configured.
func (c *Config) AvatarUploadsEnabled() bool {
	return c.R2BucketName != ""
}
