package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth modes.
const (
	AuthModeLocal   = "local"
	AuthModeCognito = "cognito"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	APIBaseURL       string        `mapstructure:"API_BASE_URL"`
	AuthMode         string        `mapstructure:"AUTH_MODE"`
	CognitoRegion    string        `mapstructure:"COGNITO_REGION"`
	CognitoClientID  string        `mapstructure:"COGNITO_CLIENT_ID"`
	AuthSigningKey   string        `mapstructure:"AUTH_SIGNING_KEY"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	FixtureFallback  bool          `mapstructure:"FIXTURE_FALLBACK"`
	FixtureDelay     time.Duration `mapstructure:"FIXTURE_DELAY"`
	LocalStorePath   string        `mapstructure:"LOCAL_STORE_PATH"`
	RecentWindowDays int           `mapstructure:"RECENT_WINDOW_DAYS"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "API_BASE_URL", "AUTH_MODE", "COGNITO_REGION", "COGNITO_CLIENT_ID",
	"AUTH_SIGNING_KEY", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"FIXTURE_FALLBACK", "FIXTURE_DELAY", "LOCAL_STORE_PATH", "RECENT_WINDOW_DAYS",
	"REQUEST_TIMEOUT", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("API_BASE_URL", "http://localhost:8000")
	v.SetDefault("AUTH_MODE", AuthModeLocal)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("FIXTURE_FALLBACK", false)
	v.SetDefault("FIXTURE_DELAY", "500ms")
	v.SetDefault("LOCAL_STORE_PATH", ".scope/local.json")
	v.SetDefault("RECENT_WINDOW_DAYS", 14)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the app is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RecentWindow is the look-back period of the "recent" views.
func (c *Config) RecentWindow() time.Duration {
	return time.Duration(c.RecentWindowDays) * 24 * time.Hour
}

// UsesDatabase reports whether the dev backend should persist to Postgres
// instead of memory.
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

// Validate checks that the configuration is safe to run. Cognito needs a region
// and an app client id; the local provider needs a signing key outside
// development; fixture fallback data never reaches production.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeCognito:
		if c.CognitoRegion == "" || c.CognitoClientID == "" {
			return fmt.Errorf("COGNITO_REGION and COGNITO_CLIENT_ID must be set when AUTH_MODE is %q", AuthModeCognito)
		}
	case AuthModeLocal:
		if !c.IsDev() && c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when AUTH_MODE is %q outside development (current ENV=%q)", AuthModeLocal, c.Env)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeLocal, AuthModeCognito, c.AuthMode)
	}

	if c.IsProduction() && c.FixtureFallback {
		return fmt.Errorf("FIXTURE_FALLBACK must not be enabled in production")
	}
	if c.RecentWindowDays <= 0 {
		return fmt.Errorf("RECENT_WINDOW_DAYS must be positive, got %d", c.RecentWindowDays)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}

	return nil
}
