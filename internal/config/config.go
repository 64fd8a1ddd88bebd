package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string        `mapstructure:"PORT"`
	GinMode                          string        `mapstructure:"GIN_MODE"`
	FirebaseProjectID                string        `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string        `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string        `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	ClientURL                        string        `mapstructure:"CLIENT_URL"`
	AppBaseURL                       string        `mapstructure:"APP_BASE_URL"`
	AdminEmail                       string        `mapstructure:"ADMIN_EMAIL"`
	StoreTimeout                     time.Duration `mapstructure:"STORE_TIMEOUT"`
	IdentityTimeout                  time.Duration `mapstructure:"IDENTITY_TIMEOUT"`
	CleanupInterval                  time.Duration `mapstructure:"CLEANUP_INTERVAL"`

	// Comma-separated addresses or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
	// "cloudflare" or "appengine"; empty trusts no platform header.
	TrustedPlatform string `mapstructure:"TRUSTED_PLATFORM"`

	// Local cache tier. Empty RedisAddr selects the in-process cache.
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	// Empty AMQPURL sends mail inline instead of through the queue.
	AMQPURL      string `mapstructure:"AMQP_URL"`
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	PaystackSecretKey   string `mapstructure:"PAYSTACK_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	PlanCatalogPath     string `mapstructure:"PLAN_CATALOG_PATH"`

	OpenAIAPIKey string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel  string `mapstructure:"OPENAI_MODEL"`

	SentryDSN string `mapstructure:"SENTRY_DSN"`
}

var appConfig *Config

var envKeys = []string{
	"PORT", "GIN_MODE", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64", "CLIENT_URL", "APP_BASE_URL", "ADMIN_EMAIL",
	"STORE_TIMEOUT", "IDENTITY_TIMEOUT", "CLEANUP_INTERVAL", "TRUSTED_PROXIES", "TRUSTED_PLATFORM", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL",
	"AMQP_URL", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM",
	"PAYSTACK_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "PLAN_CATALOG_PATH",
	"OPENAI_API_KEY", "OPENAI_MODEL", "SENTRY_DSN",
}

// LoadConfig loads configuration from the environment, after applying an
// optional .env file (ENV_FILE overrides its path).
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("STORE_TIMEOUT", "8s")
	v.SetDefault("IDENTITY_TIMEOUT", "8s")
	v.SetDefault("CLEANUP_INTERVAL", "6h")
	v.SetDefault("CACHE_TTL", "168h")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("PLAN_CATALOG_PATH", "configs/plans.yaml")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return appConfig, nil
}

func (cfg *Config) validate() error {
	if cfg.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if cfg.AdminEmail == "" {
		return errors.New("ADMIN_EMAIL is required")
	}
	if cfg.ClientURL == "" {
		return errors.New("CLIENT_URL is required")
	}
	if cfg.AppBaseURL == "" {
		cfg.AppBaseURL = cfg.ClientURL
	}
	if cfg.PaystackSecretKey == "" && cfg.StripeWebhookSecret == "" {
		return errors.New("either PAYSTACK_SECRET_KEY or STRIPE_WEBHOOK_SECRET is required")
	}
	if cfg.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	if cfg.IdentityTimeout <= 0 {
		return errors.New("IDENTITY_TIMEOUT must be positive")
	}
	return nil
}

// GetConfig returns the loaded application configuration.
// It will panic if LoadConfig has not been called successfully.
func GetConfig() *Config {
	if appConfig == nil {
		panic("config not loaded; call LoadConfig first")
	}
	return appConfig
}
