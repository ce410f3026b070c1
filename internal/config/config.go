package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string        `mapstructure:"PORT"`
	GinMode                          string        `mapstructure:"GIN_MODE"`
	ClientURL                        string        `mapstructure:"CLIENT_URL"`
	StoreDriver                      string        `mapstructure:"STORE_DRIVER"`
	AuthMode                         string        `mapstructure:"AUTH_MODE"`
	JWTSecret                        string        `mapstructure:"JWT_SECRET"`
	FirebaseProjectID                string        `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string        `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string        `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	RedisAddr                        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword                    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB                          int           `mapstructure:"REDIS_DB"`
	MenuCacheTTL                     time.Duration `mapstructure:"MENU_CACHE_TTL"`
	RabbitMQURL                      string        `mapstructure:"RABBITMQ_URL"`
	BillingQueue                     string        `mapstructure:"BILLING_QUEUE"`
	FeedbackQueue                    string        `mapstructure:"FEEDBACK_QUEUE"`
	BillingWebhookSecret             string        `mapstructure:"BILLING_WEBHOOK_SECRET"`
	PublicMenuBaseURL                string        `mapstructure:"PUBLIC_MENU_BASE_URL"`
	TrialDays                        int           `mapstructure:"TRIAL_DAYS"`
	PlansConfigPath                  string        `mapstructure:"PLANS_CONFIG_PATH"`
	SMTPHost                         string        `mapstructure:"SMTP_HOST"`
	SMTPPort                         string        `mapstructure:"SMTP_PORT"`
	SMTPUsername                     string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword                     string        `mapstructure:"SMTP_PASSWORD"`
	MailFrom                         string        `mapstructure:"MAIL_FROM"`
}

var keys = []string{
	"PORT", "GIN_MODE", "CLIENT_URL", "STORE_DRIVER", "AUTH_MODE", "JWT_SECRET",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "MENU_CACHE_TTL",
	"RABBITMQ_URL", "BILLING_QUEUE", "FEEDBACK_QUEUE", "BILLING_WEBHOOK_SECRET",
	"PUBLIC_MENU_BASE_URL", "TRIAL_DAYS", "PLANS_CONFIG_PATH",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM",
}

var appConfig *Config

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("STORE_DRIVER", StoreFirestore)
	v.SetDefault("AUTH_MODE", AuthFirebase)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MENU_CACHE_TTL", "60s")
	v.SetDefault("BILLING_QUEUE", "billing.events")
	v.SetDefault("FEEDBACK_QUEUE", "feedback.events")
	v.SetDefault("TRIAL_DAYS", 14)
	v.SetDefault("PLANS_CONFIG_PATH", "configs/plans.yaml")
	v.SetDefault("SMTP_PORT", "587")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	if cfg.PublicMenuBaseURL == "" {
		cfg.PublicMenuBaseURL = cfg.ClientURL
	}
	cfg.PublicMenuBaseURL = strings.TrimRight(cfg.PublicMenuBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return appConfig, nil
}

// Validate checks that the settings required by the selected store and
// auth backends are present.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreFirestore:
		if err := c.requireFirebase(); err != nil {
			return err
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreFirestore, StoreMemory, c.StoreDriver)
	}

	switch c.AuthMode {
	case AuthFirebase:
		if err := c.requireFirebase(); err != nil {
			return err
		}
	case AuthJWT:
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
		if c.GinMode == "release" {
			return errors.New("AUTH_MODE=jwt is a development mode and cannot run with GIN_MODE=release")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthFirebase, AuthJWT, c.AuthMode)
	}

	if c.ClientURL == "" {
		return errors.New("CLIENT_URL is required")
	}
	if c.TrialDays <= 0 {
		return errors.New("TRIAL_DAYS must be positive")
	}
	if c.MenuCacheTTL < 0 {
		return errors.New("MENU_CACHE_TTL must not be negative")
	}
	if c.SMTPHost != "" && c.MailFrom == "" {
		return errors.New("MAIL_FROM is required when SMTP_HOST is set")
	}
	return nil
}

func (c *Config) requireFirebase() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if c.GoogleApplicationCredentials == "" && c.FirebaseServiceAccountJSONBase64 == "" {
		return errors.New("either GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is required")
	}
	return nil
}

// UsesFirebase reports whether the Firebase Admin SDK has to be initialized.
func (c *Config) UsesFirebase() bool {
	return c.StoreDriver == StoreFirestore || c.AuthMode == AuthFirebase
}

// MailEnabled reports whether owner notification email is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// GetConfig returns the loaded application configuration.
// It will panic if LoadConfig has not been called successfully.
func GetConfig() *Config {
	if appConfig == nil {
		panic("config not loaded; call LoadConfig first")
	}
	return appConfig
}
