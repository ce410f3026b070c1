package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// cliConfig is read from the environment. Flags override the API URL.
type cliConfig struct {
	APIURL         string        `mapstructure:"MENUBOARD_API_URL"`
	FirebaseAPIKey string        `mapstructure:"FIREBASE_API_KEY"`
	Email          string        `mapstructure:"MENUBOARD_EMAIL"`
	Password       string        `mapstructure:"MENUBOARD_PASSWORD"`
	ResolveTimeout time.Duration `mapstructure:"MENUBOARD_RESOLVE_TIMEOUT"`
	Debug          bool          `mapstructure:"MENUBOARD_DEBUG"`
}

var errMissingCredentials = errors.New("MENUBOARD_EMAIL and MENUBOARD_PASSWORD must be set")

func loadCLIConfig() (*cliConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("MENUBOARD_API_URL", "http://localhost:8080/api/v1")
	v.SetDefault("MENUBOARD_RESOLVE_TIMEOUT", "10s")
	v.SetDefault("MENUBOARD_DEBUG", false)
	for _, k := range []string{"MENUBOARD_API_URL", "FIREBASE_API_KEY", "MENUBOARD_EMAIL", "MENUBOARD_PASSWORD", "MENUBOARD_RESOLVE_TIMEOUT", "MENUBOARD_DEBUG"} {
		_ = v.BindEnv(k)
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to read menuctl settings: " + err.Error())
	}
	if cfg.FirebaseAPIKey == "" {
		return nil, errors.New("FIREBASE_API_KEY is required")
	}
	if cfg.ResolveTimeout <= 0 {
		return nil, errors.New("MENUBOARD_RESOLVE_TIMEOUT must be positive")
	}
	return &cfg, nil
}

func (c *cliConfig) credentials() (string, string, error) {
	if c.Email == "" || c.Password == "" {
		return "", "", errMissingCredentials
	}
	return c.Email, c.Password, nil
}
