package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "BOOKHAVEN"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabasePath     = "bookhaven.db"
	defaultTxLogPath        = "transactions.log"
	defaultLogLevel         = "info"
	defaultTokenTTLMinutes  = 30
	defaultFetchTimeoutSecs = 10
	defaultFetchBaseURL     = "https://openlibrary.org"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	TxLogPath     string
	BootstrapPath string
	LogLevel      string
	SigningSecret string
	TokenTTL      time.Duration
	FetchTimeout  time.Duration
	FetchBaseURL  string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("txlog.path", defaultTxLogPath)
	configViper.SetDefault("bootstrap.path", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("fetch.timeout_seconds", defaultFetchTimeoutSecs)
	configViper.SetDefault("fetch.base_url", defaultFetchBaseURL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		TxLogPath:     configViper.GetString("txlog.path"),
		BootstrapPath: configViper.GetString("bootstrap.path"),
		LogLevel:      configViper.GetString("log.level"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		TokenTTL:      time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		FetchTimeout:  time.Duration(configViper.GetInt("fetch.timeout_seconds")) * time.Second,
		FetchBaseURL:  configViper.GetString("fetch.base_url"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.TxLogPath) == "" {
		return fmt.Errorf("txlog.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be positive")
	}
	return nil
}
