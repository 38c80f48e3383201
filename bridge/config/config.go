package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	internal "github.com/konexhq/chatbridge/bridge"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Engine      EngineConfig      `mapstructure:"engine"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Provider    ProviderConfig    `mapstructure:"provider"`
}

// EngineConfig stores the invocation engine settings.
type EngineConfig struct {
	Model                   string        `mapstructure:"model"`                     // default model identifier
	CooldownSeconds         int           `mapstructure:"cooldown_seconds"`          // quota-failure cooldown
	OverloadCooldownSeconds int           `mapstructure:"overload_cooldown_seconds"` // transient-overload cooldown
	HistoryLimit            int           `mapstructure:"history_limit"`             // turns loaded per request
	MaxIterations           int           `mapstructure:"max_iterations"`            // tool feedback loop bound
	ToolTimeout             time.Duration `mapstructure:"tool_timeout"`              // per-tool execution timeout
	PrecheckReadiness       bool          `mapstructure:"precheck_readiness"`        // consult ledger before attempts
	FallbackReply           string        `mapstructure:"fallback_reply"`            // substitute for empty replies
	EnableTracing           bool          `mapstructure:"enable_tracing"`
}

// CredentialsConfig stores the credential pool and admin allow-list.
type CredentialsConfig struct {
	SystemKeys  []string `mapstructure:"system_keys"`  // shared credentials, tried after the caller's own
	AdminPhones []string `mapstructure:"admin_phones"` // phone identities with elevated persona
}

// LedgerConfig stores cooldown-store settings.
type LedgerConfig struct {
	Capacity int `mapstructure:"capacity"` // in-process TTL store capacity
}

// DatabaseConfig stores database connection details.
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // path to the embedded libsql file
}

// ProviderConfig stores LLM provider endpoint settings.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("engine.model", "gemini-2.0-flash")
	viper.SetDefault("engine.cooldown_seconds", 60)
	viper.SetDefault("engine.overload_cooldown_seconds", 2)
	viper.SetDefault("engine.history_limit", 10)
	viper.SetDefault("engine.max_iterations", 3)
	viper.SetDefault("engine.tool_timeout", "30s")
	viper.SetDefault("engine.precheck_readiness", false)
	viper.SetDefault("engine.fallback_reply", "...")
	viper.SetDefault("engine.enable_tracing", true)

	viper.SetDefault("credentials.system_keys", []string{})
	viper.SetDefault("credentials.admin_phones", []string{})

	viper.SetDefault("ledger.capacity", 1024)

	viper.SetDefault("database.path", internal.DefaultDatabasePath)

	viper.SetDefault("provider.base_url", "https://generativelanguage.googleapis.com")
	viper.SetDefault("provider.timeout", "60s")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and env overrides apply.
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Legacy deployment env vars carry comma-separated lists.
	if len(AppConfig.Credentials.SystemKeys) == 0 {
		AppConfig.Credentials.SystemKeys = splitCommaEnv("GOOGLE_API_KEY")
	}
	if len(AppConfig.Credentials.AdminPhones) == 0 {
		AppConfig.Credentials.AdminPhones = splitCommaEnv("ADMIN_PHONES")
	}

	return &AppConfig, nil
}

func splitCommaEnv(name string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
