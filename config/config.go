package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DataPaths holds data directory and file path configuration. Paths can
// be overridden via environment variables (VIGIA_DATA_PATHS_*).
type DataPaths struct {
	// DataDir is the base data directory (default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the SQLite database file path (default: ${DataDir}/vigia.db)
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Config holds all configuration for the Vigia service.
type Config struct {
	// DataPaths holds data directory configuration
	DataPaths DataPaths `mapstructure:"data_paths"`

	API struct {
		Port           int      `mapstructure:"port"`
		Host           string   `mapstructure:"host"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		RateLimit      struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	// Elastic configures the Elasticsearch index holding Wazuh alerts.
	Elastic struct {
		URL       string        `mapstructure:"url"`
		Index     string        `mapstructure:"index"`
		Username  string        `mapstructure:"username"`
		Password  string        `mapstructure:"password"`
		Timeout   time.Duration `mapstructure:"timeout"`
		VerifyTLS bool          `mapstructure:"verify_tls"`
	} `mapstructure:"elastic"`

	// Wazuh configures the Wazuh manager API used for per-alert lookups.
	// The manager issues short-lived bearer tokens against basic auth.
	Wazuh struct {
		URL      string        `mapstructure:"url"`
		Username string        `mapstructure:"username"`
		Password string        `mapstructure:"password"`
		Token    string        `mapstructure:"token"` // explicit token wins over username/password
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"wazuh"`

	Sync struct {
		// DefaultLimit is the batch size when a sync request carries none.
		DefaultLimit int `mapstructure:"default_limit"`
		// Interval enables the periodic background sync when > 0.
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"sync"`

	// AlertCacheSize bounds the single-alert LRU cache in the service layer.
	AlertCacheSize int `mapstructure:"alert_cache_size"`
}

// setDefaults registers every configuration default with viper.
func setDefaults() {
	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // Empty = derive from data_dir

	viper.SetDefault("api.port", 8081)
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("api.rate_limit.requests_per_second", 100)
	viper.SetDefault("api.rate_limit.burst", 200)

	viper.SetDefault("elastic.url", "https://localhost:9200")
	viper.SetDefault("elastic.index", "wazuh-alerts-*")
	viper.SetDefault("elastic.username", "")
	viper.SetDefault("elastic.password", "")
	viper.SetDefault("elastic.timeout", 30*time.Second)
	viper.SetDefault("elastic.verify_tls", false) // Wazuh ships self-signed certs

	viper.SetDefault("wazuh.url", "")
	viper.SetDefault("wazuh.username", "")
	viper.SetDefault("wazuh.password", "")
	viper.SetDefault("wazuh.token", "")
	viper.SetDefault("wazuh.timeout", 10*time.Second)

	viper.SetDefault("sync.default_limit", 500)
	viper.SetDefault("sync.interval", 0) // disabled unless configured

	viper.SetDefault("alert_cache_size", 512)
}

// LoadConfig reads configuration from config.yaml (working directory or
// /etc/vigia) plus VIGIA_-prefixed environment variables.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/vigia")

	viper.SetEnvPrefix("VIGIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api.port: %d", c.API.Port)
	}
	if c.Elastic.URL != "" {
		if _, err := url.Parse(c.Elastic.URL); err != nil {
			return fmt.Errorf("invalid elastic.url: %w", err)
		}
	}
	if c.Elastic.Index == "" {
		return fmt.Errorf("elastic.index must not be empty")
	}
	if c.Sync.DefaultLimit <= 0 {
		return fmt.Errorf("sync.default_limit must be positive, got %d", c.Sync.DefaultLimit)
	}
	if c.Elastic.Timeout <= 0 {
		return fmt.Errorf("elastic.timeout must be positive, got %s", c.Elastic.Timeout)
	}
	return nil
}

// GetDataDir returns the base data directory.
func (c *Config) GetDataDir() string {
	if c.DataPaths.DataDir == "" {
		return "./data"
	}
	return c.DataPaths.DataDir
}

// GetSQLitePath returns the SQLite database path, derived from the data
// directory when not set explicitly.
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath != "" {
		return c.DataPaths.SQLitePath
	}
	return filepath.Join(c.GetDataDir(), "vigia.db")
}
