package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "configs/config.yaml"
	PathEnv     = "BUYNOW_CONFIG_PATH"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverFailover = "failover"
	DriverMemory   = "memory"
)

type Config struct {
	API struct {
		BaseURL            string  `yaml:"base_url"`
		TimeoutSeconds     int     `yaml:"timeout_seconds"`
		CacheTTLSeconds    int     `yaml:"cache_ttl_seconds"`
		RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
		RateLimitBurst     int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Storage struct {
		Driver    string `yaml:"driver"`
		Path      string `yaml:"path"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"storage"`

	Identity struct {
		IDToken string `yaml:"id_token"`
		// OAuth2 signs in through the provider's token endpoint with a
		// stored refresh token. The response's id_token is used.
		OAuth2 struct {
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			TokenURL     string   `yaml:"token_url"`
			RefreshToken string   `yaml:"refresh_token"`
			Scopes       []string `yaml:"scopes"`
		} `yaml:"oauth2"`
	} `yaml:"identity"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Watch struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"watch"`
}

// Load reads the YAML config at path. An empty path falls back to
// $BUYNOW_CONFIG_PATH and then DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err = cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = DriverSQLite
	case DriverSQLite, DriverRedis, DriverFailover, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "data/buynow.db"
	}
	if c.Storage.Driver == DriverSQLite || c.Storage.Driver == DriverFailover {
		if err := os.MkdirAll(filepath.Dir(c.Storage.Path), 0o755); err != nil {
			return err
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	return nil
}

func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// CacheTTL is zero when caching is disabled.
func (c *Config) CacheTTL() time.Duration {
	if c.API.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) WatchInterval() time.Duration {
	if c.Watch.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Watch.IntervalSeconds) * time.Second
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Address != ""
}

// OAuth2Enabled reports whether sign-in should go through the OAuth2
// token endpoint instead of a static id_token.
func (c *Config) OAuth2Enabled() bool {
	o := c.Identity.OAuth2
	return o.ClientID != "" && o.TokenURL != "" && o.RefreshToken != ""
}
