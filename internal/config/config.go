package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // calendar.timezone must resolve on hosts without zoneinfo

	"github.com/spf13/viper"

	"github.com/username/holiday-calendar/pkg/dateutil"
)

// Config represents application configuration
type Config struct {
	Cache    CacheConfig    `mapstructure:"cache"`
	Source   SourceConfig   `mapstructure:"source"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// CacheConfig represents the durable cache configuration
type CacheConfig struct {
	Backend string      `mapstructure:"backend"` // "file", "redis" or "memory"
	Path    string      `mapstructure:"path"`    // For file backend
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig represents the redis backend connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// SourceConfig represents the remote holiday data origin
type SourceConfig struct {
	URLTemplate string `mapstructure:"url_template"` // {year} is replaced by the year
	Timeout     string `mapstructure:"timeout"`
}

// CalendarConfig represents query behaviour
type CalendarConfig struct {
	Timezone             string `mapstructure:"timezone"`
	Locale               string `mapstructure:"locale"` // "zh" or "en"
	RevalidateOncePerRun bool   `mapstructure:"revalidate_once_per_run"` // serve only
}

// ServerConfig represents the HTTP adapter configuration
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	File  string `mapstructure:"file"` // Empty means console
	Level string `mapstructure:"level"`
}

const (
	defaultSourceTimeout   = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.path", "holiday_data/holiday_cache.json")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key", "holiday-calendar:cache")

	v.SetDefault("source.url_template", "https://cdn.jsdelivr.net/gh/NateScarlet/holiday-cn@master/{year}.json")
	v.SetDefault("source.timeout", "10s")

	v.SetDefault("calendar.timezone", "Asia/Shanghai")
	v.SetDefault("calendar.locale", "zh")
	v.SetDefault("calendar.revalidate_once_per_run", true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
}

// Load loads configuration from file. Without an explicit path a missing
// config file is not an error and defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.holiday-calendar")
		v.AddConfigPath("/etc/holiday-calendar")
	}

	// HOLIDAY_CACHE_PATH overrides cache.path
	v.SetEnvPrefix("HOLIDAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "file":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for file backend")
		}
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("cache.backend must be 'file', 'redis' or 'memory', got '%s'", c.Cache.Backend)
	}

	if !strings.Contains(c.Source.URLTemplate, "{year}") {
		return fmt.Errorf("source.url_template must contain {year}")
	}

	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("calendar.timezone: %w", err)
	}

	if !dateutil.ValidLocale(dateutil.Locale(c.Calendar.Locale)) {
		return fmt.Errorf("calendar.locale must be 'zh' or 'en', got '%s'", c.Calendar.Locale)
	}

	return nil
}

// GetTimeout returns the remote fetch timeout
func (c *SourceConfig) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return defaultSourceTimeout
	}
	duration, err := time.ParseDuration(c.Timeout)
	if err != nil || duration <= 0 {
		return defaultSourceTimeout
	}
	return duration
}

// GetLocation returns the time zone used for "today".
// Falls back to local time when the zone is unknown.
func (c *CalendarConfig) GetLocation() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// GetShutdownTimeout returns how long the server waits for in-flight requests
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == "" {
		return defaultShutdownTimeout
	}
	duration, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return defaultShutdownTimeout
	}
	return duration
}
