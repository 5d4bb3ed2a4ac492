package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Storage   StorageConfig         `mapstructure:"storage"`
	Logging   LoggingConfig         `mapstructure:"logging"`
	Auth      AuthConfig            `mapstructure:"auth"`
	Roles     map[string]RoleLimits `mapstructure:"roles"`
	Quota     QuotaConfig           `mapstructure:"quota"`
	Directory DirectoryConfig       `mapstructure:"directory"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "memory" or "redis"
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig defines session token settings
type AuthConfig struct {
	TokenSecret string `mapstructure:"token_secret"`
	TokenTTL    string `mapstructure:"token_ttl"`
}

// RoleLimits defines the time budget for one role
type RoleLimits struct {
	LimitMinutes int   `mapstructure:"limit_minutes"`
	Milestones   []int `mapstructure:"milestones"`
}

// QuotaConfig defines print billing settings
type QuotaConfig struct {
	FreePagesPerDay int64  `mapstructure:"free_pages_per_day"`
	PricePerPage    string `mapstructure:"price_per_page"`
	RetentionDays   int    `mapstructure:"retention_days"`
	SweepTime       string `mapstructure:"sweep_time"`
}

// DirectoryConfig defines the credential validator settings
type DirectoryConfig struct {
	CacheSize int            `mapstructure:"cache_size"`
	CacheTTL  string         `mapstructure:"cache_ttl"`
	Members   []MemberConfig `mapstructure:"members"`
}

// MemberConfig is one roster entry
type MemberConfig struct {
	Registration string `mapstructure:"registration"`
	CPF          string `mapstructure:"cpf"`
	BirthDate    string `mapstructure:"birth_date"`
	Name         string `mapstructure:"name"`
	Role         string `mapstructure:"role"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("KIOSKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// With SetConfigFile an absent file surfaces as *fs.PathError,
		// not viper.ConfigFileNotFoundError.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 5000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "127.0.0.1")

	// Storage defaults: sessions are in-memory by design, the page
	// counters follow unless Redis is configured
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Auth defaults
	v.SetDefault("auth.token_secret", "changeme")
	v.SetDefault("auth.token_ttl", "4h")

	// Role defaults
	v.SetDefault("roles.primary.limit_minutes", 180)
	v.SetDefault("roles.primary.milestones", []int{30, 90, 120, 150, 170})
	v.SetDefault("roles.assistant.limit_minutes", 120)
	v.SetDefault("roles.assistant.milestones", []int{30, 60, 90, 110})

	// Quota defaults
	v.SetDefault("quota.free_pages_per_day", 20)
	v.SetDefault("quota.price_per_page", "0.50")
	v.SetDefault("quota.retention_days", 90)
	v.SetDefault("quota.sweep_time", "03:00")

	// Directory defaults: the roster shipped with the pilot deployment
	v.SetDefault("directory.cache_size", 128)
	v.SetDefault("directory.cache_ttl", "10m")
	v.SetDefault("directory.members", []map[string]interface{}{
		{
			"registration": "MA123456",
			"cpf":          "111.111.111-11",
			"birth_date":   "01/01/1980",
			"name":         "Dr. João da Silva",
			"role":         "primary",
		},
		{
			"registration": "MA654321",
			"cpf":          "222.222.222-22",
			"birth_date":   "15/07/1992",
			"name":         "Dra. Maria Oliveira",
			"role":         "primary",
		},
		{
			"registration": "MA12345",
			"cpf":          "333.333.333-33",
			"birth_date":   "10/05/1985",
			"name":         "Dra. Ana Costa",
			"role":         "assistant",
		},
	})
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported storage type: %s (must be 'memory' or 'redis')", cfg.Storage.Type)
	}

	if len(cfg.Roles) == 0 {
		return fmt.Errorf("at least one role is required")
	}

	for name, role := range cfg.Roles {
		if role.LimitMinutes <= 0 {
			return fmt.Errorf("role %q: limit_minutes must be positive", name)
		}
		if !sort.IntsAreSorted(role.Milestones) {
			return fmt.Errorf("role %q: milestones must be ascending", name)
		}
		for _, m := range role.Milestones {
			if m <= 0 || m >= role.LimitMinutes {
				return fmt.Errorf("role %q: milestone %d must be between 1 and the limit", name, m)
			}
		}
	}

	if cfg.Quota.FreePagesPerDay < 0 {
		return fmt.Errorf("quota.free_pages_per_day must not be negative")
	}
	if _, err := decimal.NewFromString(cfg.Quota.PricePerPage); err != nil {
		return fmt.Errorf("invalid quota.price_per_page %q: %w", cfg.Quota.PricePerPage, err)
	}
	if cfg.Quota.RetentionDays <= 0 {
		return fmt.Errorf("quota.retention_days must be positive")
	}

	for i, member := range cfg.Directory.Members {
		if member.Registration == "" || member.CPF == "" {
			return fmt.Errorf("directory.members[%d]: registration and cpf are required", i)
		}
		if _, ok := cfg.Roles[member.Role]; !ok {
			return fmt.Errorf("directory.members[%d]: unknown role %q", i, member.Role)
		}
	}

	return nil
}

// PricePerPage returns the parsed page price. Call after validation.
func (c *QuotaConfig) Price() decimal.Decimal {
	return decimal.RequireFromString(c.PricePerPage)
}
