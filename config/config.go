package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Provider ProviderConfig `mapstructure:"provider"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ProviderConfig holds the upstream payment processor API settings.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	PosID   string        `mapstructure:"pos_id"`
	APIUser string        `mapstructure:"api_user"` // Basic-Auth user
	APIKey  string        `mapstructure:"api_key"`  // Basic-Auth password
	Timeout time.Duration `mapstructure:"timeout"`  // per status-check call
}

// WebhookConfig holds inbound callback settings.
type WebhookConfig struct {
	Token string `mapstructure:"token"` // shared-secret query token
}

// SweepConfig drives the periodic stale-pending re-verification.
type SweepConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	MinAge     time.Duration `mapstructure:"min_age"`     // staleness threshold
	BatchLimit int           `mapstructure:"batch_limit"` // records per cycle
	LeaseTTL   time.Duration `mapstructure:"lease_ttl"`   // cross-instance lease
}

// AdminConfig holds Basic-Auth credentials for the audit endpoints.
type AdminConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PSR_ (Payment Status Relay).
// Nested keys use underscore: PSR_DATABASE_HOST, PSR_WEBHOOK_TOKEN, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payment_relay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("provider.base_url", "https://api.forumpay.com/pay/v2")
	v.SetDefault("provider.pos_id", "")
	v.SetDefault("provider.api_user", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("webhook.token", "")
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval", "60s")
	v.SetDefault("sweep.min_age", "120s")
	v.SetDefault("sweep.batch_limit", 25)
	v.SetDefault("sweep.lease_ttl", "55s")
	v.SetDefault("admin.user", "admin")
	v.SetDefault("admin.password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PSR_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PSR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
