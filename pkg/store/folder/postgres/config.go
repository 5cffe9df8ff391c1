package postgres

import (
	"fmt"
	"time"
)

// Config holds the configuration for the PostgreSQL folder backend.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`

	// Connection pool (conservative sizing)
	MaxConns          int32         `mapstructure:"max_conns"`           // Default: 10
	MinConns          int32         `mapstructure:"min_conns"`           // Default: 3
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`   // Default: 1h
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`  // Default: 30m
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"` // Default: 1m

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // Default: 5s
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`   // Default: 30s

	// AutoMigrate runs pending migrations at startup. Off by default so
	// operators keep manual control in shared environments.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// ApplyDefaults sets default values for unspecified configuration fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 3
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 1 * time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = 1 * time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// ConnString builds the pgx connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}
