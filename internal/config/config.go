package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Ops       OpsConfig       `yaml:"ops"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Booking   BookingConfig   `yaml:"booking"`
}

// OpsConfig contains settings for the operational HTTP endpoint of the
// scheduler daemon (health check and manual job triggering).
type OpsConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings for the lifecycle jobs
type SchedulerConfig struct {
	ActivateContracts string `yaml:"activate_contracts"`
	CompleteContracts string `yaml:"complete_contracts"`
}

// BookingConfig contains booking-path settings
type BookingConfig struct {
	// LockTimeout bounds how long a booking waits for the per-car lock
	// before failing with a retryable busy error, e.g. "3s".
	LockTimeout string `yaml:"lock_timeout"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	if val := os.Getenv("OPS_HOST"); val != "" {
		c.Ops.Host = val
	}
	if val := os.Getenv("OPS_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Ops.Port)
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Ops.Port <= 0 || c.Ops.Port > 65535 {
		return fmt.Errorf("invalid ops port: %d", c.Ops.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// Lifecycle transitions are idempotent per contract, so a tight
	// interval is safe.
	if c.Scheduler.ActivateContracts == "" {
		c.Scheduler.ActivateContracts = "@every 5m"
	}
	if c.Scheduler.CompleteContracts == "" {
		c.Scheduler.CompleteContracts = "@every 5m"
	}

	if c.Booking.LockTimeout == "" {
		c.Booking.LockTimeout = "3s"
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetOpsAddress returns the ops HTTP listen address
func (c *Config) GetOpsAddress() string {
	return fmt.Sprintf("%s:%d", c.Ops.Host, c.Ops.Port)
}
