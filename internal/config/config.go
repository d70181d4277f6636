package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Business  BusinessConfig  `mapstructure:"business"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"DATABASE_HOST"`
	Port            string        `mapstructure:"DATABASE_PORT"`
	Name            string        `mapstructure:"DATABASE_NAME"`
	User            string        `mapstructure:"DATABASE_USER"`
	Password        string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	DeductionCronSpec string `mapstructure:"SCHEDULER_DEDUCTION_CRON"`
	Timezone          string `mapstructure:"SCHEDULER_TIMEZONE"`
	TriggeredBy       string `mapstructure:"SCHEDULER_TRIGGERED_BY"`
}

type BusinessConfig struct {
	PenaltyRatePerLiter    string `mapstructure:"PENALTY_RATE_PER_LITER"`
	DefaultCreditLimitPct  string `mapstructure:"DEFAULT_CREDIT_LIMIT_PCT"`
	DefaultMaxCreditAmount string `mapstructure:"DEFAULT_MAX_CREDIT_AMOUNT"`
	DebitReplayWindow      string `mapstructure:"DEBIT_REPLAY_WINDOW"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// DSN builds the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// .env is optional; env vars win
	_ = godotenv.Load()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_HOST", "localhost")
	viper.SetDefault("DATABASE_PORT", "5432")
	viper.SetDefault("DATABASE_NAME", "settlement_engine")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_PASSWORD", "postgres")
	viper.SetDefault("DATABASE_SSLMODE", "disable")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SCHEDULER_DEDUCTION_CRON", "0 0 6 * * *")
	viper.SetDefault("SCHEDULER_TIMEZONE", "Africa/Nairobi")
	viper.SetDefault("SCHEDULER_TRIGGERED_BY", "system-scheduler")
	viper.SetDefault("PENALTY_RATE_PER_LITER", "50.00")
	viper.SetDefault("DEFAULT_CREDIT_LIMIT_PCT", "70.00")
	viper.SetDefault("DEFAULT_MAX_CREDIT_AMOUNT", "100000.00")
	viper.SetDefault("DEBIT_REPLAY_WINDOW", "48h")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DATABASE_NAME is required")
	}

	rate, err := decimal.NewFromString(c.Business.PenaltyRatePerLiter)
	if err != nil {
		return fmt.Errorf("PENALTY_RATE_PER_LITER must be a valid decimal: %w", err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("PENALTY_RATE_PER_LITER must not be negative")
	}

	if _, err := decimal.NewFromString(c.Business.DefaultCreditLimitPct); err != nil {
		return fmt.Errorf("DEFAULT_CREDIT_LIMIT_PCT must be a valid decimal: %w", err)
	}

	if _, err := decimal.NewFromString(c.Business.DefaultMaxCreditAmount); err != nil {
		return fmt.Errorf("DEFAULT_MAX_CREDIT_AMOUNT must be a valid decimal: %w", err)
	}

	if _, err := time.ParseDuration(c.Business.DebitReplayWindow); err != nil {
		return fmt.Errorf("DEBIT_REPLAY_WINDOW must be a valid duration: %w", err)
	}

	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// GetPenaltyRatePerLiter returns the configured penalty rate as decimal
func (c *Config) GetPenaltyRatePerLiter() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Business.PenaltyRatePerLiter)
	return rate
}

// GetDefaultCreditLimitPct returns the default credit limit percentage
func (c *Config) GetDefaultCreditLimitPct() decimal.Decimal {
	pct, _ := decimal.NewFromString(c.Business.DefaultCreditLimitPct)
	return pct
}

// GetDefaultMaxCreditAmount returns the default credit ceiling
func (c *Config) GetDefaultMaxCreditAmount() decimal.Decimal {
	amount, _ := decimal.NewFromString(c.Business.DefaultMaxCreditAmount)
	return amount
}

// GetDebitReplayWindow returns the debit deduplication window as duration
func (c *Config) GetDebitReplayWindow() time.Duration {
	window, _ := time.ParseDuration(c.Business.DebitReplayWindow)
	return window
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
