// Package config provides configuration management for the Quail API and runner.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	Runner     RunnerConfig     `mapstructure:"runner" validate:"required"`
	Backtest   BacktestConfig   `mapstructure:"backtest" validate:"required"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	LeanRunner LeanRunnerConfig `mapstructure:"lean_runner"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	LogFormat   string `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
}

// ServerConfig represents the public HTTP API listener
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// AuthConfig holds JWT and password hashing settings
type AuthConfig struct {
	AccessSecret  string        `mapstructure:"access_secret" validate:"required,min=16"`
	RefreshSecret string        `mapstructure:"refresh_secret" validate:"required,min=16"`
	AccessTTL     time.Duration `mapstructure:"access_ttl" validate:"required,gt=0"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl" validate:"required,gt=0"`
	BcryptCost    int           `mapstructure:"bcrypt_cost" validate:"required,min=4,max=31"`
	Issuer        string        `mapstructure:"issuer"`
}

// RunnerConfig selects and configures the backtest runner client
type RunnerConfig struct {
	Mode    string              `mapstructure:"mode" validate:"required,runnermode"`
	HTTP    HTTPRunnerConfig    `mapstructure:"http"`
	Process ProcessRunnerConfig `mapstructure:"process"`
}

// HTTPRunnerConfig configures the start-and-poll runner
type HTTPRunnerConfig struct {
	URL               string        `mapstructure:"url" validate:"omitempty,url"`
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gte=0"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=0"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	RetryMax          int           `mapstructure:"retry_max" validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
}

// ProcessRunnerConfig configures the subprocess runner
type ProcessRunnerConfig struct {
	Command       string        `mapstructure:"command"`
	Args          []string      `mapstructure:"args"`
	WorkDir       string        `mapstructure:"work_dir"`
	StrategyFile  string        `mapstructure:"strategy_file"`
	ResultsFile   string        `mapstructure:"results_file"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gte=0"`
	KeepArtifacts bool          `mapstructure:"keep_artifacts"`
}

// BacktestConfig bounds the asynchronous execution of backtests
type BacktestConfig struct {
	MaxConcurrent    int           `mapstructure:"max_concurrent" validate:"required,gt=0"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout" validate:"required,gt=0"`
}

// SweeperConfig configures the stale backtest reconciliation job
type SweeperConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Schedule   string        `mapstructure:"schedule" validate:"omitempty,cronspec"`
	StaleAfter time.Duration `mapstructure:"stale_after" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// HealthConfig configures the health probe listener
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// ArchiveConfig configures where completed result documents are copied
type ArchiveConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Backend string          `mapstructure:"backend" validate:"omitempty,oneof=local s3"`
	Local   LocalFSConfig   `mapstructure:"local"`
	S3      S3ArchiveConfig `mapstructure:"s3"`
}

// LocalFSConfig is the local filesystem archive backend
type LocalFSConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// S3ArchiveConfig is the S3 (or S3-compatible) archive backend
type S3ArchiveConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// CORSConfig lists the browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig is the per-client request limit of the API
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

// LeanRunnerConfig configures the standalone runner service
type LeanRunnerConfig struct {
	Port           int           `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Engine         string        `mapstructure:"engine" validate:"omitempty,oneof=simulate process"`
	SimulatedDelay time.Duration `mapstructure:"simulated_delay" validate:"gte=0"`
	ResultTTL      time.Duration `mapstructure:"result_ttl" validate:"gte=0"`
}

// SecretsConfig enables the AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region"`
	SecretName string `mapstructure:"secret_name"`
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// ServerAddr returns the listen address of the API server
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
