package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "QUAIL"
	defaultConfigPath = "config/config.yaml"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
// The file must exist.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return unmarshal(v)
}

// LoadWithDefaults loads configuration like Load but tolerates a missing
// file, in which case defaults and QUAIL_* environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// ResolvePath picks the config file path from the flag value, then
// QUAIL_CONFIG_PATH, then the default location.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(envPrefix + "_CONFIG_PATH"); env != "" {
		return env
	}
	return defaultConfigPath
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// QUAIL_SERVER_PORT overrides server.port
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that environment overrides are picked
// up even when the file omits the section.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "quail")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "quail")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 5)

	v.SetDefault("auth.access_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.issuer", "quail")

	v.SetDefault("runner.mode", "http")
	v.SetDefault("runner.http.url", "http://localhost:8000")
	v.SetDefault("runner.http.poll_interval", "5s")
	v.SetDefault("runner.http.max_attempts", 60)
	v.SetDefault("runner.http.request_timeout", "30s")
	v.SetDefault("runner.http.retry_max", 3)
	v.SetDefault("runner.http.requests_per_second", 10)
	v.SetDefault("runner.process.command", "lean")
	v.SetDefault("runner.process.args", []string{"backtest", "{dir}"})
	v.SetDefault("runner.process.work_dir", filepath.Join(os.TempDir(), "quail-backtests"))
	v.SetDefault("runner.process.strategy_file", "main.py")
	v.SetDefault("runner.process.results_file", "backtest-results.json")
	v.SetDefault("runner.process.timeout", "5m")
	v.SetDefault("runner.process.keep_artifacts", false)

	v.SetDefault("backtest.max_concurrent", 4)
	v.SetDefault("backtest.execution_timeout", "10m")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.schedule", "@every 1m")
	v.SetDefault("sweeper.stale_after", "15m")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.local.base_path", "data/archive")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.prefix", "")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.access_key_id", "")
	v.SetDefault("archive.s3.secret_access_key", "")
	v.SetDefault("archive.s3.use_path_style", false)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:4200"})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("lean_runner.port", 8000)
	v.SetDefault("lean_runner.engine", "simulate")
	v.SetDefault("lean_runner.simulated_delay", "2s")
	v.SetDefault("lean_runner.result_ttl", "24h")

	v.SetDefault("secrets.enabled", false)
	v.SetDefault("secrets.region", "us-east-1")
	v.SetDefault("secrets.secret_name", "")
}
