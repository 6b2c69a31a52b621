package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("runnermode", validateRunnerMode)
	_ = v.RegisterValidation("cronspec", validateCronSpec)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	if err := cv.ValidateStruct(cfg); err != nil {
		return err
	}
	return validateCrossField(cfg)
}

// ValidateStruct validates a single configuration section. The runner
// service only needs its own section to be valid.
func (cv *CustomValidator) ValidateStruct(section interface{}) error {
	err := cv.validator.Struct(section)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateRunnerMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "http", "process":
		return true
	default:
		return false
	}
}

// validateCronSpec accepts five-field specs and descriptors such as @every 1m
func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	switch cfg.Runner.Mode {
	case "http":
		if cfg.Runner.HTTP.URL == "" {
			return fmt.Errorf("runner.http.url is required when runner.mode is http")
		}
		window := cfg.Runner.HTTP.PollInterval * time.Duration(cfg.Runner.HTTP.MaxAttempts)
		if window >= cfg.Backtest.ExecutionTimeout {
			return fmt.Errorf("backtest.execution_timeout (%s) must exceed the runner polling window (%s)",
				cfg.Backtest.ExecutionTimeout, window)
		}
	case "process":
		if cfg.Runner.Process.Command == "" {
			return fmt.Errorf("runner.process.command is required when runner.mode is process")
		}
	}

	if cfg.Sweeper.Enabled {
		if cfg.Sweeper.Schedule == "" {
			return fmt.Errorf("sweeper.schedule is required when the sweeper is enabled")
		}
		if cfg.Sweeper.StaleAfter <= 0 {
			return fmt.Errorf("sweeper.stale_after must be positive when the sweeper is enabled")
		}
		if cfg.Sweeper.StaleAfter <= cfg.Backtest.ExecutionTimeout {
			return fmt.Errorf("sweeper.stale_after (%s) must exceed backtest.execution_timeout (%s)",
				cfg.Sweeper.StaleAfter, cfg.Backtest.ExecutionTimeout)
		}
	}

	if cfg.Archive.Enabled && cfg.Archive.Backend == "s3" && cfg.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket is required for the s3 archive backend")
	}

	if cfg.IsProduction() {
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
		}
		if cfg.Auth.AccessSecret == cfg.Auth.RefreshSecret {
			return fmt.Errorf("auth.access_secret and auth.refresh_secret must differ in production")
		}
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var b strings.Builder
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "url":
			fmt.Fprintf(&b, "- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			fmt.Fprintf(&b, "- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			fmt.Fprintf(&b, "- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "runnermode":
			fmt.Fprintf(&b, "- Field '%s' must be one of: http, process\n", field)
		case "cronspec":
			fmt.Fprintf(&b, "- Field '%s' is not a valid cron schedule: '%v'\n", field, value)
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' has invalid value '%v'\n", field, value)
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}
