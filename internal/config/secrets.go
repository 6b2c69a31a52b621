package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var errNoSecretData = errors.New("no secret data found in AWS Secrets Manager")

// SecretsOverlay represents the structure of secrets stored in AWS Secrets Manager
type SecretsOverlay struct {
	DatabasePassword  string `json:"database_password"`
	JWTAccessSecret   string `json:"jwt_access_secret"`
	JWTRefreshSecret  string `json:"jwt_refresh_secret"`
	S3AccessKeyID     string `json:"s3_access_key_id"`
	S3SecretAccessKey string `json:"s3_secret_access_key"`
}

// secretGetter is the subset of the Secrets Manager client used here
type secretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadSecretsFromAWS retrieves the secret named in cfg.Secrets and overlays it
// onto the configuration. It is a no-op when the overlay is disabled.
func LoadSecretsFromAWS(ctx context.Context, cfg *Config) error {
	if !cfg.Secrets.Enabled {
		return nil
	}
	if cfg.Secrets.SecretName == "" {
		return fmt.Errorf("secrets.secret_name is required when the secrets overlay is enabled")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Secrets.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	secrets, err := fetchSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.Secrets.SecretName)
	if err != nil {
		return err
	}

	overlaySecretsOnConfig(cfg, secrets)
	return nil
}

func fetchSecrets(ctx context.Context, client secretGetter, secretName string) (*SecretsOverlay, error) {
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret from AWS Secrets Manager: %w", err)
	}
	return parseSecretData(result)
}

// parseSecretData parses secret data from AWS response
func parseSecretData(result *secretsmanager.GetSecretValueOutput) (*SecretsOverlay, error) {
	var secrets SecretsOverlay
	switch {
	case result.SecretString != nil:
		if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
			return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
		}
	case result.SecretBinary != nil:
		if err := json.Unmarshal(result.SecretBinary, &secrets); err != nil {
			return nil, fmt.Errorf("failed to parse secret binary: %w", err)
		}
	default:
		return nil, errNoSecretData
	}
	return &secrets, nil
}

// overlaySecretsOnConfig applies non-empty secrets to configuration
func overlaySecretsOnConfig(cfg *Config, secrets *SecretsOverlay) {
	if secrets.DatabasePassword != "" {
		cfg.Database.Password = secrets.DatabasePassword
	}
	if secrets.JWTAccessSecret != "" {
		cfg.Auth.AccessSecret = secrets.JWTAccessSecret
	}
	if secrets.JWTRefreshSecret != "" {
		cfg.Auth.RefreshSecret = secrets.JWTRefreshSecret
	}
	if secrets.S3AccessKeyID != "" {
		cfg.Archive.S3.AccessKeyID = secrets.S3AccessKeyID
	}
	if secrets.S3SecretAccessKey != "" {
		cfg.Archive.S3.SecretAccessKey = secrets.S3SecretAccessKey
	}
}
