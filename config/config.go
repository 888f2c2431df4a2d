package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/plexusone/agentcore-runtime/logger"
)

// AppConfig holds the runtime configuration shared by the entrypoints.
type AppConfig struct {
	Region   string `envconfig:"AWS_REGION"`
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	ModelID string `envconfig:"MODEL_ID"`

	// SSMPrefix, when set, names the Parameter Store path prefix to pull
	// missing settings from at startup.
	SSMPrefix string `envconfig:"SSM_PREFIX"`

	// Multi-region memory replication settings for the DR chat agent.
	PrimaryRegion     string `envconfig:"PRIMARY_REGION"`
	SecondaryRegion   string `envconfig:"SECONDARY_REGION"`
	PrimaryMemoryID   string `envconfig:"PRIMARY_MEMORY_ID"`
	SecondaryMemoryID string `envconfig:"SECONDARY_MEMORY_ID"`
}

// ssmKeys are the settings worth hydrating from Parameter Store when they
// are absent from the environment.
var ssmKeys = []string{
	"MODEL_ID",
	"PRIMARY_REGION",
	"PRIMARY_MEMORY_ID",
	"SECONDARY_REGION",
	"SECONDARY_MEMORY_ID",
}

// Load reads configuration from a .env file (when present) and the process
// environment.
func Load() (*AppConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_DEFAULT_REGION")
	}
	return cfg, nil
}

// LoadWithSSM reads configuration like Load, then, when SSM_PREFIX is set,
// hydrates missing settings from Parameter Store and re-reads.
func LoadWithSSM(ctx context.Context) (*AppConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.SSMPrefix == "" {
		return cfg, nil
	}
	if err := LoadSecretsFromSSM(ctx, cfg.Region, cfg.SSMPrefix, ssmKeys); err != nil {
		return nil, err
	}
	return Load()
}

// parameterAPI is the slice of the SSM client the loader needs.
type parameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecretsFromSSM fills missing environment variables from SSM Parameter
// Store, under /{prefix}/{KEY}. Keys already set in the environment win.
func LoadSecretsFromSSM(ctx context.Context, region, prefix string, keys []string) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	return loadSecrets(ctx, ssm.NewFromConfig(awsCfg), prefix, keys)
}

func loadSecrets(ctx context.Context, client parameterAPI, prefix string, keys []string) error {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			continue
		}
		name := fmt.Sprintf("/%s/%s", prefix, key)
		out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("getting parameter %s: %w", name, err)
		}
		if err := os.Setenv(key, aws.ToString(out.Parameter.Value)); err != nil {
			return err
		}
		logger.Logger.Info().Str("key", key).Msg("loaded secret from SSM")
	}
	return nil
}
