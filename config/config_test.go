package config

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexusone/agentcore-runtime/logger"
)

// fakeParameters serves GetParameter from a map.
type fakeParameters struct {
	params map[string]string
	names  []string
}

func (f *fakeParameters) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(in.Name)
	f.names = append(f.names, name)
	value, ok := f.params[name]
	if !ok {
		return nil, fmt.Errorf("parameter %s not found", name)
	}
	return &ssm.GetParameterOutput{
		Parameter: &types.Parameter{Value: aws.String(value)},
	}, nil
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFallsBackToDefaultRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestLoadSecretsFillsMissingKeys(t *testing.T) {
	logger.Init("error")
	t.Setenv("MODEL_ID", "")
	t.Setenv("PRIMARY_MEMORY_ID", "")

	client := &fakeParameters{params: map[string]string{
		"/demo/MODEL_ID":          "model-from-ssm",
		"/demo/PRIMARY_MEMORY_ID": "mem-from-ssm",
	}}

	err := loadSecrets(context.Background(), client, "demo", []string{"MODEL_ID", "PRIMARY_MEMORY_ID"})
	require.NoError(t, err)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "model-from-ssm", cfg.ModelID)
	assert.Equal(t, "mem-from-ssm", cfg.PrimaryMemoryID)
}

func TestLoadSecretsSkipsKeysAlreadySet(t *testing.T) {
	logger.Init("error")
	t.Setenv("MODEL_ID", "from-env")

	client := &fakeParameters{params: map[string]string{}}
	err := loadSecrets(context.Background(), client, "demo", []string{"MODEL_ID"})
	require.NoError(t, err)
	assert.Empty(t, client.names)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ModelID)
}

func TestLoadSecretsPropagatesLookupError(t *testing.T) {
	logger.Init("error")
	t.Setenv("MODEL_ID", "")

	client := &fakeParameters{params: map[string]string{}}
	err := loadSecrets(context.Background(), client, "demo", []string{"MODEL_ID"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/demo/MODEL_ID")
}
