package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 10, cfg.MaxIterations)
	require.Equal(t, 60000, cfg.MaxDurationMs)
	require.Equal(t, 30000, cfg.PerToolTimeoutMs)
	require.Equal(t, StoreInMemory, cfg.StoreType)
}

func TestLoadReadsProviderEnvVars(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "https://api.openai.com/v1")

	cfg, err := Load()
	require.NoError(t, err)
	creds, ok := cfg.Providers["openai"]
	require.True(t, ok)
	require.Equal(t, "sk-test", creds.APIKey)
	require.Equal(t, "https://api.openai.com/v1", creds.BaseURL)
}

func TestLoadFallsBackToBuiltinDefaultModel(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	creds, ok := cfg.Providers["anthropic"]
	require.True(t, ok)
	require.NotEmpty(t, creds.DefaultModel)
}

func TestLoadRejectsUnknownStoreType(t *testing.T) {
	t.Setenv("OPENRESPONSES_STORE_TYPE", "dynamodb")

	_, err := Load()
	require.Error(t, err)
}

func TestBudgetConfigProjection(t *testing.T) {
	cfg := &Config{MaxIterations: 3, MaxDurationMs: 1000, PerToolTimeoutMs: 500}
	b := cfg.BudgetConfig()
	require.Equal(t, 3, b.MaxIterations)
	require.Equal(t, 1*time.Second, b.MaxDuration)
	require.Equal(t, 500*time.Millisecond, b.PerToolTimeout)
}
