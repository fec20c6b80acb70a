package provideradapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwcfg "github.com/masaicai/openresponses/gateway/config"
	"github.com/masaicai/openresponses/gateway/gatewayerrors"
)

func TestResolveRejectsBareModelWithoutProviderHeader(t *testing.T) {
	t.Parallel()
	r := NewRegistry(&gwcfg.Config{Providers: map[string]gwcfg.ProviderCredentials{}})
	_, _, err := r.Resolve("gpt-4o", "")
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gatewayerrors.ClassInvalidRequest, gwErr.Class)
}

func TestResolveAcceptsBareModelWithProviderHeaderButFailsWithoutCredentials(t *testing.T) {
	t.Parallel()
	r := NewRegistry(&gwcfg.Config{Providers: map[string]gwcfg.ProviderCredentials{}})
	_, _, err := r.Resolve("gpt-4o", "openai")
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gatewayerrors.ClassInvalidRequest, gwErr.Class)
}

func TestResolveRejectsUnknownProvider(t *testing.T) {
	t.Parallel()
	r := NewRegistry(&gwcfg.Config{Providers: map[string]gwcfg.ProviderCredentials{}})
	_, _, err := r.Resolve("notreal@gpt-4o", "")
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gatewayerrors.ClassInvalidRequest, gwErr.Class)
}

func TestResolveRejectsEmptyModel(t *testing.T) {
	t.Parallel()
	r := NewRegistry(&gwcfg.Config{Providers: map[string]gwcfg.ProviderCredentials{}})
	_, _, err := r.Resolve("openai@", "")
	require.Error(t, err)
}

func TestResolveSplitsProviderAtModelPrefix(t *testing.T) {
	t.Parallel()
	r := NewRegistry(&gwcfg.Config{Providers: map[string]gwcfg.ProviderCredentials{
		"anthropic": {APIKey: "sk-ant-test", DefaultModel: "claude-3-5-sonnet"},
	}})
	client, modelID, err := r.Resolve("anthropic@claude-3-5-sonnet", "")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "claude-3-5-sonnet", modelID)
}

func TestResolveCachesClientPerProvider(t *testing.T) {
	t.Parallel()
	r := NewRegistry(&gwcfg.Config{Providers: map[string]gwcfg.ProviderCredentials{
		"anthropic": {APIKey: "sk-ant-test", DefaultModel: "claude-3-5-sonnet"},
	}})
	c1, _, err := r.Resolve("anthropic@claude-3-5-sonnet", "")
	require.NoError(t, err)
	c2, _, err := r.Resolve("anthropic@claude-3-opus", "")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
}

func TestResolveMissingAPIKeyReturnsInvalidRequest(t *testing.T) {
	t.Parallel()
	r := NewRegistry(&gwcfg.Config{Providers: map[string]gwcfg.ProviderCredentials{}})
	_, _, err := r.Resolve("groq@llama-3", "")
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gatewayerrors.ClassInvalidRequest, gwErr.Class)
}
