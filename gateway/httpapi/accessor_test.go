package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaicai/openresponses/gateway/nativetool"
	"github.com/masaicai/openresponses/gateway/responses"
)

func TestBuildAccessorNilFileSearchReturnsEmptyAccessor(t *testing.T) {
	t.Parallel()
	accessor := buildAccessor(nil)
	_, ok := accessor.Get(nativetool.FileSearchConfigKey)
	assert.False(t, ok)
}

func TestBuildAccessorCarriesFileSearchConfig(t *testing.T) {
	t.Parallel()
	accessor := buildAccessor(&responses.FileSearchConfig{VectorStoreIDs: []string{"vs_1"}, MaxNumResults: 5})

	raw, ok := accessor.Get(nativetool.FileSearchConfigKey)
	require.True(t, ok)
	cfg, ok := raw.(nativetool.FileSearchConfig)
	require.True(t, ok)
	assert.Equal(t, []string{"vs_1"}, cfg.VectorStoreIDs)
	assert.Equal(t, 5, cfg.MaxNumResults)
}
