package payload

import (
	"testing"

	"github.com/masaicai/openresponses/gateway/responses"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/stretchr/testify/require"
)

func TestFormatCreatedAtRendersFixedPointDecimal(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1700000000", FormatCreatedAt("1.7e9"))
	require.Equal(t, "1700000000", FormatCreatedAt("1700000000"))
	require.Equal(t, "not-a-number", FormatCreatedAt("not-a-number"))
}

func TestFormatRewritesAliasTool(t *testing.T) {
	t.Parallel()

	resp := &responses.Response{
		CreatedAt: "1.7e9",
		Tools:     []responses.ToolSpec{{Type: "function", Name: "think_impl"}},
	}
	aliases := responses.AliasMap{"think": "think_impl"}

	out := Format(resp, aliases, nil)
	require.Equal(t, "1700000000", out.CreatedAt)
	require.Equal(t, "think", out.Tools[0].Type)
}

func TestFormatLeavesUncachedMCPStyleNameAsFunction(t *testing.T) {
	t.Parallel()

	registry := toolcatalog.New(nil, nil)
	// The registry is empty: a "<label>_<tool>"-looking name alone must not
	// be taken for an MCP tool.
	resp := &responses.Response{
		CreatedAt: "42",
		Tools:     []responses.ToolSpec{{Type: "function", Name: "gh_search_repositories"}},
	}
	out := Format(resp, responses.AliasMap{}, registry)
	// No cached MCP entry for gh_search_repositories in this registry, so the
	// tool passes through unchanged rather than being misclassified.
	require.Equal(t, "function", out.Tools[0].Type)
}
