package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSESinkPublishesToolOutputDeltas(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	sink, err := newSSESink(rec)
	require.NoError(t, err)

	require.NoError(t, sink.PublishToolOutputDelta(context.Background(), "agentic_search", "iteration 1: found 3 results"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: response.tool_call.output_delta\n")
	assert.Contains(t, body, `"tool":"agentic_search"`)
	assert.Contains(t, body, `"delta":"iteration 1: found 3 results"`)
}

func TestSSESinkDropsToolOutputDeltaAfterCancel(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	sink, err := newSSESink(rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, sink.PublishToolOutputDelta(ctx, "agentic_search", "late"))
	assert.NotContains(t, rec.Body.String(), "late")
}
