package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaicai/openresponses/gateway/orchestrator"
	"github.com/masaicai/openresponses/gateway/responses"
)

func TestInputItemsForStorageStringInputPrependsInstructions(t *testing.T) {
	t.Parallel()
	req := responses.Request{Input: json.RawMessage(`"hi there"`), Instructions: "be terse"}
	items := inputItemsForStorage(req)
	require.Len(t, items, 2)
	assert.Equal(t, "system", items[0].Role)
	assert.Equal(t, "user", items[1].Role)
}

func TestInputItemsForStorageListInputPassesThrough(t *testing.T) {
	t.Parallel()
	listed := []responses.InputItem{{Type: "message", Role: "user", Content: []responses.ContentPart{{Type: "input_text", Text: "hi"}}}}
	raw, err := json.Marshal(listed)
	require.NoError(t, err)
	req := responses.Request{Input: raw}
	items := inputItemsForStorage(req)
	require.Len(t, items, 1)
	assert.Equal(t, "user", items[0].Role)
}

func TestRawInputItemsStringInput(t *testing.T) {
	t.Parallel()
	req := responses.Request{Input: json.RawMessage(`"hello"`)}
	items, err := rawInputItems(req)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "hello", items[0].Content[0].Text)
}

func TestRawInputItemsInvalidInputReturnsError(t *testing.T) {
	t.Parallel()
	req := responses.Request{Input: json.RawMessage(`42`)}
	_, err := rawInputItems(req)
	require.Error(t, err)
}

func TestMergePreviousResponseAppendsWithoutDeduping(t *testing.T) {
	t.Parallel()
	prior := []responses.InputItem{
		{Type: "message", Role: "user", Content: []responses.ContentPart{{Type: "input_text", Text: "first turn"}}},
	}
	req := responses.Request{Input: json.RawMessage(`"second turn"`)}

	merged, err := mergePreviousResponse(prior, req)
	require.NoError(t, err)

	var items []responses.InputItem
	require.NoError(t, json.Unmarshal(merged.Input, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "first turn", items[0].Content[0].Text)
	assert.Equal(t, "second turn", items[1].Content[0].Text)
}

func TestMergePreviousResponseWithDuplicateContentStillAppendsBoth(t *testing.T) {
	t.Parallel()
	prior := []responses.InputItem{
		{Type: "message", Role: "user", Content: []responses.ContentPart{{Type: "input_text", Text: "same text"}}},
	}
	req := responses.Request{Input: json.RawMessage(`"same text"`)}

	merged, err := mergePreviousResponse(prior, req)
	require.NoError(t, err)
	var items []responses.InputItem
	require.NoError(t, json.Unmarshal(merged.Input, &items))
	require.Len(t, items, 2, "append-don't-dedupe: identical content must not be collapsed")
}

func TestBuildResponseIncompleteCarriesReason(t *testing.T) {
	t.Parallel()
	result := orchestrator.Result{Status: orchestrator.StatusIncomplete, IncompleteReason: "max_tool_calls"}
	resp := buildResponse("resp_1", "gpt-test", "1700000000", result)
	require.NotNil(t, resp.IncompleteDetails)
	assert.Equal(t, "max_tool_calls", resp.IncompleteDetails.Reason)
	assert.Equal(t, "incomplete", resp.Status)
}

func TestBuildResponseFailedCarriesErrorBody(t *testing.T) {
	t.Parallel()
	result := orchestrator.Result{Status: orchestrator.StatusFailed, FailureMessage: "upstream exploded"}
	resp := buildResponse("resp_1", "gpt-test", "1700000000", result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "upstream exploded", resp.Error.Message)
}

func TestBuildOutputItemsOrdersMessageThenFunctionCall(t *testing.T) {
	t.Parallel()
	records := []orchestrator.OutputRecord{
		{Kind: orchestrator.OutputMessage, Text: "hi", Status: "completed"},
		{Kind: orchestrator.OutputFunctionCall, CallID: "call_1", Name: "get_weather", Arguments: `{"city":"Paris"}`, Status: "completed"},
	}
	items := buildOutputItems("resp_1", records)
	require.Len(t, items, 2)
	assert.Equal(t, "resp_1_out_0", items[0].ID)
	assert.Equal(t, "message", items[0].Type)
	assert.Equal(t, "resp_1_out_1", items[1].ID)
	assert.Equal(t, "function_call", items[1].Type)
	assert.Equal(t, "call_1", items[1].CallID)
}

func TestBuildOutputItemsEmptyRecordsReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, buildOutputItems("resp_1", nil))
}
