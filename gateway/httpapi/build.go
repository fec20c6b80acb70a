package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/masaicai/openresponses/gateway/orchestrator"
	"github.com/masaicai/openresponses/gateway/responses"
	"github.com/masaicai/openresponses/runtime/agent/model"
)

// inputItemsForStorage reconstructs the submitted input item list for
// GET /v1/responses/{id}/input_items, mirroring responses.Convert's string/
// list-input handling without requiring a round-trip through model.Message.
func inputItemsForStorage(req responses.Request) []responses.InputItem {
	var items []responses.InputItem

	var asString string
	if err := json.Unmarshal(req.Input, &asString); err == nil {
		if req.Instructions != "" {
			items = append(items, responses.InputItem{Role: "system", Content: []responses.ContentPart{{Type: "input_text", Text: req.Instructions}}})
		}
		items = append(items, responses.InputItem{Role: "user", Content: []responses.ContentPart{{Type: "input_text", Text: asString}}})
		return items
	}

	var listed []responses.InputItem
	if err := json.Unmarshal(req.Input, &listed); err != nil {
		return nil
	}
	if req.Instructions != "" {
		items = append(items, responses.InputItem{Role: "system", Content: []responses.ContentPart{{Type: "input_text", Text: req.Instructions}}})
	}
	return append(items, listed...)
}

// rawInputItems parses req.Input into its item list without prepending
// Instructions, used to merge a new request's own items onto a
// previous_response_id's stored history (Open Question 3: "append, don't
// dedupe") without duplicating the instructions message that convertInput
// already prepends on its own.
func rawInputItems(req responses.Request) ([]responses.InputItem, error) {
	var asString string
	if err := json.Unmarshal(req.Input, &asString); err == nil {
		return []responses.InputItem{{Role: "user", Content: []responses.ContentPart{{Type: "input_text", Text: asString}}}}, nil
	}
	var listed []responses.InputItem
	if err := json.Unmarshal(req.Input, &listed); err != nil {
		return nil, fmt.Errorf("httpapi: input must be a string or a list of items: %w", err)
	}
	return listed, nil
}

// mergePreviousResponse prepends the stored input items for
// req.PreviousResponseID onto req's own input list, rewriting req.Input to
// the merged JSON array, per Open Question 3's append-don't-dedupe
// decision. prior is the stored list the caller has already looked up; an
// error is returned only when req.Input is neither a string nor a list of
// items.
func mergePreviousResponse(prior []responses.InputItem, req responses.Request) (responses.Request, error) {
	current, err := rawInputItems(req)
	if err != nil {
		return req, err
	}
	merged := append(append([]responses.InputItem(nil), prior...), current...)
	raw, err := json.Marshal(merged)
	if err != nil {
		return req, fmt.Errorf("httpapi: marshal merged input items: %w", err)
	}
	req.Input = raw
	return req, nil
}

// buildResponse assembles the non-streaming Responses-API document from one
// orchestrator run: the output items produced across every turn,
// final status, usage, and — for a failed run — the error body.
func buildResponse(id, modelName, createdAt string, result orchestrator.Result) *responses.Response {
	resp := &responses.Response{
		ID:        id,
		Object:    "response",
		CreatedAt: createdAt,
		Model:     modelName,
		Status:    string(result.Status),
		Output:    buildOutputItems(id, result.Output),
		Usage: &responses.Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			TotalTokens:  result.Usage.TotalTokens,
		},
	}

	switch result.Status {
	case orchestrator.StatusIncomplete:
		resp.IncompleteDetails = &responses.IncompleteDetails{Reason: result.IncompleteReason}
	case orchestrator.StatusFailed:
		resp.Error = &responses.ErrorBody{Type: "api_error", Message: result.FailureMessage}
	}

	return resp
}

// toWireToolSpecs projects the function-shape tool definitions sent to the
// model back into Responses-API ToolSpecs, so the outgoing response can echo
// req.tools before payload.Format collapses server-managed
// tools back to their alias/mcp wire shape.
func toWireToolSpecs(defs []*model.ToolDefinition) []responses.ToolSpec {
	if len(defs) == 0 {
		return nil
	}
	out := make([]responses.ToolSpec, 0, len(defs))
	for _, d := range defs {
		if d == nil {
			continue
		}
		var params json.RawMessage
		if d.InputSchema != nil {
			if raw, err := json.Marshal(d.InputSchema); err == nil {
				params = raw
			}
		}
		out = append(out, responses.ToolSpec{
			Type:        "function",
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		})
	}
	return out
}

// buildOutputItems projects the orchestrator's per-turn OutputRecords into
// Responses-API output items, assigning ids in the gateway's own
// "<response_id>_out_<n>" convention, numbered across the whole run. The
// records list each turn's text before its tool calls and hold no reasoning
// items, while stream.Emitter numbers items in the order they first stream
// and counts reasoning items too, so the ids equal the streamed ones only
// when every turn streamed its text before its tool calls and carried no
// reasoning.
func buildOutputItems(responseID string, records []orchestrator.OutputRecord) []responses.OutputItem {
	if len(records) == 0 {
		return nil
	}
	out := make([]responses.OutputItem, 0, len(records))
	for i, rec := range records {
		itemID := fmt.Sprintf("%s_out_%d", responseID, i)
		switch rec.Kind {
		case orchestrator.OutputMessage:
			out = append(out, responses.OutputItem{
				ID:     itemID,
				Type:   "message",
				Role:   "assistant",
				Status: rec.Status,
				Content: []responses.ContentPart{
					{Type: "output_text", Text: rec.Text},
				},
			})
		case orchestrator.OutputFunctionCall:
			out = append(out, responses.OutputItem{
				ID:        itemID,
				Type:      "function_call",
				Status:    rec.Status,
				CallID:    rec.CallID,
				Name:      rec.Name,
				Arguments: rec.Arguments,
			})
		}
	}
	return out
}
