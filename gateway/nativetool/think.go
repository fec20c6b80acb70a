package nativetool

import (
	"context"
	"encoding/json"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
)

var thinkParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"thought": {"type": "string", "description": "A thought to record as a scratchpad entry; not shown to the user."}
	},
	"required": ["thought"],
	"additionalProperties": false
}`)

type thinkArgs struct {
	Thought string `json:"thought"`
}

// thinkTool is a no-op scratchpad tool: the model's "thought" is parsed for
// well-formedness and otherwise discarded. Its return value is fixed so the
// model can always observe that the thought was recorded.
func thinkTool() Tool {
	return Tool{
		Name:        "think",
		Description: "Use this tool to think through a problem as a private scratchpad. The content is not shown to the user.",
		Parameters:  thinkParameters,
		Run: func(_ context.Context, args json.RawMessage, _ Accessor, _ EmitFunc, _ map[string]any) (string, error) {
			var parsed thinkArgs
			if err := json.Unmarshal(args, &parsed); err != nil {
				return "", gatewayerrors.New(gatewayerrors.ClassInvalidArgs, "think: "+err.Error())
			}
			return "Your thought has been logged.", nil
		},
	}
}
