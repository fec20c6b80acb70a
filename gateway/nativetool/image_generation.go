package nativetool

import (
	"context"
	"encoding/json"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
)

var imageGenerationParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"prompt": {"type": "string"},
		"size": {"type": "string"},
		"quality": {"type": "string"},
		"n": {"type": "integer"}
	},
	"required": ["prompt"],
	"additionalProperties": false
}`)

type imageGenerationArgs struct {
	Prompt  string `json:"prompt"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	N       int    `json:"n,omitempty"`
}

type imageGenerationResult struct {
	B64JSON string `json:"b64_json,omitempty"`
	URL     string `json:"url,omitempty"`
}

// imageGenerationTool forwards to the configured provider-specific image
// generator. Only prompt is required; size, quality and n are passed on as
// generator options when set, and the schema accepts no other argument.
func imageGenerationTool(gen ImageGenerator) Tool {
	return Tool{
		Name:        "image_generation",
		Description: "Generate an image from a text prompt using the configured image provider.",
		Parameters:  imageGenerationParameters,
		Run: func(ctx context.Context, args json.RawMessage, _ Accessor, _ EmitFunc, _ map[string]any) (string, error) {
			var parsed imageGenerationArgs
			if err := json.Unmarshal(args, &parsed); err != nil {
				return "", gatewayerrors.New(gatewayerrors.ClassInvalidArgs, "image_generation: "+err.Error())
			}
			if gen == nil {
				return "", gatewayerrors.New(gatewayerrors.ClassProcessingError, "image_generation: no image provider configured")
			}
			opts := map[string]any{}
			if parsed.Size != "" {
				opts["size"] = parsed.Size
			}
			if parsed.Quality != "" {
				opts["quality"] = parsed.Quality
			}
			if parsed.N > 0 {
				opts["n"] = parsed.N
			}
			result, err := gen.Generate(ctx, parsed.Prompt, opts)
			if err != nil {
				return "", gatewayerrors.WithCause(gatewayerrors.ClassAPIError, "image_generation failed", gatewayerrors.From(err))
			}
			out, err := json.Marshal(imageGenerationResult{B64JSON: result.B64JSON, URL: result.URL})
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}
