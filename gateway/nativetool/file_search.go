package nativetool

import (
	"context"
	"encoding/json"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/runtime/agent"
)

var fileSearchParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string"},
		"filters": {"type": "object"},
		"max_num_results": {"type": "integer"},
		"ranking_options": {"type": "object"}
	},
	"required": ["query"],
	"additionalProperties": false
}`)

type fileSearchArgs struct {
	Query         string          `json:"query"`
	Filters       json.RawMessage `json:"filters,omitempty"`
	MaxNumResults int             `json:"max_num_results,omitempty"`
}

type fileSearchResultItem struct {
	FileID     string         `json:"file_id"`
	Filename   string         `json:"filename"`
	Score      float64        `json:"score"`
	Content    string         `json:"content"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type fileSearchDocument struct {
	Query      string                 `json:"query"`
	Data       []fileSearchResultItem `json:"data"`
	BoundsInfo agent.Bounds           `json:"bounds"`
}

// Bounds implements agent.BoundedResult so callers that inspect a decoded
// tool result for truncation metadata (rather than re-deriving it from
// max_num_results) get it directly.
func (d fileSearchDocument) Bounds() agent.Bounds { return d.BoundsInfo }

// FileSearchConfig is the shape read from the request's file_search tool
// config via the ParamsAccessor (vector store ids, defaults),
// The HTTP layer populates one of these from the request's top-level
// file_search object and stores it under FileSearchConfigKey.
type FileSearchConfig struct {
	VectorStoreIDs []string
	MaxNumResults  int
}

// FileSearchConfigKey is the ParamsAccessor key the file_search tool reads
// its FileSearchConfig from.
const FileSearchConfigKey = "file_search_config"

func configFromAccessor(accessor Accessor) FileSearchConfig {
	cfg := FileSearchConfig{MaxNumResults: 10}
	if accessor == nil {
		return cfg
	}
	raw, ok := accessor.Get(FileSearchConfigKey)
	if !ok {
		return cfg
	}
	if parsed, ok := raw.(FileSearchConfig); ok {
		if parsed.MaxNumResults > 0 {
			cfg.MaxNumResults = parsed.MaxNumResults
		}
		cfg.VectorStoreIDs = parsed.VectorStoreIDs
	}
	return cfg
}

// fileSearchTool reads the request's file_search config and returns a JSON
// document of scored matches,
func fileSearchTool(search VectorSearch) Tool {
	return Tool{
		Name:        "file_search",
		Description: "Search configured vector stores for relevant file content.",
		Parameters:  fileSearchParameters,
		Run: func(ctx context.Context, args json.RawMessage, accessor Accessor, _ EmitFunc, _ map[string]any) (string, error) {
			var parsed fileSearchArgs
			if err := json.Unmarshal(args, &parsed); err != nil {
				return "", gatewayerrors.New(gatewayerrors.ClassInvalidArgs, "file_search: "+err.Error())
			}
			if search == nil {
				return "", gatewayerrors.New(gatewayerrors.ClassVectorStore, "file_search: no vector search collaborator configured")
			}
			cfg := configFromAccessor(accessor)
			maxResults := cfg.MaxNumResults
			if parsed.MaxNumResults > 0 {
				maxResults = parsed.MaxNumResults
			}
			var filter *Filter
			if len(parsed.Filters) > 0 {
				var f Filter
				if err := json.Unmarshal(parsed.Filters, &f); err == nil {
					filter = &f
				}
			}
			results, err := search.Search(ctx, parsed.Query, cfg.VectorStoreIDs, maxResults, filter)
			if err != nil {
				return "", gatewayerrors.WithCause(gatewayerrors.ClassVectorStore, "file_search failed", gatewayerrors.From(err))
			}
			doc := fileSearchDocument{Query: parsed.Query}
			for _, r := range results {
				doc.Data = append(doc.Data, fileSearchResultItem{
					FileID: r.FileID, Filename: r.Filename, Score: r.Score, Content: r.Content, Attributes: r.Attributes,
				})
			}
			truncated := len(results) >= maxResults
			doc.BoundsInfo = agent.Bounds{Returned: len(results), Truncated: truncated}
			if truncated {
				doc.BoundsInfo.RefinementHint = "narrow the query or filters to see results beyond max_num_results"
			}
			out, err := json.Marshal(doc)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}
