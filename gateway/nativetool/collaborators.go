package nativetool

import "context"

// SearchResult is one hit returned by the Vector Search collaborator
//: a scored chunk of file content plus its source metadata.
type SearchResult struct {
	FileID     string
	Filename   string
	Score      float64
	Content    string
	Attributes map[string]any
}

// Filter composes a search filter as a tree of Compare and Compound(and|or)
// nodes ("build filters as a tree... avoid dynamic map-to-filter
// translation at search time").
type Filter struct {
	// Compare leaf: Field Op Value, e.g. {"category", "eq", "finance"}.
	Field string
	Op    string
	Value any

	// Compound node: non-empty Op ("and"/"or") over Children.
	Children []Filter
}

// And builds an AND-compound filter over the given children, dropping any
// zero-value filters so composing with an optional caller filter is trivial.
func And(filters ...Filter) Filter {
	return compound("and", filters)
}

func compound(op string, filters []Filter) Filter {
	var nonEmpty []Filter
	for _, f := range filters {
		if f.Field == "" && len(f.Children) == 0 {
			continue
		}
		nonEmpty = append(nonEmpty, f)
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0]
	}
	return Filter{Op: op, Children: nonEmpty}
}

// VectorSearch is the Vector Search collaborator consumed by file_search and
// agentic_search: similarity and hybrid search over configured
// vector stores.
type VectorSearch interface {
	Search(ctx context.Context, query string, vectorStoreIDs []string, maxResults int, filter *Filter) ([]SearchResult, error)
	HybridSearch(ctx context.Context, query string, vectorStoreIDs []string, maxResults int, filter *Filter) ([]SearchResult, error)
}

// LLMCompleter is the minimal model-call surface agentic_search needs to ask
// for its next decision (TERMINATE / NEXT_QUERY). It is intentionally
// narrower than model.Client so the inner loop's prompt-building stays local
// to this package.
type LLMCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageGenerator is the provider-specific image generation collaborator used
// by the image_generation native tool.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, opts map[string]any) (ImageResult, error)
}

// ImageResult carries either a base64 payload or a URL,
// "base64 or URL payload per provider contract".
type ImageResult struct {
	B64JSON string
	URL     string
}
