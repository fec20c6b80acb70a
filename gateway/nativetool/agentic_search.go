package nativetool

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
)

var agenticSearchParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"question": {"type": "string"},
		"max_iterations": {"type": "integer"},
		"max_results": {"type": "integer"}
	},
	"required": ["question"],
	"additionalProperties": false
}`)

type agenticSearchArgs struct {
	Question      string `json:"question"`
	MaxIterations int    `json:"max_iterations,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
}

type searchIterationRecord struct {
	Iteration int    `json:"iteration"`
	Query     string `json:"query"`
	Found     int    `json:"found"`
}

type agenticSearchDocument struct {
	Data             []fileSearchResultItem  `json:"data"`
	SearchIterations []searchIterationRecord `json:"search_iterations"`
	KnowledgeAcquired string                 `json:"knowledge_acquired"`
}

const (
	defaultAgenticMaxIterations = 5
	defaultAgenticMaxResults    = 10
)

// decisionLine matches "NEXT_QUERY: <query> { <json filter> } ##MEMORY## ...".
// The filter and memory groups are optional.
var decisionLine = regexp.MustCompile(`(?is)^\s*NEXT_QUERY:\s*(.+?)(?:\s*(\{.*\}))?(?:\s*##MEMORY##\s*(.*))?$`)

// agenticSearchTool runs a seed-and-refine inner loop: seed with hybrid
// search, then ask the LLM to TERMINATE or request a NEXT_QUERY, merging
// results until termination or the iteration cap.
func agenticSearchTool(search VectorSearch, llm LLMCompleter) Tool {
	return Tool{
		Name:        "agentic_search",
		Description: "Iteratively search and refine queries against configured vector stores until enough context is gathered to answer the question.",
		Parameters:  agenticSearchParameters,
		Run: func(ctx context.Context, args json.RawMessage, accessor Accessor, emit EmitFunc, _ map[string]any) (string, error) {
			var parsed agenticSearchArgs
			if err := json.Unmarshal(args, &parsed); err != nil {
				return "", gatewayerrors.New(gatewayerrors.ClassInvalidArgs, "agentic_search: "+err.Error())
			}
			if search == nil || llm == nil {
				return "", gatewayerrors.New(gatewayerrors.ClassVectorStore, "agentic_search: missing search or llm collaborator")
			}
			maxIter := parsed.MaxIterations
			if maxIter <= 0 {
				maxIter = defaultAgenticMaxIterations
			}
			maxResults := parsed.MaxResults
			if maxResults <= 0 {
				maxResults = defaultAgenticMaxResults
			}
			cfg := configFromAccessor(accessor)

			loop := &agenticSearchLoop{
				search:         search,
				llm:            llm,
				question:       parsed.Question,
				vectorStoreIDs: cfg.VectorStoreIDs,
				maxIterations:  maxIter,
				maxResults:     maxResults,
				emit:           emit,
				buffer:         make(map[string]fileSearchResultItem),
			}
			return loop.run(ctx)
		},
	}
}

type agenticSearchLoop struct {
	search         VectorSearch
	llm            LLMCompleter
	question       string
	vectorStoreIDs []string
	maxIterations  int
	maxResults     int
	emit           EmitFunc

	buffer            map[string]fileSearchResultItem // dedupe by file_id, keep max score
	iterations        []searchIterationRecord
	knowledgeAcquired string
}

func (l *agenticSearchLoop) run(ctx context.Context) (string, error) {
	for iteration := 0; iteration < l.maxIterations; iteration++ {
		if iteration == 0 {
			results, err := l.search.HybridSearch(ctx, l.question, l.vectorStoreIDs, l.maxResults, nil)
			if err != nil {
				return "", gatewayerrors.WithCause(gatewayerrors.ClassVectorStore, "agentic_search seed failed", gatewayerrors.From(err))
			}
			if len(results) == 0 {
				return "No initial results found.", nil
			}
			l.merge(0, l.question, results)
			continue
		}

		decision, err := l.decide(ctx)
		if err != nil {
			return "", gatewayerrors.WithCause(gatewayerrors.ClassProcessingError, "agentic_search decision failed", gatewayerrors.From(err))
		}
		if decision.terminate {
			break
		}
		filter := And(decision.filter, securityFilter(ctx))
		var filterPtr *Filter
		if filter.Field != "" || len(filter.Children) > 0 {
			filterPtr = &filter
		}
		results, err := l.search.HybridSearch(ctx, decision.query, l.vectorStoreIDs, l.maxResults, filterPtr)
		if err != nil {
			return "", gatewayerrors.WithCause(gatewayerrors.ClassVectorStore, "agentic_search refine failed", gatewayerrors.From(err))
		}
		l.merge(iteration, decision.query, results)
		if decision.memory != "" {
			l.knowledgeAcquired = strings.TrimSpace(l.knowledgeAcquired + "\n" + decision.memory)
		}
	}

	doc := agenticSearchDocument{
		SearchIterations:  l.iterations,
		KnowledgeAcquired: strings.TrimSpace(l.knowledgeAcquired),
		Data:              l.topN(),
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (l *agenticSearchLoop) merge(iteration int, query string, results []SearchResult) {
	for _, r := range results {
		item := fileSearchResultItem{FileID: r.FileID, Filename: r.Filename, Score: r.Score, Content: r.Content, Attributes: r.Attributes}
		if existing, ok := l.buffer[r.FileID]; !ok || item.Score > existing.Score {
			l.buffer[r.FileID] = item
		}
	}
	l.iterations = append(l.iterations, searchIterationRecord{Iteration: iteration, Query: query, Found: len(results)})
	if l.emit != nil {
		l.emit("agentic_search", fmt.Sprintf("iteration %d: %q found %d results", iteration, query, len(results)))
	}
}

func (l *agenticSearchLoop) topN() []fileSearchResultItem {
	items := make([]fileSearchResultItem, 0, len(l.buffer))
	for _, v := range l.buffer {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > l.maxResults {
		items = items[:l.maxResults]
	}
	return items
}

type decision struct {
	terminate bool
	query     string
	filter    Filter
	memory    string
}

// decide asks the LLM for the next step using the Decision Grammar and
// parses the reply; case-insensitive TERMINATE ends the loop, NEXT_QUERY
// continues it with an optional JSON filter and ##MEMORY## note.
func (l *agenticSearchLoop) decide(ctx context.Context) (decision, error) {
	system := "You are driving an iterative search loop. Reply with exactly one line: either the word TERMINATE, " +
		"or NEXT_QUERY: <query> optionally followed by a JSON filter object and an optional ##MEMORY## note."
	user := fmt.Sprintf("Question: %s\nResults gathered so far: %d\nDecide the next step.", l.question, len(l.buffer))
	reply, err := l.llm.Complete(ctx, system, user)
	if err != nil {
		return decision{}, err
	}
	reply = strings.TrimSpace(reply)
	if strings.EqualFold(reply, "TERMINATE") {
		return decision{terminate: true}, nil
	}
	match := decisionLine.FindStringSubmatch(reply)
	if match == nil {
		// Ambiguous reply: treat as termination rather than looping forever
		// on an unparseable decision.
		return decision{terminate: true}, nil
	}
	d := decision{query: strings.TrimSpace(match[1])}
	if match[2] != "" {
		var f Filter
		if err := json.Unmarshal([]byte(match[2]), &f); err == nil {
			d.filter = f
		}
	}
	if len(match) > 3 {
		d.memory = strings.TrimSpace(match[3])
	}
	return d, nil
}

type securityFilterKey struct{}

// WithSecurityFilter attaches the caller's mandatory security filter to ctx
// so agentic_search's inner loop AND-composes it into every refinement
// query, step 3.
func WithSecurityFilter(ctx context.Context, filter Filter) context.Context {
	return context.WithValue(ctx, securityFilterKey{}, filter)
}

func securityFilter(ctx context.Context) Filter {
	if f, ok := ctx.Value(securityFilterKey{}).(Filter); ok {
		return f
	}
	return Filter{}
}
