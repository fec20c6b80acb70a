package nativetool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/toolregistry"
)

func TestThinkToolReturnsFixedAcknowledgement(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil, nil)
	out, err := r.Execute(context.Background(), "think", json.RawMessage(`{"thought":"consider the weather API"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "Your thought has been logged.", out)
}

func TestThinkToolRejectsMalformedArguments(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil, nil)
	_, err := r.Execute(context.Background(), "think", json.RawMessage(`{not json`), nil)
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gatewayerrors.ClassInvalidArgs, gwErr.Class)
}

func TestRegistryExecuteUnknownToolReturnsToolNotFound(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil, nil)
	_, err := r.Execute(context.Background(), "does_not_exist", json.RawMessage(`{}`), nil)
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gatewayerrors.ClassToolNotFound, gwErr.Class)
}

func TestRegistryDefinitionsCoverAllBuiltins(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil, nil)
	defs := r.Definitions()
	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		names[d.Name] = true
		assert.Equal(t, toolcatalog.ProtocolNative, d.Protocol)
		assert.Equal(t, toolcatalog.HostingSelf, d.Hosting)
	}
	for _, want := range []string{"think", "file_search", "agentic_search", "image_generation"} {
		assert.True(t, names[want], "missing native tool %q", want)
	}
}

type fakeVectorSearch struct {
	results []SearchResult
	err     error
	lastIDs []string
	lastMax int
}

func (f *fakeVectorSearch) Search(_ context.Context, _ string, ids []string, maxResults int, _ *Filter) ([]SearchResult, error) {
	f.lastIDs = ids
	f.lastMax = maxResults
	return f.results, f.err
}

func (f *fakeVectorSearch) HybridSearch(ctx context.Context, query string, ids []string, maxResults int, filter *Filter) ([]SearchResult, error) {
	return f.Search(ctx, query, ids, maxResults, filter)
}

func TestFileSearchToolReturnsScoredDocument(t *testing.T) {
	t.Parallel()
	search := &fakeVectorSearch{results: []SearchResult{
		{FileID: "file_1", Filename: "a.txt", Score: 0.9, Content: "hello"},
	}}
	r := NewRegistry(search, nil, nil)
	accessor := toolcatalog.StaticParams{FileSearchConfigKey: FileSearchConfig{VectorStoreIDs: []string{"vs_1"}, MaxNumResults: 3}}

	out, err := r.Execute(context.Background(), "file_search", json.RawMessage(`{"query":"hello"}`), accessor)
	require.NoError(t, err)

	var doc fileSearchDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "hello", doc.Query)
	require.Len(t, doc.Data, 1)
	assert.Equal(t, "file_1", doc.Data[0].FileID)
	assert.Equal(t, []string{"vs_1"}, search.lastIDs)
	assert.Equal(t, 3, search.lastMax)
}

func TestFileSearchToolRequestOverridesMaxNumResults(t *testing.T) {
	t.Parallel()
	search := &fakeVectorSearch{}
	r := NewRegistry(search, nil, nil)
	accessor := toolcatalog.StaticParams{FileSearchConfigKey: FileSearchConfig{MaxNumResults: 3}}

	_, err := r.Execute(context.Background(), "file_search", json.RawMessage(`{"query":"x","max_num_results":7}`), accessor)
	require.NoError(t, err)
	assert.Equal(t, 7, search.lastMax)
}

func TestFileSearchToolWithoutCollaboratorReturnsVectorStoreError(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil, nil)
	_, err := r.Execute(context.Background(), "file_search", json.RawMessage(`{"query":"x"}`), nil)
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gatewayerrors.ClassVectorStore, gwErr.Class)
}

func TestFileSearchToolWrapsSearchFailure(t *testing.T) {
	t.Parallel()
	search := &fakeVectorSearch{err: errors.New("backend unavailable")}
	r := NewRegistry(search, nil, nil)
	_, err := r.Execute(context.Background(), "file_search", json.RawMessage(`{"query":"x"}`), nil)
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gatewayerrors.ClassVectorStore, gwErr.Class)
}

type fakeImageGenerator struct {
	result ImageResult
	err    error
	prompt string
	opts   map[string]any
}

func (f *fakeImageGenerator) Generate(_ context.Context, prompt string, opts map[string]any) (ImageResult, error) {
	f.prompt = prompt
	f.opts = opts
	return f.result, f.err
}

func TestImageGenerationToolForwardsToCollaborator(t *testing.T) {
	t.Parallel()
	gen := &fakeImageGenerator{result: ImageResult{URL: "https://example.test/image.png"}}
	r := NewRegistry(nil, nil, gen)

	out, err := r.Execute(context.Background(), "image_generation", json.RawMessage(`{"prompt":"a cat","size":"1024x1024"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "a cat", gen.prompt)
	assert.Equal(t, "1024x1024", gen.opts["size"])

	var result imageGenerationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "https://example.test/image.png", result.URL)
}

func TestImageGenerationToolWithoutCollaboratorReturnsProcessingError(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil, nil, nil)
	_, err := r.Execute(context.Background(), "image_generation", json.RawMessage(`{"prompt":"a cat"}`), nil)
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gatewayerrors.ClassProcessingError, gwErr.Class)
}

type fakeLLM struct {
	replies []string
	calls   int
}

func (f *fakeLLM) Complete(context.Context, string, string) (string, error) {
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return reply, nil
}

type recordingPublisher struct {
	streams []string
	deltas  []string
}

func (p *recordingPublisher) PublishToolOutputDelta(_ context.Context, stream, delta string) error {
	p.streams = append(p.streams, stream)
	p.deltas = append(p.deltas, delta)
	return nil
}

func TestExecuteForwardsEmitToContextPublisher(t *testing.T) {
	t.Parallel()
	search := &fakeVectorSearch{results: []SearchResult{
		{FileID: "file_1", Filename: "a.txt", Score: 0.8, Content: "context"},
	}}
	llm := &fakeLLM{replies: []string{"TERMINATE"}}
	r := NewRegistry(search, llm, nil)

	pub := &recordingPublisher{}
	ctx := toolregistry.WithOutputDeltaPublisher(context.Background(), pub)

	_, err := r.Execute(ctx, "agentic_search", json.RawMessage(`{"question":"what is context?"}`), toolcatalog.StaticParams{})
	require.NoError(t, err)

	require.NotEmpty(t, pub.deltas)
	assert.Equal(t, "agentic_search", pub.streams[0])
	assert.Contains(t, pub.deltas[0], "found 1 results")
}

func TestExecuteWithoutPublisherDiscardsEmits(t *testing.T) {
	t.Parallel()
	search := &fakeVectorSearch{results: []SearchResult{
		{FileID: "file_1", Filename: "a.txt", Score: 0.8, Content: "context"},
	}}
	llm := &fakeLLM{replies: []string{"TERMINATE"}}
	r := NewRegistry(search, llm, nil)

	out, err := r.Execute(context.Background(), "agentic_search", json.RawMessage(`{"question":"what is context?"}`), toolcatalog.StaticParams{})
	require.NoError(t, err)
	assert.Contains(t, out, "search_iterations")
}
