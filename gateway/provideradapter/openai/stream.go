package openai

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/masaicai/openresponses/runtime/agent/model"
	"github.com/masaicai/openresponses/runtime/agent/tools"
)

// openAIStreamer adapts an OpenAI Chat Completions streaming response to
// the model.Streamer interface consumed by the Orchestrator.
type openAIStreamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[oai.ChatCompletionChunk]

	chunks chan model.Chunk

	errMu    sync.Mutex
	errSet   bool
	finalErr error

	metaMu   sync.RWMutex
	metadata map[string]any

	toolNameMap map[string]string
}

func newOpenAIStreamer(ctx context.Context, stream *ssestream.Stream[oai.ChatCompletionChunk], nameMap map[string]string) model.Streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &openAIStreamer{
		ctx:         cctx,
		cancel:      cancel,
		stream:      stream,
		chunks:      make(chan model.Chunk, 32),
		toolNameMap: nameMap,
	}
	go s.run()
	return s
}

func (s *openAIStreamer) Recv() (model.Chunk, error) {
	select {
	case chunk, ok := <-s.chunks:
		if ok {
			return chunk, nil
		}
		if err := s.err(); err != nil {
			return model.Chunk{}, err
		}
		return model.Chunk{}, io.EOF
	case <-s.ctx.Done():
		err := s.ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		s.setErr(err)
		return model.Chunk{}, err
	}
}

func (s *openAIStreamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *openAIStreamer) Metadata() map[string]any {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	if len(s.metadata) == 0 {
		return nil
	}
	out := make(map[string]any, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// run drains the SDK's accumulator-driven stream and emits model.Chunks.
// Unlike Anthropic's explicit content-block lifecycle events, the OpenAI
// wire protocol signals a completed tool call only via the accumulator's
// JustFinishedToolCall bookkeeping (it infers completion from the next
// delta's index changing or the stream ending), so this loop leans on
// oai.ChatCompletionAccumulator exactly as upstream SDK consumers do.
func (s *openAIStreamer) run() {
	defer close(s.chunks)
	defer func() {
		if s.stream != nil {
			_ = s.stream.Close()
		}
	}()

	acc := oai.ChatCompletionAccumulator{}
	emittedToolCalls := make(map[string]bool)
	var stopReason string

	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		if !s.stream.Next() {
			break
		}
		chunk := s.stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if err := s.emit(model.Chunk{
					Type: model.ChunkTypeText,
					Message: &model.Message{
						Role:  model.ConversationRoleAssistant,
						Parts: []model.Part{model.TextPart{Text: choice.Delta.Content}},
					},
				}); err != nil {
					s.setErr(err)
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				name := tc.Function.Name
				if canonical, ok := s.toolNameMap[name]; ok {
					name = canonical
				}
				if err := s.emit(model.Chunk{
					Type: model.ChunkTypeToolCallDelta,
					ToolCallDelta: &model.ToolCallDelta{
						Name:  tools.Ident(name),
						ID:    tc.ID,
						Index: int(tc.Index),
						Delta: tc.Function.Arguments,
					},
				}); err != nil {
					s.setErr(err)
					return
				}
			}
			if choice.FinishReason != "" {
				stopReason = string(choice.FinishReason)
			}
		}

		if tc, ok := acc.JustFinishedToolCall(); ok {
			emittedToolCalls[tc.ID] = true
			name := tc.Name
			if canonical, ok := s.toolNameMap[name]; ok {
				name = canonical
			}
			if err := s.emit(model.Chunk{
				Type: model.ChunkTypeToolCall,
				ToolCall: &model.ToolCall{
					Name:    tools.Ident(name),
					Payload: json.RawMessage(tc.Arguments),
					ID:      tc.ID,
				},
			}); err != nil {
				s.setErr(err)
				return
			}
		}
	}

	if err := s.stream.Err(); err != nil {
		s.setErr(err)
		return
	}

	// Some gateways/providers emit the complete tool call in-line without
	// ever reporting an incremental finish via JustFinishedToolCall; fall
	// back to whatever the accumulator collected.
	if len(acc.Choices) > 0 {
		for _, tc := range acc.Choices[0].Message.ToolCalls {
			if emittedToolCalls[tc.ID] || tc.Function.Name == "" {
				continue
			}
			name := tc.Function.Name
			if canonical, ok := s.toolNameMap[name]; ok {
				name = canonical
			}
			if err := s.emit(model.Chunk{
				Type: model.ChunkTypeToolCall,
				ToolCall: &model.ToolCall{
					Name:    tools.Ident(name),
					Payload: json.RawMessage(tc.Function.Arguments),
					ID:      tc.ID,
				},
			}); err != nil {
				s.setErr(err)
				return
			}
		}
	}

	usage := model.TokenUsage{
		InputTokens:  int(acc.Usage.PromptTokens),
		OutputTokens: int(acc.Usage.CompletionTokens),
		TotalTokens:  int(acc.Usage.TotalTokens),
	}
	s.recordUsage(usage)
	if usage.TotalTokens > 0 {
		if err := s.emit(model.Chunk{Type: model.ChunkTypeUsage, UsageDelta: &usage}); err != nil {
			s.setErr(err)
			return
		}
	}

	if err := s.emit(model.Chunk{Type: model.ChunkTypeStop, StopReason: stopReason}); err != nil {
		s.setErr(err)
		return
	}
	s.setErr(nil)
}

func (s *openAIStreamer) emit(chunk model.Chunk) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case s.chunks <- chunk:
		return nil
	}
}

func (s *openAIStreamer) recordUsage(usage model.TokenUsage) {
	s.metaMu.Lock()
	if s.metadata == nil {
		s.metadata = make(map[string]any)
	}
	s.metadata["usage"] = usage
	s.metaMu.Unlock()
}

func (s *openAIStreamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.errSet {
		return
	}
	s.errSet = true
	s.finalErr = err
}

func (s *openAIStreamer) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.finalErr
}
