// Package orchestrator implements the tool-loop orchestrator: the state
// machine driving one request through provider streaming, chunk folding,
// event emission, and tool execution until the turn completes.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/masaicai/openresponses/gateway/accumulator"
	"github.com/masaicai/openresponses/gateway/budget"
	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/model"
	"github.com/masaicai/openresponses/runtime/agent/stream"
	"github.com/masaicai/openresponses/runtime/agent/telemetry"
)

// Status is the terminal state the loop reaches (DONE/FAILED/
// INCOMPLETE, collapsed with the completed/tool-produced DONE state).
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusIncomplete Status = "incomplete"
)

// Result summarizes how a run ended, for the HTTP layer to build the final
// non-streaming Response document.
type Result struct {
	Status           Status
	IncompleteReason string // budget.ReasonMaxToolCalls | budget.ReasonTimeout | budget.ReasonMaxOutputTokens, only when Status == StatusIncomplete
	FailureMessage   string
	Usage            model.TokenUsage
	Messages         []*model.Message // full transcript including appended tool results
	Output           []OutputRecord   // model-produced items across every turn, in emission order
}

// OutputKind discriminates an OutputRecord, mirroring the Responses-API
// output item's "type" field.
type OutputKind string

const (
	OutputMessage      OutputKind = "message"
	OutputFunctionCall OutputKind = "function_call"
)

// OutputRecord is one model-produced item collected across the whole tool
// loop — every turn's text and tool calls, not just the final turn's —
// matching how the real Responses API reports hosted tool-execution output:
// a function_call and the final message both surface to the caller, not
// only the terminal turn.
type OutputRecord struct {
	Kind      OutputKind
	Text      string // Kind == OutputMessage
	CallID    string // Kind == OutputFunctionCall
	Name      string // Kind == OutputFunctionCall
	Arguments string // Kind == OutputFunctionCall
	Status    string // "completed" | "incomplete" (invalid tool call arguments)
}

// Orchestrator wires the converted request, the chunk fold, event emission, and
// tool dispatch into the CALLING/STREAMING/TOOLS_PENDING/EXECUTING/
// APPENDING loop.
type Orchestrator struct {
	Registry  *toolcatalog.Registry
	Telemetry telemetry.Bundle
	Now       func() time.Time // overridable for deterministic tests; defaults to time.Now
}

// New constructs an Orchestrator bound to the given tool registry.
func New(registry *toolcatalog.Registry) *Orchestrator {
	return &Orchestrator{Registry: registry, Telemetry: telemetry.Noop(), Now: time.Now}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) tracer() telemetry.Tracer {
	if o.Telemetry.Tracer != nil {
		return o.Telemetry.Tracer
	}
	return telemetry.NewNoopTracer()
}

func (o *Orchestrator) meter() telemetry.Metrics {
	if o.Telemetry.Meter != nil {
		return o.Telemetry.Meter
	}
	return telemetry.NewNoopMetrics()
}

// Run drives one request's full tool loop: CALLING a provider stream,
// folding it, emitting Responses-API events, and — when the model requests
// tool calls — dispatching them through the Tool Registry and re-entering
// CALLING with the results appended, until the model stops requesting tools,
// the budget is exhausted, or an unrecoverable error occurs.
func (o *Orchestrator) Run(
	ctx context.Context,
	client model.Client,
	req *model.Request,
	emitter *stream.Emitter,
	cfg budget.Config,
	accessor toolcatalog.ParamsAccessor,
) Result {
	run := budget.NewRun(cfg, o.now())

	// One observation spans the whole run; provider calls and tool
	// executions nest under it.
	ctx, runSpan := o.tracer().Start(ctx, "responses.run")
	defer runSpan.End()

	if err := emitter.Created(ctx, formatCreatedAt(o.now())); err != nil {
		return Result{Status: StatusFailed, FailureMessage: err.Error()}
	}

	messages := append([]*model.Message(nil), req.Messages...)
	var totalUsage model.TokenUsage
	var output []OutputRecord

	for {
		ok, reason := run.BeginIteration(o.now())
		if !ok {
			o.meter().IncCounter("gateway.loop.budget_breaches", 1, "reason", string(reason))
			if err := emitter.Incomplete(ctx, string(reason), usageMap(totalUsage)); err != nil {
				return Result{Status: StatusFailed, FailureMessage: err.Error(), Messages: messages, Output: output}
			}
			return Result{Status: StatusIncomplete, IncompleteReason: string(reason), Usage: totalUsage, Messages: messages, Output: output}
		}

		iterReq := *req
		iterReq.Messages = messages
		iterReq.Stream = true

		o.meter().IncCounter("gateway.loop.iterations", 1)
		turnCtx, turnSpan := o.tracer().Start(ctx, "turn")
		turnStart := o.now()

		callCtx, cancel := run.Context(turnCtx)
		streamer, err := client.Stream(callCtx, &iterReq)
		if err != nil {
			cancel()
			turnSpan.RecordError(err)
			turnSpan.End()
			gwErr := gatewayerrors.From(err)
			_ = emitter.Fail(ctx, string(gwErr.Class), gwErr.Message)
			return Result{Status: StatusFailed, FailureMessage: gwErr.Message, Usage: totalUsage, Messages: messages, Output: output}
		}

		if err := emitter.InProgress(ctx); err != nil {
			streamer.Close()
			cancel()
			turnSpan.End()
			return Result{Status: StatusFailed, FailureMessage: err.Error(), Messages: messages, Output: output}
		}

		state := accumulator.NewStreamState()
		for {
			chunk, recvErr := streamer.Recv()
			if recvErr != nil {
				break
			}
			for _, fold := range state.Fold(chunk) {
				if turnDone, isTurnDone := fold.(accumulator.TurnDone); isTurnDone {
					if turnDone.Usage != nil {
						totalUsage = addUsage(totalUsage, *turnDone.Usage)
					} else {
						// Some providers omit the usage chunk entirely; fall
						// back to a cl100k_base token estimate over this
						// turn's output so max_output_tokens accounting
						// still advances.
						totalUsage = addUsage(totalUsage, model.TokenUsage{OutputTokens: estimateTurnOutputTokens(state)})
					}
					continue
				}
				if err := emitter.Translate(ctx, fold); err != nil {
					streamer.Close()
					cancel()
					turnSpan.End()
					return Result{Status: StatusFailed, FailureMessage: err.Error(), Messages: messages, Output: output}
				}
			}
		}
		streamer.Close()
		cancel()
		o.meter().RecordTimer("gateway.provider.latency", o.now().Sub(turnStart), "model", req.Model)
		turnSpan.End()
		emitter.EndTurn()

		output = append(output, turnOutputRecords(state)...)

		if run.OutputTokensExceeded(totalUsage.OutputTokens) {
			o.meter().IncCounter("gateway.loop.budget_breaches", 1, "reason", string(budget.ReasonMaxOutputTokens))
			if err := emitter.Incomplete(ctx, string(budget.ReasonMaxOutputTokens), usageMap(totalUsage)); err != nil {
				return Result{Status: StatusFailed, FailureMessage: err.Error(), Messages: messages, Output: output}
			}
			return Result{Status: StatusIncomplete, IncompleteReason: string(budget.ReasonMaxOutputTokens), Usage: totalUsage, Messages: messages, Output: output}
		}

		toolCalls := state.ToolCallsInOrder()
		if len(toolCalls) == 0 {
			if err := emitter.Complete(ctx, usageMap(totalUsage)); err != nil {
				return Result{Status: StatusFailed, FailureMessage: err.Error(), Messages: messages, Output: output}
			}
			return Result{Status: StatusCompleted, Usage: totalUsage, Messages: messages, Output: output}
		}

		// TOOLS_PENDING → EXECUTING: dispatch every completed tool call
		// concurrently, each bound by its own per-tool timeout, gathering
		// results in first-seen order.
		outputs := o.executeToolCalls(ctx, run, toolCalls, accessor)

		// EXECUTING → APPENDING: append function_call/function_call_output
		// pairs in call order, then re-enter CALLING.
		for i, tc := range toolCalls {
			messages = append(messages, &model.Message{
				Role: "assistant",
				Parts: []model.Part{model.ToolUsePart{
					ID:    tc.ID,
					Name:  tc.Name,
					Input: json.RawMessage(tc.Arguments()),
				}},
			})
			messages = append(messages, &model.Message{
				Role: "tool",
				Parts: []model.Part{model.ToolResultPart{
					ToolUseID: tc.ID,
					Content:   outputs[i].output,
					IsError:   outputs[i].isError,
				}},
			})
		}
	}
}

type toolOutput struct {
	output  string
	isError bool
}

// executeToolCalls runs every completed tool call concurrently, each under
// its own per-tool timeout, and returns results indexed exactly like the
// input slice so callers can append function_call/function_call_output
// pairs in original order regardless of completion order.
func (o *Orchestrator) executeToolCalls(
	ctx context.Context,
	run *budget.Run,
	calls []*accumulator.ToolCallState,
	accessor toolcatalog.ParamsAccessor,
) []toolOutput {
	results := make([]toolOutput, len(calls))
	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc *accumulator.ToolCallState) {
			defer wg.Done()
			results[i] = o.executeOne(ctx, run, tc, accessor)
		}(i, tc)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) executeOne(
	ctx context.Context,
	run *budget.Run,
	tc *accumulator.ToolCallState,
	accessor toolcatalog.ParamsAccessor,
) toolOutput {
	if tc.Status == accumulator.ToolCallFailed {
		// Arguments never parsed as JSON: synthesize the error output and
		// never dispatch.
		return toolOutput{output: `{"error":"invalid_arguments","detail":"tool call arguments did not parse as JSON"}`, isError: true}
	}

	o.meter().IncCounter("gateway.tool.invocations", 1, "tool", tc.Name)
	toolCtx, toolSpan := o.tracer().Start(ctx, "tool "+tc.Name)
	defer toolSpan.End()

	toolCtx, cancel := run.ToolContext(toolCtx)
	defer cancel()

	if o.Registry == nil {
		return toolOutput{output: errorBody(gatewayerrors.New(gatewayerrors.ClassToolNotFound, "no tool registry configured")), isError: true}
	}

	def, ok := findDefinition(o.Registry, tc.Name)
	if !ok {
		return toolOutput{output: errorBody(gatewayerrors.New(gatewayerrors.ClassToolNotFound, "unknown tool: "+tc.Name)), isError: true}
	}

	out, err := o.Registry.Dispatch(toolCtx, def, json.RawMessage(tc.Arguments()), accessor)
	if err != nil {
		toolSpan.RecordError(err)
		if toolCtx.Err() != nil {
			// A timed-out tool returns {"error":"tool_timeout"} and the loop
			// continues, rather than failing the whole turn.
			o.meter().IncCounter("gateway.tool.timeouts", 1, "tool", tc.Name)
			return toolOutput{output: `{"error":"tool_timeout"}`, isError: true}
		}
		return toolOutput{output: errorBody(gatewayerrors.From(err)), isError: true}
	}
	return toolOutput{output: out}
}

// turnOutputRecords projects one terminal turn's accumulator state into
// OutputRecords, text segments first (by ascending fold index) followed by
// tool calls in first-seen order — the shape the Responses API reports for
// a turn's model output (StreamState.output_items).
func turnOutputRecords(state *accumulator.StreamState) []OutputRecord {
	var out []OutputRecord

	textByIndex := state.TextByIndex()
	indexes := make([]int, 0, len(textByIndex))
	for idx := range textByIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		out = append(out, OutputRecord{Kind: OutputMessage, Text: textByIndex[idx], Status: "completed"})
	}

	for _, tc := range state.ToolCallsInOrder() {
		status := "completed"
		if tc.Status == accumulator.ToolCallFailed {
			status = "incomplete"
		}
		out = append(out, OutputRecord{
			Kind:      OutputFunctionCall,
			CallID:    tc.ID,
			Name:      tc.Name,
			Arguments: tc.Arguments(),
			Status:    status,
		})
	}

	return out
}

func findDefinition(registry *toolcatalog.Registry, name string) (toolcatalog.Definition, bool) {
	if def, ok := registry.GetFunctionTool(name); ok {
		return def, true
	}
	return toolcatalog.Definition{}, false
}

func errorBody(err *gatewayerrors.Error) string {
	out, marshalErr := json.Marshal(map[string]string{"error": string(err.Class), "detail": err.Message})
	if marshalErr != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Message)
	}
	return string(out)
}

func usageMap(u model.TokenUsage) map[string]int {
	return map[string]int{
		"input_tokens":  u.InputTokens,
		"output_tokens": u.OutputTokens,
		"total_tokens":  u.TotalTokens,
	}
}

// estimateTurnOutputTokens approximates a turn's output token count from its
// text segments and tool-call arguments when the provider's stream never
// carried a usage chunk.
func estimateTurnOutputTokens(state *accumulator.StreamState) int {
	total := 0
	for _, text := range state.TextByIndex() {
		total += budget.EstimateTokens(text)
	}
	for _, tc := range state.ToolCallsInOrder() {
		total += budget.EstimateTokens(tc.Arguments())
	}
	return total
}

func addUsage(total, delta model.TokenUsage) model.TokenUsage {
	total.InputTokens += delta.InputTokens
	total.OutputTokens += delta.OutputTokens
	total.TotalTokens += delta.TotalTokens
	total.CacheReadTokens += delta.CacheReadTokens
	total.CacheWriteTokens += delta.CacheWriteTokens
	return total
}

// formatCreatedAt renders a Unix timestamp as fixed-point decimal text,
// never scientific notation.
func formatCreatedAt(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
