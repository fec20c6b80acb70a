// Package budget bounds a run: the iteration cap,
// wall-clock deadline, and per-tool timeout that bound the Tool-Loop
// Orchestrator's CALLING/EXECUTING cycle.
package budget

import (
	"context"
	"time"
)

// Reason identifies why a run stopped before reaching a natural DONE state.
type Reason string

const (
	// ReasonMaxToolCalls fires when the orchestrator hits max_iterations
	// before the model stops requesting tool calls.
	ReasonMaxToolCalls Reason = "max_tool_calls"

	// ReasonTimeout fires when the wall-clock deadline elapses mid-loop.
	ReasonTimeout Reason = "timeout"

	// ReasonMaxOutputTokens fires when accumulated output tokens across
	// turns reach the request's max_output_tokens cap ('s
	// RunBudget.max_output_tokens).
	ReasonMaxOutputTokens Reason = "max_output_tokens"
)

// Config are the caller-supplied limits for one request (:
// max_iterations, max_duration_ms, per_tool_timeout_ms, plus the per-request
// max_output_tokens carried on RunBudget).
type Config struct {
	MaxIterations  int
	MaxDuration    time.Duration
	PerToolTimeout time.Duration

	// MaxOutputTokens caps total output tokens across every turn of the
	// loop; zero means unbounded (left to the provider's own limits).
	MaxOutputTokens int
}

// OutputTokensExceeded reports whether spentOutputTokens has reached the
// run's max_output_tokens cap. Always false when the cap is unset.
func (r *Run) OutputTokensExceeded(spentOutputTokens int) bool {
	return r.cfg.MaxOutputTokens > 0 && spentOutputTokens >= r.cfg.MaxOutputTokens
}

// DefaultConfig mirrors the gateway's out-of-the-box limits when a request
// or its configuration layer doesn't override them.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  10,
		MaxDuration:    60 * time.Second,
		PerToolTimeout: 30 * time.Second,
	}
}

// Run tracks the live budget state for one request's tool loop.
type Run struct {
	cfg       Config
	deadline  time.Time
	iteration int
}

// NewRun starts a budget tracker anchored at the current time; the deadline
// is fixed at construction so a slow first CALLING phase still counts
// against the wall-clock limit.
func NewRun(cfg Config, now time.Time) *Run {
	return &Run{cfg: cfg, deadline: now.Add(cfg.MaxDuration)}
}

// Context returns ctx bound to the run's remaining wall-clock deadline, so
// every provider call and tool dispatch cooperatively observes it via
// context cancellation.
func (r *Run) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithDeadline(ctx, r.deadline)
}

// ToolContext returns ctx bound to the per-tool timeout, layered underneath
// the run's overall deadline (whichever fires first wins).
func (r *Run) ToolContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.cfg.PerToolTimeout)
}

// BeginIteration increments the iteration counter and reports whether the
// orchestrator may still enter CALLING: false means the caller must
// transition to INCOMPLETE instead (budget guards).
func (r *Run) BeginIteration(now time.Time) (ok bool, reason Reason) {
	if now.After(r.deadline) {
		return false, ReasonTimeout
	}
	if r.iteration >= r.cfg.MaxIterations {
		return false, ReasonMaxToolCalls
	}
	r.iteration++
	return true, ""
}

// Expired reports whether now is past the run's deadline without consuming
// an iteration, used by the orchestrator to check budget mid-EXECUTING.
func (r *Run) Expired(now time.Time) bool {
	return now.After(r.deadline)
}

// Iteration returns the current 1-based iteration count.
func (r *Run) Iteration() int { return r.iteration }
