package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_BeginIteration_StopsAtMaxIterations(t *testing.T) {
	now := time.Now()
	run := NewRun(Config{MaxIterations: 2, MaxDuration: time.Minute}, now)

	ok, reason := run.BeginIteration(now)
	require.True(t, ok)
	require.Empty(t, reason)

	ok, reason = run.BeginIteration(now)
	require.True(t, ok)
	require.Empty(t, reason)

	ok, reason = run.BeginIteration(now)
	require.False(t, ok)
	require.Equal(t, ReasonMaxToolCalls, reason)
	require.Equal(t, 2, run.Iteration())
}

func TestRun_BeginIteration_StopsAtDeadline(t *testing.T) {
	now := time.Now()
	run := NewRun(Config{MaxIterations: 100, MaxDuration: time.Second}, now)

	ok, reason := run.BeginIteration(now.Add(2 * time.Second))
	require.False(t, ok)
	require.Equal(t, ReasonTimeout, reason)
}

func TestRun_Expired(t *testing.T) {
	now := time.Now()
	run := NewRun(Config{MaxIterations: 10, MaxDuration: time.Second}, now)

	require.False(t, run.Expired(now))
	require.True(t, run.Expired(now.Add(2*time.Second)))
}

func TestRun_OutputTokensExceeded_UnboundedWhenUnset(t *testing.T) {
	run := NewRun(Config{MaxIterations: 10, MaxDuration: time.Minute}, time.Now())
	require.False(t, run.OutputTokensExceeded(1_000_000))
}

func TestRun_OutputTokensExceeded(t *testing.T) {
	run := NewRun(Config{MaxIterations: 10, MaxDuration: time.Minute, MaxOutputTokens: 100}, time.Now())

	require.False(t, run.OutputTokensExceeded(99))
	require.True(t, run.OutputTokensExceeded(100))
	require.True(t, run.OutputTokensExceeded(150))
}

func TestEstimateTokens(t *testing.T) {
	require.Greater(t, EstimateTokens("hello world, this is a short prompt"), 0)
	require.Equal(t, 0, EstimateTokens(""))
}
