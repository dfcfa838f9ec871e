package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrokit/maestro/types"
)

func TestMemoryQuotaTrackerLimit(t *testing.T) {
	tracker := NewMemoryQuotaTracker(100)
	ctx := context.Background()

	decision, err := tracker.CheckQuota(ctx, "alice", "openai")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	require.NoError(t, tracker.TrackUsage(ctx, "alice", UsageRecord{TotalTokens: 60}))
	decision, _ = tracker.CheckQuota(ctx, "alice", "openai")
	assert.True(t, decision.Allowed)

	require.NoError(t, tracker.TrackUsage(ctx, "alice", UsageRecord{TotalTokens: 50}))
	decision, _ = tracker.CheckQuota(ctx, "alice", "openai")
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "daily token limit")

	// Other users are unaffected.
	decision, _ = tracker.CheckQuota(ctx, "bob", "openai")
	assert.True(t, decision.Allowed)

	assert.Equal(t, 110, tracker.Used("alice"))
	assert.Equal(t, 0, tracker.Used("bob"))
}

func TestMemoryQuotaTrackerUnlimited(t *testing.T) {
	tracker := NewMemoryQuotaTracker(0)
	ctx := context.Background()

	require.NoError(t, tracker.TrackUsage(ctx, "alice", UsageRecord{TotalTokens: 1_000_000}))
	decision, err := tracker.CheckQuota(ctx, "alice", "openai")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCountTokens(t *testing.T) {
	msgs := []types.Message{
		types.NewSystemMessage("You are a helpful assistant."),
		types.NewUserMessage("Summarize the quarterly report in three bullet points."),
	}

	total := CountTokens(msgs)
	assert.Positive(t, total)

	// More content should never count fewer tokens.
	longer := append(msgs, types.NewUserMessage("Also include revenue numbers."))
	assert.GreaterOrEqual(t, CountTokens(longer), total)

	assert.Zero(t, CountText(""))
	assert.Positive(t, CountText("hello world"))
}
