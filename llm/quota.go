package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// QuotaDecision is the outcome of a quota check.
type QuotaDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// UsageRecord captures the consumption of one completed request.
type UsageRecord struct {
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Cost             float64   `json:"cost"`
	Timestamp        time.Time `json:"timestamp"`
}

// QuotaTracker records and limits per-user, per-provider usage.
// The fallback chain consults it before dialing api-type providers and
// reports usage after every successful completion.
type QuotaTracker interface {
	CheckQuota(ctx context.Context, userID, provider string) (QuotaDecision, error)
	TrackUsage(ctx context.Context, userID string, record UsageRecord) error
}

// MemoryQuotaTracker is an in-memory QuotaTracker with per-user daily token
// ceilings. Hosts with real accounting supply their own implementation; this
// one serves tests and single-process deployments.
type MemoryQuotaTracker struct {
	mu         sync.Mutex
	dailyLimit int // tokens per user per day, 0 = unlimited
	used       map[string]int
	day        string
}

// NewMemoryQuotaTracker creates a tracker with the given daily token ceiling.
func NewMemoryQuotaTracker(dailyTokenLimit int) *MemoryQuotaTracker {
	return &MemoryQuotaTracker{
		dailyLimit: dailyTokenLimit,
		used:       make(map[string]int),
		day:        time.Now().Format("2006-01-02"),
	}
}

// CheckQuota allows the request unless the user's daily token ceiling is spent.
func (t *MemoryQuotaTracker) CheckQuota(_ context.Context, userID, provider string) (QuotaDecision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	if t.dailyLimit <= 0 {
		return QuotaDecision{Allowed: true}, nil
	}
	if t.used[userID] >= t.dailyLimit {
		return QuotaDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("daily token limit %d reached for provider %s", t.dailyLimit, provider),
		}, nil
	}
	return QuotaDecision{Allowed: true}, nil
}

// TrackUsage adds the record's tokens to the user's daily counter.
func (t *MemoryQuotaTracker) TrackUsage(_ context.Context, userID string, record UsageRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	t.used[userID] += record.TotalTokens
	return nil
}

// Used returns the user's token count for the current day.
func (t *MemoryQuotaTracker) Used(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.used[userID]
}

func (t *MemoryQuotaTracker) rollover() {
	today := time.Now().Format("2006-01-02")
	if today != t.day {
		t.day = today
		t.used = make(map[string]int)
	}
}
