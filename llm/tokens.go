package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/maestrokit/maestro/types"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// messageOverheadTokens approximates the per-message framing cost of chat
// formats (role markers, separators).
const messageOverheadTokens = 4

// CountTokens estimates the token count of a message list using the cl100k
// encoding. Providers that omit usage counters get their usage backfilled
// from this estimate so quota accounting and cost derivation keep working.
func CountTokens(messages []types.Message) int {
	encodingOnce.Do(func() {
		// cl100k_base covers the chat models the chain fronts closely
		// enough for accounting purposes.
		encoding, _ = tiktoken.GetEncoding("cl100k_base")
	})

	total := 0
	for _, m := range messages {
		total += messageOverheadTokens
		if encoding != nil {
			total += len(encoding.Encode(m.Content, nil, nil))
		} else {
			total += len(m.Content) / 4
		}
	}
	return total
}

// CountText estimates the token count of a single string.
func CountText(text string) int {
	return CountTokens([]types.Message{{Content: text}}) - messageOverheadTokens
}
