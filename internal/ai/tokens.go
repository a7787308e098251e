package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func tokenEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Offline or missing encoding data; the estimate below covers it.
			return
		}
		encoding = enc
	})
	return encoding
}

// CountTokens returns the exact token count when the tokenizer is loadable,
// otherwise the ceil(len/4) estimate.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := tokenEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// EstimateTokens approximates a token count as ceil(len/4).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// TokenizerAvailable reports whether exact token counting is possible.
func TokenizerAvailable() bool {
	return tokenEncoding() != nil
}
