package provider

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	encOnce sync.Once
	enc     tokenizer.Codec
	encErr  error
)

// CountTokens estimates the token footprint of text for a model. Upstream
// usage metadata is preferred; this covers responses that omit it. All
// models share the cl100k vocabulary here, which is close enough for
// accounting purposes.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}
	encOnce.Do(func() {
		enc, encErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	if encErr != nil || enc == nil {
		return approxTokens(text)
	}
	count, err := enc.Count(text)
	if err != nil {
		return approxTokens(text)
	}
	return count
}

func approxTokens(text string) int {
	return (len(text) + 3) / 4
}
