package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/structured-prompt/promptsvc/internal/prompt"
	"github.com/structured-prompt/promptsvc/internal/provider"
	"github.com/structured-prompt/promptsvc/internal/schema"
)

// MaxBatchSize bounds how many prompts one batch request may carry.
const MaxBatchSize = 20

// BatchRequest analyzes several prompts in a single provider round trip.
type BatchRequest struct {
	Prompts          []string       `json:"prompts"`
	SchemaDefinition map[string]any `json:"schema_definition,omitempty"`
	Provider         string         `json:"llm_provider,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
}

// BatchItem is the outcome for one prompt in a batch.
type BatchItem struct {
	Index int            `json:"index"`
	Data  map[string]any `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

// BatchResult carries per-prompt outcomes plus shared metadata.
type BatchResult struct {
	BatchID    string      `json:"batch_id"`
	Items      []BatchItem `json:"items"`
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	TokensUsed int         `json:"tokens_used"`
	LatencyMS  int64       `json:"latency_ms"`
}

// AnalyzeBatch sends all prompts in one meta-prompt and splits the array
// response back per input. Batch results bypass the cache; the per-prompt
// endpoint is the cached path.
func (p *Processor) AnalyzeBatch(ctx context.Context, req *BatchRequest) (*BatchResult, error) {
	if len(req.Prompts) == 0 {
		return nil, &schema.ValidationError{Field: "prompts", Message: "must not be empty"}
	}
	if len(req.Prompts) > MaxBatchSize {
		return nil, &schema.ValidationError{Field: "prompts", Message: fmt.Sprintf("must not exceed %d prompts", MaxBatchSize)}
	}
	for _, item := range req.Prompts {
		if err := schema.ValidatePrompt(item); err != nil {
			return nil, err
		}
	}
	pinned, err := provider.ParseName(req.Provider)
	if err != nil {
		return nil, &schema.ValidationError{Field: "llm_provider", Message: err.Error()}
	}
	temperature := defaultTemperature
	if req.Temperature != nil {
		if err := schema.ValidateTemperature(*req.Temperature); err != nil {
			return nil, err
		}
		temperature = *req.Temperature
	}

	var compiled *jsonschema.Schema
	if req.SchemaDefinition != nil {
		compiled, err = schema.Compile(req.SchemaDefinition)
		if err != nil {
			return nil, &schema.ValidationError{Field: "schema_definition", Message: err.Error()}
		}
	}

	start := time.Now()
	routed, err := p.generator.Generate(ctx, pinned, &provider.Request{
		Prompt:      prompt.BuildBatchPrompt(req.Prompts, req.SchemaDefinition),
		Temperature: temperature,
		MaxTokens:   defaultMaxTokens * 2,
	})
	if err != nil {
		return nil, err
	}

	var entries []map[string]any
	cleaned := prompt.ExtractJSON(routed.Response.Text)
	if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, &provider.Error{Provider: routed.Provider, Kind: provider.KindParse, Message: "completion is not a valid JSON array", Cause: err}
	}
	if len(entries) != len(req.Prompts) {
		return nil, &provider.Error{
			Provider: routed.Provider,
			Kind:     provider.KindParse,
			Message:  fmt.Sprintf("completion has %d entries for %d prompts", len(entries), len(req.Prompts)),
		}
	}

	result := &BatchResult{
		BatchID:    uuid.NewString(),
		Provider:   string(routed.Provider),
		Model:      routed.Response.Model,
		TokensUsed: routed.Response.TokensUsed,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
	for i, entry := range entries {
		item := BatchItem{Index: i}
		if err := schema.ValidateAgainst(compiled, entry); err != nil {
			item.Error = err.Error()
		} else {
			item.Data = schema.Sanitize(entry)
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}
