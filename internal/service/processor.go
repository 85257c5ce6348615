// Package service orchestrates the analysis pipeline: request validation,
// cache lookup, provider routing, response validation, sanitization, and
// accounting.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	log "github.com/sirupsen/logrus"

	"github.com/structured-prompt/promptsvc/internal/archive"
	"github.com/structured-prompt/promptsvc/internal/cache"
	"github.com/structured-prompt/promptsvc/internal/prompt"
	"github.com/structured-prompt/promptsvc/internal/provider"
	"github.com/structured-prompt/promptsvc/internal/router"
	"github.com/structured-prompt/promptsvc/internal/schema"
	"github.com/structured-prompt/promptsvc/internal/store"
	"github.com/structured-prompt/promptsvc/internal/toon"
)

// Output formats for analysis results.
const (
	FormatJSON = "json"
	FormatTOON = "toon"
)

// Request defaults applied during normalization.
const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 2000
	defaultCacheTTL    = 3600
)

// AnalyzeRequest is the inbound analysis request after JSON decoding.
// Pointer fields distinguish "absent" from zero values.
type AnalyzeRequest struct {
	Prompt           string            `json:"prompt"`
	OutputFormat     string            `json:"output_format,omitempty"`
	SchemaDefinition map[string]any    `json:"schema_definition,omitempty"`
	SchemaName       string            `json:"schema_name,omitempty"`
	Provider         string            `json:"llm_provider,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
	MaxTokens        *int              `json:"max_tokens,omitempty"`
	CacheTTL         *int              `json:"cache_ttl,omitempty"`
	WithConfidence   bool              `json:"with_confidence,omitempty"`
	Language         string            `json:"language,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Meta accompanies every analysis result.
type Meta struct {
	RequestID  string   `json:"request_id"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
	TokensUsed int      `json:"tokens_used"`
	LatencyMS  int64    `json:"latency_ms"`
	Cached     bool     `json:"cached"`
	Validated  bool     `json:"validated"`
	Confidence *float64 `json:"confidence_score,omitempty"`
}

// Result is a completed analysis. TOON is set only for TOON output format.
type Result struct {
	Data map[string]any `json:"data"`
	TOON string         `json:"toon,omitempty"`
	Meta Meta           `json:"metadata"`
}

// Generator routes a prompt to an upstream provider.
type Generator interface {
	Generate(ctx context.Context, pinned provider.Name, req *provider.Request) (*router.Result, error)
}

// SchemaResolver loads stored schemas by name.
type SchemaResolver interface {
	GetByName(ctx context.Context, name string, version int) (*store.Schema, error)
}

// RequestRecorder appends request logs.
type RequestRecorder interface {
	Insert(ctx context.Context, rl *store.RequestLog) error
}

// Processor ties the pipeline together.
type Processor struct {
	generator Generator
	cache     *cache.Cache
	schemas   SchemaResolver
	logs      RequestRecorder
	archiver  *archive.Archiver
}

// NewProcessor wires the pipeline. Cache, schema resolver, request recorder
// and archiver may each be nil; the pipeline degrades accordingly.
func NewProcessor(generator Generator, c *cache.Cache, schemas SchemaResolver, logs RequestRecorder, archiver *archive.Archiver) *Processor {
	return &Processor{generator: generator, cache: c, schemas: schemas, logs: logs, archiver: archiver}
}

// Analyze runs the full pipeline for one request.
func (p *Processor) Analyze(ctx context.Context, req *AnalyzeRequest, requestID string, apiKeyID *int64) (*Result, error) {
	start := time.Now()

	normalized, err := p.normalize(ctx, req)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"provider": normalized.pinned,
		"ttl":      normalized.cacheTTL,
	}).WithContext(ctx).Info("processing analysis request")

	cacheKey := cache.Key(normalized.prompt, string(normalized.pinned), normalized.temperature, req.SchemaDefinition)
	if normalized.cacheTTL > 0 {
		if entry := p.cache.Get(ctx, cacheKey); entry != nil {
			meta := Meta{
				RequestID:  requestID,
				Provider:   entry.Provider,
				Model:      entry.Model,
				TokensUsed: entry.TokensUsed,
				LatencyMS:  time.Since(start).Milliseconds(),
				Cached:     true,
				Validated:  true,
			}
			p.record(ctx, requestID, apiKeyID, req, meta, entry.Data, "passed", "")
			return p.finish(entry.Data, req.OutputFormat, meta)
		}
	}

	routed, err := p.generator.Generate(ctx, normalized.pinned, &provider.Request{
		Prompt:      normalized.metaPrompt,
		Temperature: normalized.temperature,
		MaxTokens:   normalized.maxTokens,
	})
	if err != nil {
		p.record(ctx, requestID, apiKeyID, req, Meta{
			RequestID: requestID,
			Provider:  string(normalized.pinned),
			LatencyMS: time.Since(start).Milliseconds(),
		}, nil, "skipped", err.Error())
		return nil, err
	}

	var data map[string]any
	if normalized.toonOutput {
		data, routed, err = p.parseTOON(ctx, normalized, routed)
	} else {
		data, err = parseStructured(routed)
	}
	if err != nil {
		p.record(ctx, requestID, apiKeyID, req, Meta{
			RequestID: requestID,
			Provider:  string(routed.Provider),
			Model:     routed.Response.Model,
			LatencyMS: time.Since(start).Milliseconds(),
		}, nil, "skipped", err.Error())
		return nil, err
	}

	if err := schema.ValidateAgainst(normalized.compiled, data); err != nil {
		p.record(ctx, requestID, apiKeyID, req, Meta{
			RequestID: requestID,
			Provider:  string(routed.Provider),
			Model:     routed.Response.Model,
			LatencyMS: time.Since(start).Milliseconds(),
		}, nil, "failed", err.Error())
		return nil, fmt.Errorf("service: response failed validation: %w", err)
	}

	sanitized := schema.Sanitize(data)

	meta := Meta{
		RequestID:  requestID,
		Provider:   string(routed.Provider),
		Model:      routed.Response.Model,
		TokensUsed: routed.Response.TokensUsed,
		LatencyMS:  time.Since(start).Milliseconds(),
		Validated:  true,
	}
	if score, ok := schema.Confidence(sanitized); ok {
		meta.Confidence = &score
	}

	if normalized.cacheTTL > 0 {
		p.cache.Set(ctx, cache.Key(normalized.prompt, string(routed.Provider), normalized.temperature, req.SchemaDefinition), &cache.Entry{
			Data:       sanitized,
			Provider:   meta.Provider,
			Model:      meta.Model,
			TokensUsed: meta.TokensUsed,
		}, time.Duration(normalized.cacheTTL)*time.Second)
		if normalized.pinned != routed.Provider {
			// Pinned-key alias so auto requests and explicit requests for the
			// serving provider share entries.
			p.cache.Set(ctx, cacheKey, &cache.Entry{
				Data:       sanitized,
				Provider:   meta.Provider,
				Model:      meta.Model,
				TokensUsed: meta.TokensUsed,
			}, time.Duration(normalized.cacheTTL)*time.Second)
		}
	}

	p.record(ctx, requestID, apiKeyID, req, meta, sanitized, "passed", "")
	p.archiver.Store(ctx, &archive.Record{
		RequestID:  requestID,
		Provider:   meta.Provider,
		Model:      meta.Model,
		Prompt:     normalized.prompt,
		RawText:    routed.Response.Text,
		Structured: sanitized,
		TokensUsed: meta.TokensUsed,
	})

	return p.finish(sanitized, req.OutputFormat, meta)
}

type normalizedRequest struct {
	prompt      string
	metaPrompt  string
	pinned      provider.Name
	temperature float64
	maxTokens   int
	cacheTTL    int
	toonOutput  bool
	compiled    *jsonschema.Schema
}

func (p *Processor) normalize(ctx context.Context, req *AnalyzeRequest) (*normalizedRequest, error) {
	if err := schema.ValidatePrompt(req.Prompt); err != nil {
		return nil, err
	}
	if err := schema.ValidateLanguage(req.Language); err != nil {
		return nil, err
	}
	if err := schema.ValidateMetadata(req.Metadata); err != nil {
		return nil, err
	}
	if req.OutputFormat != "" && req.OutputFormat != FormatJSON && req.OutputFormat != FormatTOON {
		return nil, &schema.ValidationError{Field: "output_format", Message: "must be json or toon"}
	}

	pinned, err := provider.ParseName(req.Provider)
	if err != nil {
		return nil, &schema.ValidationError{Field: "llm_provider", Message: err.Error()}
	}

	n := &normalizedRequest{prompt: req.Prompt, pinned: pinned, temperature: defaultTemperature, maxTokens: defaultMaxTokens, cacheTTL: defaultCacheTTL}
	if req.Temperature != nil {
		if err := schema.ValidateTemperature(*req.Temperature); err != nil {
			return nil, err
		}
		n.temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		if err := schema.ValidateMaxTokens(*req.MaxTokens); err != nil {
			return nil, err
		}
		if *req.MaxTokens > 0 {
			n.maxTokens = *req.MaxTokens
		}
	}
	if req.CacheTTL != nil {
		if err := schema.ValidateCacheTTL(*req.CacheTTL); err != nil {
			return nil, err
		}
		n.cacheTTL = *req.CacheTTL
	}

	definition := req.SchemaDefinition
	if definition == nil && req.SchemaName != "" {
		if p.schemas == nil {
			return nil, &schema.ValidationError{Field: "schema_name", Message: "stored schemas are not available"}
		}
		stored, err := p.schemas.GetByName(ctx, req.SchemaName, 0)
		if err != nil {
			return nil, &schema.ValidationError{Field: "schema_name", Message: fmt.Sprintf("unknown schema %q", req.SchemaName)}
		}
		definition = stored.Definition
		req.SchemaDefinition = definition
	}

	if definition != nil {
		compiled, err := schema.Compile(definition)
		if err != nil {
			return nil, &schema.ValidationError{Field: "schema_definition", Message: err.Error()}
		}
		n.compiled = compiled
		n.metaPrompt = prompt.BuildCustomSchemaPrompt(req.Prompt, definition)
	} else {
		n.metaPrompt = prompt.BuildMetaPrompt(req.Prompt)
	}
	if req.WithConfidence {
		n.metaPrompt = prompt.AddConfidenceScoring(n.metaPrompt)
	}
	if req.OutputFormat == FormatTOON {
		n.toonOutput = true
		n.metaPrompt = prompt.ForTOONOutput(n.metaPrompt)
	}
	return n, nil
}

// parseTOON decodes a TOON completion, giving the model one repair round
// trip when the document does not parse.
func (p *Processor) parseTOON(ctx context.Context, n *normalizedRequest, routed *router.Result) (map[string]any, *router.Result, error) {
	text := prompt.ExtractJSON(routed.Response.Text)
	data, err := toon.Decode(text, toon.DecodeOptions{Strict: true})
	if err == nil {
		return data, routed, nil
	}

	log.WithFields(log.Fields{"provider": routed.Provider, "error": err.Error()}).WithContext(ctx).Warn("toon completion malformed, requesting repair")
	repaired, rerr := p.generator.Generate(ctx, n.pinned, &provider.Request{
		Prompt:      prompt.BuildTOONFixPrompt(text, err.Error()),
		Temperature: n.temperature,
		MaxTokens:   n.maxTokens,
	})
	if rerr != nil {
		return nil, routed, rerr
	}
	data, err = toon.Decode(prompt.ExtractJSON(repaired.Response.Text), toon.DecodeOptions{Strict: true})
	if err != nil {
		return nil, repaired, &provider.Error{
			Provider: repaired.Provider,
			Kind:     provider.KindParse,
			Message:  "completion is not a valid TOON document",
			Cause:    err,
		}
	}
	repaired.Response.TokensUsed += routed.Response.TokensUsed
	return data, repaired, nil
}

// parseStructured extracts the JSON object out of a raw completion.
func parseStructured(routed *router.Result) (map[string]any, error) {
	cleaned := prompt.ExtractJSON(routed.Response.Text)
	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, &provider.Error{
			Provider: routed.Provider,
			Kind:     provider.KindParse,
			Message:  "completion is not valid JSON",
			Cause:    err,
		}
	}
	return data, nil
}

func (p *Processor) finish(data map[string]any, outputFormat string, meta Meta) (*Result, error) {
	res := &Result{Data: data, Meta: meta}
	if outputFormat == FormatTOON {
		res.TOON = toon.Encode(data, toon.EncodeOptions{})
	}
	return res, nil
}

// record appends a request log; failures are logged and swallowed so
// accounting never breaks a request.
func (p *Processor) record(ctx context.Context, requestID string, apiKeyID *int64, req *AnalyzeRequest, meta Meta, data map[string]any, validationStatus, errMsg string) {
	if p.logs == nil {
		return
	}
	status := "success"
	if errMsg != "" {
		status = "error"
	}
	rl := &store.RequestLog{
		RequestID:        requestID,
		APIKeyID:         apiKeyID,
		Provider:         meta.Provider,
		Model:            meta.Model,
		PromptText:       req.Prompt,
		PromptLength:     len(req.Prompt),
		ResponseData:     data,
		TokensUsed:       meta.TokensUsed,
		LatencyMS:        meta.LatencyMS,
		Cached:           meta.Cached,
		Status:           status,
		ValidationStatus: validationStatus,
		Error:            errMsg,
	}
	if err := p.logs.Insert(ctx, rl); err != nil {
		log.WithFields(log.Fields{"error": err.Error()}).Warn("request log insert failed")
	}
}
