package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/structured-prompt/promptsvc/internal/provider"
	"github.com/structured-prompt/promptsvc/internal/router"
	"github.com/structured-prompt/promptsvc/internal/schema"
	"github.com/structured-prompt/promptsvc/internal/store"
)

type fakeGenerator struct {
	text     string
	queue    []string
	err      error
	lastReq  *provider.Request
	calls    int
	provider provider.Name
}

func (f *fakeGenerator) Generate(ctx context.Context, pinned provider.Name, req *provider.Request) (*router.Result, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	text := f.text
	if len(f.queue) > 0 {
		text = f.queue[0]
		f.queue = f.queue[1:]
	}
	name := f.provider
	if name == "" {
		name = provider.Gemini
	}
	return &router.Result{
		Response: &provider.Response{Text: text, Model: "test-model", TokensUsed: 10},
		Provider: name,
		Attempts: 1,
	}, nil
}

type fakeRecorder struct {
	logs []*store.RequestLog
}

func (f *fakeRecorder) Insert(ctx context.Context, rl *store.RequestLog) error {
	f.logs = append(f.logs, rl)
	return nil
}

type fakeSchemas struct {
	schema *store.Schema
	err    error
}

func (f *fakeSchemas) GetByName(ctx context.Context, name string, version int) (*store.Schema, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.schema, nil
}

const validCompletion = `{
	"intent": "translate",
	"subject": "greeting",
	"entities": {"key_details": ["Bonjour"], "source": "french", "target": "english"},
	"output_format": "text",
	"original_language": "fr"
}`

func TestAnalyzeHappyPath(t *testing.T) {
	gen := &fakeGenerator{text: validCompletion}
	rec := &fakeRecorder{}
	p := NewProcessor(gen, nil, nil, rec, nil)

	res, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "Translate 'Bonjour' to English"}, "req1", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Data["intent"] != "translate" {
		t.Errorf("intent = %v", res.Data["intent"])
	}
	if !res.Meta.Validated || res.Meta.Cached {
		t.Errorf("meta = %+v", res.Meta)
	}
	if res.Meta.Provider != "gemini" || res.Meta.Model != "test-model" {
		t.Errorf("provider/model = %s/%s", res.Meta.Provider, res.Meta.Model)
	}
	if len(rec.logs) != 1 || rec.logs[0].Status != "success" {
		t.Errorf("logs = %+v", rec.logs)
	}
	if rec.logs[0].ValidationStatus != "passed" || rec.logs[0].PromptText != "Translate 'Bonjour' to English" {
		t.Errorf("log detail = %+v", rec.logs[0])
	}
	if rec.logs[0].ResponseData["intent"] != "translate" {
		t.Errorf("response data not recorded: %+v", rec.logs[0].ResponseData)
	}
	if !strings.Contains(gen.lastReq.Prompt, "Respond ONLY") {
		t.Error("meta prompt not built")
	}
}

func TestAnalyzeStripsCodeFences(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n" + validCompletion + "\n```"}
	p := NewProcessor(gen, nil, nil, nil, nil)

	res, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "hello"}, "req2", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Data["subject"] != "greeting" {
		t.Errorf("subject = %v", res.Data["subject"])
	}
}

func TestAnalyzeRejectsInvalidRequest(t *testing.T) {
	p := NewProcessor(&fakeGenerator{}, nil, nil, nil, nil)

	cases := []*AnalyzeRequest{
		{Prompt: ""},
		{Prompt: "ok", Provider: "mistral"},
		{Prompt: "ok", OutputFormat: "xml"},
		{Prompt: "ok", Temperature: ptr(3.0)},
		{Prompt: "ok", MaxTokens: ptrInt(10)},
		{Prompt: "ok", CacheTTL: ptrInt(100000)},
		{Prompt: "<script>alert(1)</script>"},
	}
	for i, req := range cases {
		if _, err := p.Analyze(context.Background(), req, "req", nil); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestAnalyzeParseFailure(t *testing.T) {
	gen := &fakeGenerator{text: "I'm sorry, I can't do that."}
	rec := &fakeRecorder{}
	p := NewProcessor(gen, nil, nil, rec, nil)

	_, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "hello"}, "req3", nil)
	pe, ok := provider.AsError(err)
	if !ok || pe.Kind != provider.KindParse {
		t.Fatalf("got %v, want parse error", err)
	}
	if len(rec.logs) != 1 || rec.logs[0].Status != "error" {
		t.Errorf("failure not logged: %+v", rec.logs)
	}
}

func TestAnalyzeCoreValidationFailure(t *testing.T) {
	gen := &fakeGenerator{text: `{"intent": "x"}`}
	p := NewProcessor(gen, nil, nil, nil, nil)

	_, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "hello"}, "req4", nil)
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestAnalyzeCustomSchema(t *testing.T) {
	gen := &fakeGenerator{text: `{"sentiment": "positive"}`}
	p := NewProcessor(gen, nil, nil, nil, nil)

	def := map[string]any{
		"type":     "object",
		"required": []any{"sentiment"},
		"properties": map[string]any{
			"sentiment": map[string]any{"type": "string"},
		},
	}
	res, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "great phone", SchemaDefinition: def}, "req5", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Data["sentiment"] != "positive" {
		t.Errorf("sentiment = %v", res.Data["sentiment"])
	}
	if !strings.Contains(gen.lastReq.Prompt, "Custom Schema:") {
		t.Error("custom schema prompt not used")
	}
}

func TestAnalyzeStoredSchemaByName(t *testing.T) {
	gen := &fakeGenerator{text: `{"sentiment": "negative"}`}
	schemas := &fakeSchemas{schema: &store.Schema{
		Name: "sentiment",
		Definition: map[string]any{
			"type":     "object",
			"required": []any{"sentiment"},
		},
	}}
	p := NewProcessor(gen, nil, schemas, nil, nil)

	res, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "bad phone", SchemaName: "sentiment"}, "req6", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Data["sentiment"] != "negative" {
		t.Errorf("sentiment = %v", res.Data["sentiment"])
	}
}

func TestAnalyzeUnknownSchemaName(t *testing.T) {
	p := NewProcessor(&fakeGenerator{}, nil, &fakeSchemas{err: store.ErrSchemaNotFound}, nil, nil)
	_, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "hi", SchemaName: "missing"}, "req7", nil)
	if err == nil {
		t.Fatal("expected error for unknown schema name")
	}
}

const toonCompletion = `intent: translate
subject: greeting
entities:
  key_details [1]: Bonjour
  source: french
  target: english
output_format: text
original_language: fr`

func TestAnalyzeTOONOutput(t *testing.T) {
	gen := &fakeGenerator{text: toonCompletion}
	p := NewProcessor(gen, nil, nil, nil, nil)

	res, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "hello", OutputFormat: FormatTOON}, "req8", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(gen.lastReq.Prompt, "TOON FORMAT RULES") {
		t.Error("prompt does not ask for a TOON completion")
	}
	if res.Data["intent"] != "translate" {
		t.Errorf("intent = %v", res.Data["intent"])
	}
	if res.TOON == "" {
		t.Fatal("toon output missing")
	}
	if !strings.Contains(res.TOON, "intent: translate") {
		t.Errorf("toon output malformed:\n%s", res.TOON)
	}
}

func TestAnalyzeTOONRepairRoundTrip(t *testing.T) {
	// First completion is malformed TOON; the repair round trip returns a
	// valid document.
	gen := &fakeGenerator{queue: []string{"\tintent broken", toonCompletion}}
	p := NewProcessor(gen, nil, nil, nil, nil)

	res, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "hello", OutputFormat: FormatTOON}, "req11", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2 (one repair round trip)", gen.calls)
	}
	if !strings.Contains(gen.lastReq.Prompt, "fix it") {
		t.Error("repair prompt not used on second call")
	}
	if res.Data["intent"] != "translate" {
		t.Errorf("intent = %v", res.Data["intent"])
	}
}

func TestAnalyzeTOONRepairStillBroken(t *testing.T) {
	gen := &fakeGenerator{queue: []string{"\tbroken", "\tstill broken"}}
	p := NewProcessor(gen, nil, nil, nil, nil)

	_, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "hello", OutputFormat: FormatTOON}, "req12", nil)
	pe, ok := provider.AsError(err)
	if !ok || pe.Kind != provider.KindParse {
		t.Fatalf("got %v, want parse error", err)
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want exactly one repair attempt", gen.calls)
	}
}

func TestAnalyzeConfidencePropagated(t *testing.T) {
	withScore := strings.TrimSuffix(strings.TrimSpace(validCompletion), "}") + `, "confidence_score": 0.9}`
	gen := &fakeGenerator{text: withScore}
	p := NewProcessor(gen, nil, nil, nil, nil)

	res, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "hello", WithConfidence: true}, "req9", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Meta.Confidence == nil || *res.Meta.Confidence != 0.9 {
		t.Errorf("confidence = %v", res.Meta.Confidence)
	}
	if !strings.Contains(gen.lastReq.Prompt, "confidence_score") {
		t.Error("confidence instruction missing from prompt")
	}
}

func TestAnalyzeProviderFailureLogged(t *testing.T) {
	gen := &fakeGenerator{err: &provider.Error{Provider: provider.Gemini, Kind: provider.KindUnavailable, Message: "down"}}
	rec := &fakeRecorder{}
	p := NewProcessor(gen, nil, nil, rec, nil)

	_, err := p.Analyze(context.Background(), &AnalyzeRequest{Prompt: "hello"}, "req10", nil)
	if err == nil {
		t.Fatal("expected provider error")
	}
	if len(rec.logs) != 1 || rec.logs[0].Status != "error" {
		t.Errorf("failure not logged: %+v", rec.logs)
	}
}

func ptr(f float64) *float64 { return &f }
func ptrInt(i int) *int      { return &i }
