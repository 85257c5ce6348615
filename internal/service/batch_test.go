package service

import (
	"context"
	"strings"
	"testing"

	"github.com/structured-prompt/promptsvc/internal/provider"
)

const batchCompletion = `[
	{"intent": "translate", "subject": "greeting", "entities": {"key_details": [], "source": "fr", "target": "en"}, "output_format": "text", "original_language": "fr"},
	{"intent": "summarize", "subject": "report", "entities": {"key_details": [], "source": "", "target": ""}, "output_format": "text", "original_language": "en"}
]`

func TestAnalyzeBatch(t *testing.T) {
	gen := &fakeGenerator{text: batchCompletion}
	p := NewProcessor(gen, nil, nil, nil, nil)

	res, err := p.AnalyzeBatch(context.Background(), &BatchRequest{Prompts: []string{"translate bonjour", "summarize the report"}})
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if res.BatchID == "" {
		t.Error("batch id missing")
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	if res.Items[0].Data["intent"] != "translate" || res.Items[1].Data["intent"] != "summarize" {
		t.Errorf("items out of order: %+v", res.Items)
	}
	if !strings.Contains(gen.lastReq.Prompt, `1. "translate bonjour"`) {
		t.Error("batch prompt not numbered")
	}
}

func TestAnalyzeBatchEntryCountMismatch(t *testing.T) {
	gen := &fakeGenerator{text: `[{"intent": "x"}]`}
	p := NewProcessor(gen, nil, nil, nil, nil)

	_, err := p.AnalyzeBatch(context.Background(), &BatchRequest{Prompts: []string{"one", "two"}})
	pe, ok := provider.AsError(err)
	if !ok || pe.Kind != provider.KindParse {
		t.Fatalf("got %v, want parse error", err)
	}
}

func TestAnalyzeBatchPerItemValidation(t *testing.T) {
	// Second entry misses required core fields; the batch still succeeds
	// with a per-item error.
	partial := `[
		{"intent": "translate", "subject": "greeting", "entities": {"key_details": [], "source": "", "target": ""}, "output_format": "text", "original_language": "fr"},
		{"intent": "broken"}
	]`
	p := NewProcessor(&fakeGenerator{text: partial}, nil, nil, nil, nil)

	res, err := p.AnalyzeBatch(context.Background(), &BatchRequest{Prompts: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if res.Items[0].Error != "" || res.Items[0].Data == nil {
		t.Errorf("first item should pass: %+v", res.Items[0])
	}
	if res.Items[1].Error == "" || res.Items[1].Data != nil {
		t.Errorf("second item should fail validation: %+v", res.Items[1])
	}
}

func TestAnalyzeBatchRejectsEmptyAndOversized(t *testing.T) {
	p := NewProcessor(&fakeGenerator{}, nil, nil, nil, nil)

	if _, err := p.AnalyzeBatch(context.Background(), &BatchRequest{}); err == nil {
		t.Error("empty batch should be rejected")
	}
	big := make([]string, MaxBatchSize+1)
	for i := range big {
		big[i] = "prompt"
	}
	if _, err := p.AnalyzeBatch(context.Background(), &BatchRequest{Prompts: big}); err == nil {
		t.Error("oversized batch should be rejected")
	}
}
