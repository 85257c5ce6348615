package prompt

import (
	"strings"
	"testing"
)

func TestBuildMetaPromptEmbedsUserInput(t *testing.T) {
	p := BuildMetaPrompt("Translate 'Bonjour' to English")
	if !strings.Contains(p, `"Translate 'Bonjour' to English"`) {
		t.Error("user prompt not embedded")
	}
	for _, field := range []string{"intent", "subject", "entities", "key_details", "output_format", "original_language"} {
		if !strings.Contains(p, `"`+field+`"`) {
			t.Errorf("schema field %q missing from prompt", field)
		}
	}
	if !strings.Contains(p, "Respond ONLY with the generated JSON object") {
		t.Error("response directive missing")
	}
	if !strings.Contains(p, "Language Detection") {
		t.Error("language detection instructions missing")
	}
}

func TestBuildCustomSchemaPrompt(t *testing.T) {
	schema := map[string]any{"sentiment": "positive, neutral, or negative"}
	p := BuildCustomSchemaPrompt("great product", schema)
	if !strings.Contains(p, "Custom Schema:") {
		t.Error("custom schema header missing")
	}
	if !strings.Contains(p, `"sentiment"`) {
		t.Error("custom field missing")
	}
	if strings.Contains(p, `"intent"`) {
		t.Error("core schema leaked into custom prompt")
	}
}

func TestBuildBatchPromptNumbersInputs(t *testing.T) {
	p := BuildBatchPrompt([]string{"first", "second"}, nil)
	if !strings.Contains(p, `1. "first"`) || !strings.Contains(p, `2. "second"`) {
		t.Error("prompts not numbered")
	}
	if !strings.Contains(p, "JSON array") {
		t.Error("array directive missing")
	}
}

func TestAddConfidenceScoringInsertsBeforeDirective(t *testing.T) {
	base := BuildMetaPrompt("hello")
	enhanced := AddConfidenceScoring(base)
	scoreIdx := strings.Index(enhanced, "confidence_score")
	directiveIdx := strings.Index(enhanced, "Respond ONLY")
	if scoreIdx == -1 {
		t.Fatal("confidence instruction missing")
	}
	if scoreIdx > directiveIdx {
		t.Error("confidence instruction must come before the response directive")
	}
	// A prompt without the directive passes through unchanged.
	if got := AddConfidenceScoring("no directive here"); got != "no directive here" {
		t.Errorf("unexpected rewrite: %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```toon\nintent: translate\n```", "intent: translate"},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{`{"a": 1}`, `{"a": 1}`},
		{"  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tc := range cases {
		if got := ExtractJSON(tc.in); got != tc.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatSchemaSortsKeys(t *testing.T) {
	a := formatSchema(map[string]any{"b": "2", "a": "1"}, 0)
	if strings.Index(a, `"a"`) > strings.Index(a, `"b"`) {
		t.Error("keys not sorted")
	}
}

func TestForTOONOutput(t *testing.T) {
	p := ForTOONOutput(BuildMetaPrompt("hello"))
	if !strings.Contains(p, "TOON FORMAT RULES") {
		t.Error("format rules missing")
	}
	if !strings.Contains(p, "Respond ONLY with the generated TOON document") {
		t.Error("directive not rewritten for TOON")
	}
	if strings.Contains(p, "Respond ONLY with the generated JSON object") {
		t.Error("JSON directive left behind")
	}
}
