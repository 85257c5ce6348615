package schema

import (
	"strings"
	"testing"
)

func validResult() map[string]any {
	return map[string]any{
		"intent":  "translation",
		"subject": "product description",
		"entities": map[string]any{
			"key_details": []any{"500ml", "stainless steel"},
			"source":      "english",
			"target":      "german",
		},
		"output_format":     "text",
		"original_language": "en",
	}
}

func TestValidatePrompt(t *testing.T) {
	if err := ValidatePrompt("translate this to German"); err != nil {
		t.Errorf("valid prompt rejected: %v", err)
	}
	if err := ValidatePrompt("   "); err == nil {
		t.Error("blank prompt should be rejected")
	}
	if err := ValidatePrompt(strings.Repeat("a", MaxPromptLength+1)); err == nil {
		t.Error("oversized prompt should be rejected")
	}
	injections := []string{
		`hello <script>alert(1)</script>`,
		`click javascript:alert(1)`,
		`<img onerror=alert(1) src=x>`,
		`data:text/html,<h1>x</h1>`,
	}
	for _, p := range injections {
		if err := ValidatePrompt(p); err == nil {
			t.Errorf("injection not caught: %q", p)
		}
	}
}

func TestValidateTemperature(t *testing.T) {
	for _, ok := range []float64{0, 0.7, 2} {
		if err := ValidateTemperature(ok); err != nil {
			t.Errorf("temperature %g rejected: %v", ok, err)
		}
	}
	for _, bad := range []float64{-0.1, 2.01} {
		if err := ValidateTemperature(bad); err == nil {
			t.Errorf("temperature %g should be rejected", bad)
		}
	}
}

func TestValidateMaxTokens(t *testing.T) {
	if err := ValidateMaxTokens(0); err != nil {
		t.Errorf("zero (provider default) rejected: %v", err)
	}
	if err := ValidateMaxTokens(50); err != nil {
		t.Errorf("lower bound rejected: %v", err)
	}
	if err := ValidateMaxTokens(49); err == nil {
		t.Error("below lower bound should be rejected")
	}
	if err := ValidateMaxTokens(8001); err == nil {
		t.Error("above upper bound should be rejected")
	}
}

func TestValidateCacheTTL(t *testing.T) {
	for _, ok := range []int{0, 3600, 86400} {
		if err := ValidateCacheTTL(ok); err != nil {
			t.Errorf("ttl %d rejected: %v", ok, err)
		}
	}
	for _, bad := range []int{-1, 86401} {
		if err := ValidateCacheTTL(bad); err == nil {
			t.Errorf("ttl %d should be rejected", bad)
		}
	}
}

func TestValidateMetadata(t *testing.T) {
	if err := ValidateMetadata(map[string]string{"env": "prod", "team_id": "42"}); err != nil {
		t.Errorf("valid metadata rejected: %v", err)
	}
	if err := ValidateMetadata(map[string]string{"bad key": "x"}); err == nil {
		t.Error("key with space should be rejected")
	}
	big := make(map[string]string)
	for i := 0; i <= MaxMetadataKeys; i++ {
		big["k"+strings.Repeat("x", i+1)] = "v"
	}
	if err := ValidateMetadata(big); err == nil {
		t.Error("too many keys should be rejected")
	}
}

func TestValidateLanguage(t *testing.T) {
	for _, ok := range []string{"", "en", "de", "ja"} {
		if err := ValidateLanguage(ok); err != nil {
			t.Errorf("language %q rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"EN", "eng", "e"} {
		if err := ValidateLanguage(bad); err == nil {
			t.Errorf("language %q should be rejected", bad)
		}
	}
}

func TestValidateCore(t *testing.T) {
	if err := ValidateCore(validResult()); err != nil {
		t.Fatalf("valid result rejected: %v", err)
	}

	missing := validResult()
	delete(missing, "intent")
	if err := ValidateCore(missing); err == nil {
		t.Error("missing intent should be rejected")
	}

	badEntities := validResult()
	badEntities["entities"] = "not an object"
	if err := ValidateCore(badEntities); err == nil {
		t.Error("string entities should be rejected")
	}

	badDetails := validResult()
	badDetails["entities"].(map[string]any)["key_details"] = "not a list"
	if err := ValidateCore(badDetails); err == nil {
		t.Error("non-array key_details should be rejected")
	}

	badLang := validResult()
	badLang["original_language"] = "english"
	if err := ValidateCore(badLang); err == nil {
		t.Error("non-ISO language should be rejected")
	}
}

func TestSanitizeStripsMarkup(t *testing.T) {
	dirty := map[string]any{
		"subject": `hello<script>alert("x")</script> world`,
		"entities": map[string]any{
			"key_details": []any{"<b>bold</b>", "plain"},
		},
		"count": float64(3),
	}
	clean := Sanitize(dirty)
	if got := clean["subject"]; got != "hello world" {
		t.Errorf("subject = %q", got)
	}
	details := clean["entities"].(map[string]any)["key_details"].([]any)
	if details[0] != "bold" || details[1] != "plain" {
		t.Errorf("key_details = %v", details)
	}
	if clean["count"] != float64(3) {
		t.Errorf("non-string value altered: %v", clean["count"])
	}
}

func TestConfidenceClamped(t *testing.T) {
	if _, ok := Confidence(map[string]any{}); ok {
		t.Error("absent confidence should report false")
	}
	if score, ok := Confidence(map[string]any{"confidence_score": 0.85}); !ok || score != 0.85 {
		t.Errorf("got (%g, %v)", score, ok)
	}
	if score, _ := Confidence(map[string]any{"confidence_score": 1.5}); score != 1 {
		t.Errorf("overshoot not clamped: %g", score)
	}
}

func TestCompileAndValidateAgainst(t *testing.T) {
	def := map[string]any{
		"type":     "object",
		"required": []any{"sentiment"},
		"properties": map[string]any{
			"sentiment": map[string]any{
				"type": "string",
				"enum": []any{"positive", "neutral", "negative"},
			},
		},
	}
	compiled, err := Compile(def)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if err := ValidateAgainst(compiled, map[string]any{"sentiment": "positive"}); err != nil {
		t.Errorf("valid instance rejected: %v", err)
	}
	if err := ValidateAgainst(compiled, map[string]any{"sentiment": "meh"}); err == nil {
		t.Error("enum violation should be rejected")
	}
	if err := ValidateAgainst(compiled, map[string]any{}); err == nil {
		t.Error("missing required field should be rejected")
	}
}

func TestCompileRejectsMalformedSchema(t *testing.T) {
	_, err := Compile(map[string]any{"type": 42})
	if err == nil {
		t.Fatal("malformed schema should fail compilation")
	}
}

func TestValidateAgainstNilFallsBackToCore(t *testing.T) {
	if err := ValidateAgainst(nil, validResult()); err != nil {
		t.Errorf("core fallback rejected valid result: %v", err)
	}
}
