package schema

import (
	"regexp"
	"strings"
)

// coreRequiredFields are the top-level keys every analysis result must
// carry when no custom schema is in play.
var coreRequiredFields = []string{"intent", "subject", "entities", "output_format", "original_language"}

var entityRequiredFields = []string{"key_details", "source", "target"}

// ValidateCore checks an analysis result against the built-in output shape.
func ValidateCore(data map[string]any) error {
	for _, field := range coreRequiredFields {
		if _, ok := data[field]; !ok {
			return &ValidationError{Field: field, Message: "missing required field"}
		}
	}
	for _, field := range []string{"intent", "subject", "output_format", "original_language"} {
		if _, ok := data[field].(string); !ok {
			return &ValidationError{Field: field, Message: "must be a string"}
		}
	}
	entities, ok := data["entities"].(map[string]any)
	if !ok {
		return &ValidationError{Field: "entities", Message: "must be an object"}
	}
	for _, field := range entityRequiredFields {
		if _, ok := entities[field]; !ok {
			return &ValidationError{Field: "entities." + field, Message: "missing required field"}
		}
	}
	if _, ok := entities["key_details"].([]any); !ok {
		return &ValidationError{Field: "entities.key_details", Message: "must be an array"}
	}
	if lang, _ := data["original_language"].(string); lang != "" && !languageRe.MatchString(lang) {
		return &ValidationError{Field: "original_language", Message: "must be a two-letter ISO 639-1 code"}
	}
	return nil
}

var sanitizeRes = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<\s*script[^>]*>.*?<\s*/\s*script\s*>`),
	regexp.MustCompile(`(?i)<[^>]+>`),
	regexp.MustCompile(`(?i)javascript\s*:`),
}

// Sanitize strips markup and protocol handlers from every string value in
// the result, recursing through nested objects and arrays.
func Sanitize(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return sanitizeString(val)
	case map[string]any:
		return Sanitize(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

func sanitizeString(s string) string {
	for _, re := range sanitizeRes {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// Confidence reads the optional confidence score out of a result, clamping
// it into [0, 1].
func Confidence(data map[string]any) (float64, bool) {
	raw, ok := data["confidence_score"]
	if !ok {
		return 0, false
	}
	score, ok := raw.(float64)
	if !ok {
		return 0, false
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, true
}
