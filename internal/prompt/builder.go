// Package prompt constructs the meta-prompts sent to the providers and
// cleans up their responses.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// coreSchema describes the default extraction shape. Each value documents
// the field for the model; the response must mirror the keys.
var coreSchema = map[string]any{
	"intent":  "The primary action the user wants to perform (e.g., 'create', 'analyze', 'translate').",
	"subject": "The main topic or object of the intent (e.g., 'a website', 'sales data', 'the sentence `Bonjour`').",
	"entities": map[string]any{
		"key_details": []any{"A list of specific details, constraints, or parameters mentioned."},
		"source":      "The origin of the data or subject, if mentioned.",
		"target":      "The destination or desired outcome, if mentioned.",
	},
	"output_format":     "The desired format for the final result (e.g., 'JSON', 'a 3-bullet summary').",
	"original_language": "The detected two-letter language code of the primary subject or text to be processed, NOT the language of the instructions. (e.g., 'en', 'es', 'fr').",
}

const languageDetectionInstructions = `**Important Instructions for Language Detection:**
- For the "original_language" field, you MUST identify the language of the main subject or the text that is being acted upon.
- Do NOT use the language of the instructions. For example, if the prompt is "Translate 'Bonjour' to English", the original_language is 'fr', not 'en'.`

// BuildMetaPrompt produces the extraction prompt for a user input using the
// default schema.
func BuildMetaPrompt(userPrompt string) string {
	return strings.TrimSpace(fmt.Sprintf(`Analyze the following user prompt and extract the information into a structured JSON object.
Adhere strictly to the schema below. The keys must be in English.

%s

JSON Schema:
%s

User Prompt:
%q

Respond ONLY with the generated JSON object. Do not include any other text or formatting.`,
		languageDetectionInstructions, formatSchema(coreSchema, 0), userPrompt))
}

// BuildCustomSchemaPrompt produces the extraction prompt for a
// client-supplied schema.
func BuildCustomSchemaPrompt(userPrompt string, schema map[string]any) string {
	return strings.TrimSpace(fmt.Sprintf(`Analyze the following user prompt and extract the information according to the custom schema provided below.
Adhere strictly to this schema. Return valid JSON.

Custom Schema:
%s

User Prompt:
%q

Respond ONLY with the generated JSON object matching the schema. Do not include any other text or formatting.`,
		formatSchema(schema, 0), userPrompt))
}

// BuildBatchPrompt produces one prompt covering several inputs; the model
// answers with a JSON array in input order.
func BuildBatchPrompt(prompts []string, schema map[string]any) string {
	if len(schema) == 0 {
		schema = coreSchema
	}
	var list strings.Builder
	for i, p := range prompts {
		fmt.Fprintf(&list, "%d. %q\n", i+1, p)
	}
	return strings.TrimSpace(fmt.Sprintf(`Analyze the following user prompts and extract information for each into structured JSON objects.
Each response should adhere to the schema below.

%s

JSON Schema (apply to each prompt):
%s

User Prompts:
%s

Respond with a JSON array where each element corresponds to one prompt in order.
Do not include any other text or formatting.`,
		languageDetectionInstructions, formatSchema(schema, 0), strings.TrimRight(list.String(), "\n")))
}

// AddConfidenceScoring asks the model for a confidence_score field. The
// instruction lands just before the final response directive so it reads as
// part of the task.
func AddConfidenceScoring(basePrompt string) string {
	const instruction = `Additionally, include a "confidence_score" field (0.0 to 1.0) indicating your confidence in the extraction accuracy.`
	before, after, found := strings.Cut(basePrompt, "Respond ONLY")
	if !found {
		return basePrompt
	}
	return before + instruction + "\n\nRespond ONLY" + after
}

// ExtractJSON strips markdown code fences from a model response.
func ExtractJSON(responseText string) string {
	cleaned := strings.TrimSpace(responseText)
	if rest, ok := strings.CutPrefix(cleaned, "```json"); ok {
		cleaned = rest
	} else if rest, ok := strings.CutPrefix(cleaned, "```toon"); ok {
		cleaned = rest
	} else if rest, ok := strings.CutPrefix(cleaned, "```"); ok {
		cleaned = rest
	} else {
		return cleaned
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// formatSchema renders a schema as indented JSON-like text for prompt
// embedding. Keys are sorted for stable output.
func formatSchema(schema any, indent int) string {
	pad := strings.Repeat("  ", indent)
	switch val := schema.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := []string{"{"}
		for i, k := range keys {
			comma := ","
			if i == len(keys)-1 {
				comma = ""
			}
			lines = append(lines, fmt.Sprintf("%s  %q: %s%s", pad, k, formatSchema(val[k], indent+1), comma))
		}
		lines = append(lines, pad+"}")
		return strings.Join(lines, "\n")
	case []any:
		if len(val) == 0 {
			return "[]"
		}
		lines := []string{"["}
		for i, item := range val {
			comma := ","
			if i == len(val)-1 {
				comma = ""
			}
			lines = append(lines, fmt.Sprintf("%s  %s%s", pad, formatSchema(item, indent+1), comma))
		}
		lines = append(lines, pad+"]")
		return strings.Join(lines, "\n")
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprint(val)
	}
}
