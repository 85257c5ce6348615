package prompt

import "strings"

// toonFormatRules instructs the model on the TOON wire format when the
// caller asks for TOON output instead of JSON.
const toonFormatRules = `CRITICAL: You MUST respond ONLY in TOON (Token-Oriented Object Notation) format, NOT JSON.

TOON FORMAT RULES:
1. Use "key: value" pairs with 2-space indentation for nesting. No braces or brackets except array length indicators.
2. Every array carries its length:
   - Primitive array: key [N]: val1, val2, val3
   - Tabular array (uniform objects, preferred):
       key [N,]
         header1, header2
         val1, val2
   - List array (nested objects):
       key [N]
         - property: value
3. Quote a string only when it is empty, a reserved word (true/false/null), looks like a number, has edge whitespace, or contains special characters. Otherwise leave it unquoted.`

// ForTOONOutput rewrites a JSON meta-prompt so the model answers in TOON.
func ForTOONOutput(basePrompt string) string {
	rewritten := strings.ReplaceAll(basePrompt, "structured JSON object", "structured TOON document")
	rewritten = strings.ReplaceAll(rewritten,
		"Respond ONLY with the generated JSON object. Do not include any other text or formatting.",
		"Respond ONLY with the generated TOON document. Do not include any other text or formatting.")
	return toonFormatRules + "\n\n" + rewritten
}

// BuildTOONFixPrompt asks the model to repair an invalid TOON document.
func BuildTOONFixPrompt(invalidTOON, errorMessage string) string {
	var b strings.Builder
	b.WriteString("The previous TOON output had an error. Please fix it according to TOON format rules.\n\n")
	b.WriteString("Error: ")
	b.WriteString(errorMessage)
	b.WriteString("\n\nInvalid output:\n")
	b.WriteString(invalidTOON)
	b.WriteString("\n\n")
	b.WriteString(toonFormatRules)
	b.WriteString("\n\nRespond ONLY with the corrected TOON document.")
	return b.String()
}
