package toon

import (
	"fmt"
	"regexp"
	"strings"
)

// Level selects validation strictness.
type Level string

const (
	// LevelStrict enforces full format compliance.
	LevelStrict Level = "strict"
	// LevelLenient downgrades formatting violations to warnings.
	LevelLenient Level = "lenient"
	// LevelBasic reports only critical errors.
	LevelBasic Level = "basic"
)

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Issue is a single validation finding.
type Issue struct {
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Context  string   `json:"context,omitempty"`
}

func (i Issue) String() string {
	s := fmt.Sprintf("Line %d [%s]: %s", i.Line, i.Severity, i.Message)
	if i.Context != "" {
		s += "\n  Context: " + i.Context
	}
	return s
}

// Result collects validation findings for a document.
type Result struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Info     []Issue `json:"info"`
	Valid    bool    `json:"valid"`
}

func (r *Result) addError(line int, message, context string) {
	r.Errors = append(r.Errors, Issue{Line: line, Severity: SeverityError, Message: message, Context: context})
	r.Valid = false
}

func (r *Result) addWarning(line int, message, context string) {
	r.Warnings = append(r.Warnings, Issue{Line: line, Severity: SeverityWarning, Message: message, Context: context})
}

// Summary returns a one-line count of findings.
func (r *Result) Summary() string {
	return fmt.Sprintf("Errors: %d, Warnings: %d, Info: %d", len(r.Errors), len(r.Warnings), len(r.Info))
}

// Validator checks TOON documents for format compliance: indentation,
// array-header syntax, key format, quoting and primitive casing.
type Validator struct {
	Level  Level
	Indent int
}

// NewValidator builds a validator with the given strictness and the default
// two-space indent.
func NewValidator(level Level) *Validator {
	return &Validator{Level: level, Indent: 2}
}

var (
	identKeyRe          = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	primitiveArrayRe    = regexp.MustCompile(`\[#?\d+\]\s*:`)
	tabularArrayRe      = regexp.MustCompile(`\[#?\d+[,\t|]\]`)
	listArrayRe         = regexp.MustCompile(`\[#?\d+\]`)
	malformedBracketsRe = regexp.MustCompile(`\[[^\]]*$`)
)

// Validate checks a TOON document and returns all findings.
func (v *Validator) Validate(doc string) *Result {
	result := &Result{Valid: true}
	indent := v.Indent
	if indent <= 0 {
		indent = 2
	}

	for i, line := range strings.Split(doc, "\n") {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		stripped := strings.TrimSpace(line)

		v.checkIndentation(result, line, lineNo, indent)

		if strings.Contains(stripped, "[") {
			v.checkArrayHeader(result, stripped, lineNo, line)
		}

		if strings.Contains(stripped, ":") && !strings.HasPrefix(stripped, "-") {
			v.checkKeyValue(result, stripped, lineNo, line)
			v.checkQuoting(result, stripped, lineNo, line)
			v.checkTypes(result, stripped, lineNo, line)
		}
	}
	return result
}

// QuickValidate reports only whether the document passes.
func (v *Validator) QuickValidate(doc string) bool {
	return v.Validate(doc).Valid
}

func (v *Validator) checkIndentation(result *Result, line string, lineNo, indent int) {
	leading := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	if strings.ContainsRune(leading, '\t') {
		v.report(result, lineNo, "tabs found in indentation (use spaces)", line)
		return
	}
	if v.Level == LevelStrict && len(leading)%indent != 0 {
		result.addError(lineNo, fmt.Sprintf("indentation not a multiple of %d (found %d)", indent, len(leading)), line)
	}
}

func (v *Validator) checkArrayHeader(result *Result, stripped string, lineNo int, line string) {
	if primitiveArrayRe.MatchString(stripped) || tabularArrayRe.MatchString(stripped) || listArrayRe.MatchString(stripped) {
		return
	}
	if strings.Contains(stripped, "[") && strings.Contains(stripped, "]") {
		result.addError(lineNo, "invalid array header format", line)
		return
	}
	if malformedBracketsRe.MatchString(stripped) {
		result.addError(lineNo, "unclosed array bracket", line)
	}
}

func (v *Validator) checkKeyValue(result *Result, stripped string, lineNo int, line string) {
	key, value, ok := cutKeyValue(stripped)
	if !ok {
		return
	}
	key = strings.TrimSpace(key)
	// Strip any array suffix before judging the key itself.
	if idx := strings.Index(key, "["); idx >= 0 {
		key = strings.TrimSpace(key[:idx])
	}
	switch {
	case key == "":
		v.report(result, lineNo, "empty key", line)
	case !isValidKey(key):
		v.report(result, lineNo, fmt.Sprintf("invalid key format: %s", key), line)
	}
	if value != "" && !looksValidValue(value) {
		if v.Level == LevelStrict {
			result.addError(lineNo, fmt.Sprintf("potentially invalid value: %s", value), line)
		}
	}
}

func (v *Validator) checkQuoting(result *Result, stripped string, lineNo int, line string) {
	if primitiveArrayRe.MatchString(stripped) {
		// Inline arrays are checked cell-by-cell by the decoder, not here.
		return
	}
	_, value, ok := cutKeyValue(stripped)
	if !ok || value == "" {
		return
	}
	if strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) && len(value) >= 2 {
		if !needsQuotes(value[1 : len(value)-1]) {
			result.addWarning(lineNo, fmt.Sprintf("unnecessary quotes on value: %s", value), line)
		}
		return
	}
	if needsQuotes(value) && strings.ContainsAny(value, ",:[") {
		result.addWarning(lineNo, fmt.Sprintf("value may need quotes: %s", value), line)
	}
}

func (v *Validator) checkTypes(result *Result, stripped string, lineNo int, line string) {
	_, value, ok := cutKeyValue(stripped)
	if !ok {
		return
	}
	switch value {
	case "True", "False":
		result.addWarning(lineNo, fmt.Sprintf("boolean should be lowercase: %s", value), line)
	case "None", "NULL", "Null":
		result.addWarning(lineNo, fmt.Sprintf("null should be lowercase: %s", value), line)
	}
}

// report emits an error under strict validation, a warning otherwise.
func (v *Validator) report(result *Result, lineNo int, message, context string) {
	if v.Level == LevelStrict {
		result.addError(lineNo, message, context)
	} else {
		result.addWarning(lineNo, message, context)
	}
}

func isValidKey(key string) bool {
	if key == "" {
		return false
	}
	if strings.HasPrefix(key, `"`) && strings.HasSuffix(key, `"`) {
		return true
	}
	return identKeyRe.MatchString(key)
}

func looksValidValue(value string) bool {
	if strings.HasPrefix(value, "[") && !strings.HasSuffix(value, "]") {
		return false
	}
	return strings.Count(value, `"`)%2 == 0
}

// IsValid is a convenience wrapper validating a document at the given level.
func IsValid(doc string, strict bool) bool {
	level := LevelLenient
	if strict {
		level = LevelStrict
	}
	return NewValidator(level).QuickValidate(doc)
}

// TokenEstimate is a cheap token-count proxy used when no tokenizer is
// available: characters divided by four, rounded up.
func TokenEstimate(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
