// Package toon implements the Token-Oriented Object Notation wire format.
//
// TOON is a line-oriented representation of JSON-like data designed to cut
// LLM token usage: key/value pairs without braces, indentation for nesting,
// and tabular arrays that emit uniform objects as a header row plus data
// rows. A document like
//
//	intent: extract
//	contacts [2,]
//	  name, email
//	  Alice, alice@example.com
//	  Bob, bob@example.com
//
// carries the same information as its JSON equivalent in roughly half the
// tokens.
package toon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EncodeOptions controls TOON encoding.
type EncodeOptions struct {
	// Delimiter separates tabular cells. Defaults to ",".
	Delimiter string
	// Indent is the number of spaces per nesting level. Defaults to 2.
	Indent int
	// LengthMarker prefixes array lengths with '#'.
	LengthMarker bool
}

func (o EncodeOptions) withDefaults() EncodeOptions {
	if o.Delimiter == "" {
		o.Delimiter = ","
	}
	if o.Indent <= 0 {
		o.Indent = 2
	}
	return o
}

// Encode converts a JSON-like value (map[string]any, []any, primitives) to a
// TOON document. Map keys are emitted in sorted order so output is stable.
func Encode(data any, opts EncodeOptions) string {
	opts = opts.withDefaults()
	var lines []string
	encodeValue(&lines, data, 0, opts)
	return strings.Join(lines, "\n")
}

func encodeValue(lines *[]string, value any, level int, opts EncodeOptions) {
	prefix := strings.Repeat(" ", opts.Indent*level)

	switch v := value.(type) {
	case map[string]any:
		for _, key := range sortedKeys(v) {
			encodeField(lines, prefix, key, v[key], level, opts)
		}
	case []any:
		// Top-level array: emit elements in sequence.
		for _, item := range v {
			encodeValue(lines, item, level, opts)
		}
	default:
		*lines = append(*lines, prefix+formatPrimitive(value))
	}
}

func encodeField(lines *[]string, prefix, key string, val any, level int, opts EncodeOptions) {
	inner := strings.Repeat(" ", opts.Indent)
	marker := ""
	if opts.LengthMarker {
		marker = "#"
	}

	switch fv := val.(type) {
	case map[string]any:
		*lines = append(*lines, fmt.Sprintf("%s%s:", prefix, key))
		encodeValue(lines, fv, level+1, opts)

	case []any:
		if len(fv) > 0 {
			if cols, ok := tabularColumns(fv); ok {
				// Tabular array: header row then one row per object.
				*lines = append(*lines, fmt.Sprintf("%s%s [%s%d%s]", prefix, key, marker, len(fv), opts.Delimiter))
				*lines = append(*lines, prefix+inner+strings.Join(cols, opts.Delimiter+" "))
				for _, item := range fv {
					obj := item.(map[string]any)
					cells := make([]string, len(cols))
					for i, col := range cols {
						cells[i] = formatPrimitive(obj[col])
					}
					*lines = append(*lines, prefix+inner+strings.Join(cells, opts.Delimiter+" "))
				}
				return
			}
			if _, anyObject := fv[0].(map[string]any); anyObject {
				// List array: non-uniform objects, one dash item each.
				*lines = append(*lines, fmt.Sprintf("%s%s [%s%d]", prefix, key, marker, len(fv)))
				for _, item := range fv {
					*lines = append(*lines, prefix+inner+"-")
					encodeValue(lines, item, level+2, opts)
				}
				return
			}
		}
		// Primitive array, inline.
		cells := make([]string, len(fv))
		for i, item := range fv {
			cells[i] = formatPrimitive(item)
		}
		*lines = append(*lines, fmt.Sprintf("%s%s [%s%d]: %s", prefix, key, marker, len(fv), strings.Join(cells, ", ")))

	default:
		*lines = append(*lines, fmt.Sprintf("%s%s: %s", prefix, key, formatPrimitive(val)))
	}
}

// tabularColumns reports whether every element is an object with the same key
// set of primitive values, returning the sorted column names when so.
func tabularColumns(items []any) ([]string, bool) {
	first, ok := items[0].(map[string]any)
	if !ok {
		return nil, false
	}
	cols := sortedKeys(first)
	for _, item := range items {
		obj, okObj := item.(map[string]any)
		if !okObj || len(obj) != len(cols) {
			return nil, false
		}
		for _, col := range cols {
			val, present := obj[col]
			if !present {
				return nil, false
			}
			switch val.(type) {
			case map[string]any, []any:
				return nil, false
			}
		}
	}
	return cols, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatPrimitive renders a primitive value for TOON output. Strings are
// quoted only when required by the format.
func formatPrimitive(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		if needsQuotes(v) {
			return `"` + v + `"`
		}
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// needsQuotes reports whether a string must be quoted in TOON: empty strings,
// reserved words, number lookalikes, surrounding whitespace, or structural
// characters.
func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	if s == "true" || s == "false" || s == "null" {
		return true
	}
	if c := s[0]; (c >= '0' && c <= '9') || c == '+' || c == '-' {
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return true
		}
	}
	if s != strings.TrimSpace(s) {
		return true
	}
	return strings.ContainsAny(s, ":[],-\n\r\t")
}
