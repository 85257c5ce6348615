package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DecodeOptions controls TOON decoding.
type DecodeOptions struct {
	// Indent is the number of spaces per nesting level. Defaults to 2.
	Indent int
	// Strict rejects malformed lines instead of skipping them.
	Strict bool
}

func (o DecodeOptions) withDefaults() DecodeOptions {
	if o.Indent <= 0 {
		o.Indent = 2
	}
	return o
}

// DecodeError reports a malformed TOON document.
type DecodeError struct {
	Line    int
	Message string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("toon: line %d: %s", e.Line, e.Message)
	}
	return "toon: " + e.Message
}

// arrayHeaderRe matches "key [N]", "key [N,]", "key [#N,]" and the
// tab/pipe delimiter variants.
var arrayHeaderRe = regexp.MustCompile(`^(.*?)\s*\[(#?)(\d+)([,\t|]?)\]$`)

// Decode parses a TOON document into a map[string]any with typed primitives
// (string, int64, float64, bool, nil).
func Decode(input string, opts DecodeOptions) (map[string]any, error) {
	opts = opts.withDefaults()
	p := &parser{lines: strings.Split(strings.TrimRight(input, "\n"), "\n"), opts: opts}
	obj, err := p.parseObject(0)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

type parser struct {
	lines []string
	pos   int
	opts  DecodeOptions
}

func (p *parser) errf(line int, format string, args ...any) error {
	return &DecodeError{Line: line, Message: fmt.Sprintf(format, args...)}
}

// peek returns the next non-blank line without consuming it, along with its
// indentation. ok is false at end of input.
func (p *parser) peek() (line string, indent int, ok bool) {
	for i := p.pos; i < len(p.lines); i++ {
		if strings.TrimSpace(p.lines[i]) == "" {
			continue
		}
		return p.lines[i], indentOf(p.lines[i]), true
	}
	return "", 0, false
}

func (p *parser) skipBlanks() {
	for p.pos < len(p.lines) && strings.TrimSpace(p.lines[p.pos]) == "" {
		p.pos++
	}
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// parseObject consumes key/value lines at exactly baseIndent and returns the
// resulting object. It stops at the first line with smaller indentation.
func (p *parser) parseObject(baseIndent int) (map[string]any, error) {
	obj := make(map[string]any)
	for {
		p.skipBlanks()
		if p.pos >= len(p.lines) {
			return obj, nil
		}
		line := p.lines[p.pos]
		lineNo := p.pos + 1
		leading := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if p.opts.Strict && strings.ContainsRune(leading, '\t') {
			return nil, p.errf(lineNo, "tabs in indentation")
		}
		indent := indentOf(line)
		if indent < baseIndent {
			return obj, nil
		}
		if indent > baseIndent {
			if p.opts.Strict {
				return nil, p.errf(lineNo, "unexpected indentation %d, expected %d", indent, baseIndent)
			}
			p.pos++
			continue
		}
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "-") {
			// A dash item at this level belongs to an enclosing list.
			return obj, nil
		}

		key, value, hasColon := cutKeyValue(stripped)

		// Array forms carry a "[N]" suffix on the key.
		if m := arrayHeaderRe.FindStringSubmatch(key); m != nil {
			name := strings.TrimSpace(m[1])
			count, _ := strconv.Atoi(m[3])
			delimiter := m[4]
			p.pos++
			switch {
			case hasColon:
				// Inline primitive array: key [N]: a, b, c
				items := parsePrimitiveList(value)
				if p.opts.Strict && len(items) != count {
					return nil, p.errf(lineNo, "array %q declares %d items, found %d", name, count, len(items))
				}
				obj[name] = items
			case delimiter != "":
				items, err := p.parseTabularArray(baseIndent+p.opts.Indent, delimiterRune(delimiter))
				if err != nil {
					return nil, err
				}
				if p.opts.Strict && len(items) != count {
					return nil, p.errf(lineNo, "array %q declares %d rows, found %d", name, count, len(items))
				}
				obj[name] = items
			default:
				items, err := p.parseListArray(baseIndent + p.opts.Indent)
				if err != nil {
					return nil, err
				}
				if p.opts.Strict && len(items) != count {
					return nil, p.errf(lineNo, "array %q declares %d items, found %d", name, count, len(items))
				}
				obj[name] = items
			}
			continue
		}

		if !hasColon {
			if p.opts.Strict {
				return nil, p.errf(lineNo, "expected key: value, got %q", stripped)
			}
			p.pos++
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			if p.opts.Strict {
				return nil, p.errf(lineNo, "empty key")
			}
			p.pos++
			continue
		}
		key = unquote(key)
		p.pos++

		if value == "" {
			// Nested object when the next line is deeper, else empty string.
			if _, nextIndent, ok := p.peek(); ok && nextIndent > baseIndent {
				child, err := p.parseObject(baseIndent + p.opts.Indent)
				if err != nil {
					return nil, err
				}
				obj[key] = child
				continue
			}
			obj[key] = ""
			continue
		}
		obj[key] = ParsePrimitive(value)
	}
}

// parseTabularArray consumes a header row of column names followed by data
// rows, all at rowIndent.
func (p *parser) parseTabularArray(rowIndent int, delim rune) ([]any, error) {
	p.skipBlanks()
	if p.pos >= len(p.lines) || indentOf(p.lines[p.pos]) < rowIndent {
		return []any{}, nil
	}
	headerNo := p.pos + 1
	columns := splitCells(strings.TrimSpace(p.lines[p.pos]), delim)
	if len(columns) == 0 {
		return nil, p.errf(headerNo, "empty tabular header row")
	}
	p.pos++

	items := make([]any, 0)
	for {
		p.skipBlanks()
		if p.pos >= len(p.lines) {
			return items, nil
		}
		line := p.lines[p.pos]
		if indentOf(line) < rowIndent {
			return items, nil
		}
		lineNo := p.pos + 1
		cells := splitCells(strings.TrimSpace(line), delim)
		if len(cells) != len(columns) {
			if p.opts.Strict {
				return nil, p.errf(lineNo, "row has %d cells, header has %d", len(cells), len(columns))
			}
			p.pos++
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = ParsePrimitive(cells[i])
		}
		items = append(items, row)
		p.pos++
	}
}

// parseListArray consumes "- " items at itemIndent. An item may carry its
// first field on the dash line; remaining fields follow at deeper indent.
func (p *parser) parseListArray(itemIndent int) ([]any, error) {
	items := make([]any, 0)
	for {
		p.skipBlanks()
		if p.pos >= len(p.lines) {
			return items, nil
		}
		line := p.lines[p.pos]
		indent := indentOf(line)
		if indent < itemIndent {
			return items, nil
		}
		stripped := strings.TrimSpace(line)
		if !strings.HasPrefix(stripped, "-") {
			return items, nil
		}
		lineNo := p.pos + 1
		rest := strings.TrimSpace(strings.TrimPrefix(stripped, "-"))
		p.pos++

		childIndent := indent + p.opts.Indent
		switch {
		case rest == "":
			child, err := p.parseObject(childIndent)
			if err != nil {
				return nil, err
			}
			items = append(items, child)
		case strings.Contains(rest, ":"):
			// First field inline with the dash.
			key, value, _ := cutKeyValue(rest)
			child, err := p.parseObject(childIndent)
			if err != nil {
				return nil, err
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, p.errf(lineNo, "empty key in list item")
			}
			child[unquote(key)] = ParsePrimitive(value)
			items = append(items, child)
		default:
			items = append(items, ParsePrimitive(rest))
		}
	}
}

// cutKeyValue splits a line on the first colon outside of quotes.
func cutKeyValue(s string) (key, value string, ok bool) {
	inQuotes := false
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ':':
			if !inQuotes {
				return s[:i], strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return s, "", false
}

// ParsePrimitive converts a TOON scalar token to its typed Go value.
func ParsePrimitive(value string) any {
	value = strings.TrimSpace(value)
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value[1 : len(value)-1]
	}
	switch value {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func parsePrimitiveList(value string) []any {
	items := make([]any, 0)
	for _, part := range splitCells(value, ',') {
		if part == "" {
			continue
		}
		items = append(items, ParsePrimitive(part))
	}
	return items
}

// splitCells splits on the delimiter, honoring quoted cells, and trims each.
func splitCells(s string, delim rune) []string {
	var cells []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == delim && !inQuotes:
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	last := strings.TrimSpace(cur.String())
	if last != "" || len(cells) > 0 {
		cells = append(cells, last)
	}
	return cells
}

func delimiterRune(s string) rune {
	if s == "" {
		return ','
	}
	return rune(s[0])
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
