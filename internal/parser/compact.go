package parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotCompact means the text does not look like a compact tabular document.
var ErrNotCompact = errors.New("not a compact document")

var (
	listHeaderRe  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d*)\]:\s*(.*)$`)
	tableHeaderRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d*)\]\{([^}]*)\}:\s*$`)
	scalarLineRe  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*):\s*(.*)$`)
	inlineListRe  = regexp.MustCompile(`(?s)^([A-Za-z_][A-Za-z0-9_]*)\[(.*)\]$`)
)

// DecodeCompact parses the token-oriented tabular format some models emit
// instead of JSON. Three line shapes are understood:
//
//	key[3]: a,b,c          inline scalar list
//	key[2]{f1,f2}:         table header, rows follow indented
//	key: value             scalar field
//
// A whole document may also be the single token `key[a,b,c]`. Row counts in
// brackets are advisory and not enforced.
func DecodeCompact(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if m := inlineListRe.FindStringSubmatch(text); m != nil && !strings.Contains(m[2], "\n") && !allDigits(m[2]) {
		cells := splitFields(m[2])
		items := make([]any, 0, len(cells))
		for _, cell := range cells {
			items = append(items, coerceScalar(cell))
		}
		return map[string]any{m[1]: items}, nil
	}

	lines := strings.Split(text, "\n")
	doc := make(map[string]any)

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isIndented(line) {
			return nil, ErrNotCompact
		}
		trimmed := strings.TrimSpace(line)

		if m := tableHeaderRe.FindStringSubmatch(trimmed); m != nil {
			fields := splitFields(m[3])
			var rows []any
			for i+1 < len(lines) && isIndented(lines[i+1]) {
				i++
				cells := splitFields(lines[i])
				row := make(map[string]any, len(fields))
				for j, field := range fields {
					if j < len(cells) {
						row[field] = coerceScalar(cells[j])
					}
				}
				rows = append(rows, row)
			}
			doc[m[1]] = rows
			continue
		}

		if m := listHeaderRe.FindStringSubmatch(trimmed); m != nil {
			cells := splitFields(m[3])
			items := make([]any, 0, len(cells))
			for _, cell := range cells {
				items = append(items, coerceScalar(cell))
			}
			doc[m[1]] = items
			continue
		}

		if m := scalarLineRe.FindStringSubmatch(trimmed); m != nil {
			doc[m[1]] = coerceScalar(m[2])
			continue
		}

		return nil, ErrNotCompact
	}

	if len(doc) == 0 {
		return nil, ErrNotCompact
	}
	return doc, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

func splitFields(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func coerceScalar(s string) any {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
