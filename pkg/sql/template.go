// Package sql emulates parameter binding for datasources that cannot bind
// values at the transport level. Statements are parsed into literal fragments
// and named slots, and slots are replaced by quoted literals in one pass.
package sql

import (
	"strings"
)

type segment struct {
	text string // literal SQL, or the slot name when slot is set
	slot bool
}

// Template is SQL text split into literal fragments and named :param slots.
type Template struct {
	segments []segment
}

// Parse splits sqlText into a Template. A slot is a ':' followed by a letter
// or underscore and then letters, digits or underscores. Nothing inside
// single-quoted strings, double-quoted identifiers, or comments is treated
// as a slot, and a '::' cast is kept as literal text.
func Parse(sqlText string) *Template {
	t := &Template{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	n := len(sqlText)
	for i := 0; i < n; {
		ch := sqlText[i]
		switch {
		case ch == '\'' || ch == '"':
			end := skipQuoted(sqlText, i, ch)
			lit.WriteString(sqlText[i:end])
			i = end
		case ch == '-' && i+1 < n && sqlText[i+1] == '-':
			end := strings.IndexByte(sqlText[i:], '\n')
			if end < 0 {
				end = n
			} else {
				end = i + end + 1
			}
			lit.WriteString(sqlText[i:end])
			i = end
		case ch == '/' && i+1 < n && sqlText[i+1] == '*':
			end := strings.Index(sqlText[i+2:], "*/")
			if end < 0 {
				end = n
			} else {
				end = i + 2 + end + 2
			}
			lit.WriteString(sqlText[i:end])
			i = end
		case ch == ':' && i+1 < n && sqlText[i+1] == ':':
			lit.WriteString("::")
			i += 2
		case ch == ':' && i+1 < n && isNameStart(sqlText[i+1]):
			j := i + 2
			for j < n && isNamePart(sqlText[j]) {
				j++
			}
			flush()
			t.segments = append(t.segments, segment{text: sqlText[i+1 : j], slot: true})
			i = j
		default:
			lit.WriteByte(ch)
			i++
		}
	}
	flush()
	return t
}

// skipQuoted returns the index just past the quoted run that starts at
// start. A doubled quote character is an escape and does not end the run.
// An unterminated run extends to the end of the text.
func skipQuoted(s string, start int, q byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// Names returns the slot names in order of first appearance.
func (t *Template) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for _, seg := range t.segments {
		if seg.slot && !seen[seg.text] {
			seen[seg.text] = true
			names = append(names, seg.text)
		}
	}
	return names
}

// HasSlots reports whether the template contains any slot.
func (t *Template) HasSlots() bool {
	for _, seg := range t.segments {
		if seg.slot {
			return true
		}
	}
	return false
}

// Render replaces every slot found in values with its rendered literal.
// Slots without a value are written back as ':name' and returned in missing.
// Replacement text is never re-scanned for slots.
func (t *Template) Render(values map[string]string) (out string, missing []string) {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, seg := range t.segments {
		if !seg.slot {
			b.WriteString(seg.text)
			continue
		}
		if lit, ok := values[seg.text]; ok {
			b.WriteString(lit)
			continue
		}
		b.WriteByte(':')
		b.WriteString(seg.text)
		if !seen[seg.text] {
			seen[seg.text] = true
			missing = append(missing, seg.text)
		}
	}
	return b.String(), missing
}

// String reassembles the original SQL text.
func (t *Template) String() string {
	out, _ := t.Render(nil)
	return out
}

// ExtractParameters returns the :param names used in sqlText, deduplicated,
// in order of first appearance.
//
// Example:
//
//	params := ExtractParameters("SELECT * FROM orders WHERE customer = :customer AND total > :min")
//	// params == []string{"customer", "min"}
func ExtractParameters(sqlText string) []string {
	return Parse(sqlText).Names()
}

// FindParametersInStringLiterals reports :param tokens that appear inside
// single-quoted string literals. Such tokens are never substituted, which is
// usually a mistake in hand-written conditions.
//
// Example:
//
//	problems := FindParametersInStringLiterals("SELECT * FROM t WHERE note = 'hi :name'")
//	// problems == []string{"name"}
func FindParametersInStringLiterals(sqlText string) []string {
	var problems []string
	seen := make(map[string]bool)

	for i := 0; i < len(sqlText); {
		if sqlText[i] != '\'' {
			i++
			continue
		}
		end := skipQuoted(sqlText, i, '\'')
		contentEnd := end
		if end > i+1 && sqlText[end-1] == '\'' {
			contentEnd = end - 1
		}
		content := sqlText[i+1 : contentEnd]
		for _, name := range slotsInText(content) {
			if !seen[name] {
				seen[name] = true
				problems = append(problems, name)
			}
		}
		i = end
	}
	return problems
}

// slotsInText finds :name tokens in raw text without any quote tracking.
func slotsInText(s string) []string {
	var names []string
	for i := 0; i < len(s); i++ {
		if s[i] != ':' || i+1 >= len(s) || !isNameStart(s[i+1]) {
			continue
		}
		if i > 0 && s[i-1] == ':' {
			continue
		}
		j := i + 2
		for j < len(s) && isNamePart(s[j]) {
			j++
		}
		names = append(names, s[i+1:j])
		i = j - 1
	}
	return names
}
