// Package frontmatter extracts the flat key/value header from command
// documents.
//
// A header is opened by a first line of exactly "---" and closed by the next
// line that is exactly "---" (surrounding whitespace ignored). Inside the
// header each "key: value" line contributes one field. The parser never
// fails: malformed or unterminated headers degrade to whatever fields were
// found, so one broken document cannot take a whole catalog down.
package frontmatter

import (
	"strings"
	"unicode"
)

// Sentinel delimits the header block.
const Sentinel = "---"

// Document is the parser output. It is transient and never persisted.
type Document struct {
	Fields map[string]string
	Body   string
}

// Get returns a field value, or "" when absent.
func (d Document) Get(key string) string {
	return d.Fields[key]
}

type scanState int

const (
	stateBeforeHeader scanState = iota
	stateInHeader
	stateInBody
)

// Parse splits content into header fields and body.
//
// Duplicate keys keep their first value. If the closing sentinel is missing
// the collected fields are still returned but Body is the full input.
func Parse(content string) Document {
	doc := Document{Fields: map[string]string{}, Body: content}

	state := stateBeforeHeader
	rest := content
	for state != stateInBody {
		line, next, more := cutLine(rest)

		switch state {
		case stateBeforeHeader:
			if strings.TrimSpace(line) != Sentinel {
				return doc
			}
			state = stateInHeader

		case stateInHeader:
			if strings.TrimSpace(line) == Sentinel {
				doc.Body = next
				state = stateInBody
				continue
			}
			if key, value, ok := parseField(line); ok {
				if _, seen := doc.Fields[key]; !seen {
					doc.Fields[key] = value
				}
			}
		}

		if !more {
			// Unterminated header: keep fields, body stays the original text.
			return doc
		}
		rest = next
	}

	return doc
}

// cutLine returns the first line of s (without its terminator), the
// remainder after the terminator, and whether a terminator was found.
func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, rest, found
}

// parseField matches `key: value` where key starts with a word character and
// continues with word characters or hyphens. The value keeps everything after
// the colon except leading whitespace.
func parseField(line string) (string, string, bool) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return "", "", false
	}
	key := line[:colon]
	for i, r := range key {
		if isWordChar(r) {
			continue
		}
		if i > 0 && r == '-' {
			continue
		}
		return "", "", false
	}
	value := strings.TrimLeftFunc(line[colon+1:], unicode.IsSpace)
	return key, value, true
}

func isWordChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
