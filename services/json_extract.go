package services

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject finds the first balanced {...} object in raw that parses as
// JSON. Code fences, a leading "json" tag and surrounding prose are ignored.
func ExtractJSONObject(raw string) (string, bool) {
	s := stripFence(strings.TrimSpace(raw))
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// stripFence drops a leading ``` line, a trailing ``` line and a "json" tag.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 2 {
		if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
			lines = lines[:len(lines)-1]
		}
		s = strings.Join(lines[1:], "\n")
	} else {
		s = strings.TrimPrefix(lines[0], "```")
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "json") {
		s = strings.TrimSpace(s[len("json"):])
	}
	return s
}

// matchBrace returns the index of the brace closing s[start], honoring JSON
// string literals and escapes, or -1 when the object is unterminated.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
