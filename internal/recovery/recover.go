// Package recovery isolates a JSON object from free-form model output.
package recovery

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// openFenceRe matches an opening code fence and its optional language tag.
	openFenceRe  = regexp.MustCompile("^```[a-zA-Z0-9_-]*[ \t]*\r?\n?")
	closeFenceRe = regexp.MustCompile("\\s*```$")
)

// Recover returns the best JSON-object candidate in raw. It strips code fences,
// trims whitespace, and if the result is not valid JSON takes the text between
// the first '{' and the last '}'. When that span is not valid JSON either, the
// first balanced object that is valid JSON wins. The result is not guaranteed
// to parse.
func Recover(raw string) string {
	s := strings.TrimSpace(StripFences(raw))
	if s == "" || json.Valid([]byte(s)) {
		return s
	}

	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first == -1 || last == -1 || last < first {
		return s
	}
	span := s[first : last+1]
	if json.Valid([]byte(span)) {
		return span
	}
	if obj, ok := firstBalancedObject(s); ok {
		return obj
	}
	return span
}

// StripFences removes a leading fence line and a trailing fence marker.
// Backticks anywhere else are content and stay.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = openFenceRe.ReplaceAllString(s, "")
	s = closeFenceRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// firstBalancedObject scans for '{' ... '}' spans with matching depth, skipping
// braces inside JSON strings, and returns the first one that is valid JSON.
func firstBalancedObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start != -1; {
		if end, ok := matchBrace(s, start); ok {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the '}' closing the '{' at open.
func matchBrace(s string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
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
				return i, true
			}
		}
	}
	return 0, false
}
