package ai

import (
	"fmt"
	"strings"
)

// Model output is untrusted text that usually, but not always, contains
// the JSON we asked for. ExtractJSON applies the fallback chain once,
// here, instead of inlining it at every call site: strip code fences,
// accept the payload as-is, otherwise cut out the first balanced JSON
// object or array.
func ExtractJSON(content string) (string, error) {
	s := StripFences(strings.TrimSpace(content))

	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s, nil
	}

	if obj, ok := firstBalanced(s, '{', '}'); ok {
		return obj, nil
	}
	if arr, ok := firstBalanced(s, '[', ']'); ok {
		return arr, nil
	}

	return "", fmt.Errorf("no JSON payload in model output")
}

// StripFences removes a surrounding markdown code fence, with or
// without a language tag.
func StripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line (```json).
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// firstBalanced returns the first balanced open..close region of s,
// ignoring brackets inside JSON strings.
func firstBalanced(s string, open, close rune) (string, bool) {
	start := strings.IndexRune(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i, r := range s[start:] {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == open:
			depth++
		case r == close:
			depth--
			if depth == 0 {
				return s[start : start+i+1], true
			}
		}
	}
	return "", false
}
