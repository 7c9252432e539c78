package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object or array out of a model response that may
// wrap it in prose or a fenced code block. It returns an empty string when
// no JSON can be located; callers treat that as an empty object.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	// Fenced blocks first: models asked for strict JSON usually fence it.
	if strings.Contains(response, "```json") {
		start := strings.Index(response, "```json") + 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}
	if strings.Contains(response, "```") {
		start := strings.Index(response, "```") + 3
		if newline := strings.Index(response[start:], "\n"); newline != -1 {
			start += newline + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			var js interface{}
			if err := json.Unmarshal([]byte(candidate), &js); err == nil {
				return candidate
			}
		}
	}

	if start := strings.Index(response, "{"); start != -1 {
		if end := findMatchingBrace(response[start:], '{', '}'); end != -1 {
			return response[start : start+end+1]
		}
	}
	if start := strings.Index(response, "["); start != -1 {
		if end := findMatchingBrace(response[start:], '[', ']'); end != -1 {
			return response[start : start+end+1]
		}
	}

	var js interface{}
	if err := json.Unmarshal([]byte(response), &js); err == nil {
		return response
	}
	return ""
}

// DecodeJSON extracts and unmarshals a JSON object from a model response
// into dest. Malformed or absent JSON leaves dest untouched and returns
// false; parse problems are never propagated as errors.
func DecodeJSON(response string, dest interface{}) bool {
	raw := ExtractJSON(response)
	if raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), dest) == nil
}

func findMatchingBrace(s string, open, close byte) int {
	if len(s) == 0 || s[0] != open {
		return -1
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
