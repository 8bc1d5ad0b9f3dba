// Package aijson extracts JSON objects from free-form model output.
//
// Prompts ask for bare JSON, but models still wrap objects in prose or use
// single quotes. Extraction is deliberately permissive: callers treat a
// failed parse as "no result" and substitute their own fallback.
package aijson

import (
	"encoding/json"
	"strings"
)

// Extract returns the first-{ to last-} substring of text, or "" when no
// object candidate exists.
func Extract(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// Unmarshal decodes the first JSON object embedded in text into v.
// On a strict-decode failure it retries once with single quotes replaced by
// double quotes. Returns false when no object could be decoded; v is then
// left untouched by the failed attempts' partial state only if decoding
// never started, so callers should pass a zero value.
func Unmarshal(text string, v any) bool {
	candidate := Extract(text)
	if candidate == "" {
		return false
	}
	if json.Unmarshal([]byte(candidate), v) == nil {
		return true
	}
	return json.Unmarshal([]byte(strings.ReplaceAll(candidate, "'", `"`)), v) == nil
}
