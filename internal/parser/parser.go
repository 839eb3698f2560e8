// Package parser extracts structured decisions from raw model output. Models
// wrap their payloads in thinking tags, code fences or prose; extraction
// tries the compact tabular format first, then JSON, in decreasing order of
// strictness.
package parser

import (
	"encoding/json"
	"regexp"
)

var (
	thinkRe        = regexp.MustCompile(`(?s)<think>.*?</think>`)
	compactFenceRe = regexp.MustCompile("(?s)```(?:toon)?\\s*([A-Za-z_][A-Za-z0-9_]*\\[.*?\\])\\s*```")
	jsonFenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	braceRe        = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	bareCompactRe  = regexp.MustCompile(`(?s)([A-Za-z_][A-Za-z0-9_]*\[.*?\])`)
)

// Parse extracts the first decodable structured payload from model text.
// Thinking segments are stripped before any extraction attempt. On total
// failure it returns a sentinel record carrying the raw text; callers must
// check IsError before using the result.
func Parse(text string) map[string]any {
	clean := thinkRe.ReplaceAllString(text, "")

	if m := compactFenceRe.FindStringSubmatch(clean); m != nil {
		if doc, err := DecodeCompact(m[1]); err == nil {
			return doc
		}
	}

	if m := jsonFenceRe.FindStringSubmatch(clean); m != nil {
		if doc := decodeJSONObject(m[1]); doc != nil {
			return doc
		}
		if doc, err := DecodeCompact(m[1]); err == nil {
			return doc
		}
	}

	if m := braceRe.FindString(clean); m != "" {
		if doc := decodeJSONObject(m); doc != nil {
			return doc
		}
		if doc, err := DecodeCompact(m); err == nil {
			return doc
		}
	}

	if m := bareCompactRe.FindStringSubmatch(clean); m != nil {
		if doc, err := DecodeCompact(m[1]); err == nil {
			return doc
		}
	}

	return map[string]any{
		"error":    "could not parse structured data",
		"raw_text": text,
	}
}

// IsError reports whether a Parse result is the failure sentinel.
func IsError(result map[string]any) bool {
	_, failed := result["error"]
	return failed
}

func decodeJSONObject(s string) map[string]any {
	var doc map[string]any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil
	}
	return doc
}
