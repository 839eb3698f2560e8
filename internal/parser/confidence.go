package parser

import (
	"regexp"
	"strings"
)

var confidenceNumRe = regexp.MustCompile(`0\.\d+|\d+\.\d+`)

// ParseConfidence coerces a model-reported confidence into [0,1]. Strings
// get numeric extraction first, then a textual bucket fallback; anything
// unparseable yields 0.5.
func ParseConfidence(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return clampUnit(v)
	case int:
		return clampUnit(float64(v))
	case string:
		if m := confidenceNumRe.FindString(v); m != "" {
			return clampUnit(parseFloatOr(m, 0.5))
		}
		switch {
		case strings.Contains(strings.ToLower(v), "high"):
			return 0.9
		case strings.Contains(strings.ToLower(v), "medium"):
			return 0.6
		case strings.Contains(strings.ToLower(v), "low"):
			return 0.3
		}
	}
	return 0.5
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func parseFloatOr(s string, fallback float64) float64 {
	if v, ok := coerceScalar(s).(float64); ok {
		return v
	}
	return fallback
}
