package memory

import "strings"

// Record is one stored memory entry. Modules validate their required fields
// on Store; everything else is free-form and survives persistence as-is.
type Record map[string]any

// ID returns the record id, or "" when the record has none yet.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Clone returns a copy of the record. Nested values are shared; callers that
// mutate nested structures must copy them first.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func stringField(r Record, key string) string {
	s, _ := r[key].(string)
	return s
}

// floatField reads a numeric field. Snapshots round-trip numbers as either
// int or float64 depending on the backend codec, so both are accepted.
func floatField(r Record, key string, def float64) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func intField(r Record, key string, def int) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// stringList coerces a field value into a string slice. Non-list values and
// non-string elements yield nil/skips, so callers can range without checks.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
