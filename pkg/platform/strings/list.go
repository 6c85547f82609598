// Package strings holds the list cleanup used by config parsing and
// credential payload normalization.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and drops blanks and exact repeats,
// keeping first-seen order.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, func(s string) string { return s })
}

// DedupeFold is DedupeAndTrim with case-insensitive matching. The first
// spelling wins, so []string{"Go", "go"} keeps "Go".
func DedupeFold(values []string) []string {
	return dedupe(values, strings.ToLower)
}

// SplitList parses a comma-separated env value such as
// "broker-1:9092, broker-2:9092".
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(s, ","))
}

func dedupe(values []string, key func(string) string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[key(v)] {
			continue
		}
		seen[key(v)] = true
		out = append(out, v)
	}
	return out
}
