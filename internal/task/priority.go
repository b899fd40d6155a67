package task

import (
	"strconv"
	"strings"
)

// priorityWords is the fixed vocabulary for priority normalization.
// Higher is more urgent.
var priorityWords = map[string]int{
	"highest":   5,
	"urgent":    5,
	"critical":  5,
	"high":      4,
	"important": 4,
	"medium":    3,
	"normal":    3,
	"moderate":  3,
	"low":       2,
	"minor":     2,
	"lowest":    1,
	"trivial":   1,
}

// ParsePriority normalizes a priority token to its 1-5 integer form.
// Accepts a literal integer, a numeric string, or a vocabulary word.
// The bool reports whether a conversion applied; callers keep the
// original value untouched when it did not.
func ParsePriority(token string) (int, bool) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= 5 {
			return n, true
		}
		return 0, false
	}
	if n, ok := priorityWords[strings.ToLower(trimmed)]; ok {
		return n, true
	}
	return 0, false
}
