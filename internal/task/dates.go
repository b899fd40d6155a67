package task

import (
	"regexp"
	"strconv"
	"time"
)

// DefaultDateCacheSize bounds the date-string memo cache.
const DefaultDateCacheSize = 1000

var (
	bareDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	epochPattern    = regexp.MustCompile(`^\d{10,13}$`)
)

// dateLayouts are the literal formats accepted beyond a bare calendar
// day. Zone-less layouts are parsed in the local timezone.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// DateCache memoizes date-string parsing with a hard entry ceiling.
// Once the ceiling is reached, further unique strings are parsed but no
// longer cached; the cache never grows past max. It is owned by its
// parser and mutated only on the orchestrating goroutine, so it carries
// no lock.
type DateCache struct {
	max     int
	entries map[string]int64
}

// NewDateCache creates a cache with the given ceiling. A non-positive
// ceiling falls back to the default.
func NewDateCache(max int) *DateCache {
	if max <= 0 {
		max = DefaultDateCacheSize
	}
	return &DateCache{max: max, entries: make(map[string]int64)}
}

// Len returns the current number of cached entries.
func (c *DateCache) Len() int {
	return len(c.entries)
}

// Parse converts a date token into epoch milliseconds. The bool reports
// whether the token was recognized as a date at all.
//
// A bare YYYY-MM-DD is interpreted as a local calendar day. Converting
// through UTC instead would shift the day near midnight in positive
// offset timezones, so the local construction here is a correctness
// requirement, not a style choice.
func (c *DateCache) Parse(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	if ms, ok := c.entries[token]; ok {
		return ms, true
	}
	ms, ok := parseDateUncached(token)
	if !ok {
		return 0, false
	}
	if len(c.entries) < c.max {
		c.entries[token] = ms
	}
	return ms, true
}

func parseDateUncached(token string) (int64, bool) {
	// Numeric epoch input passes through unchanged.
	if epochPattern.MatchString(token) {
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return 0, false
		}
		if len(token) == 10 {
			n *= 1000 // seconds to milliseconds
		}
		return n, true
	}

	if bareDatePattern.MatchString(token) {
		t, err := time.ParseInLocation("2006-01-02", token, time.Local)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	}

	// Full ISO with timezone converts through standard parsing.
	if t, err := time.Parse(time.RFC3339, token); err == nil {
		return t.UnixMilli(), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, token, time.Local); err == nil {
			return t.UnixMilli(), true
		}
	}

	return 0, false
}
