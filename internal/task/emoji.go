package task

// Emoji dialect token tables. The mapping is fixed: each marker binds
// the date (or value) that follows it to one metadata field.

// dateField identifies which timestamp field a date token feeds.
type dateField int

const (
	fieldDue dateField = iota
	fieldStart
	fieldScheduled
	fieldCompletedAt
	fieldCreatedAt
)

// emojiDateMarkers in deterministic scan order. Order does not affect
// the result (extraction is order-independent) but keeps tests stable.
var emojiDateMarkers = []struct {
	Marker string
	Field  dateField
}{
	{"📅", fieldDue},
	{"🛫", fieldStart},
	{"⏳", fieldScheduled},
	{"✅", fieldCompletedAt},
	{"➕", fieldCreatedAt},
}

// emojiPriorities maps the five-level priority emoji set.
var emojiPriorities = []struct {
	Marker   string
	Priority int
}{
	{"🔺", 5},
	{"⏫", 4},
	{"🔼", 3},
	{"🔽", 2},
	{"⏬", 1},
}

// recurrenceMarker introduces a recurrence rule ("🔁 every week").
const recurrenceMarker = "🔁"

func setDateField(md *Metadata, f dateField, ms int64) {
	switch f {
	case fieldDue:
		md.Due = ms
	case fieldStart:
		md.Start = ms
	case fieldScheduled:
		md.Scheduled = ms
	case fieldCompletedAt:
		md.CompletedAt = ms
	case fieldCreatedAt:
		md.CreatedAt = ms
	}
}

// isEmojiMarker reports whether content at offset i begins any known
// emoji metadata marker. Used to terminate recurrence capture.
func isEmojiMarker(content string, i int) bool {
	for _, m := range emojiDateMarkers {
		if hasPrefixAt(content, i, m.Marker) {
			return true
		}
	}
	for _, m := range emojiPriorities {
		if hasPrefixAt(content, i, m.Marker) {
			return true
		}
	}
	return hasPrefixAt(content, i, recurrenceMarker)
}

func hasPrefixAt(s string, i int, prefix string) bool {
	return i+len(prefix) <= len(s) && s[i:i+len(prefix)] == prefix
}
