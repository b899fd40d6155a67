package task

import (
	"sort"
	"strconv"
	"strings"
)

// Operator is a per-filter comparison.
type Operator string

const (
	OpEquals   Operator = "eq"
	OpNotEqual Operator = "ne"
	OpContains Operator = "contains"
	OpBefore   Operator = "before"
	OpAfter    Operator = "after"
	OpEmpty    Operator = "empty"
	OpNotEmpty Operator = "not-empty"
)

// Conjunction joins the filter list.
type Conjunction string

const (
	ConjAnd Conjunction = "and"
	ConjOr  Conjunction = "or"
)

// Filter is one predicate over a task field. Field names: id, file,
// content, status, completed, priority, project, context, area, tag,
// due, start, scheduled, recurrence.
type Filter struct {
	Field string
	Op    Operator
	Value string
}

// SortKey orders results by one field.
type SortKey struct {
	Field      string
	Descending bool
}

// Query is an ordered filter list plus sort criteria. Ties are broken
// by insertion order into the cache.
type Query struct {
	Conjunction Conjunction
	Filters     []Filter
	Sorts       []SortKey
}

// Query evaluates filters then sorts. An empty filter list matches
// everything.
func (c *Cache) Query(q Query) []*Task {
	conj := q.Conjunction
	if conj == "" {
		conj = ConjAnd
	}

	var results []*Task
	for _, t := range c.tasks {
		if matchesAll(t, q.Filters, conj) {
			results = append(results, t)
		}
	}

	// Insertion order first so later sort criteria break ties stably.
	sort.Slice(results, func(i, j int) bool {
		return c.order[results[i].ID] < c.order[results[j].ID]
	})

	if len(q.Sorts) > 0 {
		sort.SliceStable(results, func(i, j int) bool {
			for _, s := range q.Sorts {
				cmp := compareField(results[i], results[j], s.Field)
				if cmp == 0 {
					continue
				}
				if s.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	return results
}

func matchesAll(t *Task, filters []Filter, conj Conjunction) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		ok := matchFilter(t, f)
		if conj == ConjOr && ok {
			return true
		}
		if conj != ConjOr && !ok {
			return false
		}
	}
	return conj != ConjOr
}

func matchFilter(t *Task, f Filter) bool {
	switch f.Field {
	case "completed":
		want := strings.EqualFold(f.Value, "true")
		if f.Op == OpNotEqual {
			return t.Completed != want
		}
		return t.Completed == want
	case "priority":
		return matchInt(t.Metadata.Priority, f)
	case "due":
		return matchDate(t.Metadata.Due, f)
	case "start":
		return matchDate(t.Metadata.Start, f)
	case "scheduled":
		return matchDate(t.Metadata.Scheduled, f)
	case "tag":
		return matchTag(t.Metadata.Tags, f)
	case "project":
		return matchString(t.Metadata.DisplayProject(), f)
	case "context":
		return matchString(t.Metadata.Context, f)
	case "area":
		return matchString(t.Metadata.Area, f)
	case "file":
		return matchString(t.FilePath, f)
	case "content":
		return matchString(t.Content, f)
	case "status":
		return matchString(t.StatusString(), f)
	case "id":
		return matchString(t.ID, f)
	case "recurrence":
		return matchString(t.Metadata.Recurrence, f)
	default:
		return false
	}
}

func matchString(v string, f Filter) bool {
	switch f.Op {
	case OpEquals:
		return v == f.Value
	case OpNotEqual:
		return v != f.Value
	case OpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(f.Value))
	case OpEmpty:
		return v == ""
	case OpNotEmpty:
		return v != ""
	default:
		return false
	}
}

func matchTag(tags []string, f Filter) bool {
	switch f.Op {
	case OpEquals:
		for _, tag := range tags {
			if tag == f.Value {
				return true
			}
		}
		return false
	case OpNotEqual:
		for _, tag := range tags {
			if tag == f.Value {
				return false
			}
		}
		return true
	case OpContains:
		for _, tag := range tags {
			if strings.Contains(strings.ToLower(tag), strings.ToLower(f.Value)) {
				return true
			}
		}
		return false
	case OpEmpty:
		return len(tags) == 0
	case OpNotEmpty:
		return len(tags) > 0
	default:
		return false
	}
}

func matchInt(v int, f Filter) bool {
	switch f.Op {
	case OpEmpty:
		return v == 0
	case OpNotEmpty:
		return v != 0
	}
	want, err := strconv.Atoi(f.Value)
	if err != nil {
		return false
	}
	switch f.Op {
	case OpEquals:
		return v == want
	case OpNotEqual:
		return v != want
	case OpBefore:
		return v < want
	case OpAfter:
		return v > want
	default:
		return false
	}
}

func matchDate(ms int64, f Filter) bool {
	switch f.Op {
	case OpEmpty:
		return ms == 0
	case OpNotEmpty:
		return ms != 0
	}
	want, ok := parseDateUncached(f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEquals:
		return DayKey(ms) == DayKey(want)
	case OpNotEqual:
		return DayKey(ms) != DayKey(want)
	case OpBefore:
		return ms != 0 && ms < want
	case OpAfter:
		return ms != 0 && ms > want
	default:
		return false
	}
}

// compareField returns -1, 0 or 1 for the given sort field.
func compareField(a, b *Task, field string) int {
	switch field {
	case "priority":
		return compareInt(a.Metadata.Priority, b.Metadata.Priority)
	case "due":
		return compareInt64(a.Metadata.Due, b.Metadata.Due)
	case "start":
		return compareInt64(a.Metadata.Start, b.Metadata.Start)
	case "scheduled":
		return compareInt64(a.Metadata.Scheduled, b.Metadata.Scheduled)
	case "completed":
		return compareBool(a.Completed, b.Completed)
	case "line":
		return compareInt(a.Line, b.Line)
	case "project":
		return strings.Compare(a.Metadata.DisplayProject(), b.Metadata.DisplayProject())
	case "file":
		return strings.Compare(a.FilePath, b.FilePath)
	case "content":
		return strings.Compare(a.Content, b.Content)
	default:
		return 0
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	switch {
	case !a && b:
		return -1
	case a && !b:
		return 1
	default:
		return 0
	}
}
