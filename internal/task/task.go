package task

import (
	"fmt"
	"strings"
	"time"
)

// ProjectSource identifies which cascade step produced a resolved project.
type ProjectSource string

const (
	// ProjectFromPath means a path-mapping rule matched the file path
	ProjectFromPath ProjectSource = "path"
	// ProjectFromMetadata means the file's own frontmatter named the project
	ProjectFromMetadata ProjectSource = "metadata"
	// ProjectFromConfig means an ancestor config document named the project
	ProjectFromConfig ProjectSource = "config"
	// ProjectFromDefault means the default naming strategy produced the name
	ProjectFromDefault ProjectSource = "default"
)

// TgProject is a resolved project association with its provenance.
// Resolved projects are derived, not hand-edited, so ReadOnly is always
// true for all four sources. An inline project written on the task line
// itself is never readonly and wins for display.
type TgProject struct {
	Type     ProjectSource `json:"type"`
	Name     string        `json:"name"`
	Source   string        `json:"source"`
	ReadOnly bool          `json:"readonly"`
}

// Metadata is the schema-checked bag attached to a task. Known fields
// are typed; anything else a dialect produced lands in Extra.
// Timestamps are epoch milliseconds, zero meaning unset.
type Metadata struct {
	Due         int64          `json:"due,omitempty"`
	Start       int64          `json:"start,omitempty"`
	Scheduled   int64          `json:"scheduled,omitempty"`
	CompletedAt int64          `json:"completedAt,omitempty"`
	CreatedAt   int64          `json:"createdAt,omitempty"`
	Priority    int            `json:"priority,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Project     string         `json:"project,omitempty"`
	Context     string         `json:"context,omitempty"`
	Area        string         `json:"area,omitempty"`
	Recurrence  string         `json:"recurrence,omitempty"`
	Parent      string         `json:"parent,omitempty"`
	Children    []string       `json:"children,omitempty"`
	Resolved    *TgProject     `json:"resolvedProject,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// HasTag reports membership in the tag set. Insertion order is kept for
// rendering but is irrelevant for membership.
func (m *Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DisplayProject returns the project shown to the user: an inline value
// always beats the resolved one.
func (m *Metadata) DisplayProject() string {
	if m.Project != "" {
		return m.Project
	}
	if m.Resolved != nil {
		return m.Resolved.Name
	}
	return ""
}

// Task is one actionable item extracted from a source line, canvas node
// or frontmatter field.
type Task struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	FilePath     string   `json:"filePath"`
	Line         int      `json:"line"`
	NodeID       string   `json:"nodeId,omitempty"`
	Completed    bool     `json:"completed"`
	Status       rune     `json:"status"`
	OriginalText string   `json:"originalText"`
	Metadata     Metadata `json:"metadata"`
}

// LineID derives the deterministic id for a line-anchored task.
func LineID(filePath string, line int) string {
	return fmt.Sprintf("%s#L%d", filePath, line)
}

// NodeLineID derives the deterministic id for a task inside a canvas node.
func NodeLineID(filePath, nodeID string, line int) string {
	return fmt.Sprintf("%s#%s:L%d", filePath, nodeID, line)
}

// DayKey buckets an epoch-millisecond timestamp by local calendar day.
// Returns "" for the zero (unset) timestamp.
func DayKey(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02")
}

// Clone returns a deep copy of the task. Updates replace whole records,
// so callers mutate a clone and hand it back to the cache.
func (t *Task) Clone() *Task {
	c := *t
	c.Metadata.Tags = append([]string(nil), t.Metadata.Tags...)
	c.Metadata.Children = append([]string(nil), t.Metadata.Children...)
	if t.Metadata.Resolved != nil {
		r := *t.Metadata.Resolved
		c.Metadata.Resolved = &r
	}
	if t.Metadata.Extra != nil {
		c.Metadata.Extra = make(map[string]any, len(t.Metadata.Extra))
		for k, v := range t.Metadata.Extra {
			c.Metadata.Extra[k] = v
		}
	}
	return &c
}

// StatusString renders the status as it appears inside the bracket.
func (t *Task) StatusString() string {
	return string(t.Status)
}

// Validate checks structural invariants on a parsed task.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id cannot be empty")
	}
	if t.FilePath == "" && t.NodeID == "" {
		return fmt.Errorf("task %s has no source", t.ID)
	}
	if t.Metadata.Priority < 0 || t.Metadata.Priority > 5 {
		return fmt.Errorf("task %s priority out of range: %d", t.ID, t.Metadata.Priority)
	}
	for _, tag := range t.Metadata.Tags {
		if strings.ContainsAny(tag, " \t") {
			return fmt.Errorf("task %s has malformed tag %q", t.ID, tag)
		}
	}
	return nil
}
