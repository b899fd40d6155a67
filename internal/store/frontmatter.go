package store

import (
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// SplitFrontmatter extracts the YAML frontmatter block from document
// content. Returns the parsed map (nil when absent), the remaining
// content, and any parse error. An unclosed or malformed block is an
// error; callers at the resolution boundary degrade it to "no
// frontmatter" and move on.
func SplitFrontmatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, "---\n") {
		return nil, content, nil
	}

	rest := content[4:]

	// Closing delimiter directly after the opening one: empty block.
	if strings.HasPrefix(rest, "---\n") {
		return map[string]any{}, rest[4:], nil
	}
	if rest == "---" {
		return map[string]any{}, "", nil
	}

	end := strings.Index(rest, "\n---\n")
	var body, remaining string
	switch {
	case end >= 0:
		body = rest[:end]
		remaining = rest[end+5:]
	case strings.HasSuffix(rest, "\n---"):
		body = rest[:len(rest)-4]
		remaining = ""
	default:
		return nil, content, errors.New("unclosed frontmatter block")
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(body), &fm); err != nil {
		return nil, content, errors.Wrap(err, "parsing frontmatter")
	}
	return fm, remaining, nil
}

// StringValue coerces a frontmatter value to a string, the common case
// for project names and status markers.
func StringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case nil:
		return "", false
	default:
		return "", false
	}
}
