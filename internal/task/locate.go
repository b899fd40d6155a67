package task

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Location identifies the exact line to mutate within a source
// document. Line is a 0-based index into the scanned text: the whole
// document for line-oriented sources, or the owning node's text for
// canvas documents.
type Location struct {
	Line   int
	NodeID string
}

var linePrefixPattern = regexp.MustCompile(`^(\s*[-*+] )\[(.)\] (.*)$`)

// Locate finds the line that produced the original task. Disambiguation
// rule: a candidate whose full original line text matches exactly wins
// outright over candidates matching only on stripped content. Any
// residual ambiguity (zero candidates, or more than one equally
// specific candidate) is reported as not-found rather than guessed at.
func (p *Parser) Locate(original *Task, source string) (Location, error) {
	if original.NodeID != "" {
		c, err := ParseCanvas([]byte(source))
		if err != nil {
			return Location{}, err
		}
		node, err := c.Node(original.NodeID)
		if err != nil {
			return Location{}, err
		}
		line, err := p.locateInLines(original, strings.Split(node.Text, "\n"))
		if err != nil {
			return Location{}, err
		}
		return Location{Line: line, NodeID: original.NodeID}, nil
	}

	line, err := p.locateInLines(original, strings.Split(source, "\n"))
	if err != nil {
		return Location{}, err
	}
	return Location{Line: line}, nil
}

func (p *Parser) locateInLines(original *Task, lines []string) (int, error) {
	var exact, stripped []int

	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if line == strings.TrimRight(original.OriginalText, "\r") {
			exact = append(exact, i)
			continue
		}
		t, err := p.ParseLine(line)
		if err != nil || t == nil {
			continue
		}
		if t.Status == original.Status && t.Content == original.Content {
			stripped = append(stripped, i)
		}
	}

	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		return 0, errors.Wrapf(ErrTaskNotFound, "%d identical lines match", len(exact))
	case len(stripped) == 1:
		return stripped[0], nil
	case len(stripped) > 1:
		return 0, errors.Wrapf(ErrTaskNotFound, "%d similar lines match, none exactly", len(stripped))
	default:
		return 0, errors.Wrap(ErrTaskNotFound, "no line matches")
	}
}

// Apply rewrites the located line to reflect the updated task, leaving
// every other line byte-identical. For canvas documents the rewritten
// node is re-encoded into the envelope; edges and other nodes pass
// through untouched.
func (p *Parser) Apply(loc Location, updated *Task, source string) (string, error) {
	if loc.NodeID != "" {
		c, err := ParseCanvas([]byte(source))
		if err != nil {
			return "", err
		}
		node, err := c.Node(loc.NodeID)
		if err != nil {
			return "", err
		}
		lines := strings.Split(node.Text, "\n")
		if loc.Line < 0 || loc.Line >= len(lines) {
			return "", errors.Wrapf(ErrTaskNotFound, "line %d out of range", loc.Line)
		}
		rewritten, err := p.rewriteLine(lines[loc.Line], updated)
		if err != nil {
			return "", err
		}
		lines[loc.Line] = rewritten
		node.Text = strings.Join(lines, "\n")
		out, err := c.Marshal()
		if err != nil {
			return "", errors.Wrap(err, "encoding canvas")
		}
		return string(out), nil
	}

	lines := strings.Split(source, "\n")
	if loc.Line < 0 || loc.Line >= len(lines) {
		return "", errors.Wrapf(ErrTaskNotFound, "line %d out of range", loc.Line)
	}
	rewritten, err := p.rewriteLine(lines[loc.Line], updated)
	if err != nil {
		return "", err
	}
	lines[loc.Line] = rewritten
	return strings.Join(lines, "\n"), nil
}

// Update is the combined locate-and-apply path used by write-back.
func (p *Parser) Update(original, updated *Task, source string) (string, error) {
	loc, err := p.Locate(original, source)
	if err != nil {
		return "", err
	}
	return p.Apply(loc, updated, source)
}

// rewriteLine rebuilds the matched line from the updated record,
// keeping the original indent and bullet prefix.
func (p *Parser) rewriteLine(line string, updated *Task) (string, error) {
	m := linePrefixPattern.FindStringSubmatch(line)
	if m == nil {
		return "", errors.Wrap(ErrTaskNotFound, "matched line is not a task line")
	}
	prefix := m[1]
	return fmt.Sprintf("%s[%c] %s", prefix, updated.Status, p.renderBody(updated)), nil
}

// renderBody serializes content plus metadata tokens in the active
// dialect. Token order is fixed so repeated rewrites are stable.
func (p *Parser) renderBody(t *Task) string {
	parts := []string{t.Content}
	md := &t.Metadata

	for _, tag := range md.Tags {
		parts = append(parts, "#"+tag)
	}
	if md.Context != "" {
		parts = append(parts, p.opts.ContextSigil+md.Context)
	}
	if md.Area != "" && p.opts.AreaPrefix != "" {
		parts = append(parts, "#"+p.opts.AreaPrefix+md.Area)
	}

	if p.opts.Dialect == DialectBracket {
		if md.Project != "" {
			parts = append(parts, fmt.Sprintf("[project:: %s]", md.Project))
		}
		if md.Priority != 0 {
			parts = append(parts, fmt.Sprintf("[priority:: %d]", md.Priority))
		}
		if md.Recurrence != "" {
			parts = append(parts, fmt.Sprintf("[repeat:: %s]", md.Recurrence))
		}
		if md.CreatedAt != 0 {
			parts = append(parts, fmt.Sprintf("[created:: %s]", renderDay(md.CreatedAt)))
		}
		if md.Start != 0 {
			parts = append(parts, fmt.Sprintf("[start:: %s]", renderDay(md.Start)))
		}
		if md.Scheduled != 0 {
			parts = append(parts, fmt.Sprintf("[scheduled:: %s]", renderDay(md.Scheduled)))
		}
		if md.Due != 0 {
			parts = append(parts, fmt.Sprintf("[due:: %s]", renderDay(md.Due)))
		}
		if md.CompletedAt != 0 {
			parts = append(parts, fmt.Sprintf("[completion:: %s]", renderDay(md.CompletedAt)))
		}
		// Unknown keys round-trip untouched. Sorted so repeated
		// rewrites are stable.
		extraKeys := make([]string, 0, len(md.Extra))
		for k := range md.Extra {
			extraKeys = append(extraKeys, k)
		}
		sort.Strings(extraKeys)
		for _, k := range extraKeys {
			parts = append(parts, fmt.Sprintf("[%s:: %v]", k, md.Extra[k]))
		}
	} else {
		if md.Project != "" && p.opts.ProjectPrefix != "" {
			parts = append(parts, "#"+p.opts.ProjectPrefix+md.Project)
		}
		if md.Priority != 0 {
			for _, pm := range emojiPriorities {
				if pm.Priority == md.Priority {
					parts = append(parts, pm.Marker)
					break
				}
			}
		}
		if md.Recurrence != "" {
			parts = append(parts, recurrenceMarker+" "+md.Recurrence)
		}
		if md.CreatedAt != 0 {
			parts = append(parts, "➕ "+renderDay(md.CreatedAt))
		}
		if md.Start != 0 {
			parts = append(parts, "🛫 "+renderDay(md.Start))
		}
		if md.Scheduled != 0 {
			parts = append(parts, "⏳ "+renderDay(md.Scheduled))
		}
		if md.Due != 0 {
			parts = append(parts, "📅 "+renderDay(md.Due))
		}
		if md.CompletedAt != 0 {
			parts = append(parts, "✅ "+renderDay(md.CompletedAt))
		}
	}

	return strings.Join(parts, " ")
}

func renderDay(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02")
}
