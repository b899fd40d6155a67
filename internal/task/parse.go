package task

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// MaxFileSize is the maximum allowed size for a source document (10MB).
const MaxFileSize = 10 * 1024 * 1024

// Dialect selects which metadata grammar the parser recognizes. The two
// dialects are mutually exclusive.
type Dialect int

const (
	// DialectEmoji uses fixed emoji markers (📅 2024-01-15, ⏫, 🔁 every week)
	DialectEmoji Dialect = iota
	// DialectBracket uses inline [key::value] fields
	DialectBracket
)

// Limits are the hard iteration ceilings applied while parsing a line.
// Malformed or adversarial input hits a ceiling and degrades to a
// non-fatal parse error for that unit instead of unbounded work.
type Limits struct {
	MaxParseIterations int `yaml:"max_parse_iterations"`
	MaxMetadataScans   int `yaml:"max_metadata_scans"`
	MaxTagLength       int `yaml:"max_tag_length"`
	MaxStackDepth      int `yaml:"max_stack_depth"`
}

// DefaultLimits returns the standard ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxParseIterations: 4000,
		MaxMetadataScans:   100,
		MaxTagLength:       100,
		MaxStackDepth:      30,
	}
}

// Options configures a Parser.
type Options struct {
	Dialect          Dialect
	CompletedMarkers string // status chars that mean completed
	ProjectPrefix    string // tag prefix redirected to the project field
	AreaPrefix       string // tag prefix redirected to the area field
	ContextSigil     string // sigil introducing a context token
	Limits           Limits
	DateCacheSize    int
}

// DefaultOptions returns the parser defaults: emoji dialect, x/X as
// completed markers, #project/ and #area/ prefixes, @ contexts.
func DefaultOptions() Options {
	return Options{
		Dialect:          DialectEmoji,
		CompletedMarkers: "xX",
		ProjectPrefix:    "project/",
		AreaPrefix:       "area/",
		ContextSigil:     "@",
		Limits:           DefaultLimits(),
		DateCacheSize:    DefaultDateCacheSize,
	}
}

var (
	checkboxPattern = regexp.MustCompile(`^(\s*)[-*+] \[(.)\] (.*)$`)
	bracketPattern  = regexp.MustCompile(`\[([A-Za-z][A-Za-z0-9_-]*)::\s*([^\]]*)\]`)
	tagPattern      = regexp.MustCompile(`#([^\s#]+)`)
)

// Parser converts task-bearing lines into Task records. It owns its
// date cache; construct one per goroutine that parses.
type Parser struct {
	opts  Options
	dates *DateCache
}

// NewParser creates a parser, filling unset options with defaults.
func NewParser(opts Options) *Parser {
	if opts.CompletedMarkers == "" {
		opts.CompletedMarkers = "xX"
	}
	if opts.ContextSigil == "" {
		opts.ContextSigil = "@"
	}
	if opts.Limits.MaxParseIterations == 0 {
		opts.Limits = DefaultLimits()
	}
	return &Parser{
		opts:  opts,
		dates: NewDateCache(opts.DateCacheSize),
	}
}

// Options returns the parser's configuration.
func (p *Parser) Options() Options {
	return p.opts
}

// Dates exposes the parser's date cache for callers that normalize
// metadata outside of line parsing.
func (p *Parser) Dates() *DateCache {
	return p.dates
}

// FileResult aggregates one unit of content: the tasks it produced and
// the per-line errors that were skipped over.
type FileResult struct {
	Path   string
	Tasks  []*Task
	Errors []ParseError
}

// ParseLine converts one line into a Task. Lines that are not outline
// checkboxes return (nil, nil); that is not an error. The returned task
// has no file anchoring yet - ParseContent fills path, line and id.
func (p *Parser) ParseLine(line string) (*Task, error) {
	m := checkboxPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}

	status := []rune(m[2])[0]
	body := m[3]

	budget := p.opts.Limits.MaxParseIterations
	md := Metadata{}

	var content string
	var err error
	switch p.opts.Dialect {
	case DialectBracket:
		content, err = p.extractBrackets(body, &md, &budget)
	default:
		content, err = p.extractEmoji(body, &md, &budget)
	}
	if err != nil {
		return nil, err
	}

	content, err = p.extractTags(content, &md, &budget)
	if err != nil {
		return nil, err
	}
	content, err = p.extractContexts(content, &md, &budget)
	if err != nil {
		return nil, err
	}

	return &Task{
		Content:      collapseSpaces(content),
		Completed:    strings.ContainsRune(p.opts.CompletedMarkers, status),
		Status:       status,
		OriginalText: line,
		Metadata:     md,
	}, nil
}

// ParseContent parses a whole line-oriented document. Per-line failures
// are collected as non-fatal errors; parsing continues with the next
// line. Hierarchy is inferred from indentation: a task is the child of
// the nearest preceding task at a strictly lower indent.
func (p *Parser) ParseContent(path, content string) *FileResult {
	result := &FileResult{Path: path}

	lines := strings.Split(content, "\n")
	type frame struct {
		indent int
		task   *Task
	}
	var stack []frame

	inFrontmatter := false
	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")

		// Frontmatter is structured metadata, not task lines. Line
		// numbers stay true to the file so write-back finds them.
		if i == 0 && line == "---" {
			inFrontmatter = true
			continue
		}
		if inFrontmatter {
			if line == "---" {
				inFrontmatter = false
				continue
			}
			if !checkboxPattern.MatchString(line) {
				continue
			}
			// A checkbox inside the block means the closing fence
			// never came. Report it and resume normal scanning.
			inFrontmatter = false
			result.Errors = append(result.Errors, ParseError{
				Line: 1,
				Msg:  "unclosed frontmatter block",
			})
		}

		t, err := p.ParseLine(line)
		if err != nil {
			result.Errors = append(result.Errors, ParseError{Line: i + 1, Msg: err.Error()})
			continue
		}
		if t == nil {
			continue
		}

		t.FilePath = path
		t.Line = i + 1
		t.ID = LineID(path, i+1)

		indent := countIndent(line)
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		// Ceiling before linkage: a skipped task must not leave its id
		// in the parent's children.
		if len(stack) >= p.opts.Limits.MaxStackDepth {
			result.Errors = append(result.Errors, ParseError{
				Line: i + 1,
				Msg:  errors.Wrapf(ErrParseLimit, "nesting depth %d", len(stack)).Error(),
			})
			continue
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1].task
			t.Metadata.Parent = parent.ID
			parent.Metadata.Children = append(parent.Metadata.Children, t.ID)
		}
		stack = append(stack, frame{indent: indent, task: t})

		result.Tasks = append(result.Tasks, t)
	}

	if inFrontmatter {
		result.Errors = append(result.Errors, ParseError{
			Line: 1,
			Msg:  "unclosed frontmatter block",
		})
	}

	return result
}

type span struct{ start, end int }

// cutSpans removes the given byte ranges from s. Spans must not overlap.
func cutSpans(s string, spans []span) string {
	if len(spans) == 0 {
		return s
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	var b strings.Builder
	prev := 0
	for _, sp := range spans {
		if sp.start > prev {
			b.WriteString(s[prev:sp.start])
		}
		prev = sp.end
	}
	if prev < len(s) {
		b.WriteString(s[prev:])
	}
	return b.String()
}

func (p *Parser) spend(budget *int) error {
	*budget--
	if *budget <= 0 {
		return ErrParseLimit
	}
	return nil
}

// extractEmoji pulls emoji-dialect metadata out of the body and returns
// the body with recognized tokens removed. Tokens may appear in any
// order.
func (p *Parser) extractEmoji(body string, md *Metadata, budget *int) (string, error) {
	var spans []span
	scans := 0

	for _, dm := range emojiDateMarkers {
		idx := 0
		for {
			if err := p.spend(budget); err != nil {
				return "", err
			}
			scans++
			if scans > p.opts.Limits.MaxMetadataScans {
				return "", errors.Wrap(ErrParseLimit, "metadata scan ceiling")
			}
			i := strings.Index(body[idx:], dm.Marker)
			if i < 0 {
				break
			}
			abs := idx + i
			j := abs + len(dm.Marker)
			k := j
			for k < len(body) && body[k] == ' ' {
				k++
			}
			e := k
			for e < len(body) && body[e] != ' ' {
				e++
			}
			if ms, ok := p.dates.Parse(body[k:e]); ok {
				setDateField(md, dm.Field, ms)
				spans = append(spans, span{abs, e})
			} else {
				// Marker without a parseable date: strip the marker,
				// keep the following text visible.
				spans = append(spans, span{abs, j})
			}
			idx = e
			if idx >= len(body) {
				break
			}
		}
	}

	for _, pm := range emojiPriorities {
		if err := p.spend(budget); err != nil {
			return "", err
		}
		if i := strings.Index(body, pm.Marker); i >= 0 {
			md.Priority = pm.Priority
			spans = append(spans, span{i, i + len(pm.Marker)})
		}
	}

	if i := strings.Index(body, recurrenceMarker); i >= 0 {
		j := i + len(recurrenceMarker)
		e := j
		for e < len(body) && !isEmojiMarker(body, e) && body[e] != '#' {
			if err := p.spend(budget); err != nil {
				return "", err
			}
			e++
		}
		md.Recurrence = strings.TrimSpace(body[j:e])
		spans = append(spans, span{i, e})
	}

	return cutSpans(body, spans), nil
}

// extractBrackets pulls [key::value] metadata out of the body. Known
// keys feed typed fields; unknown keys land in the residual map. All
// bracket fields are stripped from the visible content.
func (p *Parser) extractBrackets(body string, md *Metadata, budget *int) (string, error) {
	matches := bracketPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) > p.opts.Limits.MaxMetadataScans {
		return "", errors.Wrap(ErrParseLimit, "metadata scan ceiling")
	}

	var spans []span
	for _, m := range matches {
		if err := p.spend(budget); err != nil {
			return "", err
		}
		key := strings.ToLower(body[m[2]:m[3]])
		value := strings.TrimSpace(body[m[4]:m[5]])
		spans = append(spans, span{m[0], m[1]})

		switch key {
		case "due":
			if ms, ok := p.dates.Parse(value); ok {
				md.Due = ms
			}
		case "start":
			if ms, ok := p.dates.Parse(value); ok {
				md.Start = ms
			}
		case "scheduled":
			if ms, ok := p.dates.Parse(value); ok {
				md.Scheduled = ms
			}
		case "completion", "completed":
			if ms, ok := p.dates.Parse(value); ok {
				md.CompletedAt = ms
			}
		case "created":
			if ms, ok := p.dates.Parse(value); ok {
				md.CreatedAt = ms
			}
		case "priority":
			if n, ok := ParsePriority(value); ok {
				md.Priority = n
			} else {
				// No conversion applicable: keep the raw value.
				if md.Extra == nil {
					md.Extra = make(map[string]any)
				}
				md.Extra[key] = value
			}
		case "repeat", "recurrence":
			md.Recurrence = value
		case "project":
			md.Project = value
		case "context":
			md.Context = value
		case "area":
			md.Area = value
		default:
			if md.Extra == nil {
				md.Extra = make(map[string]any)
			}
			md.Extra[key] = value
		}
	}

	return cutSpans(body, spans), nil
}

// extractTags records #tokens. Tokens under the project or area prefix
// are redirected into the corresponding structured field instead of the
// generic tag set.
func (p *Parser) extractTags(body string, md *Metadata, budget *int) (string, error) {
	matches := tagPattern.FindAllStringSubmatchIndex(body, -1)
	var spans []span
	for _, m := range matches {
		if err := p.spend(budget); err != nil {
			return "", err
		}
		tag := body[m[2]:m[3]]
		if len(tag) > p.opts.Limits.MaxTagLength {
			return "", errors.Wrapf(ErrParseLimit, "tag length %d", len(tag))
		}
		spans = append(spans, span{m[0], m[1]})

		switch {
		case p.opts.ProjectPrefix != "" && strings.HasPrefix(tag, p.opts.ProjectPrefix):
			md.Project = tag[len(p.opts.ProjectPrefix):]
		case p.opts.AreaPrefix != "" && strings.HasPrefix(tag, p.opts.AreaPrefix):
			md.Area = tag[len(p.opts.AreaPrefix):]
		default:
			if !md.HasTag(tag) {
				md.Tags = append(md.Tags, tag)
			}
		}
	}
	return cutSpans(body, spans), nil
}

// extractContexts records context-sigil tokens (@home).
func (p *Parser) extractContexts(body string, md *Metadata, budget *int) (string, error) {
	sigil := p.opts.ContextSigil
	var spans []span
	idx := 0
	for {
		if err := p.spend(budget); err != nil {
			return "", err
		}
		i := strings.Index(body[idx:], sigil)
		if i < 0 {
			break
		}
		abs := idx + i
		// Sigil must start a token, not appear mid-word (emails).
		if abs > 0 && body[abs-1] != ' ' {
			idx = abs + len(sigil)
			continue
		}
		e := abs + len(sigil)
		for e < len(body) && body[e] != ' ' {
			e++
		}
		token := body[abs+len(sigil) : e]
		if token != "" {
			md.Context = token
			spans = append(spans, span{abs, e})
		}
		idx = e
		if idx >= len(body) {
			break
		}
	}
	return cutSpans(body, spans), nil
}

// countIndent measures leading whitespace. Tabs count as one unit each;
// only relative ordering matters for hierarchy.
func countIndent(line string) int {
	count := 0
	for _, ch := range line {
		if ch == ' ' || ch == '\t' {
			count++
			continue
		}
		break
	}
	return count
}

// collapseSpaces trims the content and squeezes runs of spaces left
// behind by token removal.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
