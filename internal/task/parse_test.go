package task

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestParseLineEmojiDialect(t *testing.T) {
	tests := map[string]struct {
		line        string
		wantNil     bool
		wantContent string
		wantDone    bool
		check       func(t *testing.T, task *Task)
	}{
		"plain_task": {
			line:        "- [ ] Buy groceries",
			wantContent: "Buy groceries",
		},
		"completed_lowercase": {
			line:        "- [x] Buy groceries",
			wantContent: "Buy groceries",
			wantDone:    true,
		},
		"completed_uppercase": {
			line:        "- [X] Buy groceries",
			wantContent: "Buy groceries",
			wantDone:    true,
		},
		"custom_status_not_done": {
			line:        "- [-] In progress",
			wantContent: "In progress",
		},
		"star_bullet": {
			line:        "* [ ] Star bullet",
			wantContent: "Star bullet",
		},
		"plus_bullet": {
			line:        "+ [ ] Plus bullet",
			wantContent: "Plus bullet",
		},
		"not_a_task": {
			line:    "Just some prose",
			wantNil: true,
		},
		"list_without_checkbox": {
			line:    "- no checkbox here",
			wantNil: true,
		},
		"empty_line": {
			line:    "",
			wantNil: true,
		},
		"heading": {
			line:    "# Tasks",
			wantNil: true,
		},
		"due_date": {
			line:        "- [ ] Pay rent 📅 2026-09-01",
			wantContent: "Pay rent",
			check: func(t *testing.T, task *Task) {
				if got := DayKey(task.Metadata.Due); got != "2026-09-01" {
					t.Errorf("due day = %q, want 2026-09-01", got)
				}
			},
		},
		"all_date_markers": {
			line:        "- [x] Ship release ➕ 2026-08-01 🛫 2026-08-10 ⏳ 2026-08-15 📅 2026-08-20 ✅ 2026-08-19",
			wantContent: "Ship release",
			wantDone:    true,
			check: func(t *testing.T, task *Task) {
				md := task.Metadata
				days := map[string]string{
					"created":   DayKey(md.CreatedAt),
					"start":     DayKey(md.Start),
					"scheduled": DayKey(md.Scheduled),
					"due":       DayKey(md.Due),
					"completed": DayKey(md.CompletedAt),
				}
				want := map[string]string{
					"created":   "2026-08-01",
					"start":     "2026-08-10",
					"scheduled": "2026-08-15",
					"due":       "2026-08-20",
					"completed": "2026-08-19",
				}
				for field, day := range want {
					if days[field] != day {
						t.Errorf("%s day = %q, want %q", field, days[field], day)
					}
				}
			},
		},
		"priority_emoji": {
			line:        "- [ ] Urgent thing ⏫",
			wantContent: "Urgent thing",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Priority != 4 {
					t.Errorf("priority = %d, want 4", task.Metadata.Priority)
				}
			},
		},
		"recurrence": {
			line:        "- [ ] Water plants 🔁 every 3 days 📅 2026-08-25",
			wantContent: "Water plants",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Recurrence != "every 3 days" {
					t.Errorf("recurrence = %q, want %q", task.Metadata.Recurrence, "every 3 days")
				}
				if DayKey(task.Metadata.Due) != "2026-08-25" {
					t.Errorf("due day = %q, want 2026-08-25", DayKey(task.Metadata.Due))
				}
			},
		},
		"marker_without_date_keeps_text": {
			line:        "- [ ] Plan trip 📅 soon",
			wantContent: "Plan trip soon",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Due != 0 {
					t.Errorf("due = %d, want unset", task.Metadata.Due)
				}
			},
		},
		"tags": {
			line:        "- [ ] Call dentist #health #errand",
			wantContent: "Call dentist",
			check: func(t *testing.T, task *Task) {
				if !task.Metadata.HasTag("health") || !task.Metadata.HasTag("errand") {
					t.Errorf("tags = %v, want health and errand", task.Metadata.Tags)
				}
			},
		},
		"duplicate_tag_kept_once": {
			line:        "- [ ] Twice tagged #dup #dup",
			wantContent: "Twice tagged",
			check: func(t *testing.T, task *Task) {
				if len(task.Metadata.Tags) != 1 {
					t.Errorf("tags = %v, want single dup", task.Metadata.Tags)
				}
			},
		},
		"project_prefix_tag": {
			line:        "- [ ] Draft outline #project/book",
			wantContent: "Draft outline",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Project != "book" {
					t.Errorf("project = %q, want book", task.Metadata.Project)
				}
				if len(task.Metadata.Tags) != 0 {
					t.Errorf("tags = %v, want none", task.Metadata.Tags)
				}
			},
		},
		"area_prefix_tag": {
			line:        "- [ ] Review budget #area/finance",
			wantContent: "Review budget",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Area != "finance" {
					t.Errorf("area = %q, want finance", task.Metadata.Area)
				}
			},
		},
		"context_token": {
			line:        "- [ ] Fix faucet @home",
			wantContent: "Fix faucet",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Context != "home" {
					t.Errorf("context = %q, want home", task.Metadata.Context)
				}
			},
		},
		"email_not_context": {
			line:        "- [ ] Mail bob@example.com about the invoice",
			wantContent: "Mail bob@example.com about the invoice",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Context != "" {
					t.Errorf("context = %q, want empty", task.Metadata.Context)
				}
			},
		},
	}

	p := NewParser(DefaultOptions())
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			task, err := p.ParseLine(tc.line)
			if err != nil {
				t.Fatalf("ParseLine(%q) error: %v", tc.line, err)
			}
			if tc.wantNil {
				if task != nil {
					t.Fatalf("ParseLine(%q) = %+v, want nil", tc.line, task)
				}
				return
			}
			if task == nil {
				t.Fatalf("ParseLine(%q) = nil, want task", tc.line)
			}
			if task.Content != tc.wantContent {
				t.Errorf("content = %q, want %q", task.Content, tc.wantContent)
			}
			if task.Completed != tc.wantDone {
				t.Errorf("completed = %v, want %v", task.Completed, tc.wantDone)
			}
			if task.OriginalText != tc.line {
				t.Errorf("original text = %q, want the input line", task.OriginalText)
			}
			if tc.check != nil {
				tc.check(t, task)
			}
		})
	}
}

func TestParseLineBracketDialect(t *testing.T) {
	opts := DefaultOptions()
	opts.Dialect = DialectBracket
	p := NewParser(opts)

	tests := map[string]struct {
		line        string
		wantContent string
		check       func(t *testing.T, task *Task)
	}{
		"typed_fields": {
			line:        "- [ ] Pay rent [due:: 2026-09-01] [priority:: high] [project:: household]",
			wantContent: "Pay rent",
			check: func(t *testing.T, task *Task) {
				if DayKey(task.Metadata.Due) != "2026-09-01" {
					t.Errorf("due day = %q, want 2026-09-01", DayKey(task.Metadata.Due))
				}
				if task.Metadata.Priority != 4 {
					t.Errorf("priority = %d, want 4", task.Metadata.Priority)
				}
				if task.Metadata.Project != "household" {
					t.Errorf("project = %q, want household", task.Metadata.Project)
				}
			},
		},
		"repeat_and_context": {
			line:        "- [ ] Stand-up notes [repeat:: every weekday] [context:: office]",
			wantContent: "Stand-up notes",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Recurrence != "every weekday" {
					t.Errorf("recurrence = %q", task.Metadata.Recurrence)
				}
				if task.Metadata.Context != "office" {
					t.Errorf("context = %q", task.Metadata.Context)
				}
			},
		},
		"unknown_key_lands_in_extra": {
			line:        "- [ ] Read paper [source:: arxiv]",
			wantContent: "Read paper",
			check: func(t *testing.T, task *Task) {
				if got := task.Metadata.Extra["source"]; got != "arxiv" {
					t.Errorf("extra[source] = %v, want arxiv", got)
				}
			},
		},
		"unconvertible_priority_kept_raw": {
			line:        "- [ ] Maybe later [priority:: someday]",
			wantContent: "Maybe later",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Priority != 0 {
					t.Errorf("priority = %d, want unset", task.Metadata.Priority)
				}
				if got := task.Metadata.Extra["priority"]; got != "someday" {
					t.Errorf("extra[priority] = %v, want raw token", got)
				}
			},
		},
		"emoji_ignored_in_bracket_dialect": {
			line:        "- [ ] Mixed line 📅 2026-09-01",
			wantContent: "Mixed line 📅 2026-09-01",
			check: func(t *testing.T, task *Task) {
				if task.Metadata.Due != 0 {
					t.Errorf("due = %d, want unset in bracket dialect", task.Metadata.Due)
				}
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			task, err := p.ParseLine(tc.line)
			if err != nil {
				t.Fatalf("ParseLine(%q) error: %v", tc.line, err)
			}
			if task == nil {
				t.Fatalf("ParseLine(%q) = nil, want task", tc.line)
			}
			if task.Content != tc.wantContent {
				t.Errorf("content = %q, want %q", task.Content, tc.wantContent)
			}
			if tc.check != nil {
				tc.check(t, task)
			}
		})
	}
}

func TestParseContentHierarchy(t *testing.T) {
	content := `- [ ] Parent
  - [ ] Child one
    - [ ] Grandchild
  - [ ] Child two
- [ ] Second root`

	p := NewParser(DefaultOptions())
	result := p.ParseContent("notes/plan.md", content)

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Tasks) != 5 {
		t.Fatalf("got %d tasks, want 5", len(result.Tasks))
	}

	byContent := make(map[string]*Task)
	for _, task := range result.Tasks {
		byContent[task.Content] = task
	}

	parent := byContent["Parent"]
	childOne := byContent["Child one"]
	grandchild := byContent["Grandchild"]
	childTwo := byContent["Child two"]
	secondRoot := byContent["Second root"]

	if childOne.Metadata.Parent != parent.ID {
		t.Errorf("child one parent = %q, want %q", childOne.Metadata.Parent, parent.ID)
	}
	if grandchild.Metadata.Parent != childOne.ID {
		t.Errorf("grandchild parent = %q, want %q", grandchild.Metadata.Parent, childOne.ID)
	}
	if childTwo.Metadata.Parent != parent.ID {
		t.Errorf("child two parent = %q, want %q", childTwo.Metadata.Parent, parent.ID)
	}
	if secondRoot.Metadata.Parent != "" {
		t.Errorf("second root parent = %q, want none", secondRoot.Metadata.Parent)
	}
	if len(parent.Metadata.Children) != 2 {
		t.Errorf("parent children = %v, want two", parent.Metadata.Children)
	}
}

func TestParseContentSkipsFrontmatterKeepsLineNumbers(t *testing.T) {
	content := `---
project: demo
status: active
---
- [ ] After frontmatter`

	p := NewParser(DefaultOptions())
	result := p.ParseContent("notes/demo.md", content)

	if len(result.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(result.Tasks))
	}
	task := result.Tasks[0]
	if task.Line != 5 {
		t.Errorf("line = %d, want 5 (true file position)", task.Line)
	}
	if task.ID != LineID("notes/demo.md", 5) {
		t.Errorf("id = %q, want line-derived id", task.ID)
	}
}

func TestParseContentLineFailureIsIsolated(t *testing.T) {
	longTag := strings.Repeat("a", DefaultLimits().MaxTagLength+1)
	content := "- [ ] Good before\n- [ ] Bad #" + longTag + "\n- [ ] Good after"

	p := NewParser(DefaultOptions())
	result := p.ParseContent("notes/mixed.md", content)

	if len(result.Tasks) != 2 {
		t.Fatalf("got %d tasks, want the 2 good lines", len(result.Tasks))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(result.Errors))
	}
	if result.Errors[0].Line != 2 {
		t.Errorf("error line = %d, want 2", result.Errors[0].Line)
	}
	if !strings.Contains(result.Errors[0].Msg, ErrParseLimit.Error()) {
		t.Errorf("error %q does not carry the limit sentinel text", result.Errors[0].Msg)
	}
}

func TestParseContentDepthCeiling(t *testing.T) {
	opts := DefaultOptions()
	opts.Limits.MaxStackDepth = 3

	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString(strings.Repeat("  ", i))
		b.WriteString("- [ ] Level\n")
	}

	p := NewParser(opts)
	result := p.ParseContent("notes/deep.md", b.String())

	if len(result.Errors) == 0 {
		t.Fatal("expected depth ceiling errors, got none")
	}
	if len(result.Tasks)+len(result.Errors) < 5 {
		t.Errorf("tasks %d + errors %d should cover all 5 lines",
			len(result.Tasks), len(result.Errors))
	}
}

func TestDepthCeilingLeavesNoDanglingChildren(t *testing.T) {
	opts := DefaultOptions()
	opts.Limits.MaxStackDepth = 2

	content := `- [ ] Root
  - [ ] Child
    - [ ] Too deep
  - [ ] Sibling`

	p := NewParser(opts)
	result := p.ParseContent("notes/deep.md", content)

	if len(result.Tasks) != 3 {
		t.Fatalf("got %d tasks, want 3 (the over-deep line is skipped)", len(result.Tasks))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(result.Errors))
	}

	emitted := make(map[string]bool)
	for _, task := range result.Tasks {
		emitted[task.ID] = true
	}
	for _, task := range result.Tasks {
		for _, child := range task.Metadata.Children {
			if !emitted[child] {
				t.Errorf("%s lists child %s that was never emitted", task.Content, child)
			}
		}
	}
}

func TestUnclosedFrontmatter(t *testing.T) {
	tests := map[string]struct {
		content   string
		wantTasks int
		wantLine  int
	}{
		"checkbox_recovers_scanning": {
			content:   "---\nproject: demo\n- [ ] Rescued\n- [ ] Second",
			wantTasks: 2,
			wantLine:  3,
		},
		"no_checkbox_reports_at_eof": {
			content:   "---\nkey: value\nprose only",
			wantTasks: 0,
		},
	}

	p := NewParser(DefaultOptions())
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			result := p.ParseContent("notes/broken.md", tc.content)
			if len(result.Tasks) != tc.wantTasks {
				t.Fatalf("got %d tasks, want %d", len(result.Tasks), tc.wantTasks)
			}
			if len(result.Errors) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(result.Errors), result.Errors)
			}
			if !strings.Contains(result.Errors[0].Msg, "unclosed frontmatter") {
				t.Errorf("error = %q, want unclosed frontmatter report", result.Errors[0].Msg)
			}
			if tc.wantTasks > 0 {
				if result.Tasks[0].Line != tc.wantLine {
					t.Errorf("first task line = %d, want %d (true file position)", result.Tasks[0].Line, tc.wantLine)
				}
			}
		})
	}
}

func TestContentCollapsesSpaces(t *testing.T) {
	p := NewParser(DefaultOptions())
	task, err := p.ParseLine("- [ ] Middle 📅 2026-09-01 trailing #tag words")
	if err != nil {
		t.Fatal(err)
	}
	if task.Content != "Middle trailing words" {
		t.Errorf("content = %q, want token gaps squeezed", task.Content)
	}
	if strings.Contains(task.Content, "  ") {
		t.Errorf("content %q contains double spaces", task.Content)
	}
}

func TestParseIterationCeiling(t *testing.T) {
	opts := DefaultOptions()
	opts.Limits.MaxParseIterations = 15
	p := NewParser(opts)

	if _, err := p.ParseLine("- [ ] Simple line"); err != nil {
		t.Fatalf("plain line should fit in the budget: %v", err)
	}

	heavy := "- [ ] Tags " + strings.Repeat("#t ", 40)
	_, err := p.ParseLine(heavy)
	if !errors.Is(err, ErrParseLimit) {
		t.Fatalf("heavy line error = %v, want ErrParseLimit", err)
	}
}

func TestCustomCompletedMarkers(t *testing.T) {
	opts := DefaultOptions()
	opts.CompletedMarkers = "xX✓"
	p := NewParser(opts)

	task, err := p.ParseLine("- [✓] Checked off")
	if err != nil {
		t.Fatal(err)
	}
	if !task.Completed {
		t.Error("custom marker not treated as completed")
	}
}
