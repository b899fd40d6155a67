package task

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

// jsonString encodes s as a JSON string literal for canvas fixtures.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// taskFromLine parses a single line the way the index would have seen
// it, preserving the original text for later matching.
func taskFromLine(t *testing.T, p *Parser, line string) *Task {
	t.Helper()
	task, err := p.ParseLine(line)
	if err != nil || task == nil {
		t.Fatalf("ParseLine(%q) = %v, %v", line, task, err)
	}
	return task
}

func TestLocateDisambiguation(t *testing.T) {
	p := NewParser(DefaultOptions())

	tests := map[string]struct {
		source   string
		original string
		wantLine int
		wantErr  bool
	}{
		"single_exact_match": {
			source:   "- [ ] Alpha\n- [ ] Beta\n- [ ] Gamma",
			original: "- [ ] Beta",
			wantLine: 1,
		},
		"exact_beats_similar": {
			// Line 2 matches byte for byte; line 0 only matches after
			// metadata stripping. The exact one must win outright.
			source:   "- [ ] Review notes 📅 2026-09-01\n- [ ] Filler\n- [ ] Review notes",
			original: "- [ ] Review notes",
			wantLine: 2,
		},
		"multiple_exact_refused": {
			source:   "- [ ] Duplicate\n- [ ] Duplicate",
			original: "- [ ] Duplicate",
			wantErr:  true,
		},
		"single_similar_match": {
			// The indexed line gained trailing metadata since indexing;
			// stripped content still identifies it uniquely.
			source:   "- [ ] Water plants 📅 2026-08-30\n- [ ] Other thing",
			original: "- [ ] Water plants",
			wantLine: 0,
		},
		"multiple_similar_refused": {
			source:   "- [ ] Same thing 📅 2026-09-01\n- [ ] Same thing 📅 2026-09-02",
			original: "- [ ] Same thing",
			wantErr:  true,
		},
		"no_match": {
			source:   "- [ ] Completely different",
			original: "- [ ] Vanished task",
			wantErr:  true,
		},
		"status_must_match": {
			// Same content, different status: not the same task.
			source:   "- [x] Flip me",
			original: "- [ ] Flip me",
			wantErr:  true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			original := taskFromLine(t, p, tc.original)
			loc, err := p.Locate(original, tc.source)
			if tc.wantErr {
				if !errors.Is(err, ErrTaskNotFound) {
					t.Fatalf("Locate() error = %v, want ErrTaskNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate() error: %v", err)
			}
			if loc.Line != tc.wantLine {
				t.Errorf("line = %d, want %d", loc.Line, tc.wantLine)
			}
		})
	}
}

func TestUpdateRewritesOnlyTargetLine(t *testing.T) {
	p := NewParser(DefaultOptions())
	source := "# Plan\n\n- [ ] Keep me\n  - [ ] Flip me #chore\n- [ ] Also keep"

	original := taskFromLine(t, p, "  - [ ] Flip me #chore")
	updated := original.Clone()
	updated.Completed = true
	updated.Status = 'x'

	got, err := p.Update(original, updated, source)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(got, "\n")
	if lines[0] != "# Plan" || lines[2] != "- [ ] Keep me" || lines[4] != "- [ ] Also keep" {
		t.Errorf("untouched lines changed:\n%s", got)
	}
	if lines[3] != "  - [x] Flip me #chore" {
		t.Errorf("rewritten line = %q, want indent and tag preserved", lines[3])
	}
}

func TestUpdateAddsMetadata(t *testing.T) {
	p := NewParser(DefaultOptions())
	source := "- [ ] Pay rent"

	original := taskFromLine(t, p, "- [ ] Pay rent")
	updated := original.Clone()
	due, _ := p.Dates().Parse("2026-09-01")
	updated.Metadata.Due = due
	updated.Metadata.Priority = 4

	got, err := p.Update(original, updated, source)
	if err != nil {
		t.Fatal(err)
	}
	if got != "- [ ] Pay rent ⏫ 📅 2026-09-01" {
		t.Errorf("rewritten = %q", got)
	}

	// The rewritten line must parse back to the same record.
	back, err := p.ParseLine(got)
	if err != nil || back == nil {
		t.Fatalf("rewritten line does not parse: %v", err)
	}
	if back.Content != "Pay rent" || back.Metadata.Priority != 4 {
		t.Errorf("round-trip lost data: %+v", back)
	}
	if DayKey(back.Metadata.Due) != "2026-09-01" {
		t.Errorf("round-trip due = %q", DayKey(back.Metadata.Due))
	}
}

func TestUpdateKeepsUnknownBracketFields(t *testing.T) {
	opts := DefaultOptions()
	opts.Dialect = DialectBracket
	p := NewParser(opts)
	source := "- [ ] Ship release [custom:: keepme] [due:: 2026-01-10]"

	original := taskFromLine(t, p, source)
	updated := original.Clone()
	updated.Completed = true
	updated.Status = 'x'

	got, err := p.Update(original, updated, source)
	if err != nil {
		t.Fatal(err)
	}
	if got != "- [x] Ship release [due:: 2026-01-10] [custom:: keepme]" {
		t.Errorf("rewritten = %q, want unknown field kept", got)
	}

	// A second round trip must carry the field again.
	back, err := p.ParseLine(got)
	if err != nil || back == nil {
		t.Fatalf("rewritten line does not parse: %v", err)
	}
	if back.Metadata.Extra["custom"] != "keepme" {
		t.Errorf("round-trip extra = %v", back.Metadata.Extra)
	}
	if DayKey(back.Metadata.Due) != "2026-01-10" {
		t.Errorf("round-trip due = %q", DayKey(back.Metadata.Due))
	}
}

func TestUpdateInsideCanvasNode(t *testing.T) {
	p := NewParser(DefaultOptions())

	result, err := p.ParseCanvasContent("boards/plan.canvas", []byte(sampleCanvas))
	if err != nil {
		t.Fatal(err)
	}
	original := result.Tasks[0] // "- [ ] Canvas task one" in node1

	updated := original.Clone()
	updated.Completed = true
	updated.Status = 'x'

	got, err := p.Update(original, updated, sampleCanvas)
	if err != nil {
		t.Fatal(err)
	}

	c, err := ParseCanvas([]byte(got))
	if err != nil {
		t.Fatalf("updated canvas is invalid: %v", err)
	}
	node, err := c.Node("node1")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(node.Text, "\n")
	if lines[0] != "- [x] Canvas task one" {
		t.Errorf("node line = %q, want completed", lines[0])
	}
	if lines[1] != "- [x] Canvas task two" {
		t.Errorf("sibling line changed: %q", lines[1])
	}
	if len(c.Edges) != 1 {
		t.Errorf("edges lost in rewrite: %d", len(c.Edges))
	}
}

func TestUpdateAmongSimilarCanvasLines(t *testing.T) {
	p := NewParser(DefaultOptions())

	text := "- [ ] Pack bags #trip 📅 2026-09-01\n" +
		"- [ ] Pack bags #trip 📅 2026-09-02\n" +
		"- [ ] Pack bags #checklist\n" +
		"- [ ] Pack bags ⏫\n" +
		"- [ ] Pack bags"
	canvas := `{"nodes":[{"id":"n1","type":"text","text":` + jsonString(text) + `,"x":0,"y":0,"width":300,"height":200}],"edges":[]}`

	result, err := p.ParseCanvasContent("boards/trip.canvas", []byte(canvas))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tasks) != 5 {
		t.Fatalf("got %d tasks, want 5", len(result.Tasks))
	}

	// All five share the same stripped content; only the exact original
	// text identifies the target.
	var target *Task
	for _, task := range result.Tasks {
		if task.OriginalText == "- [ ] Pack bags #trip 📅 2026-09-01" {
			target = task
		}
	}
	if target == nil {
		t.Fatal("target line not indexed")
	}

	updated := target.Clone()
	updated.Completed = true
	updated.Status = 'x'

	got, err := p.Update(target, updated, canvas)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	c, err := ParseCanvas([]byte(got))
	if err != nil {
		t.Fatal(err)
	}
	node, err := c.Node("n1")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(node.Text, "\n")
	if lines[0] != "- [x] Pack bags #trip 📅 2026-09-01" {
		t.Errorf("target line = %q", lines[0])
	}
	originals := strings.Split(text, "\n")
	for i := 1; i < 5; i++ {
		if lines[i] != originals[i] {
			t.Errorf("line %d changed: %q -> %q", i, originals[i], lines[i])
		}
	}
}

func TestLocateMissingCanvasNode(t *testing.T) {
	p := NewParser(DefaultOptions())
	original := taskFromLine(t, p, "- [ ] Canvas task one")
	original.NodeID = "gone"

	_, err := p.Locate(original, sampleCanvas)
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Locate() error = %v, want ErrNodeNotFound", err)
	}
}
