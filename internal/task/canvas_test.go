package task

import (
	"testing"

	"github.com/cockroachdb/errors"
)

const sampleCanvas = `{
	"nodes": [
		{"id": "node1", "type": "text", "text": "- [ ] Canvas task one\n- [x] Canvas task two", "x": 0, "y": 0, "width": 200, "height": 100},
		{"id": "node2", "type": "file", "file": "other.md", "x": 300, "y": 0, "width": 200, "height": 100},
		{"id": "node3", "type": "text", "text": "No tasks here, just a note", "x": 0, "y": 200, "width": 200, "height": 100}
	],
	"edges": [
		{"id": "edge1", "fromNode": "node1", "toNode": "node2"}
	]
}`

func TestParseCanvasEnvelope(t *testing.T) {
	tests := map[string]struct {
		data    string
		wantErr bool
	}{
		"valid":             {data: sampleCanvas},
		"empty_collections": {data: `{"nodes": [], "edges": []}`},
		"missing_nodes":     {data: `{"edges": []}`, wantErr: true},
		"missing_edges":     {data: `{"nodes": []}`, wantErr: true},
		"not_json":          {data: `- [ ] This is markdown`, wantErr: true},
		"json_array":        {data: `[1, 2, 3]`, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCanvas([]byte(tc.data))
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidCanvas) {
					t.Fatalf("ParseCanvas() error = %v, want ErrInvalidCanvas", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCanvas() unexpected error: %v", err)
			}
		})
	}
}

func TestCanvasNodeLookup(t *testing.T) {
	c, err := ParseCanvas([]byte(sampleCanvas))
	if err != nil {
		t.Fatal(err)
	}

	node, err := c.Node("node1")
	if err != nil {
		t.Fatalf("Node(node1) error: %v", err)
	}
	if node.Type != "text" {
		t.Errorf("node type = %q, want text", node.Type)
	}

	if _, err := c.Node("missing"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Node(missing) error = %v, want ErrNodeNotFound", err)
	}
}

func TestParseCanvasContent(t *testing.T) {
	p := NewParser(DefaultOptions())
	result, err := p.ParseCanvasContent("boards/plan.canvas", []byte(sampleCanvas))
	if err != nil {
		t.Fatal(err)
	}

	// Only the text node with checkbox lines yields tasks; the file node
	// and the prose node contribute nothing.
	if len(result.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(result.Tasks))
	}

	first := result.Tasks[0]
	if first.NodeID != "node1" {
		t.Errorf("node id = %q, want node1", first.NodeID)
	}
	if first.ID != NodeLineID("boards/plan.canvas", "node1", 1) {
		t.Errorf("id = %q, want node-derived id", first.ID)
	}
	if first.Content != "Canvas task one" {
		t.Errorf("content = %q", first.Content)
	}

	second := result.Tasks[1]
	if !second.Completed {
		t.Error("second canvas task should be completed")
	}
	if second.Line != 2 {
		t.Errorf("second task line = %d, want 2 within node text", second.Line)
	}
}

func TestCanvasMarshalRoundTrip(t *testing.T) {
	c, err := ParseCanvas([]byte(sampleCanvas))
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	again, err := ParseCanvas(out)
	if err != nil {
		t.Fatalf("re-parsing marshalled canvas: %v", err)
	}
	if len(again.Nodes) != len(c.Nodes) {
		t.Errorf("node count changed: %d -> %d", len(c.Nodes), len(again.Nodes))
	}
	if len(again.Edges) != len(c.Edges) {
		t.Errorf("edge count changed: %d -> %d", len(c.Edges), len(again.Edges))
	}
}
