package task

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// CanvasNode is one spatial node of a node-graph document. Only nodes
// with Type "text" are scanned for tasks.
type CanvasNode struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	File   string  `json:"file,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color,omitempty"`
}

// Canvas is the node-graph document envelope. Validity requires both
// the nodes and edges keys to be present.
type Canvas struct {
	Nodes []CanvasNode      `json:"nodes"`
	Edges []json.RawMessage `json:"edges"`
}

const textNodeType = "text"

// ParseCanvas decodes and validates a node-graph document. The envelope
// must parse and carry both required keys before any node lookup is
// attempted.
func ParseCanvas(data []byte) (*Canvas, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.Wrap(ErrInvalidCanvas, err.Error())
	}
	if _, ok := envelope["nodes"]; !ok {
		return nil, errors.Wrap(ErrInvalidCanvas, "missing nodes key")
	}
	if _, ok := envelope["edges"]; !ok {
		return nil, errors.Wrap(ErrInvalidCanvas, "missing edges key")
	}

	var c Canvas
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(ErrInvalidCanvas, err.Error())
	}
	return &c, nil
}

// Node returns the node with the given id.
func (c *Canvas) Node(id string) (*CanvasNode, error) {
	for i := range c.Nodes {
		if c.Nodes[i].ID == id {
			return &c.Nodes[i], nil
		}
	}
	return nil, errors.Wrapf(ErrNodeNotFound, "node %s", id)
}

// Marshal re-encodes the canvas. Edges pass through untouched as raw
// JSON.
func (c *Canvas) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "\t")
}

// ParseCanvasContent parses every text node of a canvas document for
// tasks. Node envelope failure is a single fatal error for the unit;
// per-line failures inside nodes are non-fatal as usual.
func (p *Parser) ParseCanvasContent(path string, data []byte) (*FileResult, error) {
	c, err := ParseCanvas(data)
	if err != nil {
		return nil, err
	}

	result := &FileResult{Path: path}
	for i := range c.Nodes {
		node := &c.Nodes[i]
		if node.Type != textNodeType || node.Text == "" {
			continue
		}
		for lineNo, line := range strings.Split(node.Text, "\n") {
			t, err := p.ParseLine(strings.TrimRight(line, "\r"))
			if err != nil {
				result.Errors = append(result.Errors, ParseError{Line: lineNo + 1, Msg: err.Error()})
				continue
			}
			if t == nil {
				continue
			}
			t.FilePath = path
			t.NodeID = node.ID
			t.Line = lineNo + 1
			t.ID = NodeLineID(path, node.ID, lineNo+1)
			result.Tasks = append(result.Tasks, t)
		}
	}
	return result, nil
}
