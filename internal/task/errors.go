package task

import (
	"github.com/cockroachdb/errors"
)

// Sentinel errors for parsing and source location. Locator failures are
// surfaced to callers as structured results, never as panics; these
// sentinels are what the structured result carries underneath.
var (
	// ErrParseLimit indicates an iteration ceiling was hit while parsing
	ErrParseLimit = errors.New("parse iteration limit exceeded")

	// ErrSourceNotFound indicates the source document could not be read
	ErrSourceNotFound = errors.New("source document not found")

	// ErrNodeNotFound indicates the canvas node id no longer exists
	ErrNodeNotFound = errors.New("node not found in canvas")

	// ErrTaskNotFound indicates no source line matched the task
	ErrTaskNotFound = errors.New("task not found in source")

	// ErrInvalidCanvas indicates the document failed envelope validation
	ErrInvalidCanvas = errors.New("invalid canvas document")
)

// ParseError is a non-fatal failure for a single line of a unit of
// content. Whole-file parsing collects these and keeps going.
type ParseError struct {
	Line int    `json:"line"`
	Msg  string `json:"msg"`
}

func (e ParseError) Error() string {
	return errors.Newf("line %d: %s", e.Line, e.Msg).Error()
}

// UpdateResult is the structured outcome of a write-back attempt.
type UpdateResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ResultFromError converts a locator/updater error into the structured
// result shape handed across the external boundary.
func ResultFromError(err error) UpdateResult {
	if err == nil {
		return UpdateResult{Success: true}
	}
	return UpdateResult{Success: false, Error: err.Error()}
}
