package project

import (
	"github.com/cockroachdb/errors"

	"github.com/taskvault/taskvault/internal/task"
)

// dateTargets are target keys whose values are normalized to epoch
// milliseconds when the raw value parses as a date.
var dateTargets = map[string]bool{
	"due":       true,
	"start":     true,
	"scheduled": true,
	"completed": true,
	"created":   true,
}

// EnhancedMetadata reads a file's frontmatter and applies the
// configured mapping rules: source keys are renamed to their target
// keys, with date and priority values normalized on the way through.
// Keys without a rule pass unchanged; a value that fails normalization
// is kept raw under the target key. A file without frontmatter yields
// a nil record.
func (r *Resolver) EnhancedMetadata(filePath string) (map[string]any, error) {
	fm, err := r.store.Frontmatter(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading frontmatter of %s", filePath)
	}
	if fm == nil {
		return nil, nil
	}

	renames := make(map[string]string, len(r.opts.MetadataMappings))
	for _, m := range r.opts.MetadataMappings {
		if m.Enabled && m.SourceKey != "" && m.TargetKey != "" {
			renames[m.SourceKey] = m.TargetKey
		}
	}

	out := make(map[string]any, len(fm))
	for key, value := range fm {
		target, mapped := renames[key]
		if !mapped {
			out[key] = value
			continue
		}
		out[target] = r.convertValue(target, value)
	}
	return out, nil
}

// convertValue normalizes a mapped value based on what the target key
// names. Only strings are converted; structured values pass through.
func (r *Resolver) convertValue(target string, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if dateTargets[target] {
		if ms, ok := r.dates.Parse(s); ok {
			return ms
		}
		return value
	}
	if target == "priority" {
		if p, ok := task.ParsePriority(s); ok {
			return p
		}
		return value
	}
	return value
}
