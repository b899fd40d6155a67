package store

import (
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Memory is an in-memory ContentStore used by tests. Paths are
// forward-slash relative, as in FS.
type Memory struct {
	files map[string]*memFile
}

type memFile struct {
	content string
	modTime time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]*memFile)}
}

// Put adds or replaces a file, advancing its modification time.
func (m *Memory) Put(path, content string) {
	m.files[path] = &memFile{content: content, modTime: time.Now()}
}

// PutWithModTime adds a file with an explicit modification time, for
// exercising mtime-keyed caches.
func (m *Memory) PutWithModTime(path, content string, mod time.Time) {
	m.files[path] = &memFile{content: content, modTime: mod}
}

// Delete removes a file.
func (m *Memory) Delete(path string) {
	delete(m.files, path)
}

// Read returns a document's full text.
func (m *Memory) Read(path string) (string, error) {
	f, ok := m.files[path]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "%s", path)
	}
	return f.content, nil
}

// Frontmatter returns the document's parsed YAML frontmatter.
func (m *Memory) Frontmatter(path string) (map[string]any, error) {
	content, err := m.Read(path)
	if err != nil {
		return nil, err
	}
	fm, _, err := SplitFrontmatter(content)
	return fm, err
}

// ListChildren lists the immediate children of a directory.
func (m *Memory) ListChildren(dir string) ([]Entry, error) {
	prefix := ""
	if dir != "" && dir != "." {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}

	seen := make(map[string]Entry)
	for path, f := range m.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		if rest == "" {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			name := rest[:i]
			seen[name] = Entry{Name: name, Path: prefix + name, Dir: true}
		} else {
			seen[rest] = Entry{
				Name:    rest,
				Path:    path,
				ModTime: f.modTime,
				Size:    int64(len(f.content)),
			}
		}
	}

	entries := make([]Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Write persists a document's full text.
func (m *Memory) Write(path, text string) error {
	m.Put(path, text)
	return nil
}

// Stat returns metadata for one path. Directories are synthesized from
// file paths beneath them.
func (m *Memory) Stat(path string) (Entry, error) {
	if f, ok := m.files[path]; ok {
		name := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			name = path[i+1:]
		}
		return Entry{Name: name, Path: path, ModTime: f.modTime, Size: int64(len(f.content))}, nil
	}
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return Entry{Name: path, Path: path, Dir: true}, nil
		}
	}
	return Entry{}, errors.Wrapf(ErrNotFound, "%s", path)
}
