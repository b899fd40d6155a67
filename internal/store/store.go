// Package store defines the narrow content-store port the core consumes
// instead of a concrete file-system API, plus a filesystem-backed
// implementation and an in-memory fake for tests.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// MaxFileSize is the maximum allowed size for a source document (10MB).
const MaxFileSize = 10 * 1024 * 1024

// ErrNotFound indicates the path does not exist in the store.
var ErrNotFound = errors.New("path not found")

// Entry describes one child of a directory, or the result of Stat.
type Entry struct {
	Name    string
	Path    string
	Dir     bool
	ModTime time.Time
	Size    int64
}

// ContentStore is the boundary to the host content store. The core
// never assumes anything about files beyond these five operations.
type ContentStore interface {
	Read(path string) (string, error)
	Frontmatter(path string) (map[string]any, error)
	ListChildren(dir string) ([]Entry, error)
	Write(path, text string) error
	Stat(path string) (Entry, error)
}

// FS is a ContentStore rooted at a vault directory. All paths are
// vault-relative with forward slashes.
type FS struct {
	root string
}

// NewFS creates a filesystem store rooted at dir.
func NewFS(dir string) *FS {
	return &FS{root: dir}
}

// Root returns the vault root directory.
func (f *FS) Root() string {
	return f.root
}

func (f *FS) abs(path string) string {
	return filepath.Join(f.root, filepath.FromSlash(path))
}

// Read returns a document's full text.
func (f *FS) Read(path string) (string, error) {
	info, err := os.Stat(f.abs(path))
	if err != nil {
		return "", errors.Wrapf(ErrNotFound, "%s", path)
	}
	if info.Size() > MaxFileSize {
		return "", errors.Newf("%s exceeds maximum size of %d bytes", path, MaxFileSize)
	}
	data, err := os.ReadFile(f.abs(path))
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", path)
	}
	return string(data), nil
}

// Frontmatter returns the document's parsed YAML frontmatter, or nil
// when the document has none.
func (f *FS) Frontmatter(path string) (map[string]any, error) {
	content, err := f.Read(path)
	if err != nil {
		return nil, err
	}
	fm, _, err := SplitFrontmatter(content)
	return fm, err
}

// ListChildren lists a directory's entries sorted by name.
func (f *FS) ListChildren(dir string) ([]Entry, error) {
	des, err := os.ReadDir(f.abs(dir))
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "%s", dir)
	}
	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    joinPath(dir, de.Name()),
			Dir:     de.IsDir(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Write persists a document's full text.
func (f *FS) Write(path, text string) error {
	abs := f.abs(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", path)
	}
	if err := os.WriteFile(abs, []byte(text), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// Stat returns metadata for one path.
func (f *FS) Stat(path string) (Entry, error) {
	info, err := os.Stat(f.abs(path))
	if err != nil {
		return Entry{}, errors.Wrapf(ErrNotFound, "%s", path)
	}
	return Entry{
		Name:    filepath.Base(path),
		Path:    path,
		Dir:     info.IsDir(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// ParentDir returns the store path of a path's parent directory, ""
// being the vault root.
func ParentDir(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}
