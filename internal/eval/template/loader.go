package template

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Loader resolves a template name to its source text
type Loader interface {
	Load(name string) (string, error)
}

// FileSystemLoader loads templates from a directory
type FileSystemLoader struct {
	root string
	fsys fs.FS
}

// NewFileSystemLoader creates a loader rooted at dir
func NewFileSystemLoader(dir string) *FileSystemLoader {
	return &FileSystemLoader{
		root: dir,
		fsys: os.DirFS(dir),
	}
}

// Root returns the directory the loader is bound to
func (l *FileSystemLoader) Root() string {
	return l.root
}

// Load reads the template called name below the root directory.
// Names escaping the root are reported as not found.
func (l *FileSystemLoader) Load(name string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(name))
	if !fs.ValidPath(clean) || clean == "." {
		return "", &NotFoundError{Name: name, Root: l.root}
	}

	data, err := fs.ReadFile(l.fsys, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &NotFoundError{Name: name, Root: l.root, Err: err}
		}
		return "", fmt.Errorf("failed to read template %q: %w", name, err)
	}

	return string(data), nil
}
