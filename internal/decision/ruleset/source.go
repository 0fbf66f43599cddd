package ruleset

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"underwriter/pkg/platform/sentinel"
)

// Source supplies raw rule set documents by name.
type Source interface {
	Names(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
}

//go:embed defaults/*.yaml
var defaultsFS embed.FS

var documentExtensions = []string{".yaml", ".yml", ".json"}

// FSSource reads one document per file from a directory of fsys.
type FSSource struct {
	fsys fs.FS
	dir  string
}

// NewFSSource serves documents stored under dir in fsys.
func NewFSSource(fsys fs.FS, dir string) *FSSource {
	return &FSSource{fsys: fsys, dir: dir}
}

// DefaultSource serves the conservative, standard and liberal rule sets
// compiled into the binary.
func DefaultSource() *FSSource {
	return NewFSSource(defaultsFS, "defaults")
}

func (s *FSSource) Names(_ context.Context) ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, fmt.Errorf("read rule set directory %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := trimDocumentExt(e.Name()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FSSource) Fetch(_ context.Context, name string) ([]byte, error) {
	for _, ext := range documentExtensions {
		data, err := fs.ReadFile(s.fsys, path.Join(s.dir, name+ext))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read rule set %s: %w", name, err)
		}
	}
	return nil, fmt.Errorf("rule set %s: %w", name, sentinel.ErrNotFound)
}

func trimDocumentExt(file string) (string, bool) {
	for _, ext := range documentExtensions {
		if strings.HasSuffix(file, ext) {
			return strings.TrimSuffix(file, ext), true
		}
	}
	return "", false
}
