package problem

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// Loader reads problem definitions from YAML files, one problem per file.
type Loader struct {
	fsys     fs.FS
	basePath string
}

// NewLoader creates a loader over a directory on disk.
func NewLoader(basePath string) *Loader {
	return &Loader{fsys: os.DirFS(basePath), basePath: basePath}
}

// NewFSLoader creates a loader over an arbitrary file system.
func NewFSLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, basePath: "."}
}

// BasePath returns the directory the loader reads from.
func (l *Loader) BasePath() string {
	return l.basePath
}

// LoadFile loads a single problem. name is relative to the loader root.
func (l *Loader) LoadFile(name string) (*domain.Problem, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read problem file: %w", err)
	}

	var p domain.Problem
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse problem file %s: %w", name, err)
	}
	if p.Slug == "" {
		p.Slug = strings.TrimSuffix(path.Base(name), path.Ext(name))
	}
	for i := range p.Examples {
		if p.Examples[i].Ordinal == 0 {
			p.Examples[i].Ordinal = i + 1
		}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("problem file %s: %w", name, err)
	}
	return &p, nil
}

// LoadAll loads every *.yaml and *.yml file below the root, sorted by path.
// Duplicate slugs are an error.
func (l *Loader) LoadAll() ([]*domain.Problem, error) {
	var names []string
	err := fs.WalkDir(l.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch path.Ext(p) {
		case ".yaml", ".yml":
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read problems directory: %w", err)
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	problems := make([]*domain.Problem, 0, len(names))
	for _, name := range names {
		p, err := l.LoadFile(name)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[p.Slug]; ok {
			return nil, fmt.Errorf("duplicate problem slug %q in %s and %s", p.Slug, prev, name)
		}
		seen[p.Slug] = name
		problems = append(problems, p)
	}
	return problems, nil
}
