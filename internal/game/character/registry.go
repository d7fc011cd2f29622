package character

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed defaults/*.yaml
var defaultFS embed.FS

// Registry provides lookup of character definitions by ID.
type Registry struct {
	defs map[ID]*Definition
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[ID]*Definition)}
}

// Register adds a definition to the registry. The last registration of an ID wins.
//
// Precondition: def must be non-nil with a non-empty ID.
func (r *Registry) Register(def *Definition) {
	if def == nil || def.ID == "" {
		panic("character.Registry.Register: def must be non-nil with a non-empty ID")
	}
	r.defs[def.ID] = def
}

// Get returns the definition for id.
//
// Postcondition: Returns the registered Definition and true, or nil and false.
func (r *Registry) Get(id ID) (*Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns every definition sorted by ID.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultRegistry returns a Registry holding the built-in character definitions.
//
// Postcondition: Contains Arcanist, Vanguard, Bloodreaver, Oracle and Gunslinger.
// Panics if the embedded YAML is invalid, which is a build defect.
func DefaultRegistry() *Registry {
	r, err := loadFS(defaultFS, "defaults")
	if err != nil {
		panic("character.DefaultRegistry: " + err.Error())
	}
	return r
}

// LoadDirectory reads all *.yaml files in dir on top of the built-in definitions.
// Files in dir override built-ins with the same ID.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the merged Registry or an error on the first parse or validate failure.
func LoadDirectory(dir string) (*Registry, error) {
	r := DefaultRegistry()
	over, err := loadFS(os.DirFS(dir), ".")
	if err != nil {
		return nil, fmt.Errorf("loading characters from %q: %w", dir, err)
	}
	for _, d := range over.defs {
		r.Register(d)
	}
	return r, nil
}

func loadFS(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading character dir %q: %w", dir, err)
	}
	r := NewRegistry()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		p := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		def, err := LoadDefinitionFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", p, err)
		}
		r.Register(def)
	}
	return r, nil
}
