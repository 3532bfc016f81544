package session

// registry.go - in-memory dataset registry, the source of truth for what
// exists in the current session

import (
	"fmt"
	"sort"

	"github.com/quarrylabs/quarry/pkg/storage"
)

// Kind says whether a dataset survives a project reopen.
type Kind int

const (
	// Persisted datasets are backed by the project file.
	Persisted Kind = iota
	// Transient datasets exist only for the session's lifetime.
	Transient
)

// String returns the kind's display name.
func (k Kind) String() string {
	if k == Transient {
		return "transient"
	}
	return "persisted"
}

// Dataset is the registry descriptor for one named dataset.
type Dataset struct {
	// Name is unique within the session, immutable once registered.
	Name string
	// Kind distinguishes persisted tables from transient scan views.
	Kind Kind
	// Columns is the schema established at creation.
	Columns []storage.Column
	// SourcePath is the backing file for transient scans, empty otherwise.
	SourcePath string

	// rowCount caches the last known count; -1 means not yet resolved
	// (lazy transient scans).
	rowCount int64
}

// registry maps dataset names to descriptors. Lookups are exact; collision
// checks fold case. Not safe for concurrent use; the Session's lock guards
// it.
type registry struct {
	byName map[string]*Dataset
	folded map[string]string
}

func newRegistry() *registry {
	return &registry{
		byName: make(map[string]*Dataset),
		folded: make(map[string]string),
	}
}

// register inserts a descriptor. It is the final consistency gate: a
// folded-name collision fails even if the allocator pre-check was skipped.
func (r *registry) register(ds *Dataset) error {
	key := foldName(ds.Name)
	if _, exists := r.folded[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, ds.Name)
	}
	r.byName[ds.Name] = ds
	r.folded[key] = ds.Name
	return nil
}

// lookup returns the descriptor for an exact name, or nil.
func (r *registry) lookup(name string) *Dataset {
	return r.byName[name]
}

// contains reports whether name collides case-insensitively with a
// registered dataset.
func (r *registry) contains(name string) bool {
	_, ok := r.folded[foldName(name)]
	return ok
}

// remove deletes a descriptor. Returns false if the name was absent;
// absence is not an error.
func (r *registry) remove(name string) bool {
	ds, ok := r.byName[name]
	if !ok {
		return false
	}
	delete(r.byName, name)
	delete(r.folded, foldName(ds.Name))
	return true
}

// names returns all registered names in lexicographic order.
func (r *registry) names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// reset drops every descriptor. Used when rebinding to another project.
func (r *registry) reset() {
	r.byName = make(map[string]*Dataset)
	r.folded = make(map[string]string)
}
