package param

import (
	"fmt"
	"sort"
	"sync"

	"github.com/firewheel-audio/firewheel-go/pkg/event"
	"github.com/firewheel-audio/firewheel-go/pkg/node"
)

// Registry holds every Parameter a node declares, keyed by its string
// path (e.g. "gain", "filter.cutoff"). It satisfies node.Diffable: the
// controller diffs its own registry against a held baseline to produce
// patches, and the processor applies received patches onto its copy.
type Registry struct {
	mu     sync.RWMutex
	params map[string]*Parameter
	order  []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{params: make(map[string]*Parameter)}
}

// Add registers parameters, skipping any whose path is already present.
func (r *Registry) Add(params ...*Parameter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range params {
		if _, exists := r.params[p.Path]; exists {
			continue
		}
		r.params[p.Path] = p
		r.order = append(r.order, p.Path)
	}
}

// Get retrieves a parameter by path.
func (r *Registry) Get(path string) *Parameter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.params[path]
}

// All returns every parameter in registration order.
func (r *Registry) All() []*Parameter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Parameter, len(r.order))
	for i, path := range r.order {
		out[i] = r.params[path]
	}
	return out
}

// Snapshot captures every parameter's current plain value, independent
// of the live Parameter objects, so it can serve as a stable diff
// baseline.
type Snapshot map[string]float64

// Snapshot returns the registry's current plain values.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := make(Snapshot, len(r.params))
	for path, p := range r.params {
		snap[path] = p.GetPlainValue()
	}
	return snap
}

// Diff satisfies node.Diffable: it compares the registry's current
// values against baseline (expected to be a *Registry snapshot taken at
// the last send) and returns one PatchPayload per parameter whose plain
// value changed. A baseline of a different concrete type yields no
// patches, since there is nothing meaningful to diff against.
func (r *Registry) Diff(baseline node.Diffable) []event.PatchPayload {
	base, ok := baseline.(*Registry)
	if !ok {
		return nil
	}
	baseSnap := base.Snapshot()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var patches []event.PatchPayload
	for _, path := range r.order {
		cur := r.params[path].GetPlainValue()
		if prev, ok := baseSnap[path]; ok && prev == cur {
			continue
		}
		patches = append(patches, event.PatchPayload{Path: path, Data: cur})
	}
	sort.Slice(patches, func(i, j int) bool { return patches[i].Path < patches[j].Path })
	return patches
}

// DiffSnapshot compares against a raw Snapshot instead of another
// Diffable, for callers (like tests) that want to diff against a value
// captured earlier without holding a second live Registry around.
func (r *Registry) DiffSnapshot(baseline Snapshot) []event.PatchPayload {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var patches []event.PatchPayload
	for _, path := range r.order {
		cur := r.params[path].GetPlainValue()
		if prev, ok := baseline[path]; ok && prev == cur {
			continue
		}
		patches = append(patches, event.PatchPayload{Path: path, Data: cur})
	}
	sort.Slice(patches, func(i, j int) bool { return patches[i].Path < patches[j].Path })
	return patches
}

// ApplyPatch sets the named parameter's plain value from p.Data.
func (r *Registry) ApplyPatch(p event.PatchPayload) error {
	r.mu.RLock()
	param, ok := r.params[p.Path]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("param: no parameter registered at path %q", p.Path)
	}
	value, ok := p.Data.(float64)
	if !ok {
		return fmt.Errorf("param: patch for %q carries %T, want float64", p.Path, p.Data)
	}
	param.SetPlainValue(value)
	return nil
}
