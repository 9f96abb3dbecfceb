package registry

import (
	"fmt"
	"strings"
	"sync"
)

// Definition couples a Descriptor with the Loader that builds its compiled
// graph. Loaders run at most once per process; their result is cached.
type Definition struct {
	Descriptor

	Loader func() (Workflow, error)
}

// Registry holds the workflow table. Register everything at startup; after
// that the descriptor table is read-only and only the graph cache mutates,
// under the registry mutex.
type Registry struct {
	mu    sync.Mutex
	order []string
	defs  map[string]Definition
	cache map[string]Workflow
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		defs:  make(map[string]Definition),
		cache: make(map[string]Workflow),
	}
}

// Register adds a workflow definition. Names are unique; registration order
// is preserved for listings.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("workflow definition has no name")
	}
	if def.Loader == nil {
		return fmt.Errorf("workflow %s has no loader", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.defs[def.Name]; dup {
		return fmt.Errorf("workflow %s already registered", def.Name)
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownGraph, name)
	}
	return def.Descriptor, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	// Industry matches by equality when non-empty.
	Industry string
	// Tags matches descriptors carrying at least one of the listed tags.
	Tags []string
	// Capability is an arbitrary predicate over declared capabilities.
	Capability func(Capabilities) bool
}

func (f Filter) matches(d Descriptor) bool {
	if f.Industry != "" && d.Industry != f.Industry {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, tag := range f.Tags {
			if d.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Capability != nil && !f.Capability(d.Capabilities) {
		return false
	}
	return true
}

// List returns descriptors in registration order, filtered.
func (r *Registry) List(f Filter) []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		d := r.defs[name].Descriptor
		if f.matches(d) {
			out = append(out, d)
		}
	}
	return out
}

// Load returns the compiled workflow registered under name, building it on
// first use. Concurrent callers of the same name see one build; the result
// is cached for the life of the process.
func (r *Registry) Load(name string) (Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wf, ok := r.cache[name]; ok {
		return wf, nil
	}

	def, ok := r.defs[name]
	if !ok {
		available := strings.Join(r.order, ", ")
		return nil, fmt.Errorf("%w: %s (available graphs: %s)", ErrUnknownGraph, name, available)
	}

	wf, err := def.Loader()
	if err != nil {
		return nil, &LoadError{Graph: name, Err: err}
	}
	if wf == nil {
		return nil, &LoadError{Graph: name, Err: fmt.Errorf("loader returned no workflow")}
	}

	r.cache[name] = wf
	return wf, nil
}

// Stats reports registry shape the way the service health endpoint exposes
// it.
type Stats struct {
	TotalWorkflows      int            `json:"total_workflows"`
	ByIndustry          map[string]int `json:"by_industry"`
	LoadedGraphs        int            `json:"loaded_graphs"`
	AvailableIndustries []string       `json:"available_industries"`
}

// Stats summarizes the registry. Industries appear in first-registration
// order.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		TotalWorkflows: len(r.defs),
		ByIndustry:     make(map[string]int),
		LoadedGraphs:   len(r.cache),
	}
	for _, name := range r.order {
		industry := r.defs[name].Industry
		if _, seen := s.ByIndustry[industry]; !seen {
			s.AvailableIndustries = append(s.AvailableIndustries, industry)
		}
		s.ByIndustry[industry]++
	}
	return s
}
