package docplugins

import "fmt"

// Registry holds the plugins active for the current document, in
// registration order. Unlike the teacher's lint.Registry (which sorts
// for deterministic diagnostic ordering), DP must preserve registration
// order verbatim: the spec requires plugins to run in the order they
// were installed, since later plugins (mdx-detection) depend on earlier
// ones (tables, footnotes) having already settled block types.
type Registry struct {
	byID  map[string]Plugin
	order []string
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Plugin)}
}

// Register adds p to the registry. Registering the same ID twice
// replaces the existing plugin but keeps its original position, since
// the engine guarantees at most one instance per known plugin ID.
func (r *Registry) Register(p Plugin) {
	id := p.ID()
	if _, exists := r.byID[id]; !exists {
		r.order = append(r.order, id)
	}
	r.byID[id] = p
}

// Get returns the registered plugin for id, if any.
func (r *Registry) Get(id string) (Plugin, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []Plugin {
	out := make([]Plugin, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// String renders the registration order, used in diagnostics.
func (r *Registry) String() string {
	return fmt.Sprintf("docplugins.Registry%v", r.order)
}
