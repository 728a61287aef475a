package engine

import "fmt"

// Module is a constructed analysis module instance.
//
// The engine treats instances opaquely. Modules may additionally implement
// Activatable to report inactivity after replay.
type Module any

// Activatable is implemented by modules whose contribution depends on the
// log (e.g. the entity never used the tracked ability). Active is read
// after replay; inactive modules still receive every event.
type Activatable interface {
	Active() bool
}

// Factory constructs a module. It may subscribe to events and read (never
// write) its dependencies through ic. A returned error or a panic marks the
// module unavailable.
type Factory func(ic *InitContext) (Module, error)

// Spec declares a module: its name, the modules it requires constructed
// first, and its factory. Specs are registered before any run.
type Spec struct {
	Name         string
	Dependencies []string
	Factory      Factory
}

// Registry is the explicit name -> spec table for a set of modules.
//
// INVARIANTS:
//   - Names are unique
//   - Registration order is preserved and used as the default request order
//   - Specs are copied on registration; later caller mutation has no effect
type Registry struct {
	specs map[string]Spec
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds a spec. Dependencies are not checked here: a dependency may
// be registered later. Unknown dependencies are reported by Resolve.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return &ConfigurationError{Code: ErrCodeInvalidSpec, Message: "module name is required"}
	}
	if spec.Factory == nil {
		return &ConfigurationError{Code: ErrCodeInvalidSpec, Message: "module factory is required", Module: spec.Name}
	}
	if _, exists := r.specs[spec.Name]; exists {
		return &ConfigurationError{
			Code:    ErrCodeDuplicateModule,
			Message: fmt.Sprintf("module %q already registered", spec.Name),
			Module:  spec.Name,
		}
	}

	deps := make([]string, len(spec.Dependencies))
	copy(deps, spec.Dependencies)
	spec.Dependencies = deps

	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// MustRegister is like Register but panics on error.
// Use only for static module tables known to be valid.
func (r *Registry) MustRegister(specs ...Spec) {
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Names returns module names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.order)
}
