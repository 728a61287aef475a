package engine

import "fmt"

// visit marks for the depth-first topological sort.
const (
	unvisited = iota
	visiting
	visited
)

// Resolve returns a construction order for the requested modules.
//
// The order covers the transitive closure of requested: a dependency that
// was never requested is pulled in implicitly, exactly once. Every module
// appears after all of its dependencies. A nil or empty request resolves
// every registered module.
//
// The algorithm is a depth-first search with visiting/visited marks.
// Requested names are walked in the given order and dependencies in
// declaration order, so the result is deterministic.
//
// Errors (all *ConfigurationError, raised before any construction):
//   - CYCLE_DETECTED with the cycle path, e.g. [a b a]; self-dependency is [a a]
//   - UNKNOWN_DEPENDENCY naming the dependent module and the missing name
//   - UNKNOWN_MODULE for a requested name that is not registered
func Resolve(reg *Registry, requested []string) ([]string, error) {
	if len(requested) == 0 {
		requested = reg.Names()
	}

	marks := make(map[string]int, reg.Len())
	order := make([]string, 0, reg.Len())
	var stack []string

	var visit func(name, dependent string) error
	visit = func(name, dependent string) error {
		switch marks[name] {
		case visited:
			return nil
		case visiting:
			return newCycleError(cycleFromStack(stack, name))
		}

		spec, ok := reg.specs[name]
		if !ok {
			if dependent == "" {
				return &ConfigurationError{
					Code:    ErrCodeUnknownModule,
					Message: fmt.Sprintf("requested module %q is not registered", name),
					Module:  name,
				}
			}
			return &ConfigurationError{
				Code:       ErrCodeUnknownDependency,
				Message:    fmt.Sprintf("module %q depends on unregistered module %q", dependent, name),
				Module:     dependent,
				Dependency: name,
			}
		}

		marks[name] = visiting
		stack = append(stack, name)

		for _, dep := range spec.Dependencies {
			if err := visit(dep, name); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		marks[name] = visited
		order = append(order, name)
		return nil
	}

	for _, name := range requested {
		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// cycleFromStack extracts the cycle ending at name from the DFS stack.
// The returned path starts and ends with name.
func cycleFromStack(stack []string, name string) []string {
	start := 0
	for i, n := range stack {
		if n == name {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(stack)-start+1)
	cycle = append(cycle, stack[start:]...)
	return append(cycle, name)
}
