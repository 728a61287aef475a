package engine

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// CycleReport describes one dependency cycle found by static analysis.
type CycleReport struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeRegistry performs static analysis over every registered module.
//
// Unlike Resolve, which stops at the first problem on the requested
// closure, AnalyzeRegistry reports every unknown dependency and every
// cycle in the registry. It is intended for validation tooling.
//
// The algorithm:
//  1. Collect unknown dependencies in registration order
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
func AnalyzeRegistry(reg *Registry) ([]*ConfigurationError, []CycleReport) {
	var unknown []*ConfigurationError
	for _, name := range reg.order {
		for _, dep := range reg.specs[name].Dependencies {
			if _, ok := reg.specs[dep]; !ok {
				unknown = append(unknown, &ConfigurationError{
					Code:       ErrCodeUnknownDependency,
					Message:    fmt.Sprintf("module %q depends on unregistered module %q", name, dep),
					Module:     name,
					Dependency: dep,
				})
			}
		}
	}

	graph := make(map[string][]string, reg.Len())
	for _, name := range reg.order {
		for _, dep := range reg.specs[name].Dependencies {
			if _, ok := reg.specs[dep]; ok {
				graph[name] = append(graph[name], dep)
			}
		}
	}

	var cycles []CycleReport
	for _, scc := range tarjanSCC(reg.order, graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToReport(scc, graph))
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i].Path, "\x00") < strings.Join(cycles[j].Path, "\x00")
	})

	return unknown, cycles
}

func hasSelfLoop(node string, graph map[string][]string) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order for deterministic output.
func tarjanSCC(nodes []string, graph map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range nodes {
		if _, seen := indices[node]; !seen {
			strongConnect(node)
		}
	}

	return sccs
}

// sccToReport reconstructs a cycle path through an SCC, starting at its
// lexically smallest member so that output is stable.
func sccToReport(scc []string, graph map[string][]string) CycleReport {
	members := make([]string, len(scc))
	copy(members, scc)
	sort.Strings(members)

	if len(members) == 1 {
		name := members[0]
		return CycleReport{
			Path:    []string{name, name},
			Message: fmt.Sprintf("module %s depends on itself", name),
		}
	}

	inSCC := make(map[string]bool, len(members))
	for _, n := range members {
		inSCC[n] = true
	}

	path := shortestCycle(members[0], inSCC, graph)
	return CycleReport{
		Path:    path,
		Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> ")),
	}
}

// shortestCycle returns the shortest path start -> ... -> start using only
// SCC members. Every SCC member lies on such a path, so one always exists.
// Neighbors are explored in declared order, which keeps ties deterministic.
func shortestCycle(start string, inSCC map[string]bool, graph map[string][]string) []string {
	parent := map[string]string{}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, neighbor := range graph[current] {
			if !inSCC[neighbor] {
				continue
			}
			if neighbor == start {
				path := []string{start}
				for n := current; n != start; n = parent[n] {
					path = append(path, n)
				}
				path = append(path, start)
				slices.Reverse(path[1 : len(path)-1])
				return path
			}
			if _, seen := parent[neighbor]; !seen {
				parent[neighbor] = current
				queue = append(queue, neighbor)
			}
		}
	}
	return []string{start}
}
