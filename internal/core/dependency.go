package core

import (
	"fmt"
	"strings"
)

// PluginSpec is a plugin declaration with named dependencies, as found in a configuration file
type PluginSpec struct {
	Name      string
	DependsOn []string
}

// ResolveOrder returns the specs sorted so that every plugin follows its dependencies.
// Declaration order is kept wherever dependencies do not force a change.
func ResolveOrder(specs []PluginSpec) ([]PluginSpec, error) {
	index := make(map[string]int, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("plugin #%d: %w", i, ErrEmptyName)
		}
		if _, exists := index[spec.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePlugin, spec.Name)
		}
		index[spec.Name] = i
	}

	// Build reverse edges and in-degrees
	inDegree := make([]int, len(specs))
	dependents := make([][]int, len(specs))
	for i, spec := range specs {
		for _, dep := range spec.DependsOn {
			if dep == spec.Name {
				return nil, fmt.Errorf("%w: %q", ErrSelfDependency, spec.Name)
			}
			j, exists := index[dep]
			if !exists {
				return nil, fmt.Errorf("%w: plugin %q requires %q", ErrUnknownDependency, spec.Name, dep)
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// Always take the earliest declared spec among the ready ones
	placed := make([]bool, len(specs))
	ordered := make([]PluginSpec, 0, len(specs))
	for len(ordered) < len(specs) {
		next := -1
		for i := range specs {
			if !placed[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(unplaced(specs, placed), ", "))
		}

		placed[next] = true
		ordered = append(ordered, specs[next])
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}

	return ordered, nil
}

func unplaced(specs []PluginSpec, placed []bool) []string {
	var names []string
	for i, spec := range specs {
		if !placed[i] {
			names = append(names, spec.Name)
		}
	}
	return names
}
