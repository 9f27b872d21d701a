package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/hybridsim/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"euler": func() dynamo.Integrator { return NewEuler() },
	"rk4":   func() dynamo.Integrator { return NewRK4() },
}

// New returns a fresh integrator by name.
func New(name string) (dynamo.Integrator, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (have %v)", name, Names())
	}
	return factory(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
