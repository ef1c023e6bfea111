package domain

import "fmt"

// EntryPoint is one discoverable extension descriptor: a named reference to
// something a plugin registers under a discovery group.
type EntryPoint struct {
	Group string
	Name  string
	Value string
}

// String renders the descriptor in "name = value" form.
func (e EntryPoint) String() string {
	return fmt.Sprintf("%s = %s", e.Name, e.Value)
}

// EntryPointMap indexes a descriptor set by name.
func EntryPointMap(eps []EntryPoint) map[string]string {
	m := make(map[string]string, len(eps))
	for _, ep := range eps {
		m[ep.Name] = ep.Value
	}
	return m
}
