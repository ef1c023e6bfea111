package discovery

import (
	"fmt"
	"strings"

	"testbed/domain"
)

// ParseEntryPoint parses a "name = value" descriptor.
func ParseEntryPoint(group, decl string) (domain.EntryPoint, error) {
	name, value, ok := strings.Cut(decl, "=")
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if !ok || name == "" || value == "" {
		return domain.EntryPoint{}, fmt.Errorf("invalid entry point %q in group %s: expected \"name = value\"", decl, group)
	}
	return domain.EntryPoint{Group: group, Name: name, Value: value}, nil
}

// ParseEntryPoints parses a list of descriptors for one group.
func ParseEntryPoints(group string, decls []string) ([]domain.EntryPoint, error) {
	eps := make([]domain.EntryPoint, 0, len(decls))
	for _, decl := range decls {
		ep, err := ParseEntryPoint(group, decl)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}
