// Package entrypoints temporarily replaces what discovery groups resolve to
// for the duration of one test.
package entrypoints

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"testbed/discovery"
	"testbed/domain"
	"testbed/logging"
)

// Registry installs overrides on a resolver and restores them in reverse
// order. Overrides may only be installed between Begin and End.
type Registry struct {
	resolver *discovery.Resolver

	mu        sync.Mutex
	active    bool
	stack     []*Override
	originals map[string][]domain.EntryPoint
}

// NewRegistry creates a registry over resolver. A nil resolver means
// discovery.Default.
func NewRegistry(resolver *discovery.Resolver) *Registry {
	if resolver == nil {
		resolver = discovery.Default
	}
	return &Registry{resolver: resolver}
}

// Resolver returns the resolver overrides are installed on.
func (r *Registry) Resolver() *discovery.Resolver {
	return r.resolver
}

// Begin opens a test scope.
func (r *Registry) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return fmt.Errorf("%w: entry point scope already open", domain.ErrIsolationViolation)
	}
	r.active = true
	r.originals = make(map[string][]domain.EntryPoint)
	return nil
}

// End restores every override still installed, newest first, and closes
// the scope.
func (r *Registry) End() error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil
	}
	pending := slices.Clone(r.stack)
	r.mu.Unlock()

	var errs []error
	for i := len(pending) - 1; i >= 0; i-- {
		if err := pending[i].Restore(); err != nil {
			errs = append(errs, err)
		}
	}

	r.mu.Lock()
	r.active = false
	r.stack = nil
	r.originals = nil
	r.mu.Unlock()
	return errors.Join(errs...)
}

// Active reports whether a scope is open.
func (r *Registry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Depth returns the number of installed overrides.
func (r *Registry) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// Original returns the descriptor set group resolved to before the first
// override of it in the current scope.
func (r *Registry) Original(group string) ([]domain.EntryPoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps, ok := r.originals[group]
	return slices.Clone(eps), ok
}

// Override makes group resolve to exactly eps until the returned override is
// restored.
func (r *Registry) Override(group string, eps []domain.EntryPoint) (*Override, error) {
	return r.install(group, func([]domain.EntryPoint) []domain.EntryPoint {
		return slices.Clone(eps)
	})
}

// Extend makes group resolve to its original descriptors followed by extras.
func (r *Registry) Extend(group string, extras []domain.EntryPoint) (*Override, error) {
	return r.install(group, func(original []domain.EntryPoint) []domain.EntryPoint {
		return append(slices.Clone(original), extras...)
	})
}

// OverrideMap is Override with descriptors given as name to value.
func (r *Registry) OverrideMap(group string, m map[string]string) (*Override, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)

	eps := make([]domain.EntryPoint, 0, len(m))
	for _, name := range names {
		eps = append(eps, domain.EntryPoint{Group: group, Name: name, Value: m[name]})
	}
	return r.Override(group, eps)
}

func (r *Registry) install(group string, build func(original []domain.EntryPoint) []domain.EntryPoint) (*Override, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, fmt.Errorf("%w: entry point override of %s outside a test scope", domain.ErrIsolationViolation, group)
	}

	original, captured := r.originals[group]
	if !captured {
		var err error
		if original, err = r.capture(group); err != nil {
			return nil, err
		}
		r.originals[group] = original
	}

	prev, hadPrev := r.resolver.Installed(group)
	eps := build(original)
	for i := range eps {
		eps[i].Group = group
	}
	r.resolver.Install(group, eps)

	o := &Override{
		registry: r,
		group:    group,
		prev:     prev,
		hadPrev:  hadPrev,
	}
	r.stack = append(r.stack, o)
	return o, nil
}

// capture snapshots what group resolves to right now. A missing backend
// yields an empty set; any other discovery failure is returned.
func (r *Registry) capture(group string) ([]domain.EntryPoint, error) {
	eps, err := r.resolver.EntryPoints(group)
	if errors.Is(err, discovery.ErrBackendUnavailable) {
		logging.Logger.Debug("No discovery backend, capturing empty set", "group", group)
		return []domain.EntryPoint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to capture entry points of %s: %w", group, err)
	}
	if eps == nil {
		eps = []domain.EntryPoint{}
	}
	return eps, nil
}

// Override is one installed substitution.
type Override struct {
	registry *Registry
	group    string
	prev     []domain.EntryPoint
	hadPrev  bool
	restored bool
}

// Group returns the overridden group.
func (o *Override) Group() string {
	return o.group
}

// Restore reinstates what the group resolved to before this override. Only
// the most recently installed override may be restored.
func (o *Override) Restore() error {
	r := o.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.restored {
		return fmt.Errorf("%w: override of %s restored twice", domain.ErrIsolationViolation, o.group)
	}
	if len(r.stack) == 0 || r.stack[len(r.stack)-1] != o {
		return fmt.Errorf("%w: override of %s restored out of order", domain.ErrIsolationViolation, o.group)
	}

	if o.hadPrev {
		r.resolver.Install(o.group, o.prev)
	} else {
		r.resolver.Uninstall(o.group)
	}
	o.restored = true
	r.stack = r.stack[:len(r.stack)-1]
	return nil
}
