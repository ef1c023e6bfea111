// Package discovery resolves installed plugins by group. Applications ask
// the process-wide Default resolver instead of scanning for plugins
// themselves, which lets tests substitute what a group resolves to.
package discovery

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"testbed/domain"
	"testbed/logging"
	"testbed/ports"
)

// ErrBackendUnavailable is returned when no discovery backend is configured,
// or the configured one is not installed.
var ErrBackendUnavailable = errors.New("discovery backend unavailable")

// Default is the process-wide resolver.
var Default = NewResolver(nil)

// Resolver caches backend lookups per group. An installed override takes
// precedence over the cache until it is uninstalled.
type Resolver struct {
	mu        sync.RWMutex
	backend   ports.DiscoveryBackend
	cache     map[string][]domain.EntryPoint
	overrides map[string][]domain.EntryPoint
}

// NewResolver creates a resolver backed by backend, which may be nil.
func NewResolver(backend ports.DiscoveryBackend) *Resolver {
	return &Resolver{
		backend:   backend,
		cache:     make(map[string][]domain.EntryPoint),
		overrides: make(map[string][]domain.EntryPoint),
	}
}

// SetBackend replaces the backend and drops the cache.
func (r *Resolver) SetBackend(backend ports.DiscoveryBackend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend = backend
	clear(r.cache)
}

// EntryPoints returns the descriptors registered under group.
func (r *Resolver) EntryPoints(group string) ([]domain.EntryPoint, error) {
	r.mu.RLock()
	if eps, ok := r.overrides[group]; ok {
		r.mu.RUnlock()
		return slices.Clone(eps), nil
	}
	r.mu.RUnlock()
	return r.lookup(group)
}

// Lookup returns the backend's view of group, ignoring any override.
func (r *Resolver) Lookup(group string) ([]domain.EntryPoint, error) {
	return r.lookup(group)
}

func (r *Resolver) lookup(group string) ([]domain.EntryPoint, error) {
	r.mu.RLock()
	eps, cached := r.cache[group]
	backend := r.backend
	r.mu.RUnlock()
	if cached {
		return slices.Clone(eps), nil
	}
	if backend == nil {
		return nil, ErrBackendUnavailable
	}

	eps, err := backend.EntryPoints(group)
	if err != nil {
		return nil, fmt.Errorf("failed to discover group %s: %w", group, err)
	}

	r.mu.Lock()
	r.cache[group] = slices.Clone(eps)
	r.mu.Unlock()
	return eps, nil
}

// Invalidate drops cached lookups for groups, or for every group when none
// are given. Overrides are untouched.
func (r *Resolver) Invalidate(groups ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(groups) == 0 {
		clear(r.cache)
		return
	}
	for _, g := range groups {
		delete(r.cache, g)
	}
}

// Installed returns the override currently installed for group.
func (r *Resolver) Installed(group string) ([]domain.EntryPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eps, ok := r.overrides[group]
	return slices.Clone(eps), ok
}

// Install makes group resolve to eps until Uninstall is called.
func (r *Resolver) Install(group string, eps []domain.EntryPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if eps == nil {
		eps = []domain.EntryPoint{}
	}
	r.overrides[group] = slices.Clone(eps)
	logging.Logger.Debug("Entry point override installed", "group", group, "count", len(eps))
}

// Uninstall removes the override for group.
func (r *Resolver) Uninstall(group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides, group)
	logging.Logger.Debug("Entry point override removed", "group", group)
}
