package ports

import "testbed/domain"

// DiscoveryBackend finds installed plugins by group
type DiscoveryBackend interface {
	EntryPoints(group string) ([]domain.EntryPoint, error)
}
