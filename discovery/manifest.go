package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"testbed/domain"
	"testbed/logging"
)

// Manifest is one plugin's declaration of the entry points it provides.
//
//	name: accounts
//	entry_points:
//	  testbed.models:
//	    - "users = accounts/models:User"
type Manifest struct {
	Name        string              `yaml:"name" toml:"name"`
	EntryPoints map[string][]string `yaml:"entry_points" toml:"entry_points"`
}

// ManifestBackend discovers entry points from manifest files (*.yaml, *.yml,
// *.toml) in a set of directories. Missing directories are skipped.
type ManifestBackend struct {
	dirs []string
}

// NewManifestBackend creates a backend reading manifests from dirs.
func NewManifestBackend(dirs ...string) *ManifestBackend {
	return &ManifestBackend{dirs: dirs}
}

// Dirs returns the directories the backend reads.
func (b *ManifestBackend) Dirs() []string {
	return slices.Clone(b.dirs)
}

// EntryPoints returns the entry points every manifest declares for group,
// in directory then file name order.
func (b *ManifestBackend) EntryPoints(group string) ([]domain.EntryPoint, error) {
	manifests, err := b.Manifests()
	if err != nil {
		return nil, err
	}

	var eps []domain.EntryPoint
	for _, m := range manifests {
		parsed, err := ParseEntryPoints(group, m.EntryPoints[group])
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", m.Name, err)
		}
		eps = append(eps, parsed...)
	}
	return eps, nil
}

// Groups returns every group declared by any manifest, sorted.
func (b *ManifestBackend) Groups() ([]string, error) {
	manifests, err := b.Manifests()
	if err != nil {
		return nil, err
	}
	var groups []string
	for _, m := range manifests {
		for g := range m.EntryPoints {
			if !slices.Contains(groups, g) {
				groups = append(groups, g)
			}
		}
	}
	slices.Sort(groups)
	return groups, nil
}

// Manifests loads every manifest file.
func (b *ManifestBackend) Manifests() ([]Manifest, error) {
	var manifests []Manifest
	for _, dir := range b.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read manifest directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isManifest(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			m, err := LoadManifest(path)
			if err != nil {
				return nil, err
			}
			manifests = append(manifests, m)
		}
	}
	return manifests, nil
}

// LoadManifest reads one manifest file. Its name defaults to the file name
// without extension.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &m)
	default:
		err = yaml.Unmarshal(data, &m)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	logging.Logger.Debug("Manifest loaded", "path", path, "name", m.Name, "groups", len(m.EntryPoints))
	return m, nil
}

func isManifest(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}
