package paths

import (
	"os"
	"path/filepath"
)

// GetTestbedHome returns TESTBED_HOME or ~/.testbed default
func GetTestbedHome() string {
	home := os.Getenv("TESTBED_HOME")
	if home == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".testbed"
		}
		return filepath.Join(homeDir, ".testbed")
	}
	return ExpandPath(home)
}

// GetSettingsPath returns $TESTBED_HOME/settings.json
func GetSettingsPath() string {
	return filepath.Join(GetTestbedHome(), "settings.json")
}

// GetManifestDir returns $TESTBED_HOME/plugins
func GetManifestDir() string {
	return filepath.Join(GetTestbedHome(), "plugins")
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			if len(path) == 1 {
				return homeDir
			}
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
