package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultStateDir returns the default taskmirror state directory.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	return filepath.Join(home, ".local", "state", "taskmirror"), nil
}

// DefaultDatabasePath returns the default sqlite document store path.
func DefaultDatabasePath() (string, error) {
	dir, err := DefaultStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tasks.db"), nil
}

// GlobalConfigPath returns the path of the user's global config file.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "taskmirror", "config.toml"), nil
}

// ResolveWithDefault returns value if set, otherwise the result of fallback.
func ResolveWithDefault(value string, fallback func() (string, error)) (string, error) {
	if value != "" {
		return value, nil
	}
	return fallback()
}
