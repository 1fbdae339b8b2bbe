package util

import (
	"os"
	"path/filepath"
)

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// RefsyncConfigPath returns the refsync configuration directory
func RefsyncConfigPath() string {
	return filepath.Join(HomeDir(), ".config", "refsync")
}

// ExpandPath expands ~ to the home directory and makes relative paths
// absolute against the working directory.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		return HomeDir()
	}
	if len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator) {
		return filepath.Join(HomeDir(), path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
