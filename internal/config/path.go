package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir picks the data directory for this host: the XDG data home
// when set, /var/lib on Linux, the platform application-support directory on
// macOS and Windows, and ~/.keel when nothing better exists. Without a
// resolvable home it falls back to ./data next to the process.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "keel")
	}
	candidates := []struct{ probe, dir string }{
		{"/var/lib", "/var/lib/keel"},
		{filepath.Join(home, "Library"), filepath.Join(home, "Library", "Application Support", "Keel")},
		{filepath.Join(home, "AppData"), filepath.Join(home, "AppData", "Local", "Keel")},
	}
	for _, c := range candidates {
		if isDir(c.probe) {
			return c.dir
		}
	}
	return filepath.Join(home, ".keel")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
