package serverrun

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/keeldb/keel/internal/config"
	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
)

func TestOptionsDataDirFallback(t *testing.T) {
	tests := []struct {
		name     string
		dataDir  string
		expected string
	}{
		{
			name:     "empty data dir uses default",
			dataDir:  "",
			expected: "", // Will be set to DefaultDataDir() in the function
		},
		{
			name:     "provided data dir is preserved",
			dataDir:  "/custom/data",
			expected: "/custom/data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{
				DataDir:       tt.dataDir,
				HTTPAddr:      ":7070",
				Fsync:         pebblestore.FsyncModeAlways,
				FsyncInterval: 5 * time.Millisecond,
				Config:        cfgpkg.Default(),
			}

			// Mirror the fallback Run applies.
			if opts.DataDir == "" {
				opts.DataDir = cfgpkg.DefaultDataDir()
			}

			if tt.expected == "" {
				if opts.DataDir == "" {
					t.Error("Expected DataDir to be set after fallback")
				}
				if !filepath.IsAbs(opts.DataDir) && !strings.HasPrefix(opts.DataDir, "./") {
					t.Errorf("Expected DataDir to be absolute or start with ./, got %s", opts.DataDir)
				}
			} else {
				if opts.DataDir != tt.expected {
					t.Errorf("Expected DataDir %s, got %s", tt.expected, opts.DataDir)
				}
			}
		})
	}
}

func TestDataDirStoreSubdirectory(t *testing.T) {
	baseDir := "/tmp/keel"
	expectedStoreDir := filepath.Join(baseDir, "store")

	opts := Options{
		DataDir: baseDir,
	}

	storeDir := filepath.Join(opts.DataDir, "store")
	if storeDir != expectedStoreDir {
		t.Errorf("Expected store dir %s, got %s", expectedStoreDir, storeDir)
	}
}

func TestDefaultDataDirIntegration(t *testing.T) {
	opts := Options{
		DataDir: "", // Empty to trigger fallback
	}

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	if opts.DataDir == "" {
		t.Error("DataDir should not be empty after fallback")
	}
	if !filepath.IsAbs(opts.DataDir) && !strings.HasPrefix(opts.DataDir, "./") {
		t.Errorf("DataDir should be absolute or start with ./, got %s", opts.DataDir)
	}
	if !strings.HasSuffix(opts.DataDir, "keel") && !strings.HasSuffix(opts.DataDir, "Keel") {
		t.Errorf("DataDir should end with 'keel', got %s", opts.DataDir)
	}
}

// TestRunIntegration verifies Run starts and shuts down cleanly. Minimal by
// necessity since Run binds a real listener.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	opts := Options{
		DataDir:       t.TempDir(),
		HTTPAddr:      "127.0.0.1:0", // automatic port selection
		Fsync:         pebblestore.FsyncModeNever,
		FsyncInterval: 1 * time.Millisecond,
		Config:        cfgpkg.Default(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := Run(ctx, opts)
	if err != nil && err != context.DeadlineExceeded && err != context.Canceled {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}
