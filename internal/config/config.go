package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/keeldb/keel/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// HTTPAddr is the API listen address.
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`

	// DataDir holds the Pebble store. Empty selects DefaultDataDir().
	DataDir string `json:"dataDir" yaml:"dataDir"`

	// Fsync is the durability mode: always, interval or never.
	Fsync string `json:"fsync" yaml:"fsync"`

	// FsyncIntervalMs applies when Fsync is "interval".
	FsyncIntervalMs int `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`

	DefaultTenant   string `json:"defaultTenant" yaml:"defaultTenant"`
	TenantNameRegex string `json:"tenantNameRegex" yaml:"tenantNameRegex"`
	AllowAutoCreate bool   `json:"allowAutoCreateTenants" yaml:"allowAutoCreateTenants"`

	// EventBufferSize bounds each store's in-memory event buffer.
	EventBufferSize int `json:"eventBufferSize" yaml:"eventBufferSize"`

	// CheckpointIntervalMs is the safety-net checkpoint period.
	CheckpointIntervalMs int `json:"checkpointIntervalMs" yaml:"checkpointIntervalMs"`

	// WebhookTimeoutMs bounds each webhook sink post.
	WebhookTimeoutMs int `json:"webhookTimeoutMs" yaml:"webhookTimeoutMs"`

	// SubscriberBuffer is the per-connection send buffer length.
	SubscriberBuffer int `json:"subscriberBuffer" yaml:"subscriberBuffer"`

	Log log.Config `json:"log" yaml:"log"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:             ":7070",
		Fsync:                "always",
		DefaultTenant:        "default",
		AllowAutoCreate:      true,
		EventBufferSize:      10000,
		CheckpointIntervalMs: 30000,
		WebhookTimeoutMs:     5000,
		SubscriberBuffer:     64,
		Log:                  log.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
