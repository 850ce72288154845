package config

import (
	"os"
	"strconv"
)

// FromEnv overlays KEEL_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("KEEL_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("KEEL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("KEEL_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("KEEL_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("KEEL_DEFAULT_TENANT"); v != "" {
		cfg.DefaultTenant = v
	}
	if v := os.Getenv("KEEL_TENANT_NAME_REGEX"); v != "" {
		cfg.TenantNameRegex = v
	}
	if v := os.Getenv("KEEL_ALLOW_AUTO_CREATE_TENANTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAutoCreate = b
		}
	}
	if v := os.Getenv("KEEL_EVENT_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventBufferSize = n
		}
	}
	if v := os.Getenv("KEEL_CHECKPOINT_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CheckpointIntervalMs = n
		}
	}
	if v := os.Getenv("KEEL_WEBHOOK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WebhookTimeoutMs = n
		}
	}
	if v := os.Getenv("KEEL_SUBSCRIBER_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SubscriberBuffer = n
		}
	}
	if v := os.Getenv("KEEL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KEEL_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("KEEL_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}
