// Package config holds Keel's runtime configuration: the Default baseline,
// JSON/YAML file loading, and the KEEL_* environment overlay. The CLI layers
// them file first, then environment, then explicit flags.
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/keel.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
