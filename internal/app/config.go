package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	SrcPath string // module source file or directory
	OutPath string // directory for generated artifacts

	LogFormat string
	LogLevel  string
	Workers   int

	// KVValues backs the kv capability. Populated from repeated --set flags.
	KVValues map[string]string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.SrcPath == "" {
		return nil, errors.New("SrcPath is a required configuration field and cannot be empty")
	}
	if cfg.OutPath == "" {
		cfg.OutPath = "generated"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &cfg, nil
}
