// Package config loads the shell configuration from a YAML file.
// A missing file yields defaults; the core packages never read config
// directly, they take explicit constructor arguments.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds shell-level settings.
type Config struct {
	// DataDir holds the local databases (kv state and the dev/test
	// table store).
	DataDir string `yaml:"data_dir"`

	// ProbeURL, when set, enables HTTP connectivity probing instead
	// of the flag-driven manual monitor.
	ProbeURL string `yaml:"probe_url"`

	Log LogConfig `yaml:"log"`
}

// LogConfig configures optional rotating file output.
type LogConfig struct {
	// File is the log file path. Empty means stderr only.
	File string `yaml:"file"`

	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DataDir: filepath.Join(home, ".fuelsync"),
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads the config at path. A missing file is not an error: the
// defaults are returned. Fields absent from the file keep defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
