package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds tool defaults that can be overridden by CLI flags.
type Config struct {
	// FSType is the filesystem created on the assembled array
	FSType string `yaml:"fs_type,omitempty"`

	// MdadmPath overrides the mdadm binary name
	MdadmPath string `yaml:"mdadm_path,omitempty"`

	// ScriptDir is where teardown scripts are written
	ScriptDir string `yaml:"script_dir,omitempty"`
}

// defaultConfig provides baseline settings when no config file exists.
var defaultConfig = Config{
	FSType:    "ext4",
	MdadmPath: "mdadm",
	ScriptDir: "/var/run/raidlab",
}

// Load reads the config at path, falling back to the default locations and
// then to built-in defaults. A present but malformed file is an error; a
// missing file is not.
func Load(path string) (*Config, error) {
	if path == "" {
		candidates := []string{
			"/etc/raidlab/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/raidlab/config.yaml"),
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Re-apply defaults for keys the file left empty
	if cfg.FSType == "" {
		cfg.FSType = defaultConfig.FSType
	}
	if cfg.MdadmPath == "" {
		cfg.MdadmPath = defaultConfig.MdadmPath
	}
	if cfg.ScriptDir == "" {
		cfg.ScriptDir = defaultConfig.ScriptDir
	}
	return &cfg, nil
}
