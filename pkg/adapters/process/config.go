package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the runner looks for its configuration, relative to the workspace root.
const DefaultConfigPath = ".canopy/runner.yaml"

// Config represents the configuration for task process execution.
type Config struct {
	// Env is added to the environment of every task.
	Env map[string]string `yaml:"env" json:"env"`

	// Timeout bounds each task ("10m"). Empty means no limit.
	Timeout string `yaml:"timeout" json:"timeout"`

	// Projects overrides Env and Timeout per project path.
	Projects map[string]ProjectConfig `yaml:"projects" json:"projects"`
}

// ProjectConfig holds per-project overrides.
type ProjectConfig struct {
	Env     map[string]string `yaml:"env" json:"env"`
	Timeout string            `yaml:"timeout" json:"timeout"`
}

// LoadConfig reads a configuration file (YAML or JSON).
// A missing file yields an empty configuration.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("failed to read runner config: %w", err)
	}

	var cfg Config
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if _, err := parseTimeout(cfg.Timeout); err != nil {
		return Config{}, err
	}
	for p, pc := range cfg.Projects {
		if _, err := parseTimeout(pc.Timeout); err != nil {
			return Config{}, fmt.Errorf("project %q: %w", p, err)
		}
	}
	return cfg, nil
}

// settings resolves the environment and timeout that apply to a project.
func (c Config) settings(project string) (map[string]string, time.Duration) {
	env := make(map[string]string, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	timeout, _ := parseTimeout(c.Timeout)

	if pc, ok := c.Projects[project]; ok {
		for k, v := range pc.Env {
			env[k] = v
		}
		if pc.Timeout != "" {
			timeout, _ = parseTimeout(pc.Timeout)
		}
	}
	return env, timeout
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	return d, nil
}
