// Package config loads the supervisor's static agent roster and the
// fleet's ambient logging settings from a YAML file, with
// os.ExpandEnv applied before parsing so ${VAR} references resolve
// against the process environment. Per-process secrets (RPC URL,
// private key, hub URL, API keys) are read directly via os.Getenv in
// each cmd/*/main.go rather than threaded through this file, since they
// differ per child process and have no sane shared default.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the fleet.
type Config struct {
	General GeneralConfig `yaml:"general"`
	Agents  []AgentSpec   `yaml:"agents"`
}

type GeneralConfig struct {
	InstanceID string `yaml:"instance_id"`
	LogLevel   string `yaml:"log_level"`  // debug|info|warn|error
	LogFormat  string `yaml:"log_format"` // json|console
}

// AgentSpec is one entry in the supervisor's roster: the agent's display
// name, the path to its compiled binary, and the delay (from supervisor
// start) at which it is first launched.
type AgentSpec struct {
	Name    string            `yaml:"name"`
	Path    string            `yaml:"path"`
	DelayMs int64             `yaml:"delay_ms"`
	Env     map[string]string `yaml:"env"`
}

// Load reads and parses a YAML configuration file, expanding ${VAR}
// references against the process environment first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "duckmon-1"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if a.Name == "" || a.Path == "" {
			return fmt.Errorf("config: agent roster entry missing name or path: %+v", a)
		}
		if seen[a.Name] {
			return fmt.Errorf("config: duplicate agent name %q in roster", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

// DefaultRoster is the fleet's out-of-the-box launch schedule, used when
// no config file is supplied. Delays are staggered by 5s per agent so
// the registry contract never sees eight simultaneous first-register calls. Every
// entry runs the same generic agent binary, distinguished at launch by
// the AGENT_VARIANT environment variable.
func DefaultRoster(agentBinaryPath string) []AgentSpec {
	variants := []string{"trading", "prediction", "market", "whale", "liquidity", "sentiment", "onchain", "gas"}
	roster := make([]AgentSpec, 0, len(variants))
	for i, v := range variants {
		roster = append(roster, AgentSpec{
			Name:    v,
			Path:    agentBinaryPath,
			DelayMs: int64(i) * 5000,
			Env:     map[string]string{"AGENT_VARIANT": v},
		})
	}
	return roster
}
