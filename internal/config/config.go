// Package config loads and hot-reloads the session host's YAML settings file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HostConfig holds the session host's runtime settings, loaded from
// termalive.yaml with defaults filled in for anything the file omits.
type HostConfig struct {
	MaxSessions       int           `yaml:"max_sessions,omitempty"`
	DefaultBufferSize int           `yaml:"default_buffer_size,omitempty"`
	ProtocolVersion   int           `yaml:"protocol_version,omitempty"`
	IdleSweepInterval time.Duration `yaml:"idle_sweep_interval,omitempty"`
	WebSocketAddr     string        `yaml:"websocket_addr,omitempty"`
	PipePath          string        `yaml:"pipe_path,omitempty"`
	LogLevel          string        `yaml:"log_level,omitempty"`
}

// Defaults returns a HostConfig with every field set to its documented
// default, the base that Load merges a config file's values over.
func Defaults() HostConfig {
	return HostConfig{
		MaxSessions:       100,
		DefaultBufferSize: 64 * 1024,
		ProtocolVersion:   1,
		IdleSweepInterval: 30 * time.Second,
		WebSocketAddr:     "127.0.0.1:7681",
		PipePath:          defaultPipePath(),
		LogLevel:          "info",
	}
}

// Load reads path and overlays its values onto Defaults(). A missing file
// is not an error; Defaults() alone is returned.
func Load(path string) (HostConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg HostConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
