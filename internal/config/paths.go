package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// UserConfigDir returns ~/.termalive, creating it if necessary.
func UserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(homeDir, ".termalive")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultConfigPath returns the default location of termalive.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "termalive.yaml"), nil
}

func defaultPipePath() string {
	if runtime.GOOS == "windows" {
		return "termalive"
	}
	return filepath.Join(os.TempDir(), "termalive.sock")
}
