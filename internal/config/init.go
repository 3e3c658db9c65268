package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureConfigExists creates a config file with template if it doesn't exist
func EnsureConfigExists(configPath string) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		return nil // Config exists, nothing to do
	}

	// Create config directory if needed
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write template config
	if err := os.WriteFile(configPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}

	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/modelctl/config.yaml, or
// ~/.config/modelctl/config.yaml when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "modelctl", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "modelctl", "config.yaml"), nil
}
