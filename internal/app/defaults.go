package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables overriding the default locations.
const (
	EnvConfigPath = "KITCHENSYNC_CONFIG_PATH"
	EnvHome       = "KITCHENSYNC_HOME"
)

// Paths are the locations kitchensync keeps its own files in. None of them
// are inside a synced tree.
type Paths struct {
	ConfigPath  string // default ~/.config/kitchensync.toml
	BaseDir     string // default ~/.local/share/kitchensync
	LogDir      string
	JournalPath string
}

// DefaultPaths returns the application locations, checking environment
// variables first.
func DefaultPaths() (Paths, error) {
	configPath, err := fromEnv(EnvConfigPath, ".config", "kitchensync.toml")
	if err != nil {
		return Paths{}, err
	}
	baseDir, err := fromEnv(EnvHome, ".local", "share", "kitchensync")
	if err != nil {
		return Paths{}, err
	}

	return Paths{
		ConfigPath:  configPath,
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		JournalPath: filepath.Join(baseDir, "journal.db"),
	}, nil
}

// fromEnv returns the value of the environment variable name, or the home
// directory joined with elem when it is unset.
func fromEnv(name string, elem ...string) (string, error) {
	if path := os.Getenv(name); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
