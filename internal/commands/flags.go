package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hay-kot/formrelay/internal/core/config"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	// Overrides are applied on top of the config file.
	Overrides config.Overrides

	// Config is read in the Before hook and available to all commands. It is
	// not validated there so that 'config validate' and 'doctor' can report
	// on a broken file; use ValidConfig before acting on it.
	Config *config.Config
}

// ValidConfig returns the loaded configuration if it passes validation.
func (f *Flags) ValidConfig() (*config.Config, error) {
	if f.Config == nil {
		return nil, errors.New("configuration not loaded")
	}
	if err := f.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return f.Config, nil
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "formrelay", "config.yaml")
}
