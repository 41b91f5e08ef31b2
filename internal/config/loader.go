package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"qbconnect/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/qbconnect"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns the user configuration directory.
// It panics when the home directory cannot be determined, which only happens
// in broken environments where nothing else would work either.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the specified directory. A missing
// config.yaml is not an error; defaults are returned. A malformed file is.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config at %s: %w", configFilePath, err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// Validate checks the loaded configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Environment != "" && !c.Environment.IsValid() {
		return fmt.Errorf("unknown environment %q (expected %s or %s)",
			c.Environment, EnvironmentSandbox, EnvironmentProduction)
	}

	switch c.Storage.Backend {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q (expected file or sqlite)", c.Storage.Backend)
	}

	if c.Webhook.Port < 0 || c.Webhook.Port > 65535 {
		return fmt.Errorf("webhook port %d out of range", c.Webhook.Port)
	}

	return nil
}
