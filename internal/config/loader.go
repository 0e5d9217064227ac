package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/kubedbg"
	projectConfigDir = ".kubedbg"
	configFileName   = "config.yaml"
)

// LoadConfig loads the kubedbg configuration by layering default, user, and
// project settings. Missing files are not errors; unreadable ones are.
func LoadConfig() (Config, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userConfig, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			config = mergeConfigs(config, userConfig)
		}
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else {
		if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
			projectConfig, err := loadConfigFromFile(projectConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
			}
			config = mergeConfigs(config, projectConfig)
		}
	}

	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	cwd, err := osGetwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	return filepath.Join(cwd, projectConfigDir, configFileName), nil
}

func loadConfigFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// mergeConfigs overlays non-zero fields of overlay onto base.
func mergeConfigs(base, overlay Config) Config {
	merged := base

	if overlay.Agent.Image != "" {
		merged.Agent.Image = overlay.Agent.Image
	}
	if overlay.Agent.SSHPort != 0 {
		merged.Agent.SSHPort = overlay.Agent.SSHPort
	}
	if overlay.Agent.ContainerPrefix != "" {
		merged.Agent.ContainerPrefix = overlay.Agent.ContainerPrefix
	}
	if overlay.Attach.Timeout != 0 {
		merged.Attach.Timeout = overlay.Attach.Timeout
	}
	if overlay.Attach.PollInterval != 0 {
		merged.Attach.PollInterval = overlay.Attach.PollInterval
	}
	if overlay.Debugger.AdapterPath != "" {
		merged.Debugger.AdapterPath = overlay.Debugger.AdapterPath
	}
	if overlay.Debugger.RemoteStubPath != "" {
		merged.Debugger.RemoteStubPath = overlay.Debugger.RemoteStubPath
	}
	if overlay.Debugger.InterpreterFlag != "" {
		merged.Debugger.InterpreterFlag = overlay.Debugger.InterpreterFlag
	}
	if overlay.KubeContext != "" {
		merged.KubeContext = overlay.KubeContext
	}

	return merged
}

// DebugContainerName derives the deterministic ephemeral container name for a
// target container. The same target always maps to the same name so repeated
// attach attempts stay idempotent within one pod lifetime.
func (c Config) DebugContainerName(targetContainer string) string {
	return c.Agent.ContainerPrefix + targetContainer
}
