// Package config handles configuration loading for subtask.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for subtask.
type Config struct {
	Worker   WorkerConfig   `mapstructure:"worker"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Results  ResultsConfig  `mapstructure:"results"`
	Agents   AgentsConfig   `mapstructure:"agents"`
}

// WorkerConfig holds worker CLI settings.
type WorkerConfig struct {
	// Bin is the worker CLI executable name or path.
	Bin string `mapstructure:"bin"`
}

// DispatchConfig holds dispatch defaults.
type DispatchConfig struct {
	// Concurrency is the fan-out worker-pool ceiling.
	Concurrency int `mapstructure:"concurrency"`
	// Placeholder is the chain substitution token.
	Placeholder string `mapstructure:"placeholder"`
	// RunnerBin is the detached runner executable for async jobs.
	RunnerBin string `mapstructure:"runner_bin"`
}

// ResultsConfig holds completion-correlator settings.
type ResultsConfig struct {
	// Dir is the shared results directory.
	Dir string `mapstructure:"dir"`
	// StaleAge is the cold-start cleanup cutoff for leftover files.
	StaleAge time.Duration `mapstructure:"stale_age"`
}

// AgentsConfig holds agent registry settings.
type AgentsConfig struct {
	// File is the YAML agents file the CLI registry loads.
	File string `mapstructure:"file"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (SUBTASK_*)
// 2. Project config (.subtask.yaml in current directory or parent)
// 3. User config (~/.config/subtask/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SUBTASK")
	v.AutomaticEnv()
	v.BindEnv("worker.bin", "SUBTASK_WORKER_BIN")
	v.BindEnv("results.dir", "SUBTASK_RESULTS_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{Bin: "claude"},
		Dispatch: DispatchConfig{
			Concurrency: 4,
			Placeholder: "{previous}",
			RunnerBin:   "subtask-runner",
		},
		Results: ResultsConfig{
			Dir:      defaultResultsDir(),
			StaleAge: 24 * time.Hour,
		},
	}
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.bin", "claude")
	v.SetDefault("dispatch.concurrency", 4)
	v.SetDefault("dispatch.placeholder", "{previous}")
	v.SetDefault("dispatch.runner_bin", "subtask-runner")
	v.SetDefault("results.dir", defaultResultsDir())
	v.SetDefault("results.stale_age", "24h")
	v.SetDefault("agents.file", "")
}

// defaultResultsDir returns the per-user results directory.
func defaultResultsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "subtask-results")
	}
	return filepath.Join(home, ".local", "state", "subtask", "results")
}

// getUserConfigDir returns the XDG config directory for subtask.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "subtask")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "subtask")
	}
	return filepath.Join(home, ".config", "subtask")
}

// findProjectConfig searches for .subtask.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".subtask.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
