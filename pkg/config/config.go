// Package config provides configuration loading and management for the NORDIC wrapper.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"nordic/internal/models"
)

// DefaultConfigPath is where the CLI looks for a configuration file
const DefaultConfigPath = "nordic.yaml"

// DefaultEngineCommand is the engine executable used when none is configured
const DefaultEngineCommand = "nifti-nordic"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Engine describes how to start the external denoising engine
	Engine struct {
		// Command is the engine executable
		Command string `yaml:"command"`

		// Args are passed to the engine before its positional arguments
		Args []string `yaml:"args,omitempty"`

		// Env holds extra KEY=VALUE entries for the engine environment
		Env []string `yaml:"env,omitempty"`
	} `yaml:"engine"`

	// Defaults for the structured parameters; command line flags win
	Defaults struct {
		// Modality is fMRI, dMRI or empty
		Modality string `yaml:"modality"`

		// ThresholdMethod is NORDIC or MP
		ThresholdMethod string `yaml:"thresholdMethod"`

		// KernelSizeGFactor is the g-factor kernel
		KernelSizeGFactor []int `yaml:"kernelSizeGFactor"`

		// KernelSizePCA is the decomposition kernel; empty lets the engine choose
		KernelSizePCA []int `yaml:"kernelSizePCA,omitempty"`
	} `yaml:"defaults"`

	// Overrides are engine keys applied on every run, before command line overrides
	Overrides map[string]interface{} `yaml:"overrides,omitempty"`

	// Output parameters
	Output struct {
		// Verbose prints the engine configuration before each run
		Verbose bool `yaml:"verbose"`

		// LogLevel is one of debug, info, warn, error
		LogLevel string `yaml:"logLevel"`

		// CompressionLevel is the gzip level for .nii.gz outputs (-2 to 9, -1 is default)
		CompressionLevel int `yaml:"compressionLevel"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Engine.Command = DefaultEngineCommand

	cfg.Defaults.ThresholdMethod = string(models.ThresholdNORDIC)
	cfg.Defaults.KernelSizeGFactor = []int{
		models.DefaultKernelSizeGFactor[0],
		models.DefaultKernelSizeGFactor[1],
		models.DefaultKernelSizeGFactor[2],
	}

	cfg.Output.Verbose = false
	cfg.Output.LogLevel = "info"
	cfg.Output.CompressionLevel = -1

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the values that can be checked without any inputs
func (c *Config) Validate() error {
	if _, err := c.KernelGFactor(); err != nil {
		return err
	}
	if _, err := c.KernelPCA(); err != nil {
		return err
	}
	if c.Output.CompressionLevel < -2 || c.Output.CompressionLevel > 9 {
		return fmt.Errorf("compressionLevel %d out of range -2..9", c.Output.CompressionLevel)
	}
	return nil
}

// KernelGFactor returns the configured g-factor kernel
func (c *Config) KernelGFactor() (models.KernelSize, error) {
	if len(c.Defaults.KernelSizeGFactor) == 0 {
		return models.DefaultKernelSizeGFactor, nil
	}
	return toKernel("kernelSizeGFactor", c.Defaults.KernelSizeGFactor)
}

// KernelPCA returns the configured PCA kernel, nil when unset
func (c *Config) KernelPCA() (*models.KernelSize, error) {
	if len(c.Defaults.KernelSizePCA) == 0 {
		return nil, nil
	}
	k, err := toKernel("kernelSizePCA", c.Defaults.KernelSizePCA)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func toKernel(name string, v []int) (models.KernelSize, error) {
	var k models.KernelSize
	if len(v) != 3 {
		return k, fmt.Errorf("%s must have 3 components, got %d", name, len(v))
	}
	copy(k[:], v)
	return k, nil
}

// OverrideStrings returns the configured overrides in the textual form used
// for command line overrides. Sequences are joined with commas.
func (c *Config) OverrideStrings() map[string]string {
	out := make(map[string]string, len(c.Overrides))
	for k, v := range c.Overrides {
		out[k] = scalarString(v)
	}
	return out
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = scalarString(e)
		}
		return strings.Join(parts, ",")
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprint(keys)
	default:
		return fmt.Sprint(t)
	}
}
