// Package config provides configuration loading and management for vesselmask.
// It handles loading configuration from YAML files and provides default values
// that match the fixed container layout of the challenge platform.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
// The threshold window and output compression are fixed and have no setting.
type Config struct {
	// Input and output locations
	Paths struct {
		// InputRoot is the directory the platform mounts the inputs under
		InputRoot string `yaml:"inputRoot"`

		// ImageDir is the directory, relative to InputRoot, holding the single .mha image
		ImageDir string `yaml:"imageDir"`

		// MetadataFile is the JSON file, relative to InputRoot
		MetadataFile string `yaml:"metadataFile"`

		// OutputRoot is the directory the platform collects results from
		OutputRoot string `yaml:"outputRoot"`

		// OutputDir is the directory, relative to OutputRoot, receiving the mask
		OutputDir string `yaml:"outputDir"`
	} `yaml:"paths"`

	// Output parameters
	Output struct {
		// SavePreview writes PNG slices of the mask next to the output image
		SavePreview bool `yaml:"savePreview"`

		// PreviewDir is the directory, relative to OutputRoot, for preview slices
		PreviewDir string `yaml:"previewDir"`

		// PreviewAxis selects the axis preview slices are cut along (x, y or z)
		PreviewAxis string `yaml:"previewAxis"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Paths.InputRoot = "/input"
	cfg.Paths.ImageDir = "images/oct"
	cfg.Paths.MetadataFile = "age-in-months.json"
	cfg.Paths.OutputRoot = "/output"
	cfg.Paths.OutputDir = "images/binary-vessel-segmentation"

	cfg.Output.SavePreview = false
	cfg.Output.PreviewDir = "preview"
	cfg.Output.PreviewAxis = "z"
	cfg.Output.Verbose = false

	return cfg
}

// ImagePath returns the directory searched for the input image
func (c *Config) ImagePath() string {
	return filepath.Join(c.Paths.InputRoot, c.Paths.ImageDir)
}

// MetadataPath returns the full path of the metadata file
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Paths.InputRoot, c.Paths.MetadataFile)
}

// OutputPath returns the directory the mask is written to
func (c *Config) OutputPath() string {
	return filepath.Join(c.Paths.OutputRoot, c.Paths.OutputDir)
}

// PreviewPath returns the directory preview slices are written to
func (c *Config) PreviewPath() string {
	return filepath.Join(c.Paths.OutputRoot, c.Output.PreviewDir)
}

// LoadConfig reads the YAML file at configPath over the defaults. An empty
// path or a missing file yields DefaultConfig.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories as needed
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	return nil
}

// CreateDefaultConfigFile writes DefaultConfig to configPath
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
