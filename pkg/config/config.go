// Package config provides configuration loading and management for
// volrender. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the engine configuration loaded from YAML.
type Config struct {
	// Rendering parameters
	Rendering struct {
		// Workers bounds the per-frame kernel worker pool.
		Workers int `yaml:"workers"`

		// Quality is the default quality level name (low/medium/high/ultra).
		Quality string `yaml:"quality"`

		// Mode is the default render mode name (raycast/mip/isosurface).
		Mode string `yaml:"mode"`

		// Preset is the default transfer function preset name.
		Preset string `yaml:"preset"`
	} `yaml:"rendering"`

	// Loading parameters
	Loading struct {
		// BatchSize bounds how many slice copies are in flight at once.
		BatchSize int `yaml:"batchSize"`

		// MaxTextureDim bounds each volume dimension.
		MaxTextureDim int `yaml:"maxTextureDim"`
	} `yaml:"loading"`

	// Mesh parameters
	Mesh struct {
		// CacheCapacity bounds the contour mesh cache.
		CacheCapacity int `yaml:"cacheCapacity"`

		// DecimationCeiling is the contour point count above which input
		// is resampled.
		DecimationCeiling int `yaml:"decimationCeiling"`
	} `yaml:"mesh"`

	// Segmentation parameters
	Segmentation struct {
		// Workers bounds the slab worker pool.
		Workers int `yaml:"workers"`
	} `yaml:"segmentation"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Rendering.Workers = runtime.NumCPU()
	cfg.Rendering.Quality = "medium"
	cfg.Rendering.Mode = "raycast"
	cfg.Rendering.Preset = "ct-default"

	cfg.Loading.BatchSize = 10
	cfg.Loading.MaxTextureDim = 2048

	cfg.Mesh.CacheCapacity = 10
	cfg.Mesh.DecimationCeiling = 500

	cfg.Segmentation.Workers = runtime.NumCPU()

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

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

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
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
