package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/QTest-hq/pyflowchart/pkg/flowchart"
)

// ProjectConfigFile is the name of the per-project configuration file
const ProjectConfigFile = ".pyflowchart.yaml"

// ProjectConfig represents a .pyflowchart.yaml file in a project
type ProjectConfig struct {
	Version string `yaml:"version"`

	// Translation defaults
	Simplify   *bool  `yaml:"simplify,omitempty"`
	CondsAlign *bool  `yaml:"conds_align,omitempty"`
	Format     string `yaml:"format,omitempty"`

	// Call names drawn as input/output nodes
	Primitives PrimitivesConfig `yaml:"primitives,omitempty"`
}

// PrimitivesConfig lists input and output call names such as "sys.stdin.read"
type PrimitivesConfig struct {
	Input  []string `yaml:"input,omitempty"`
	Output []string `yaml:"output,omitempty"`
}

// DefaultProjectConfig returns sensible defaults
func DefaultProjectConfig() *ProjectConfig {
	simplify, align := true, false
	return &ProjectConfig{
		Version:    "1.0",
		Simplify:   &simplify,
		CondsAlign: &align,
		Format:     string(flowchart.FormatFlowchart),
	}
}

// LoadProjectConfig loads a .pyflowchart.yaml from the given directory
func LoadProjectConfig(dir string) (*ProjectConfig, error) {
	configPath := filepath.Join(dir, ProjectConfigFile)

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Also try .pyflowchart.yml
		configPath = filepath.Join(dir, ".pyflowchart.yml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return DefaultProjectConfig(), nil
		}
	}

	return LoadProjectConfigFile(configPath)
}

// LoadProjectConfigFile loads a config from an explicit path
func LoadProjectConfigFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if _, err := flowchart.ParseFormat(cfg.Format); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// SaveProjectConfig saves the config to .pyflowchart.yaml
func SaveProjectConfig(dir string, cfg *ProjectConfig) error {
	configPath := filepath.Join(dir, ProjectConfigFile)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Merge applies overrides from another config (e.g., CLI flags)
func (c *ProjectConfig) Merge(other *ProjectConfig) {
	if other == nil {
		return
	}

	if other.Simplify != nil {
		c.Simplify = other.Simplify
	}

	if other.CondsAlign != nil {
		c.CondsAlign = other.CondsAlign
	}

	if other.Format != "" {
		c.Format = other.Format
	}

	if len(other.Primitives.Input) > 0 {
		c.Primitives.Input = other.Primitives.Input
	}

	if len(other.Primitives.Output) > 0 {
		c.Primitives.Output = other.Primitives.Output
	}
}

// Options converts the config into translation options
func (c *ProjectConfig) Options() flowchart.Options {
	opts := flowchart.DefaultOptions()

	if c.Simplify != nil {
		opts.Simplify = *c.Simplify
	}
	if c.CondsAlign != nil {
		opts.AlignConditions = *c.CondsAlign
	}
	if format, err := flowchart.ParseFormat(c.Format); err == nil {
		opts.Format = format
	}
	if len(c.Primitives.Input) > 0 {
		opts.InputCalls = c.Primitives.Input
	}
	if len(c.Primitives.Output) > 0 {
		opts.OutputCalls = c.Primitives.Output
	}

	return opts
}
