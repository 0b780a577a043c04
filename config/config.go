// Package config provides configuration loading and management for semshade.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semshade/mapping"
)

// Config represents the complete semshade configuration
type Config struct {
	Rules    []mapping.Rule `yaml:"rules"`
	Boundary bool           `yaml:"boundary"`
	Source   SourceConfig   `yaml:"source"`
	Files    FilesConfig    `yaml:"files"`
	Verify   VerifyConfig   `yaml:"verify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SourceConfig configures Java source handling
type SourceConfig struct {
	// Charset is the IANA name of the source encoding (default: UTF-8)
	Charset string `yaml:"charset"`
}

// FilesConfig configures which files are relocated
type FilesConfig struct {
	// Include lists doublestar patterns to relocate (empty = all)
	Include []string `yaml:"include"`
	// Exclude lists doublestar patterns copied unchanged
	Exclude []string `yaml:"exclude"`
	// Workers bounds parallel relocation (0 = number of CPUs)
	Workers int `yaml:"workers"`
	// RelocatePaths moves outputs into their new package directory
	RelocatePaths bool `yaml:"relocate_paths"`
}

// VerifyConfig configures structural verification
type VerifyConfig struct {
	// From is the original namespace, To the relocated one
	From string `yaml:"from"`
	To   string `yaml:"to"`
	// Classpath lists directories and jars holding both versions
	Classpath []string `yaml:"classpath"`
	// Types lists original types to check (empty = every type under From)
	Types []string `yaml:"types"`
	// Exclude lists doublestar patterns over "Type#member" to skip
	Exclude []string `yaml:"exclude"`
}

// MetricsConfig configures metrics export
type MetricsConfig struct {
	// Textfile is where Prometheus metrics are written after a run (empty = off)
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Charset: "UTF-8",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	for i, r := range c.Rules {
		if r.From == "" {
			return fmt.Errorf("rules[%d].from is required", i)
		}
	}
	if c.Files.Workers < 0 {
		return fmt.Errorf("files.workers must not be negative")
	}
	for _, p := range append(append(append([]string{}, c.Files.Include...), c.Files.Exclude...), c.Verify.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern %q", p)
		}
	}
	if c.Verify.From != "" && c.Verify.From == c.Verify.To {
		return fmt.Errorf("verify.from and verify.to must differ")
	}
	return nil
}

// Table builds the relocation table for the configured rules.
func (c *Config) Table() (*mapping.Table, error) {
	var opts []mapping.Option
	if c.Boundary {
		opts = append(opts, mapping.WithBoundary())
	}
	return mapping.NewTable(c.Rules, opts...)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Rules replace as a whole since their order is significant
	if len(other.Rules) > 0 {
		c.Rules = other.Rules
	}
	if other.Boundary {
		c.Boundary = true
	}

	if other.Source.Charset != "" {
		c.Source.Charset = other.Source.Charset
	}

	if len(other.Files.Include) > 0 {
		c.Files.Include = other.Files.Include
	}
	if len(other.Files.Exclude) > 0 {
		c.Files.Exclude = other.Files.Exclude
	}
	if other.Files.Workers != 0 {
		c.Files.Workers = other.Files.Workers
	}
	if other.Files.RelocatePaths {
		c.Files.RelocatePaths = true
	}

	if other.Verify.From != "" {
		c.Verify.From = other.Verify.From
	}
	if other.Verify.To != "" {
		c.Verify.To = other.Verify.To
	}
	if len(other.Verify.Classpath) > 0 {
		c.Verify.Classpath = other.Verify.Classpath
	}
	if len(other.Verify.Types) > 0 {
		c.Verify.Types = other.Verify.Types
	}
	if len(other.Verify.Exclude) > 0 {
		c.Verify.Exclude = other.Verify.Exclude
	}

	if other.Metrics.Textfile != "" {
		c.Metrics.Textfile = other.Metrics.Textfile
	}
}
