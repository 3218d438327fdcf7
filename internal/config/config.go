// Package config loads and validates the optional .scribe YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for runner configuration.
const (
	DefaultMaxOutput = 1 << 20 // 1 MB
	DefaultToolsDir  = "tools"
)

// DefaultInterpreters maps script extensions to the interpreter that runs
// them. Extensions not listed here are unsupported tool types.
var DefaultInterpreters = map[string]string{
	".py": "python3",
	".sh": "sh",
}

// Config holds the parsed .scribe configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int               `yaml:"version"`
	ToolsDir     string            `yaml:"tools_dir"`    // directory holding tool scripts
	ProjectsDir  string            `yaml:"projects_dir"` // root of the user's writing projects
	RawMaxOutput int               `yaml:"max_output"`   // accumulator cap in bytes; 0 = default, negative = unbounded
	Interpreters map[string]string `yaml:"interpreters"` // extension → binary overrides
}

// MaxOutputBytes returns the configured accumulator cap or the default.
// A negative configured value disables the cap (returns 0).
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput < 0 {
		return 0
	}
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// ToolsPath returns the configured tools directory, resolving a relative
// path against base. Falls back to base/tools.
func (c *Config) ToolsPath(base string) string {
	dir := c.ToolsDir
	if dir == "" {
		dir = DefaultToolsDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

// InterpreterTable returns the extension → interpreter mapping with any
// configured overrides applied on top of the defaults.
func (c *Config) InterpreterTable() map[string]string {
	table := make(map[string]string, len(DefaultInterpreters)+len(c.Interpreters))
	for ext, bin := range DefaultInterpreters {
		table[ext] = bin
	}
	for ext, bin := range c.Interpreters {
		table[ext] = bin
	}
	return table
}

// Load reads the .scribe file from dir, falling back to the user's home
// directory. If neither file exists, a default Config is returned.
func Load(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, ".scribe"))
	if os.IsNotExist(err) {
		if home, herr := os.UserHomeDir(); herr == nil {
			data, err = os.ReadFile(filepath.Join(home, ".scribe"))
		}
	}
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading .scribe: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing .scribe: %w", err)
	}
	return cfg, nil
}
