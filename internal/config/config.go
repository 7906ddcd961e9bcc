// Package config holds the global settings of a binding session and loads
// them from defaults, a YAML file and CBIND_ environment variables.
package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/roach88/cbind/internal/ir"
	"github.com/roach88/cbind/internal/mapping"
	"github.com/roach88/cbind/internal/resolver"
)

// Validation errors.
var (
	ErrMissingModule  = errors.New("module name is required")
	ErrInvalidModule  = errors.New("module name must be a C identifier")
	ErrInvalidPackage = errors.New("package must be a dotted identifier")
	ErrInvalidSteps   = errors.New("max_steps must not be negative")
	ErrInvalidWorkers = errors.New("parse_workers must not be negative")
)

var (
	identRE   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	packageRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// Config is the global configuration of a session. Field tags use
// mapstructure for viper unmarshalling and json for the service wire.
type Config struct {
	// Module names the generated module and its output files.
	Module string `mapstructure:"module" json:"module"`

	// Package is the dotted host package wrappers are generated into.
	Package string `mapstructure:"package" json:"package"`

	// Compiler is the C++ compiler used for the shim compile step.
	Compiler string `mapstructure:"compiler" json:"compiler"`

	ErrorPolicy     string `mapstructure:"error_policy" json:"error_policy"`
	ReferencePolicy string `mapstructure:"reference_policy" json:"reference_policy"`
	Allocation      string `mapstructure:"allocation" json:"allocation"`

	Debug bool `mapstructure:"debug" json:"debug"`

	// Headers are header paths or doublestar globs.
	Headers      []string `mapstructure:"headers" json:"headers,omitempty"`
	Libraries    []string `mapstructure:"libraries" json:"libraries,omitempty"`
	IncludePaths []string `mapstructure:"include_paths" json:"include_paths,omitempty"`

	// Rules are CUE rule files applied in order after resolution.
	Rules []string `mapstructure:"rules" json:"rules,omitempty"`

	OutputDir    string `mapstructure:"output_dir" json:"output_dir"`
	MaxSteps     int    `mapstructure:"max_steps" json:"max_steps"`
	ParseWorkers int    `mapstructure:"parse_workers" json:"parse_workers"`
}

// Default returns the configuration used when nothing overrides it. The
// module name has no default.
func Default() Config {
	return Config{
		Package:         DefaultPackage,
		Compiler:        DefaultCompiler,
		ErrorPolicy:     string(mapping.FailFast),
		ReferencePolicy: string(resolver.PolicyIgnore),
		Allocation:      string(ir.AllocDirect),
		OutputDir:       DefaultOutputDir,
		MaxSteps:        mapping.DefaultMaxSteps,
	}
}

// Defaults.
const (
	DefaultPackage   = "bindings"
	DefaultCompiler  = "clang++"
	DefaultOutputDir = "out"
)

// Validate checks the configuration is usable by a session.
func (c *Config) Validate() error {
	switch {
	case c.Module == "":
		return ErrMissingModule
	case !identRE.MatchString(c.Module):
		return fmt.Errorf("%w: %q", ErrInvalidModule, c.Module)
	case c.Package != "" && !packageRE.MatchString(c.Package):
		return fmt.Errorf("%w: %q", ErrInvalidPackage, c.Package)
	case c.MaxSteps < 0:
		return ErrInvalidSteps
	case c.ParseWorkers < 0:
		return ErrInvalidWorkers
	}
	if _, err := c.Errors(); err != nil {
		return err
	}
	if _, err := c.References(); err != nil {
		return err
	}
	_, err := c.AllocationStyle()
	return err
}

// Errors returns the mapping error policy. Empty means fail-fast.
func (c *Config) Errors() (mapping.ErrorPolicy, error) {
	switch p := mapping.ErrorPolicy(c.ErrorPolicy); p {
	case "":
		return mapping.FailFast, nil
	case mapping.FailFast, mapping.LogAndContinue:
		return p, nil
	}
	return "", fmt.Errorf("unknown error policy %q (want %s or %s)", c.ErrorPolicy, mapping.FailFast, mapping.LogAndContinue)
}

// References returns the missing-reference policy. Empty means ignore.
func (c *Config) References() (resolver.Policy, error) {
	if c.ReferencePolicy == "" {
		return resolver.PolicyIgnore, nil
	}
	return resolver.ParsePolicy(c.ReferencePolicy)
}

// AllocationStyle returns how constructors place objects. Empty means
// direct.
func (c *Config) AllocationStyle() (ir.AllocationStyle, error) {
	switch a := ir.AllocationStyle(c.Allocation); a {
	case "":
		return ir.AllocDirect, nil
	case ir.AllocDirect, ir.AllocStack:
		return a, nil
	}
	return "", fmt.Errorf("unknown allocation %q (want %s or %s)", c.Allocation, ir.AllocDirect, ir.AllocStack)
}
