package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cbind/internal/config"
)

// Scenario is one end-to-end binding run: headers in, rules applied,
// assertions checked against the written snapshot.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Config ScenarioConfig `yaml:"config,omitempty"`

	// Headers are inline header files by name.
	Headers map[string]string `yaml:"headers,omitempty"`

	// HeaderFiles are header paths, relative to the scenario file.
	HeaderFiles []string `yaml:"header_files,omitempty"`

	Libraries []string `yaml:"libraries,omitempty"`

	// Filter selects the root classes, in rule filter syntax. Empty selects
	// every class.
	Filter string `yaml:"filter,omitempty"`

	// Rules is inline CUE rule source. RuleFiles are applied after it.
	Rules     string   `yaml:"rules,omitempty"`
	RuleFiles []string `yaml:"rule_files,omitempty"`

	// ExpectError is the session error code the run must stop with, e.g.
	// RESOLUTION. Nothing is written in that case, so assertions are not
	// evaluated.
	ExpectError string `yaml:"expect_error,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScenarioConfig overrides the default configuration.
type ScenarioConfig struct {
	Module          string `yaml:"module,omitempty"`
	Package         string `yaml:"package,omitempty"`
	ErrorPolicy     string `yaml:"error_policy,omitempty"`
	ReferencePolicy string `yaml:"reference_policy,omitempty"`
	Allocation      string `yaml:"allocation,omitempty"`
	MaxSteps        int    `yaml:"max_steps,omitempty"`
}

// DefaultModule is the module name of scenarios that do not set one.
const DefaultModule = "scenario"

func (s *Scenario) config() config.Config {
	cfg := config.Default()
	cfg.Module = DefaultModule
	over := s.Config
	if over.Module != "" {
		cfg.Module = over.Module
	}
	if over.Package != "" {
		cfg.Package = over.Package
	}
	if over.ErrorPolicy != "" {
		cfg.ErrorPolicy = over.ErrorPolicy
	}
	if over.ReferencePolicy != "" {
		cfg.ReferencePolicy = over.ReferencePolicy
	}
	if over.Allocation != "" {
		cfg.Allocation = over.Allocation
	}
	if over.MaxSteps != 0 {
		cfg.MaxSteps = over.MaxSteps
	}
	return cfg
}

// Assertion checks the written snapshot or the mapping outcome.
type Assertion struct {
	// Type is one of count, exists, absent, contains or intents.
	Type string `yaml:"type"`

	// Filter selects elements, in rule filter syntax (count, exists,
	// absent).
	Filter string `yaml:"filter,omitempty"`

	// Count is the expected number of matches (count) or intents
	// (intents).
	Count int `yaml:"count,omitempty"`

	// Description is an element description that must appear in the tree
	// (contains), e.g. "cls(A)".
	Description string `yaml:"description,omitempty"`

	// Intent is an intent kind, e.g. remove_self (intents).
	Intent string `yaml:"intent,omitempty"`
}

// Assertion types.
const (
	AssertCount    = "count"
	AssertExists   = "exists"
	AssertAbsent   = "absent"
	AssertContains = "contains"
	AssertIntents  = "intents"
)

// LoadScenario reads a scenario file. Header and rule paths are resolved
// against the file's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	resolve := func(paths []string) {
		for i, p := range paths {
			if !filepath.IsAbs(p) {
				paths[i] = filepath.Join(base, p)
			}
		}
	}
	resolve(scenario.HeaderFiles)
	resolve(scenario.RuleFiles)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Headers) == 0 && len(s.HeaderFiles) == 0 {
		return fmt.Errorf("headers or header_files is required")
	}
	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}
	for _, p := range append(append([]string(nil), s.HeaderFiles...), s.RuleFiles...) {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCount, AssertExists, AssertAbsent:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertContains:
		if a.Description == "" {
			return fmt.Errorf("assertions[%d]: description is required for contains", index)
		}
	case AssertIntents:
		if a.Intent == "" {
			return fmt.Errorf("assertions[%d]: intent is required for intents", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
