// Package scenario loads YAML scenarios and runs them against a TodoPage,
// one step at a time, stopping at the first failure.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one use case: an ordered list of page operations and checks
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// URL overrides the page URL (default: the public TodoMVC demo).
	URL string `yaml:"url,omitempty"`

	// StorageKey overrides the local storage key (default: react-todos).
	StorageKey string `yaml:"storage_key,omitempty"`

	// Timeout is the default deadline for every check in the scenario.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	Steps []Step `yaml:"steps"`

	// Source is the YAML the scenario was parsed from.
	Source []byte `yaml:"-"`
}

// Step is one operation. Which arguments are read depends on Op.
type Step struct {
	Op      string        `yaml:"op"`
	Title   string        `yaml:"title,omitempty"`
	Titles  []string      `yaml:"titles,omitempty"`
	Index   *int          `yaml:"index,omitempty"`
	Text    *string       `yaml:"text,omitempty"`
	Count   *int          `yaml:"count,omitempty"`
	Filter  string        `yaml:"filter,omitempty"`
	Classes []string      `yaml:"classes,omitempty"`
	Pattern string        `yaml:"pattern,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Parse decodes a scenario, rejecting unknown fields, and validates it
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := Validate(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	sc.Source = data
	return &sc, nil
}

// Load reads and parses a scenario file
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, keyed by scenario name
func LoadDir(dir string) (map[string]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}
	out := make(map[string]*Scenario)
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		sc, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := out[sc.Name]; dup {
			return nil, fmt.Errorf("duplicate scenario name %q in %s", sc.Name, dir)
		}
		out[sc.Name] = sc
	}
	return out, nil
}

// Validate checks required fields and per-op arguments
func Validate(sc *Scenario) error {
	if sc.Name == "" {
		return errors.New("name is required")
	}
	if len(sc.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	var errs []error
	for i, s := range sc.Steps {
		if err := validateStep(s); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, s.Op, err))
		}
	}
	return errors.Join(errs...)
}

func validateStep(s Step) error {
	spec, ok := registry[s.Op]
	if !ok {
		return fmt.Errorf("unknown op %q (known: %s)", s.Op, strings.Join(Ops(), ", "))
	}
	for _, arg := range spec.args {
		if !s.has(arg) {
			return fmt.Errorf("missing %q", arg)
		}
	}
	return checkArgs(s)
}

func (s Step) has(arg string) bool {
	switch arg {
	case argTitle:
		return s.Title != ""
	case argTitles:
		return len(s.Titles) > 0
	case argIndex:
		return s.Index != nil && *s.Index >= 0
	case argText:
		return s.Text != nil
	case argCount:
		return s.Count != nil && *s.Count >= 0
	case argFilter:
		return s.Filter != ""
	case argClasses:
		return s.Classes != nil
	case argPattern:
		return s.Pattern != ""
	}
	return false
}

// Ops lists every registered op name, sorted
func Ops() []string {
	out := make([]string, 0, len(registry))
	for op := range registry {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}
