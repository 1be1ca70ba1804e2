package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/finos/morphir-scala/mirc"
)

// Case defines one conformance case.
type Case struct {
	// Name uniquely identifies the case and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the case validates.
	Description string `yaml:"description"`

	// Mode is "collect-all" (the default) or "fail-fast".
	Mode string `yaml:"mode,omitempty"`

	// Workers bounds unit parallelism; zero uses the compiler default.
	Workers int `yaml:"workers,omitempty"`

	// Platform enables bytecode and debug artifacts. Defaults to true.
	Platform *bool `yaml:"platform,omitempty"`

	// Files maps slash-separated paths to source text.
	Files map[string]string `yaml:"files,omitempty"`

	// Text is one inline source text, compiled as the snippet unit.
	Text string `yaml:"text,omitempty"`

	Expect Expect `yaml:"expect"`

	// Golden compares the run snapshot against testdata/golden/<name>.golden.
	Golden bool `yaml:"golden,omitempty"`
}

// Expect lists what a run must produce. Empty Artifacts and Outcomes are
// not checked; Codes always is, so a case without codes expects a clean run.
type Expect struct {
	// Status is "ok", "partial" or "failed".
	Status string `yaml:"status"`

	// Artifacts are output paths relative to the output directory, in
	// production order.
	Artifacts []string `yaml:"artifacts,omitempty"`

	// Codes are the diagnostic codes of the run, in report order.
	Codes []string `yaml:"codes,omitempty"`

	// Outcomes maps unit ids to "ok", "failed" or "skipped".
	Outcomes map[string]string `yaml:"outcomes,omitempty"`
}

// Modes accepted in case files.
const (
	ModeCollectAll = "collect-all"
	ModeFailFast   = "fail-fast"
)

// compileMode maps the case mode onto the compiler's.
func (c *Case) compileMode() mirc.Mode {
	if c.Mode == ModeFailFast {
		return mirc.ModeFailFast
	}
	return mirc.ModeCollectAll
}

// platform reports whether platform artifacts are emitted.
func (c *Case) platform() bool {
	return c.Platform == nil || *c.Platform
}

// LoadCase reads and validates a case file. Unknown fields are rejected so
// a misspelt key fails loudly instead of being ignored.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}

	var c Case
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateCase(&c); err != nil {
		return nil, fmt.Errorf("invalid case %s: %w", filepath.Base(path), err)
	}
	return &c, nil
}

// LoadCases loads every *.yaml case in dir, ordered by file name.
func LoadCases(dir string) ([]*Case, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	cases := make([]*Case, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		c, err := LoadCase(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[c.Name]; ok {
			return nil, fmt.Errorf("case name %q used by both %s and %s", c.Name, prev, filepath.Base(p))
		}
		seen[c.Name] = filepath.Base(p)
		cases = append(cases, c)
	}
	return cases, nil
}

var (
	validStatuses = map[string]bool{
		string(mirc.StatusOK):      true,
		string(mirc.StatusPartial): true,
		string(mirc.StatusFailed):  true,
	}
	validOutcomes = map[string]bool{
		mirc.OutcomeOK:      true,
		mirc.OutcomeFailed:  true,
		mirc.OutcomeSkipped: true,
	}
)

func validateCase(c *Case) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch c.Mode {
	case "", ModeCollectAll, ModeFailFast:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeCollectAll, ModeFailFast, c.Mode)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	if len(c.Files) > 0 && c.Text != "" {
		return fmt.Errorf("give either files or text, not both")
	}
	if len(c.Files) == 0 && c.Text == "" {
		return fmt.Errorf("files or text is required")
	}
	for rel := range c.Files {
		if filepath.IsAbs(rel) || !filepath.IsLocal(filepath.FromSlash(rel)) {
			return fmt.Errorf("files: %q must be a relative path inside the case", rel)
		}
	}

	if !validStatuses[c.Expect.Status] {
		return fmt.Errorf("expect.status must be ok, partial or failed, got %q", c.Expect.Status)
	}
	for unit, outcome := range c.Expect.Outcomes {
		if !validOutcomes[outcome] {
			return fmt.Errorf("expect.outcomes.%s: unknown outcome %q", unit, outcome)
		}
	}
	return nil
}
