// Package config loads the optional morphir.yaml project file.
//
// The file is decoded with yaml.v3 and validated against an embedded CUE
// schema before any field is used. Validation failures carry the line and
// column of the offending YAML node.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/finos/morphir-scala/internal/platform"
	"github.com/finos/morphir-scala/mirc"
)

// FileName is the project file looked up by Find.
const FileName = "morphir.yaml"

//go:embed schema.cue
var schemaCUE string

// ErrNotFound is returned by Find when no project file exists.
var ErrNotFound = errors.New("no " + FileName + " found")

// Config is a validated project file. Relative paths are already resolved
// against the directory holding the file.
type Config struct {
	// Path is the file the configuration was loaded from; empty for Default.
	Path string

	Name         string
	Extensions   []string
	Output       string
	Workers      int
	FailFast     bool
	Timeout      time.Duration
	WriteBackoff time.Duration
	EmitPlatform bool
	LogLevel     string
	Ledger       string
}

// Default is the configuration used when no project file exists.
func Default() *Config {
	return &Config{EmitPlatform: true, LogLevel: "info"}
}

// file mirrors the YAML document.
type file struct {
	Name         string   `yaml:"name"`
	Extensions   []string `yaml:"extensions"`
	Output       string   `yaml:"output"`
	Workers      int      `yaml:"workers"`
	FailFast     bool     `yaml:"failFast"`
	Timeout      string   `yaml:"timeout"`
	WriteBackoff string   `yaml:"writeBackoff"`
	EmitPlatform *bool    `yaml:"emitPlatform"`
	LogLevel     string   `yaml:"logLevel"`
	Ledger       string   `yaml:"ledger"`
}

// Issue is one validation failure.
type Issue struct {
	Field   string `json:"field"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Message string `json:"message"`
}

// Error reports an invalid project file.
type Error struct {
	File   string
	Issues []Issue
}

func (e *Error) Error() string {
	lines := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		loc := e.File
		if is.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d", e.File, is.Line, is.Col)
		}
		if is.Field != "" {
			lines[i] = fmt.Sprintf("%s: %s: %s", loc, is.Field, is.Message)
		} else {
			lines[i] = fmt.Sprintf("%s: %s", loc, is.Message)
		}
	}
	return strings.Join(lines, "\n")
}

// Load reads and validates a project file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// Parse validates YAML data. Relative paths in it are resolved against the
// directory of name.
func Parse(name string, data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &Error{File: name, Issues: []Issue{{Message: err.Error()}}}
	}
	if err := validate(name, &root); err != nil {
		return nil, err
	}

	var f file
	if len(root.Content) > 0 {
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, &Error{File: name, Issues: []Issue{{Message: err.Error()}}}
		}
	}
	return build(name, &root, &f)
}

func build(name string, root *yaml.Node, f *file) (*Config, error) {
	dir := filepath.Dir(name)
	cfg := Default()
	cfg.Name = f.Name
	cfg.Extensions = f.Extensions
	cfg.Output = resolve(dir, f.Output)
	cfg.Workers = f.Workers
	cfg.FailFast = f.FailFast
	cfg.Ledger = resolve(dir, f.Ledger)
	if f.EmitPlatform != nil {
		cfg.EmitPlatform = *f.EmitPlatform
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	var issues []Issue
	duration := func(field, raw string, dst *time.Duration) {
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw)
		switch {
		case err != nil:
			issues = append(issues, issueAt(root, []string{field}, fmt.Sprintf("invalid duration %q", raw)))
		case d < 0:
			issues = append(issues, issueAt(root, []string{field}, fmt.Sprintf("duration %q must not be negative", raw)))
		default:
			*dst = d
		}
	}
	duration("timeout", f.Timeout, &cfg.Timeout)
	duration("writeBackoff", f.WriteBackoff, &cfg.WriteBackoff)
	if len(issues) > 0 {
		return nil, &Error{File: name, Issues: issues}
	}
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// validate checks the document against the CUE schema.
func validate(name string, root *yaml.Node) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	var doc any
	if len(root.Content) > 0 {
		if err := root.Decode(&doc); err != nil {
			return &Error{File: name, Issues: []Issue{{Message: err.Error()}}}
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if _, ok := doc.(map[string]any); !ok {
		return &Error{File: name, Issues: []Issue{{Message: "expected a mapping at the top level"}}}
	}

	v := def.Unify(ctx.Encode(doc))
	err := v.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var issues []Issue
	seen := map[string]bool{}
	for _, e := range cueerrors.Errors(err) {
		path := fieldPath(e.Path())
		format, args := e.Msg()
		is := issueAt(root, path, fmt.Sprintf(format, args...))
		key := is.Field + "\x00" + is.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		issues = append(issues, is)
	}
	return &Error{File: name, Issues: issues}
}

// fieldPath drops definition selectors from a CUE error path.
func fieldPath(p []string) []string {
	var out []string
	for _, s := range p {
		if strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out
}

// issueAt builds an issue positioned at the YAML node the path names. When
// the node cannot be found the issue carries no position.
func issueAt(root *yaml.Node, path []string, msg string) Issue {
	is := Issue{Field: strings.Join(path, "."), Message: msg}
	if n := lookupNode(root, path); n != nil {
		is.Line, is.Col = n.Line, n.Column
	}
	return is
}

func lookupNode(root *yaml.Node, path []string) *yaml.Node {
	n := root
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil
		}
		n = n.Content[0]
	}
	for _, seg := range path {
		switch n.Kind {
		case yaml.MappingNode:
			var next *yaml.Node
			for i := 0; i+1 < len(n.Content); i += 2 {
				if n.Content[i].Value == seg {
					next = n.Content[i+1]
					break
				}
			}
			if next == nil {
				return nil
			}
			n = next
		case yaml.SequenceNode:
			var idx int
			if _, err := fmt.Sscanf(seg, "%d", &idx); err != nil || idx < 0 || idx >= len(n.Content) {
				return nil
			}
			n = n.Content[idx]
		default:
			return nil
		}
	}
	return n
}

// Find returns the project file in dir or the nearest parent directory
// holding one. It returns ErrNotFound when there is none.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(abs, FileName)
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNotFound
		}
		abs = parent
	}
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Options builds the facade options the file controls. Logger, recorder and
// run id generator are left for the caller.
func (c *Config) Options() mirc.Options {
	opts := mirc.Options{
		Project:      c.Name,
		OutputDir:    c.Output,
		Extensions:   c.Extensions,
		Workers:      c.Workers,
		Timeout:      c.Timeout,
		WriteBackoff: c.WriteBackoff,
		Emitter:      platform.StackEmitter{},
	}
	if c.FailFast {
		opts.Mode = mirc.ModeFailFast
	}
	if !c.EmitPlatform {
		opts.Emitter = platform.Nop{}
	}
	return opts
}
