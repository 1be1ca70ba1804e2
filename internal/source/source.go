// Package source turns a compile request into an ordered list of
// compilation units.
//
// A request is either inline text (one unit with a synthetic identity) or a
// base directory that is walked recursively for source files. Directory units
// are ordered by their slash-separated relative path, so repeated runs over
// unchanged input always produce the same unit order regardless of the order
// the filesystem returns entries in.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/finos/morphir-scala/internal/canon"
	"github.com/finos/morphir-scala/internal/diag"
)

// SnippetID is the identity of the unit created from inline text.
const SnippetID = "snippet"

// DefaultExtensions are the file extensions treated as source files.
var DefaultExtensions = []string{".scala", ".src"}

// Input is the tagged union of the two request shapes.
type Input struct {
	inline bool
	text   string
	dir    string
}

// InlineText builds an input holding one source string.
func InlineText(text string) Input {
	return Input{inline: true, text: text}
}

// Directory builds an input naming a base directory.
func Directory(dir string) Input {
	return Input{dir: dir}
}

// IsInline reports whether the input carries inline text.
func (in Input) IsInline() bool { return in.inline }

// Dir returns the base directory of a directory input.
func (in Input) Dir() string { return in.dir }

func (in Input) String() string {
	if in.inline {
		return "<inline>"
	}
	return in.dir
}

// Unit is one compilation unit. Units are immutable once loaded.
type Unit struct {
	// ID is the unit identity: the slash-separated path relative to the
	// base directory, or SnippetID for inline text.
	ID string
	// Index is the unit's position in the load order, starting at 0.
	Index int
	// Path is the file the unit was read from. Empty for inline text.
	Path string
	// Text is the raw source text with any byte order mark removed.
	Text string
	// Digest is the domain-separated SHA-256 of Text.
	Digest string
}

// Stem is the unit identity without its extension. Artifact paths are
// derived from it.
func (u Unit) Stem() string {
	return strings.TrimSuffix(u.ID, path.Ext(u.ID))
}

// DefaultModule is the module name used when the unit has no package clause:
// the stem's path segments joined with dots.
func (u Unit) DefaultModule() string {
	return strings.ReplaceAll(u.Stem(), "/", ".")
}

// Options controls directory discovery.
type Options struct {
	// Extensions lists the accepted file extensions including the dot.
	// Empty means DefaultExtensions.
	Extensions []string
	// Skip lists directories that are never descended into, typically the
	// run's own output directory.
	Skip []string
}

// LoadError is a run-fatal failure to produce units.
type LoadError struct {
	Code    string
	Message string
	Path    string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load produces the ordered units for an input.
func Load(ctx context.Context, in Input, opts Options) ([]Unit, error) {
	if in.inline {
		return []Unit{newUnit(SnippetID, 0, "", []byte(in.text))}, nil
	}
	return loadDir(ctx, in.dir, opts)
}

func loadDir(ctx context.Context, dir string, opts Options) ([]Unit, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: diag.CodeNotFound, Path: dir, Message: "directory not found", Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: diag.CodeNotFound, Path: dir, Message: fmt.Sprintf("cannot access directory: %v", err), Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: diag.CodeNotFound, Path: dir, Message: "not a directory"}
	}

	ids, err := FindSourceFiles(ctx, dir, opts)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, &LoadError{Code: diag.CodeScanError, Path: dir, Message: fmt.Sprintf("error scanning directory: %v", err), Err: err}
	}
	if len(ids) == 0 {
		return nil, &LoadError{Code: diag.CodeNoFiles, Path: dir, Message: fmt.Sprintf("no source files with extensions %s", strings.Join(extensions(opts), ", "))}
	}
	if err := checkStems(dir, ids); err != nil {
		return nil, err
	}

	units := make([]Unit, 0, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, &LoadError{Code: diag.CodeCancelled, Path: dir, Message: "load cancelled", Err: err}
		}
		p := filepath.Join(dir, filepath.FromSlash(id))
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &LoadError{Code: diag.CodeReadFailed, Path: p, Message: fmt.Sprintf("cannot read source file: %v", err), Err: err}
		}
		units = append(units, newUnit(id, i, p, data))
	}
	return units, nil
}

// FindSourceFiles walks dir and returns the identities of all source files,
// sorted lexicographically. Hidden directories and Skip directories are
// not descended into.
func FindSourceFiles(ctx context.Context, dir string, opts Options) ([]string, error) {
	exts := extensions(opts)
	skip := make(map[string]bool, len(opts.Skip))
	for _, s := range opts.Skip {
		if abs, err := filepath.Abs(s); err == nil {
			skip[abs] = true
		}
	}

	var ids []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return &LoadError{Code: diag.CodeCancelled, Path: dir, Message: "load cancelled", Err: err}
		}
		if d.IsDir() {
			if p == dir {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if abs, err := filepath.Abs(p); err == nil && skip[abs] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !slices.Contains(exts, filepath.Ext(p)) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// checkStems rejects ids that differ only by extension, since their
// artifacts would be written to the same paths.
func checkStems(dir string, ids []string) error {
	seen := make(map[string]string, len(ids))
	for _, id := range ids {
		stem := Unit{ID: id}.Stem()
		if prev, ok := seen[stem]; ok {
			return &LoadError{
				Code:    diag.CodeStemClash,
				Path:    dir,
				Message: fmt.Sprintf("%s and %s would both write artifacts named %s", prev, id, stem),
			}
		}
		seen[stem] = id
	}
	return nil
}

func extensions(opts Options) []string {
	if len(opts.Extensions) == 0 {
		return DefaultExtensions
	}
	return opts.Extensions
}

var bom = []byte{0xEF, 0xBB, 0xBF}

func newUnit(id string, index int, p string, data []byte) Unit {
	data = bytes.TrimPrefix(data, bom)
	return Unit{
		ID:     id,
		Index:  index,
		Path:   p,
		Text:   string(data),
		Digest: canon.Digest(canon.DomainSource, data),
	}
}
