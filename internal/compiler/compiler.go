// Package compiler is the analysis half of the front end. It turns a parsed
// compilation unit into a fully resolved and type-checked mir.Module.
//
// Compilation happens in two rounds so units can be analysed in parallel:
//
//  1. Parse every unit, then BuildIndex over the successful ones. The Index
//     is read-only from then on.
//  2. Check each parsed unit against the Index. Check only reads shared state;
//     everything it caches lives in a resolver owned by that call.
//
// Diagnostics are returned, never panicked or logged. A unit with at least
// one error diagnostic produces no module.
package compiler

import (
	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/source"
	"github.com/finos/morphir-scala/internal/syntax"
)

// Parsed is a unit that lexed and parsed without errors.
type Parsed struct {
	Unit   source.Unit
	File   *syntax.File
	Module string
}

// Parse lexes and parses one unit. It returns nil when the unit has syntax
// errors. The module name comes from the package clause, or else from the
// unit identity.
func Parse(u source.Unit) (*Parsed, diag.List) {
	f, diags := syntax.Parse(u.Text)
	diags = diags.WithUnit(u.ID)
	if f == nil || diags.HasErrors() {
		return nil, diags
	}
	name := u.DefaultModule()
	if f.Package != nil {
		name = f.Package.String()
	}
	return &Parsed{Unit: u, File: f, Module: name}, diags
}

// Check resolves and type-checks a parsed unit. The unit must have been
// accepted by BuildIndex for ix.
func Check(p *Parsed, ix *Index) (*mir.Module, diag.List) {
	entry, ok := ix.modules[p.Module]
	if !ok || entry.file != p.File {
		d := diag.New(diag.KindType, diag.PhaseResolve, diag.CodeDuplicateModule, diag.Pos{},
			"module %s is not indexed for this unit", p.Module)
		d.Unit = p.Unit.ID
		return nil, diag.List{d}
	}

	c := newChecker(newResolver(ix), entry)
	m := c.checkModule(p)

	diags := c.diags.WithUnit(p.Unit.ID)
	diags.Sort()
	if diags.HasErrors() {
		return nil, diags
	}
	return m, diags
}

// CompileUnit parses and checks a single unit on its own, with no other
// modules visible besides the prelude.
func CompileUnit(u source.Unit) (*mir.Module, diag.List) {
	p, diags := Parse(u)
	if p == nil {
		return nil, diags
	}
	ix, idxErrs := BuildIndex([]*Parsed{p})
	if errs := idxErrs[u.Index]; len(errs) > 0 {
		return nil, append(diags, errs...)
	}
	m, more := Check(p, ix)
	return m, append(diags, more...)
}
