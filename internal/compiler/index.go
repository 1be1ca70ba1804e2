package compiler

import (
	"cmp"
	"slices"

	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/syntax"
)

// Index is the run-wide table of parsed modules. It is built once from every
// successfully parsed unit before analysis starts and is only read afterwards,
// so checkers running in parallel share it without locking.
type Index struct {
	modules map[string]*moduleEntry
}

// moduleEntry is what the index knows about one module: its declarations by
// name, before any of them is resolved. The first declaration of a name wins;
// duplicates are reported when the owning unit is checked.
type moduleEntry struct {
	name   string
	unit   string
	file   *syntax.File
	types  map[string]syntax.Decl
	values map[string]syntax.Decl
	ctors  map[string]ctorDecl
}

// ctorDecl locates a data constructor: a case class, or one case of an enum.
type ctorDecl struct {
	owner    syntax.Decl
	enumCase *syntax.EnumCase
}

func newModuleEntry(name, unit string, f *syntax.File) *moduleEntry {
	e := &moduleEntry{
		name:   name,
		unit:   unit,
		file:   f,
		types:  make(map[string]syntax.Decl),
		values: make(map[string]syntax.Decl),
		ctors:  make(map[string]ctorDecl),
	}
	addValue := func(name string, d syntax.Decl, c *ctorDecl) {
		if _, ok := e.values[name]; ok {
			return
		}
		if _, ok := e.ctors[name]; ok {
			return
		}
		if c != nil {
			e.ctors[name] = *c
			return
		}
		e.values[name] = d
	}
	addType := func(d syntax.Decl) {
		if _, ok := e.types[d.DeclName()]; !ok {
			e.types[d.DeclName()] = d
		}
	}

	for _, d := range f.Decls {
		switch d := d.(type) {
		case *syntax.DefDecl, *syntax.ValDecl:
			addValue(d.DeclName(), d, nil)
		case *syntax.TypeAlias:
			addType(d)
		case *syntax.CaseClass:
			addType(d)
			addValue(d.Name, d, &ctorDecl{owner: d})
		case *syntax.EnumDecl:
			addType(d)
			for _, c := range d.Cases {
				addValue(c.Name, d, &ctorDecl{owner: d, enumCase: c})
			}
		}
	}
	return e
}

// BuildIndex indexes the parsed units in unit order. A unit whose module name
// is already taken by an earlier unit, or is the reserved SDK module, is left
// out of the index; its diagnostics are returned keyed by unit index.
func BuildIndex(parsed []*Parsed) (*Index, map[int]diag.List) {
	ordered := slices.DeleteFunc(slices.Clone(parsed), func(p *Parsed) bool { return p == nil })
	slices.SortFunc(ordered, func(a, b *Parsed) int { return cmp.Compare(a.Unit.Index, b.Unit.Index) })

	ix := &Index{modules: make(map[string]*moduleEntry, len(ordered))}
	errs := make(map[int]diag.List)
	for _, p := range ordered {
		var pos diag.Pos
		if p.File.Package != nil {
			pos = p.File.Package.Pos
		}
		if p.Module == mir.SDKModule {
			d := diag.New(diag.KindType, diag.PhaseResolve, diag.CodeDuplicateModule, pos,
				"module name %s is reserved", p.Module)
			d.Unit = p.Unit.ID
			errs[p.Unit.Index] = append(errs[p.Unit.Index], d)
			continue
		}
		if prev, ok := ix.modules[p.Module]; ok {
			d := diag.New(diag.KindType, diag.PhaseResolve, diag.CodeDuplicateModule, pos,
				"module %s is already declared by %s", p.Module, prev.unit)
			d.Unit = p.Unit.ID
			errs[p.Unit.Index] = append(errs[p.Unit.Index], d)
			continue
		}
		ix.modules[p.Module] = newModuleEntry(p.Module, p.Unit.ID, p.File)
	}
	return ix, errs
}

// Modules lists the indexed module names in sorted order.
func (ix *Index) Modules() []string {
	names := make([]string, 0, len(ix.modules))
	for n := range ix.modules {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Has reports whether the module is indexed.
func (ix *Index) Has(module string) bool {
	_, ok := ix.modules[module]
	return ok
}
