package compiler

import (
	"errors"
	"slices"

	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/syntax"
	"github.com/finos/morphir-scala/internal/types"
)

// checker type-checks the declarations of one module and builds its mir.
// Every mir node's type is recorded as a fixup and written once the
// enclosing declaration's meta variables are solved.
type checker struct {
	r      *resolver
	entry  *moduleEntry
	sc     *scope
	module string
	diags  diag.List

	// Per-declaration state.
	s      *types.Subst
	rigid  []string
	fixups []fixup
	mark   int
}

type fixup struct {
	t   types.Type
	pos diag.Pos
	dst *mir.Type
}

// env is the lexical environment of locals, innermost first.
type env struct {
	name string
	t    types.Type
	next *env
}

func (e *env) bind(name string, t types.Type) *env {
	return &env{name: name, t: t, next: e}
}

func (e *env) lookup(name string) (types.Type, bool) {
	for ; e != nil; e = e.next {
		if e.name == name {
			return e.t, true
		}
	}
	return nil, false
}

func newChecker(r *resolver, entry *moduleEntry) *checker {
	return &checker{r: r, entry: entry, module: entry.name, s: types.NewSubst()}
}

func (c *checker) resolveErr(pos diag.Pos, code, format string, args ...any) {
	resolveErr(&c.diags, pos, code, format, args...)
}

func (c *checker) typeErr(pos diag.Pos, code, format string, args ...any) {
	c.diags = append(c.diags, diag.New(diag.KindType, diag.PhaseTypeCheck, code, pos, format, args...))
}

func (c *checker) checkModule(p *Parsed) *mir.Module {
	c.sc = c.r.homeScope(c.entry, &c.diags)
	c.checkDuplicates(p.File)
	cycles := c.r.aliasCycles(c.module)

	m := &mir.Module{Name: p.Module, Unit: p.Unit.ID, SourceDigest: p.Unit.Digest}
	for _, d := range p.File.Decls {
		switch d := d.(type) {
		case *syntax.TypeAlias:
			m.Types = append(m.Types, c.typeAlias(d, cycles))
		case *syntax.CaseClass:
			m.Types = append(m.Types, c.caseClass(d))
		case *syntax.EnumDecl:
			m.Types = append(m.Types, c.enum(d))
		}
	}
	for _, d := range p.File.Decls {
		switch d := d.(type) {
		case *syntax.DefDecl:
			m.Values = append(m.Values, c.def(d))
		case *syntax.ValDecl:
			m.Values = append(m.Values, c.val(d))
		}
	}
	return m
}

// checkDuplicates reports top-level names declared twice. Types and values
// live in separate namespaces; constructors are values.
func (c *checker) checkDuplicates(f *syntax.File) {
	typeNames := map[string]bool{}
	valueNames := map[string]bool{}
	value := func(name string, pos diag.Pos) {
		if valueNames[name] {
			c.resolveErr(pos, diag.CodeDuplicateName, "%s is already declared in module %s", name, c.module)
		}
		valueNames[name] = true
	}
	typ := func(name string, pos diag.Pos) {
		if typeNames[name] {
			c.resolveErr(pos, diag.CodeDuplicateName, "type %s is already declared in module %s", name, c.module)
		}
		typeNames[name] = true
	}

	for _, d := range f.Decls {
		switch d := d.(type) {
		case *syntax.DefDecl, *syntax.ValDecl:
			value(d.DeclName(), d.Position())
		case *syntax.TypeAlias:
			typ(d.Name, d.Pos)
		case *syntax.CaseClass:
			typ(d.Name, d.Pos)
			value(d.Name, d.Pos)
		case *syntax.EnumDecl:
			typ(d.Name, d.Pos)
			for _, cs := range d.Cases {
				value(cs.Name, cs.Pos)
			}
		}
	}
}

func mirPos(p diag.Pos) mir.Pos {
	return mir.Pos{Line: p.Line, Col: p.Col}
}

// beginDecl resets the per-declaration state.
func (c *checker) beginDecl(rigid []string) {
	c.s = types.NewSubst()
	c.rigid = rigid
	c.fixups = c.fixups[:0]
	c.mark = len(c.diags)
}

// endDecl writes solved types into the declaration's nodes. When the
// declaration already has errors the nodes are left alone: the unit will
// not produce a module.
func (c *checker) endDecl() {
	if c.diags[c.mark:].HasErrors() {
		return
	}
	for _, f := range c.fixups {
		t, err := c.s.ToMIR(f.t)
		if errors.Is(err, types.ErrUnsolved) {
			c.typeErr(f.pos, diag.CodeCannotInfer, "cannot infer the type of this expression (%s); add a type annotation", types.Show(c.s.Apply(f.t)))
			return
		}
		*f.dst = t
	}
}

func (c *checker) typed(t types.Type, pos diag.Pos, dst *mir.Type) {
	c.fixups = append(c.fixups, fixup{t: t, pos: pos, dst: dst})
}

// solved converts a type with no meta variables, as produced by signature
// resolution.
func (c *checker) solved(t types.Type) mir.Type {
	mt, err := c.s.ToMIR(t)
	if err != nil {
		return &mir.TUnit{}
	}
	return mt
}

func (c *checker) typeExpr(te syntax.TypeExpr) types.Type {
	return c.r.typeExpr(c.sc, c.rigid, te, &c.diags)
}

func (c *checker) typeParams(names []*syntax.Name) []string {
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n.Name] {
			c.resolveErr(n.Pos, diag.CodeDuplicateName, "type parameter %s is declared twice", n.Name)
		}
		seen[n.Name] = true
	}
	return declParams(names)
}

func (c *checker) fieldDefs(params []string, ps []*syntax.Param) []mir.FieldDef {
	if len(ps) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]mir.FieldDef, len(ps))
	for i, p := range ps {
		if seen[p.Name] {
			c.resolveErr(p.Pos, diag.CodeDuplicateName, "field %s is declared twice", p.Name)
		}
		seen[p.Name] = true
		out[i] = mir.FieldDef{Name: p.Name, Type: c.solved(c.r.typeExpr(c.sc, params, p.Type, &c.diags))}
	}
	return out
}

func (c *checker) typeAlias(d *syntax.TypeAlias, cycles map[string]string) mir.TypeDecl {
	params := c.typeParams(d.TypeParams)
	td := mir.TypeDecl{Name: d.Name, Params: params, Kind: mir.TypeAlias, Pos: mirPos(d.Pos)}
	if path, ok := cycles[d.Name]; ok {
		c.resolveErr(d.Pos, diag.CodeAliasCycle, "type alias %s refers to itself: %s", d.Name, path)
		td.Alias = &mir.TUnit{}
		return td
	}
	td.Alias = c.solved(c.r.typeExpr(c.sc, params, d.Type, &c.diags))
	return td
}

func (c *checker) caseClass(d *syntax.CaseClass) mir.TypeDecl {
	params := c.typeParams(d.TypeParams)
	return mir.TypeDecl{
		Name:   d.Name,
		Params: params,
		Kind:   mir.TypeRecord,
		Fields: c.fieldDefs(params, d.Fields),
		Pos:    mirPos(d.Pos),
	}
}

func (c *checker) enum(d *syntax.EnumDecl) mir.TypeDecl {
	params := c.typeParams(d.TypeParams)
	td := mir.TypeDecl{Name: d.Name, Params: params, Kind: mir.TypeEnum, Pos: mirPos(d.Pos)}
	for _, cs := range d.Cases {
		td.Cases = append(td.Cases, mir.Case{Name: cs.Name, Fields: c.fieldDefs(params, cs.Fields)})
	}
	return td
}

func (c *checker) def(d *syntax.DefDecl) mir.ValueDecl {
	params := c.typeParams(d.TypeParams)
	c.beginDecl(params)

	vd := mir.ValueDecl{Name: d.Name, Kind: mir.ValueDef, TypeParams: params, Pos: mirPos(d.Pos)}
	var locals *env
	var seen []string
	for _, p := range d.Params {
		if slices.Contains(seen, p.Name) {
			c.resolveErr(p.Pos, diag.CodeDuplicateName, "parameter %s is declared twice", p.Name)
		}
		seen = append(seen, p.Name)
		t := c.typeExpr(p.Type)
		locals = locals.bind(p.Name, t)
		vd.Params = append(vd.Params, mir.Param{Name: p.Name, Type: c.solved(t)})
	}
	result := c.typeExpr(d.Result)
	vd.Result = c.solved(result)
	vd.Body = c.check(d.Body, result, locals)

	c.endDecl()
	return vd
}

func (c *checker) val(d *syntax.ValDecl) mir.ValueDecl {
	c.beginDecl(nil)
	t := c.typeExpr(d.Type)
	vd := mir.ValueDecl{Name: d.Name, Kind: mir.ValueVal, Result: c.solved(t), Pos: mirPos(d.Pos)}
	vd.Body = c.check(d.Body, t, nil)
	c.endDecl()
	return vd
}

// expect unifies an expected type with the type found at pos.
func (c *checker) expect(pos diag.Pos, want, got types.Type) bool {
	err := c.s.Unify(want, got)
	if err == nil {
		return true
	}
	var inf *types.InfiniteError
	if errors.As(err, &inf) {
		c.typeErr(pos, diag.CodeInfiniteType, "%v", err)
		return false
	}
	c.typeErr(pos, diag.CodeTypeMismatch, "type mismatch: %v", err)
	return false
}

// instantiate gives a signature fresh meta variables for its type
// parameters. Broken signatures also replace their error placeholders.
func (c *checker) instantiate(sym *valueSym) types.Type {
	params := sym.params
	if sym.broken {
		params = append(slices.Clone(params), errName)
	}
	return c.s.Instantiate(params, sym.typ)
}
