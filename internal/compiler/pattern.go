package compiler

import (
	"strings"

	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/syntax"
	"github.com/finos/morphir-scala/internal/types"
)

// pattern checks p against the scrutinee type t and returns the environment
// extended with the pattern's bindings. bound collects the variables of the
// whole pattern so a name cannot be bound twice.
func (c *checker) pattern(p syntax.Pattern, t types.Type, locals *env, bound map[string]bool) (mir.Pattern, *env) {
	switch p := p.(type) {
	case *syntax.WildcardPattern:
		return &mir.PWildcard{}, locals
	case *syntax.VarPattern:
		if bound[p.Name] {
			c.resolveErr(p.Pos, diag.CodeDuplicateName, "%s is bound more than once in this pattern", p.Name)
		}
		bound[p.Name] = true
		return &mir.PVar{Name: p.Name}, locals.bind(p.Name, t)
	case *syntax.LitPattern:
		c.expect(p.Lit.Pos, t, litType(p.Lit.Kind))
		return &mir.PLiteral{Value: mirLit(p.Lit)}, locals
	case *syntax.UnitPattern:
		c.expect(p.Pos, t, types.UnitT)
		return &mir.PUnit{}, locals
	case *syntax.TuplePattern:
		tt, ok := c.s.Resolve(t).(*types.Tuple)
		if !ok || len(tt.Elems) != len(p.Elems) {
			tt = &types.Tuple{Elems: make([]types.Type, len(p.Elems))}
			for i := range tt.Elems {
				tt.Elems[i] = c.s.Fresh()
			}
			c.expect(p.Pos, t, tt)
		}
		out := &mir.PTuple{Elems: make([]mir.Pattern, len(p.Elems))}
		for i, e := range p.Elems {
			out.Elems[i], locals = c.pattern(e, tt.Elems[i], locals, bound)
		}
		return out, locals
	case *syntax.CtorPattern:
		return c.ctorPattern(p, t, locals, bound)
	}
	return &mir.PWildcard{}, locals
}

func (c *checker) lookupCtor(q *syntax.QualName) (mir.FQName, bool) {
	if len(q.Parts) == 1 {
		fq, ok := c.r.lookupValue(c.sc, q.Parts[0])
		return fq, ok && c.r.value(fq).ctor
	}
	fq, err := c.qualified(q.Parts)
	return fq, err == nil && c.r.value(fq).ctor
}

func (c *checker) ctorPattern(p *syntax.CtorPattern, t types.Type, locals *env, bound map[string]bool) (mir.Pattern, *env) {
	fq, ok := c.lookupCtor(p.Name)
	if !ok {
		c.resolveErr(p.Pos, diag.CodeUnknownCtor, "unknown constructor %s", p.Name)
		return c.recoverPattern(p, locals, bound)
	}

	sym := c.r.value(fq)
	var params []types.Type
	var result types.Type
	switch ct := c.instantiate(sym).(type) {
	case *types.Func:
		params, result = ct.Params, ct.Result
	default:
		result = ct
	}
	c.expect(p.Pos, t, result)
	if len(p.Args) != len(params) {
		c.typeErr(p.Pos, diag.CodePatternArity, "constructor %s expects %d arguments, found %d", p.Name, len(params), len(p.Args))
		return c.recoverPattern(p, locals, bound)
	}

	out := &mir.PConstructor{Name: fq}
	for i, a := range p.Args {
		var ap mir.Pattern
		ap, locals = c.pattern(a, params[i], locals, bound)
		out.Args = append(out.Args, ap)
	}
	return out, locals
}

// recoverPattern binds the variables of a pattern that failed to check so
// the arm body does not report them as unknown names.
func (c *checker) recoverPattern(p *syntax.CtorPattern, locals *env, bound map[string]bool) (mir.Pattern, *env) {
	for _, a := range p.Args {
		_, locals = c.pattern(a, c.s.Fresh(), locals, bound)
	}
	return &mir.PWildcard{}, locals
}

func irrefutable(p mir.Pattern) bool {
	switch p := p.(type) {
	case *mir.PWildcard, *mir.PVar, *mir.PUnit:
		return true
	case *mir.PTuple:
		for _, e := range p.Elems {
			if !irrefutable(e) {
				return false
			}
		}
		return true
	}
	return false
}

// exhaustive warns when a match over an enum misses a case. Guarded arms and
// arms with refutable sub-patterns do not count as covering their case.
func (c *checker) exhaustive(m *syntax.Match, subject types.Type, arms []mir.MatchCase) {
	con, ok := c.s.Resolve(subject).(*types.Con)
	if !ok {
		return
	}
	ti := c.r.typeInfo(con.Name)
	if ti.kind != mir.TypeEnum {
		return
	}

	covered := map[string]bool{}
	for _, arm := range arms {
		if arm.Guard != nil {
			continue
		}
		switch p := arm.Pattern.(type) {
		case *mir.PWildcard, *mir.PVar:
			return
		case *mir.PConstructor:
			all := true
			for _, a := range p.Args {
				all = all && irrefutable(a)
			}
			if all {
				covered[p.Name.Name] = true
			}
		}
	}

	var missing []string
	for _, cs := range ti.cases {
		if !covered[cs.name] {
			missing = append(missing, cs.name)
		}
	}
	if len(missing) > 0 {
		c.diags = append(c.diags, diag.Warning(diag.KindType, diag.PhaseTypeCheck, diag.CodeNonExhaustive, m.Pos,
			"match on %s is not exhaustive: missing %s", ti.name.Name, strings.Join(missing, ", ")))
	}
}
