package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/syntax"
	"github.com/finos/morphir-scala/internal/types"
)

// check elaborates e against an expected type. Lambdas, conditionals,
// matches, blocks and list literals push the expectation inward; everything
// else is inferred and then unified.
func (c *checker) check(e syntax.Expr, want types.Type, locals *env) mir.Expr {
	switch e := e.(type) {
	case *syntax.Lambda:
		n, _ := c.lambda(e, want, locals)
		return n
	case *syntax.If:
		n, _ := c.ifExpr(e, want, locals)
		return n
	case *syntax.Match:
		n, _ := c.match(e, want, locals)
		return n
	case *syntax.Block:
		n, _ := c.block(e, want, locals)
		return n
	case *syntax.Call:
		n, got := c.call(e, want, locals)
		c.expect(e.Pos, want, got)
		return n
	}
	n, got := c.infer(e, locals)
	c.expect(e.Position(), want, got)
	return n
}

func (c *checker) infer(e syntax.Expr, locals *env) (mir.Expr, types.Type) {
	switch e := e.(type) {
	case *syntax.Lit:
		t := litType(e.Kind)
		n := &mir.Literal{Value: mirLit(e)}
		c.typed(t, e.Pos, &n.Type)
		return n, t
	case *syntax.UnitLit:
		n := &mir.UnitValue{}
		c.typed(types.UnitT, e.Pos, &n.Type)
		return n, types.UnitT
	case *syntax.IdentExpr:
		return c.ident(e, locals)
	case *syntax.Select:
		return c.selectExpr(e, locals)
	case *syntax.Call:
		return c.call(e, nil, locals)
	case *syntax.Binary:
		return c.binary(e, locals)
	case *syntax.Unary:
		return c.unary(e, locals)
	case *syntax.Lambda:
		return c.lambda(e, nil, locals)
	case *syntax.If:
		return c.ifExpr(e, nil, locals)
	case *syntax.Match:
		return c.match(e, nil, locals)
	case *syntax.Block:
		return c.block(e, nil, locals)
	case *syntax.TupleExpr:
		n := &mir.Tuple{}
		elems := make([]types.Type, len(e.Elems))
		for i, x := range e.Elems {
			var ex mir.Expr
			ex, elems[i] = c.infer(x, locals)
			n.Elems = append(n.Elems, ex)
		}
		t := &types.Tuple{Elems: elems}
		c.typed(t, e.Pos, &n.Type)
		return n, t
	}
	return c.placeholder()
}

// placeholder stands in for an expression that failed to elaborate.
func (c *checker) placeholder() (mir.Expr, types.Type) {
	return &mir.UnitValue{Type: &mir.TUnit{}}, c.s.Fresh()
}

func litType(k syntax.LitKind) types.Type {
	switch k {
	case syntax.LitBool:
		return types.Boolean
	case syntax.LitInt:
		return types.Int
	case syntax.LitFloat:
		return types.Float
	default:
		return types.String
	}
}

func mirLit(l *syntax.Lit) mir.Lit {
	switch l.Kind {
	case syntax.LitBool:
		return mir.Lit{Kind: mir.LitBool, Bool: l.Bool}
	case syntax.LitInt:
		return mir.Lit{Kind: mir.LitInt, Int: l.Int}
	case syntax.LitFloat:
		return mir.Lit{Kind: mir.LitFloat, Float: l.Float}
	default:
		return mir.Lit{Kind: mir.LitString, Str: l.Str}
	}
}

func isUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func (c *checker) ident(e *syntax.IdentExpr, locals *env) (mir.Expr, types.Type) {
	if t, ok := locals.lookup(e.Name); ok {
		n := &mir.Variable{Name: e.Name}
		c.typed(t, e.Pos, &n.Type)
		return n, t
	}
	fq, ok := c.r.lookupValue(c.sc, e.Name)
	if !ok {
		switch {
		case e.Name == listName:
			c.resolveErr(e.Pos, diag.CodeUnknownName, "List must be applied to its elements, as in List(1, 2)")
		case isUpper(e.Name):
			c.resolveErr(e.Pos, diag.CodeUnknownCtor, "unknown constructor %s", e.Name)
		default:
			c.resolveErr(e.Pos, diag.CodeUnknownName, "unknown name %s", e.Name)
		}
		return c.placeholder()
	}
	return c.reference(fq, e.Pos)
}

// reference builds a Reference or Constructor for a resolved top-level name.
func (c *checker) reference(fq mir.FQName, pos diag.Pos) (mir.Expr, types.Type) {
	sym := c.r.value(fq)
	if sym.broken && fq.Module != c.module {
		c.resolveErr(pos, diag.CodeUnknownType, "signature of %s could not be resolved", fq)
	}
	t := c.instantiate(sym)
	if sym.ctor {
		n := &mir.Constructor{Name: fq}
		c.typed(t, pos, &n.Type)
		return n, t
	}
	n := &mir.Reference{Name: fq}
	c.typed(t, pos, &n.Type)
	return n, t
}

// selectPath flattens a chain of selections on an identifier, e.g.
// finance.rates.convert, or returns nil.
func selectPath(e syntax.Expr) []string {
	switch e := e.(type) {
	case *syntax.IdentExpr:
		return []string{e.Name}
	case *syntax.Select:
		if head := selectPath(e.X); head != nil {
			return append(head, e.Name)
		}
	}
	return nil
}

// qualified resolves Type.Case and module.name paths to a top-level name.
func (c *checker) qualified(parts []string) (mir.FQName, error) {
	qual, name := splitQualified(parts)

	var typeFQ mir.FQName
	var found bool
	if len(parts) == 2 {
		typeFQ, found = c.r.lookupType(c.sc, parts[0])
	} else {
		typeFQ, found = c.r.lookupTypeName(c.sc, &syntax.QualName{Parts: parts[:len(parts)-1]})
	}
	if found {
		ti := c.r.typeInfo(typeFQ)
		if ti.kind != mir.TypeEnum || ti.builtin {
			return mir.FQName{}, fmt.Errorf("%s is not an enum", qual)
		}
		if _, ok := ti.caseNamed(name); !ok {
			return mir.FQName{}, fmt.Errorf("enum %s has no case %s", qual, name)
		}
		return mir.FQName{Module: typeFQ.Module, Name: name}, nil
	}

	if c.r.isModule(qual) {
		fq, ok := c.r.moduleValue(qual, name)
		if !ok {
			return mir.FQName{}, fmt.Errorf("module %s does not declare %s", qual, name)
		}
		return fq, nil
	}
	return mir.FQName{}, fmt.Errorf("unknown name %s", parts[0])
}

func (c *checker) selectExpr(e *syntax.Select, locals *env) (mir.Expr, types.Type) {
	if path := selectPath(e); path != nil {
		_, isLocal := locals.lookup(path[0])
		_, isValue := c.r.lookupValue(c.sc, path[0])
		if !isLocal && !isValue {
			fq, err := c.qualified(path)
			if err != nil {
				code := diag.CodeUnknownName
				if isUpper(path[len(path)-1]) {
					code = diag.CodeUnknownCtor
				}
				c.resolveErr(e.Pos, code, "%v", err)
				return c.placeholder()
			}
			return c.reference(fq, e.Pos)
		}
	}

	x, xt := c.infer(e.X, locals)
	t, ok := c.fieldType(e.Pos, xt, e.Name)
	if !ok {
		return c.placeholder()
	}
	n := &mir.Field{Subject: x, Name: e.Name}
	c.typed(t, e.Pos, &n.Type)
	return n, t
}

// fieldType resolves a record field or a tuple element (_1, _2, ...).
func (c *checker) fieldType(pos diag.Pos, subject types.Type, name string) (types.Type, bool) {
	switch t := c.s.Resolve(subject).(type) {
	case *types.Tuple:
		if i, err := strconv.Atoi(strings.TrimPrefix(name, "_")); err == nil && strings.HasPrefix(name, "_") && i >= 1 && i <= len(t.Elems) {
			return t.Elems[i-1], true
		}
	case *types.Con:
		ti := c.r.typeInfo(t.Name)
		if ti.kind == mir.TypeRecord && !ti.builtin {
			for _, f := range ti.fields {
				if f.name == name {
					env := make(map[string]types.Type, len(ti.params))
					for i, p := range ti.params {
						env[p] = t.Args[i]
					}
					return types.Substitute(f.typ, env), true
				}
			}
		}
	case *types.Meta:
		c.typeErr(pos, diag.CodeUnknownField, "cannot select %s from a value of unknown type; add a type annotation", name)
		return nil, false
	}
	c.typeErr(pos, diag.CodeUnknownField, "%s has no field %s", types.Show(c.s.Apply(subject)), name)
	return nil, false
}

func (c *checker) call(e *syntax.Call, want types.Type, locals *env) (mir.Expr, types.Type) {
	if id, ok := e.Fn.(*syntax.IdentExpr); ok && id.Name == listName {
		_, isLocal := locals.lookup(listName)
		_, isValue := c.r.lookupValue(c.sc, listName)
		if !isLocal && !isValue {
			return c.listValue(e, want, locals)
		}
	}

	fn, ft := c.infer(e.Fn, locals)
	var sig *types.Func
	switch f := c.s.Resolve(ft).(type) {
	case *types.Func:
		sig = f
	case *types.Meta:
		sig = &types.Func{Params: make([]types.Type, len(e.Args)), Result: c.s.Fresh()}
		for i := range sig.Params {
			sig.Params[i] = c.s.Fresh()
		}
		c.expect(e.Pos, f, sig)
	default:
		c.typeErr(e.Pos, diag.CodeNotFunction, "%s is not a function", types.Show(c.s.Apply(ft)))
		c.inferAll(e.Args, locals)
		return c.placeholder()
	}
	if len(sig.Params) != len(e.Args) {
		c.typeErr(e.Pos, diag.CodeArgCount, "expected %d arguments, found %d", len(sig.Params), len(e.Args))
		c.inferAll(e.Args, locals)
		return c.placeholder()
	}

	// Lambdas go last so their parameters see what the other arguments
	// solved.
	args := make([]mir.Expr, len(e.Args))
	for i, a := range e.Args {
		if _, isLambda := a.(*syntax.Lambda); !isLambda {
			args[i] = c.check(a, sig.Params[i], locals)
		}
	}
	for i, a := range e.Args {
		if _, isLambda := a.(*syntax.Lambda); isLambda {
			args[i] = c.check(a, sig.Params[i], locals)
		}
	}

	n := &mir.Apply{Fn: fn, Args: args}
	c.typed(sig.Result, e.Pos, &n.Type)
	return n, sig.Result
}

func (c *checker) inferAll(es []syntax.Expr, locals *env) {
	for _, e := range es {
		c.infer(e, locals)
	}
}

func (c *checker) listValue(e *syntax.Call, want types.Type, locals *env) (mir.Expr, types.Type) {
	elem := types.Type(c.s.Fresh())
	t := types.List(elem)
	if want != nil {
		// Propagation only; the caller reports a mismatch.
		_ = c.s.Unify(want, t)
	}
	n := &mir.ListValue{}
	for _, a := range e.Args {
		n.Elems = append(n.Elems, c.check(a, elem, locals))
	}
	c.typed(t, e.Pos, &n.Type)
	return n, t
}

func (c *checker) lambda(e *syntax.Lambda, want types.Type, locals *env) (mir.Expr, types.Type) {
	var wantFn *types.Func
	if want != nil {
		if f, ok := c.s.Resolve(want).(*types.Func); ok && len(f.Params) == len(e.Params) {
			wantFn = f
		}
	}

	n := &mir.Lambda{Params: make([]mir.Param, len(e.Params))}
	params := make([]types.Type, len(e.Params))
	seen := map[string]bool{}
	for i, p := range e.Params {
		if seen[p.Name] {
			c.resolveErr(p.Pos, diag.CodeDuplicateName, "parameter %s is declared twice", p.Name)
		}
		seen[p.Name] = true

		var t types.Type
		switch {
		case p.Type != nil:
			t = c.typeExpr(p.Type)
			if wantFn != nil {
				c.expect(p.Pos, wantFn.Params[i], t)
			}
		case wantFn != nil:
			t = wantFn.Params[i]
		case want != nil:
			t = c.s.Fresh()
		default:
			c.typeErr(p.Pos, diag.CodeLambdaParamType, "cannot determine the type of lambda parameter %s; add a type annotation", p.Name)
			t = c.s.Fresh()
		}
		params[i] = t
		n.Params[i].Name = p.Name
		c.typed(t, p.Pos, &n.Params[i].Type)
		locals = locals.bind(p.Name, t)
	}

	var result types.Type
	if wantFn != nil {
		result = wantFn.Result
		n.Body = c.check(e.Body, result, locals)
	} else {
		n.Body, result = c.infer(e.Body, locals)
	}

	t := &types.Func{Params: params, Result: result}
	c.typed(t, e.Pos, &n.Type)
	if want != nil && wantFn == nil {
		c.expect(e.Pos, want, t)
	}
	return n, t
}

// condition checks an if or guard condition, which must be Boolean.
func (c *checker) condition(e syntax.Expr, locals *env) mir.Expr {
	n, t := c.infer(e, locals)
	if err := c.s.Unify(types.Boolean, t); err != nil {
		c.typeErr(e.Position(), diag.CodeConditionType, "condition must be Boolean, found %s", types.Show(c.s.Apply(t)))
	}
	return n
}

func (c *checker) ifExpr(e *syntax.If, want types.Type, locals *env) (mir.Expr, types.Type) {
	n := &mir.IfThenElse{Cond: c.condition(e.Cond, locals)}
	t := want
	if t == nil {
		n.Then, t = c.infer(e.Then, locals)
	} else {
		n.Then = c.check(e.Then, t, locals)
	}
	n.Else = c.check(e.Else, t, locals)
	c.typed(t, e.Pos, &n.Type)
	return n, t
}

func (c *checker) match(e *syntax.Match, want types.Type, locals *env) (mir.Expr, types.Type) {
	subject, st := c.infer(e.Scrutinee, locals)
	n := &mir.PatternMatch{Subject: subject, Cases: make([]mir.MatchCase, len(e.Cases))}

	t := want
	for i, mc := range e.Cases {
		pat, caseEnv := c.pattern(mc.Pattern, st, locals, map[string]bool{})
		arm := mir.MatchCase{Pattern: pat}
		if mc.Guard != nil {
			arm.Guard = c.condition(mc.Guard, caseEnv)
		}
		if t == nil {
			arm.Body, t = c.infer(mc.Body, caseEnv)
		} else {
			arm.Body = c.check(mc.Body, t, caseEnv)
		}
		n.Cases[i] = arm
	}
	if t == nil {
		t = c.s.Fresh()
	}
	c.exhaustive(e, st, n.Cases)
	c.typed(t, e.Pos, &n.Type)
	return n, t
}

type binding struct {
	name  string
	value mir.Expr
	t     types.Type
	pos   diag.Pos
}

// block lowers `{ val a = x; val b = y; r }` to nested Let nodes. Each val
// sees only the vals before it.
func (c *checker) block(e *syntax.Block, want types.Type, locals *env) (mir.Expr, types.Type) {
	seen := map[string]bool{}
	var bs []binding
	for _, v := range e.Vals {
		if seen[v.Name] {
			c.resolveErr(v.Pos, diag.CodeDuplicateName, "%s is already defined in this block", v.Name)
		}
		seen[v.Name] = true

		b := binding{name: v.Name, pos: v.Pos}
		if v.Type != nil {
			b.t = c.typeExpr(v.Type)
			b.value = c.check(v.Value, b.t, locals)
		} else {
			b.value, b.t = c.infer(v.Value, locals)
		}
		locals = locals.bind(v.Name, b.t)
		bs = append(bs, b)
	}

	var body mir.Expr
	t := want
	if t == nil {
		body, t = c.infer(e.Result, locals)
	} else {
		body = c.check(e.Result, t, locals)
	}
	for i := len(bs) - 1; i >= 0; i-- {
		let := &mir.Let{Name: bs[i].name, Value: bs[i].value, Body: body}
		c.typed(t, bs[i].pos, &let.Type)
		body = let
	}
	return body, t
}
