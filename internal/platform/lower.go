package platform

import (
	"fmt"
	"math"
	"strconv"

	"github.com/finos/morphir-scala/internal/mir"
)

// Lower compiles a module to bytecode. Function i is the module's i-th value
// declaration; lifted lambdas and eta-expanded constructors follow in the
// order they are met.
func Lower(m *mir.Module) (*Program, error) {
	l := &lowerer{prog: &Program{}, consts: map[string]int{}}
	for _, vd := range m.Values {
		l.prog.Functions = append(l.prog.Functions, &Function{Name: vd.Name, Arity: len(vd.Params)})
	}
	for i, vd := range m.Values {
		f := &fnState{l: l, fn: l.prog.Functions[i], name: vd.Name}
		var sc *slots
		for _, p := range vd.Params {
			sc = f.bind(sc, p.Name)
		}
		if err := f.expr(vd.Body, sc); err != nil {
			return nil, fmt.Errorf("lower %s: %w", vd.Name, err)
		}
		f.emit(OpRet, 0, 0)
	}
	return l.prog, nil
}

type lowerer struct {
	prog   *Program
	consts map[string]int
}

func (l *lowerer) constant(key string, c Constant) int {
	if i, ok := l.consts[key]; ok {
		return i
	}
	i := len(l.prog.Constants)
	l.prog.Constants = append(l.prog.Constants, c)
	l.consts[key] = i
	return i
}

func (l *lowerer) literal(v mir.Lit) int {
	switch v.Kind {
	case mir.LitBool:
		return l.constant("b:"+strconv.FormatBool(v.Bool), Constant{Kind: ConstBool, Bool: v.Bool})
	case mir.LitInt:
		return l.constant("i:"+strconv.FormatInt(v.Int, 10), Constant{Kind: ConstInt, Int: v.Int})
	case mir.LitFloat:
		return l.constant("f:"+strconv.FormatUint(math.Float64bits(v.Float), 16), Constant{Kind: ConstFloat, Float: v.Float})
	default:
		return l.constant("s:"+v.Str, Constant{Kind: ConstString, Str: v.Str})
	}
}

func (l *lowerer) global(n mir.FQName) int {
	return l.constant("g:"+n.String(), Constant{Kind: ConstGlobal, Str: n.String()})
}

func (l *lowerer) ctor(n mir.FQName) int {
	return l.constant("c:"+n.String(), Constant{Kind: ConstCtor, Str: n.String()})
}

func (l *lowerer) field(name string) int {
	return l.constant("n:"+name, Constant{Kind: ConstField, Str: name})
}

// pattern constants are never shared: their slots belong to one function.
func (l *lowerer) pattern(p *Pattern) int {
	i := len(l.prog.Constants)
	l.prog.Constants = append(l.prog.Constants, Constant{Kind: ConstPattern, Pattern: p})
	return i
}

func (l *lowerer) newFunction(name string, arity int) (int, *Function) {
	fn := &Function{Name: name, Arity: arity}
	l.prog.Functions = append(l.prog.Functions, fn)
	return len(l.prog.Functions) - 1, fn
}

// slots maps local names to slot numbers; inner bindings shadow outer ones.
type slots struct {
	name string
	slot int
	next *slots
}

func (s *slots) lookup(name string) (int, bool) {
	for ; s != nil; s = s.next {
		if s.name == name {
			return s.slot, true
		}
	}
	return 0, false
}

type fnState struct {
	l      *lowerer
	fn     *Function
	name   string
	lifted int
}

func (f *fnState) alloc() int {
	n := f.fn.Locals
	f.fn.Locals++
	return n
}

func (f *fnState) bind(sc *slots, name string) *slots {
	return &slots{name: name, slot: f.alloc(), next: sc}
}

func (f *fnState) emit(op Op, a, b int) int {
	f.fn.Code = append(f.fn.Code, Instr{Op: op, A: a, B: b})
	return len(f.fn.Code) - 1
}

func (f *fnState) patch(at int) {
	f.fn.Code[at].A = len(f.fn.Code)
}

func (f *fnState) liftedName(kind string) string {
	f.lifted++
	return fmt.Sprintf("%s$%s%d", f.name, kind, f.lifted)
}

func (f *fnState) exprs(xs []mir.Expr, sc *slots) error {
	for _, x := range xs {
		if err := f.expr(x, sc); err != nil {
			return err
		}
	}
	return nil
}

func (f *fnState) expr(x mir.Expr, sc *slots) error {
	switch x := x.(type) {
	case *mir.Literal:
		f.emit(OpConst, f.l.literal(x.Value), 0)
	case *mir.UnitValue:
		f.emit(OpUnit, 0, 0)
	case *mir.Variable:
		slot, ok := sc.lookup(x.Name)
		if !ok {
			return fmt.Errorf("unbound local %s", x.Name)
		}
		f.emit(OpLoad, slot, 0)
	case *mir.Reference:
		f.emit(OpGlobal, f.l.global(x.Name), 0)
	case *mir.Constructor:
		return f.constructorValue(x)
	case *mir.Apply:
		if c, ok := x.Fn.(*mir.Constructor); ok {
			if err := f.exprs(x.Args, sc); err != nil {
				return err
			}
			f.emit(OpCtor, f.l.ctor(c.Name), len(x.Args))
			return nil
		}
		if err := f.expr(x.Fn, sc); err != nil {
			return err
		}
		if err := f.exprs(x.Args, sc); err != nil {
			return err
		}
		f.emit(OpCall, len(x.Args), 0)
	case *mir.Lambda:
		return f.lambda(x, sc)
	case *mir.Let:
		if err := f.expr(x.Value, sc); err != nil {
			return err
		}
		inner := f.bind(sc, x.Name)
		f.emit(OpStore, inner.slot, 0)
		return f.expr(x.Body, inner)
	case *mir.IfThenElse:
		if err := f.expr(x.Cond, sc); err != nil {
			return err
		}
		jf := f.emit(OpJumpIfFalse, 0, 0)
		if err := f.expr(x.Then, sc); err != nil {
			return err
		}
		end := f.emit(OpJump, 0, 0)
		f.patch(jf)
		if err := f.expr(x.Else, sc); err != nil {
			return err
		}
		f.patch(end)
	case *mir.PatternMatch:
		return f.match(x, sc)
	case *mir.Field:
		if err := f.expr(x.Subject, sc); err != nil {
			return err
		}
		f.emit(OpField, f.l.field(x.Name), 0)
	case *mir.Tuple:
		if err := f.exprs(x.Elems, sc); err != nil {
			return err
		}
		f.emit(OpTuple, len(x.Elems), 0)
	case *mir.ListValue:
		if err := f.exprs(x.Elems, sc); err != nil {
			return err
		}
		f.emit(OpList, len(x.Elems), 0)
	default:
		return fmt.Errorf("unsupported expression %T", x)
	}
	return nil
}

// constructorValue lowers a constructor that is not directly applied. A
// nullary case is a value; a case with fields is used as a function and is
// eta-expanded into a lifted function.
func (f *fnState) constructorValue(c *mir.Constructor) error {
	ft, ok := c.Type.(*mir.TFunc)
	if !ok {
		f.emit(OpCtor, f.l.ctor(c.Name), 0)
		return nil
	}
	n := len(ft.Params)
	idx, fn := f.l.newFunction(f.liftedName("ctor"), n)
	fn.Locals = n
	for i := range n {
		fn.Code = append(fn.Code, Instr{Op: OpLoad, A: i})
	}
	fn.Code = append(fn.Code,
		Instr{Op: OpCtor, A: f.l.ctor(c.Name), B: n},
		Instr{Op: OpRet},
	)
	f.emit(OpClosure, idx, 0)
	return nil
}

// lambda lifts a lambda into its own function. Captured locals become its
// leading parameters and are pushed before CLOSURE.
func (f *fnState) lambda(x *mir.Lambda, sc *slots) error {
	var captured []string
	seen := map[string]bool{}
	bound := map[string]int{}
	for _, p := range x.Params {
		bound[p.Name]++
	}
	freeVars(x.Body, bound, seen, &captured)

	var caps []string
	for _, name := range captured {
		if _, ok := sc.lookup(name); ok {
			caps = append(caps, name)
		}
	}

	idx, fn := f.l.newFunction(f.liftedName("lambda"), len(caps)+len(x.Params))
	child := &fnState{l: f.l, fn: fn, name: f.name, lifted: f.lifted}
	var inner *slots
	for _, name := range caps {
		inner = child.bind(inner, name)
	}
	for _, p := range x.Params {
		inner = child.bind(inner, p.Name)
	}
	if err := child.expr(x.Body, inner); err != nil {
		return err
	}
	child.emit(OpRet, 0, 0)
	f.lifted = child.lifted

	for _, name := range caps {
		slot, _ := sc.lookup(name)
		f.emit(OpLoad, slot, 0)
	}
	f.emit(OpClosure, idx, len(caps))
	return nil
}

// match stores the subject in a temporary and tests each arm in order.
// Falling past the last arm executes FAIL.
func (f *fnState) match(x *mir.PatternMatch, sc *slots) error {
	if err := f.expr(x.Subject, sc); err != nil {
		return err
	}
	tmp := f.alloc()
	f.emit(OpStore, tmp, 0)

	var ends []int
	for _, c := range x.Cases {
		inner := sc
		p, err := f.pattern(c.Pattern, &inner)
		if err != nil {
			return err
		}
		f.emit(OpLoad, tmp, 0)
		f.emit(OpMatch, f.l.pattern(p), 0)
		next := []int{f.emit(OpJumpIfFalse, 0, 0)}
		if c.Guard != nil {
			if err := f.expr(c.Guard, inner); err != nil {
				return err
			}
			next = append(next, f.emit(OpJumpIfFalse, 0, 0))
		}
		if err := f.expr(c.Body, inner); err != nil {
			return err
		}
		ends = append(ends, f.emit(OpJump, 0, 0))
		for _, at := range next {
			f.patch(at)
		}
	}
	f.emit(OpFail, 0, 0)
	for _, at := range ends {
		f.patch(at)
	}
	return nil
}

func (f *fnState) pattern(p mir.Pattern, sc **slots) (*Pattern, error) {
	switch p := p.(type) {
	case *mir.PWildcard:
		return &Pattern{Kind: PatAny}, nil
	case *mir.PVar:
		*sc = f.bind(*sc, p.Name)
		return &Pattern{Kind: PatBind, Ref: (*sc).slot}, nil
	case *mir.PLiteral:
		return &Pattern{Kind: PatConst, Ref: f.l.literal(p.Value)}, nil
	case *mir.PUnit:
		return &Pattern{Kind: PatUnit}, nil
	case *mir.PConstructor:
		args, err := f.patterns(p.Args, sc)
		if err != nil {
			return nil, err
		}
		return &Pattern{Kind: PatCtor, Ref: f.l.ctor(p.Name), Args: args}, nil
	case *mir.PTuple:
		args, err := f.patterns(p.Elems, sc)
		if err != nil {
			return nil, err
		}
		return &Pattern{Kind: PatTuple, Args: args}, nil
	}
	return nil, fmt.Errorf("unsupported pattern %T", p)
}

func (f *fnState) patterns(ps []mir.Pattern, sc **slots) ([]*Pattern, error) {
	if len(ps) == 0 {
		return nil, nil
	}
	out := make([]*Pattern, len(ps))
	for i, p := range ps {
		q, err := f.pattern(p, sc)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// freeVars appends, in first-use order, the variables of x that are not
// bound inside x.
func freeVars(x mir.Expr, bound map[string]int, seen map[string]bool, out *[]string) {
	switch x := x.(type) {
	case *mir.Variable:
		if bound[x.Name] == 0 && !seen[x.Name] {
			seen[x.Name] = true
			*out = append(*out, x.Name)
		}
	case *mir.Apply:
		freeVars(x.Fn, bound, seen, out)
		for _, a := range x.Args {
			freeVars(a, bound, seen, out)
		}
	case *mir.Lambda:
		for _, p := range x.Params {
			bound[p.Name]++
		}
		freeVars(x.Body, bound, seen, out)
		for _, p := range x.Params {
			bound[p.Name]--
		}
	case *mir.Let:
		freeVars(x.Value, bound, seen, out)
		bound[x.Name]++
		freeVars(x.Body, bound, seen, out)
		bound[x.Name]--
	case *mir.IfThenElse:
		freeVars(x.Cond, bound, seen, out)
		freeVars(x.Then, bound, seen, out)
		freeVars(x.Else, bound, seen, out)
	case *mir.PatternMatch:
		freeVars(x.Subject, bound, seen, out)
		for _, c := range x.Cases {
			var names []string
			patternVars(c.Pattern, &names)
			for _, n := range names {
				bound[n]++
			}
			if c.Guard != nil {
				freeVars(c.Guard, bound, seen, out)
			}
			freeVars(c.Body, bound, seen, out)
			for _, n := range names {
				bound[n]--
			}
		}
	case *mir.Field:
		freeVars(x.Subject, bound, seen, out)
	case *mir.Tuple:
		for _, e := range x.Elems {
			freeVars(e, bound, seen, out)
		}
	case *mir.ListValue:
		for _, e := range x.Elems {
			freeVars(e, bound, seen, out)
		}
	}
}

func patternVars(p mir.Pattern, out *[]string) {
	switch p := p.(type) {
	case *mir.PVar:
		*out = append(*out, p.Name)
	case *mir.PConstructor:
		for _, a := range p.Args {
			patternVars(a, out)
		}
	case *mir.PTuple:
		for _, e := range p.Elems {
			patternVars(e, out)
		}
	}
}
