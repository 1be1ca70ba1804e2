package syntax

import (
	"unicode"
	"unicode/utf8"

	"github.com/finos/morphir-scala/internal/diag"
)

// Parse lexes and parses one compilation unit.
//
// Lexical errors stop before parsing. Syntax errors are reported once per
// top-level declaration; the parser then skips to the next declaration
// keyword at brace depth zero and continues, so independent errors in the
// same file are all reported. The returned file is only meaningful when the
// diagnostics hold no errors.
func Parse(text string) (*File, diag.List) {
	toks, diags := Lex(text)
	if diags.HasErrors() {
		return nil, diags
	}
	p := &parser{toks: toks}
	f := p.file()
	return f, p.diags
}

// bailout unwinds the parser to the enclosing declaration after an error.
type bailout struct{}

type parser struct {
	toks  []Token
	pos   int
	diags diag.List
}

func (p *parser) tok() Token { return p.toks[p.pos] }

func (p *parser) peekKind(n int) TokenKind {
	if p.pos+n >= len(p.toks) {
		return EOF
	}
	return p.toks[p.pos+n].Kind
}

func (p *parser) at(k TokenKind) bool { return p.tok().Kind == k }

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != EOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(k TokenKind) bool {
	if p.at(k) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(k TokenKind) Token {
	if !p.at(k) {
		p.fail(diag.CodeUnexpectedToken, "expected %s, found %s", k, p.tok())
	}
	return p.next()
}

func (p *parser) errorf(pos diag.Pos, code, format string, args ...any) {
	p.diags = append(p.diags, diag.New(diag.KindParse, diag.PhaseParse, code, pos, format, args...))
}

// fail records an error at the current token and unwinds.
func (p *parser) fail(code, format string, args ...any) {
	p.errorf(p.tok().Pos, code, format, args...)
	panic(bailout{})
}

func (p *parser) skipSemis() {
	for p.accept(Semi) {
	}
}

// guard runs fn and recovers from a bailout by resynchronizing.
func (p *parser) guard(fn func()) {
	start := p.pos
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(bailout); !ok {
			panic(r)
		}
		if p.pos == start {
			p.next()
		}
		p.sync()
	}()
	fn()
}

func (p *parser) atSyncPoint() bool {
	t := p.tok()
	if t.Depth != 0 {
		return t.Kind == EOF
	}
	switch t.Kind {
	case EOF, KwDef, KwVal, KwType, KwEnum, KwFinal, KwImport, KwPackage:
		return true
	case KwCase:
		return p.peekKind(1) == KwClass
	}
	return false
}

func (p *parser) sync() {
	for !p.atSyncPoint() {
		p.next()
	}
}

func (p *parser) file() *File {
	f := &File{}
	p.skipSemis()
	if p.at(KwPackage) {
		p.guard(func() {
			p.next()
			f.Package = p.qualName()
		})
	}
	for {
		p.skipSemis()
		if p.at(EOF) {
			return f
		}
		p.guard(func() {
			switch p.tok().Kind {
			case KwImport:
				f.Imports = append(f.Imports, p.importDecl())
			case KwPackage:
				p.fail(diag.CodeExpectedDecl, "package clause must come first")
			default:
				f.Decls = append(f.Decls, p.decl())
			}
		})
	}
}

func (p *parser) ident() *Name {
	t := p.expect(Ident)
	return &Name{Name: t.Text, Pos: t.Pos}
}

func (p *parser) qualName() *QualName {
	first := p.expect(Ident)
	q := &QualName{Parts: []string{first.Text}, Pos: first.Pos}
	for p.at(Dot) && p.peekKind(1) == Ident {
		p.next()
		q.Parts = append(q.Parts, p.next().Text)
	}
	return q
}

func (p *parser) importDecl() *Import {
	imp := &Import{Pos: p.expect(KwImport).Pos}
	parts := []string{p.expect(Ident).Text}
	for {
		p.expect(Dot)
		switch {
		case p.accept(Underscore):
			imp.Wildcard = true
		case p.accept(LBrace):
			imp.Names = append(imp.Names, p.ident())
			for p.accept(Comma) {
				imp.Names = append(imp.Names, p.ident())
			}
			p.expect(RBrace)
		default:
			n := p.ident()
			if p.at(Dot) {
				parts = append(parts, n.Name)
				continue
			}
			imp.Names = []*Name{n}
		}
		break
	}
	imp.Module = (&QualName{Parts: parts}).String()
	return imp
}

func (p *parser) decl() Decl {
	switch p.tok().Kind {
	case KwDef:
		return p.defDecl()
	case KwVal:
		return p.valDecl()
	case KwType:
		return p.typeAlias()
	case KwEnum:
		return p.enumDecl()
	case KwFinal, KwCase:
		return p.caseClass()
	default:
		p.fail(diag.CodeExpectedDecl, "expected declaration, found %s", p.tok())
		return nil
	}
}

func (p *parser) typeParams() []*Name {
	if !p.accept(LBrack) {
		return nil
	}
	names := []*Name{p.ident()}
	for p.accept(Comma) {
		names = append(names, p.ident())
	}
	p.expect(RBrack)
	return names
}

func (p *parser) param() *Param {
	n := p.ident()
	p.expect(Colon)
	return &Param{Name: n.Name, Type: p.typeExpr(), Pos: n.Pos}
}

// params parses `(p1: T1, ...)`, allowing an empty list.
func (p *parser) params() []*Param {
	p.expect(LParen)
	var ps []*Param
	if !p.at(RParen) {
		ps = append(ps, p.param())
		for p.accept(Comma) {
			ps = append(ps, p.param())
		}
	}
	p.expect(RParen)
	return ps
}

func (p *parser) defDecl() *DefDecl {
	p.expect(KwDef)
	n := p.ident()
	d := &DefDecl{Name: n.Name, Pos: n.Pos}
	d.TypeParams = p.typeParams()
	d.Params = p.params()
	p.expect(Colon)
	d.Result = p.typeExpr()
	p.expect(Assign)
	d.Body = p.expr()
	return d
}

func (p *parser) valDecl() *ValDecl {
	p.expect(KwVal)
	n := p.ident()
	p.expect(Colon)
	d := &ValDecl{Name: n.Name, Pos: n.Pos, Type: p.typeExpr()}
	p.expect(Assign)
	d.Body = p.expr()
	return d
}

func (p *parser) typeAlias() *TypeAlias {
	p.expect(KwType)
	n := p.ident()
	d := &TypeAlias{Name: n.Name, Pos: n.Pos, TypeParams: p.typeParams()}
	p.expect(Assign)
	d.Type = p.typeExpr()
	return d
}

func (p *parser) enumDecl() *EnumDecl {
	p.expect(KwEnum)
	n := p.ident()
	d := &EnumDecl{Name: n.Name, Pos: n.Pos, TypeParams: p.typeParams()}
	p.expect(LBrace)
	p.skipSemis()
	for p.at(KwCase) {
		p.next()
		cn := p.ident()
		c := &EnumCase{Name: cn.Name, Pos: cn.Pos}
		if p.at(LParen) {
			c.HasFields = true
			c.Fields = p.params()
		}
		d.Cases = append(d.Cases, c)
		p.skipSemis()
		// Scala also allows `case A, B` for field-less cases.
		for p.accept(Comma) {
			cn := p.ident()
			d.Cases = append(d.Cases, &EnumCase{Name: cn.Name, Pos: cn.Pos})
		}
		p.skipSemis()
	}
	p.expect(RBrace)
	return d
}

func (p *parser) caseClass() *CaseClass {
	p.accept(KwFinal)
	p.expect(KwCase)
	p.expect(KwClass)
	n := p.ident()
	d := &CaseClass{Name: n.Name, Pos: n.Pos, TypeParams: p.typeParams()}
	d.Fields = p.params()
	return d
}

// Types

func (p *parser) typeExpr() TypeExpr {
	start := p.tok().Pos
	if p.at(LParen) {
		p.next()
		var elems []TypeExpr
		if !p.at(RParen) {
			elems = append(elems, p.typeExpr())
			for p.accept(Comma) {
				elems = append(elems, p.typeExpr())
			}
		}
		p.expect(RParen)
		if p.accept(Arrow) {
			return &FuncType{Params: elems, Result: p.typeExpr(), Pos: start}
		}
		if len(elems) == 1 {
			return elems[0]
		}
		return &TupleType{Elems: elems, Pos: start}
	}

	name := p.qualName()
	t := &TypeName{Name: name, Pos: start}
	if p.accept(LBrack) {
		t.Args = append(t.Args, p.typeExpr())
		for p.accept(Comma) {
			t.Args = append(t.Args, p.typeExpr())
		}
		p.expect(RBrack)
	}
	if p.accept(Arrow) {
		return &FuncType{Params: []TypeExpr{t}, Result: p.typeExpr(), Pos: start}
	}
	return t
}

// Expressions

func (p *parser) expr() Expr {
	switch {
	case p.at(Ident) && p.peekKind(1) == Arrow:
		n := p.ident()
		p.next()
		return &Lambda{
			Params: []*LambdaParam{{Name: n.Name, Pos: n.Pos}},
			Body:   p.expr(),
			Pos:    n.Pos,
		}
	case p.at(LParen):
		if head, ok := p.tryLambdaParams(); ok {
			p.expect(Arrow)
			return &Lambda{Params: head.list, Body: p.expr(), Pos: head.pos}
		}
	case p.at(KwIf):
		return p.ifExpr()
	}

	e := p.binary(1)
	if p.at(KwMatch) {
		return p.matchExpr(e)
	}
	return e
}

type lambdaHead struct {
	list []*LambdaParam
	pos  diag.Pos
}

// tryLambdaParams speculatively parses a parenthesized lambda parameter
// list. It commits only when the closing paren is followed by `=>`; on any
// other outcome the parser position and diagnostics are restored.
func (p *parser) tryLambdaParams() (head lambdaHead, ok bool) {
	save, saveDiags := p.pos, len(p.diags)
	defer func() {
		if r := recover(); r != nil {
			if _, isBailout := r.(bailout); !isBailout {
				panic(r)
			}
			p.pos, p.diags = save, p.diags[:saveDiags]
			head, ok = lambdaHead{}, false
		}
	}()

	head.pos = p.expect(LParen).Pos
	if !p.at(RParen) {
		head.list = append(head.list, p.lambdaParam())
		for p.accept(Comma) {
			head.list = append(head.list, p.lambdaParam())
		}
	}
	p.expect(RParen)
	if !p.at(Arrow) {
		p.pos, p.diags = save, p.diags[:saveDiags]
		return lambdaHead{}, false
	}
	return head, true
}

func (p *parser) lambdaParam() *LambdaParam {
	n := p.ident()
	lp := &LambdaParam{Name: n.Name, Pos: n.Pos}
	if p.accept(Colon) {
		lp.Type = p.typeExpr()
	}
	return lp
}

func (p *parser) ifExpr() Expr {
	pos := p.expect(KwIf).Pos
	p.expect(LParen)
	cond := p.expr()
	p.expect(RParen)
	then := p.expr()
	p.skipSemis()
	p.expect(KwElse)
	return &If{Cond: cond, Then: then, Else: p.expr(), Pos: pos}
}

func (p *parser) matchExpr(scrutinee Expr) Expr {
	pos := p.expect(KwMatch).Pos
	m := &Match{Scrutinee: scrutinee, Pos: pos}
	p.expect(LBrace)
	p.skipSemis()
	for p.at(KwCase) {
		c := &MatchCase{Pos: p.next().Pos}
		c.Pattern = p.pattern()
		if p.accept(KwIf) {
			c.Guard = p.binary(1)
		}
		p.expect(Arrow)
		c.Body = p.expr()
		m.Cases = append(m.Cases, c)
		p.skipSemis()
	}
	p.expect(RBrace)
	if len(m.Cases) == 0 {
		p.errorf(pos, diag.CodeEmptyMatch, "match needs at least one case")
	}
	return m
}

var precedence = map[TokenKind]int{
	OrOr:     1,
	AndAnd:   2,
	EqEq:     3,
	NotEq:    3,
	Lt:       4,
	LtEq:     4,
	Gt:       4,
	GtEq:     4,
	Plus:     5,
	Minus:    5,
	PlusPlus: 5,
	Star:     6,
	Slash:    6,
	Percent:  6,
}

// binary parses left-associative infix operators by precedence climbing.
func (p *parser) binary(minPrec int) Expr {
	x := p.unary()
	for {
		op := p.tok()
		prec, ok := precedence[op.Kind]
		if !ok || prec < minPrec {
			return x
		}
		p.next()
		y := p.binary(prec + 1)
		x = &Binary{Op: op.Kind, X: x, Y: y, Pos: op.Pos}
	}
}

func (p *parser) unary() Expr {
	if p.at(Minus) || p.at(Bang) {
		op := p.next()
		x := p.unary()
		if lit, ok := x.(*Lit); ok && op.Kind == Minus {
			switch lit.Kind {
			case LitInt:
				return &Lit{Kind: LitInt, Int: -lit.Int, Pos: op.Pos}
			case LitFloat:
				return &Lit{Kind: LitFloat, Float: -lit.Float, Pos: op.Pos}
			}
		}
		return &Unary{Op: op.Kind, X: x, Pos: op.Pos}
	}
	return p.postfix()
}

func (p *parser) postfix() Expr {
	x := p.atom()
	for {
		switch {
		case p.at(LParen):
			pos := p.next().Pos
			var args []Expr
			if !p.at(RParen) {
				args = append(args, p.expr())
				for p.accept(Comma) {
					args = append(args, p.expr())
				}
			}
			p.expect(RParen)
			x = &Call{Fn: x, Args: args, Pos: pos}
		case p.at(Dot):
			p.next()
			n := p.ident()
			x = &Select{X: x, Name: n.Name, Pos: n.Pos}
		default:
			return x
		}
	}
}

func (p *parser) atom() Expr {
	t := p.tok()
	switch t.Kind {
	case IntLit:
		p.next()
		return &Lit{Kind: LitInt, Int: t.Int, Pos: t.Pos}
	case FloatLit:
		p.next()
		return &Lit{Kind: LitFloat, Float: t.Float, Pos: t.Pos}
	case StringLit:
		p.next()
		return &Lit{Kind: LitString, Str: t.Str, Pos: t.Pos}
	case KwTrue, KwFalse:
		p.next()
		return &Lit{Kind: LitBool, Bool: t.Kind == KwTrue, Pos: t.Pos}
	case Ident:
		p.next()
		return &IdentExpr{Name: t.Text, Pos: t.Pos}
	case LParen:
		p.next()
		if p.accept(RParen) {
			return &UnitLit{Pos: t.Pos}
		}
		first := p.expr()
		if !p.at(Comma) {
			p.expect(RParen)
			return first
		}
		tup := &TupleExpr{Elems: []Expr{first}, Pos: t.Pos}
		for p.accept(Comma) {
			tup.Elems = append(tup.Elems, p.expr())
		}
		p.expect(RParen)
		return tup
	case LBrace:
		return p.block()
	default:
		p.fail(diag.CodeUnexpectedToken, "expected expression, found %s", t)
		return nil
	}
}

func (p *parser) block() Expr {
	b := &Block{Pos: p.expect(LBrace).Pos}
	p.skipSemis()
	for p.at(KwVal) {
		p.next()
		n := p.ident()
		v := &BlockVal{Name: n.Name, Pos: n.Pos}
		if p.accept(Colon) {
			v.Type = p.typeExpr()
		}
		p.expect(Assign)
		v.Value = p.expr()
		b.Vals = append(b.Vals, v)
		p.skipSemis()
	}
	b.Result = p.expr()
	p.skipSemis()
	p.expect(RBrace)
	return b
}

// Patterns

func (p *parser) pattern() Pattern {
	t := p.tok()
	switch t.Kind {
	case Underscore:
		p.next()
		return &WildcardPattern{Pos: t.Pos}
	case IntLit, FloatLit, StringLit, KwTrue, KwFalse:
		return &LitPattern{Lit: p.atom().(*Lit)}
	case Minus:
		if k := p.peekKind(1); k == IntLit || k == FloatLit {
			lit, _ := p.unary().(*Lit)
			return &LitPattern{Lit: lit}
		}
	case LParen:
		p.next()
		if p.accept(RParen) {
			return &UnitPattern{Pos: t.Pos}
		}
		elems := []Pattern{p.pattern()}
		for p.accept(Comma) {
			elems = append(elems, p.pattern())
		}
		p.expect(RParen)
		if len(elems) == 1 {
			return elems[0]
		}
		return &TuplePattern{Elems: elems, Pos: t.Pos}
	case Ident:
		name := p.qualName()
		if p.at(LParen) {
			p.next()
			cp := &CtorPattern{Name: name, HasArgs: true, Pos: t.Pos}
			if !p.at(RParen) {
				cp.Args = append(cp.Args, p.pattern())
				for p.accept(Comma) {
					cp.Args = append(cp.Args, p.pattern())
				}
			}
			p.expect(RParen)
			return cp
		}
		if len(name.Parts) == 1 && !isUpper(name.Parts[0]) {
			return &VarPattern{Name: name.Parts[0], Pos: t.Pos}
		}
		return &CtorPattern{Name: name, Pos: t.Pos}
	}
	p.fail(diag.CodeBadPattern, "expected pattern, found %s", t)
	return nil
}

func isUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
