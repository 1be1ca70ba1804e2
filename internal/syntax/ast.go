package syntax

import (
	"strings"

	"github.com/finos/morphir-scala/internal/diag"
)

// File is the syntax tree of one compilation unit.
type File struct {
	Package *QualName
	Imports []*Import
	Decls   []Decl
}

// QualName is a dotted name such as finance.rates.Rate.
type QualName struct {
	Parts []string
	Pos   diag.Pos
}

func (q *QualName) String() string { return strings.Join(q.Parts, ".") }

// Last returns the final segment.
func (q *QualName) Last() string { return q.Parts[len(q.Parts)-1] }

// Qualifier returns every segment but the last, joined with dots.
func (q *QualName) Qualifier() string { return strings.Join(q.Parts[:len(q.Parts)-1], ".") }

// Import is `import mod.name`, `import mod._` or `import mod.{a, b}`.
type Import struct {
	Module   string
	Names    []*Name
	Wildcard bool
	Pos      diag.Pos
}

// Name is an identifier with its position.
type Name struct {
	Name string
	Pos  diag.Pos
}

// Param is a named, typed parameter or record field.
type Param struct {
	Name string
	Type TypeExpr
	Pos  diag.Pos
}

// Decl is a top-level declaration.
type Decl interface {
	DeclName() string
	Position() diag.Pos
	declNode()
}

type DefDecl struct {
	Name       string
	TypeParams []*Name
	Params     []*Param
	Result     TypeExpr
	Body       Expr
	Pos        diag.Pos
}

type ValDecl struct {
	Name string
	Type TypeExpr
	Body Expr
	Pos  diag.Pos
}

type TypeAlias struct {
	Name       string
	TypeParams []*Name
	Type       TypeExpr
	Pos        diag.Pos
}

type EnumDecl struct {
	Name       string
	TypeParams []*Name
	Cases      []*EnumCase
	Pos        diag.Pos
}

// EnumCase is one `case Name(fields)` inside an enum. HasFields
// distinguishes `case A()` from `case A`.
type EnumCase struct {
	Name      string
	Fields    []*Param
	HasFields bool
	Pos       diag.Pos
}

type CaseClass struct {
	Name       string
	TypeParams []*Name
	Fields     []*Param
	Pos        diag.Pos
}

func (d *DefDecl) DeclName() string   { return d.Name }
func (d *ValDecl) DeclName() string   { return d.Name }
func (d *TypeAlias) DeclName() string { return d.Name }
func (d *EnumDecl) DeclName() string  { return d.Name }
func (d *CaseClass) DeclName() string { return d.Name }

func (d *DefDecl) Position() diag.Pos   { return d.Pos }
func (d *ValDecl) Position() diag.Pos   { return d.Pos }
func (d *TypeAlias) Position() diag.Pos { return d.Pos }
func (d *EnumDecl) Position() diag.Pos  { return d.Pos }
func (d *CaseClass) Position() diag.Pos { return d.Pos }

func (*DefDecl) declNode()   {}
func (*ValDecl) declNode()   {}
func (*TypeAlias) declNode() {}
func (*EnumDecl) declNode()  {}
func (*CaseClass) declNode() {}

// TypeExpr is a type as written in source.
type TypeExpr interface {
	Position() diag.Pos
	typeNode()
}

// TypeName is a possibly qualified type name with optional arguments.
type TypeName struct {
	Name *QualName
	Args []TypeExpr
	Pos  diag.Pos
}

// TupleType is `(A, B, ...)`. Zero elements is Unit.
type TupleType struct {
	Elems []TypeExpr
	Pos   diag.Pos
}

// FuncType is `(A, B) => C` or `A => B`.
type FuncType struct {
	Params []TypeExpr
	Result TypeExpr
	Pos    diag.Pos
}

func (t *TypeName) Position() diag.Pos  { return t.Pos }
func (t *TupleType) Position() diag.Pos { return t.Pos }
func (t *FuncType) Position() diag.Pos  { return t.Pos }

func (*TypeName) typeNode()  {}
func (*TupleType) typeNode() {}
func (*FuncType) typeNode()  {}

// Expr is an expression.
type Expr interface {
	Position() diag.Pos
	exprNode()
}

// LitKind is the kind of a literal.
type LitKind int

const (
	LitBool LitKind = iota
	LitInt
	LitFloat
	LitString
)

// Lit is a literal value.
type Lit struct {
	Kind  LitKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Pos   diag.Pos
}

type UnitLit struct {
	Pos diag.Pos
}

// IdentExpr is a bare name reference.
type IdentExpr struct {
	Name string
	Pos  diag.Pos
}

// Select is `x.name`: a field, tuple element or qualified constructor.
type Select struct {
	X    Expr
	Name string
	Pos  diag.Pos
}

type Call struct {
	Fn   Expr
	Args []Expr
	Pos  diag.Pos
}

type Binary struct {
	Op   TokenKind
	X, Y Expr
	Pos  diag.Pos
}

type Unary struct {
	Op  TokenKind
	X   Expr
	Pos diag.Pos
}

// LambdaParam is a lambda parameter; Type is nil when unannotated.
type LambdaParam struct {
	Name string
	Type TypeExpr
	Pos  diag.Pos
}

type Lambda struct {
	Params []*LambdaParam
	Body   Expr
	Pos    diag.Pos
}

type If struct {
	Cond, Then, Else Expr
	Pos              diag.Pos
}

type MatchCase struct {
	Pattern Pattern
	Guard   Expr
	Body    Expr
	Pos     diag.Pos
}

type Match struct {
	Scrutinee Expr
	Cases     []*MatchCase
	Pos       diag.Pos
}

// BlockVal is a `val` statement inside a block; Type is optional.
type BlockVal struct {
	Name  string
	Type  TypeExpr
	Value Expr
	Pos   diag.Pos
}

type Block struct {
	Vals   []*BlockVal
	Result Expr
	Pos    diag.Pos
}

type TupleExpr struct {
	Elems []Expr
	Pos   diag.Pos
}

func (e *Lit) Position() diag.Pos       { return e.Pos }
func (e *UnitLit) Position() diag.Pos   { return e.Pos }
func (e *IdentExpr) Position() diag.Pos { return e.Pos }
func (e *Select) Position() diag.Pos    { return e.Pos }
func (e *Call) Position() diag.Pos      { return e.Pos }
func (e *Binary) Position() diag.Pos    { return e.Pos }
func (e *Unary) Position() diag.Pos     { return e.Pos }
func (e *Lambda) Position() diag.Pos    { return e.Pos }
func (e *If) Position() diag.Pos        { return e.Pos }
func (e *Match) Position() diag.Pos     { return e.Pos }
func (e *Block) Position() diag.Pos     { return e.Pos }
func (e *TupleExpr) Position() diag.Pos { return e.Pos }

func (*Lit) exprNode()       {}
func (*UnitLit) exprNode()   {}
func (*IdentExpr) exprNode() {}
func (*Select) exprNode()    {}
func (*Call) exprNode()      {}
func (*Binary) exprNode()    {}
func (*Unary) exprNode()     {}
func (*Lambda) exprNode()    {}
func (*If) exprNode()        {}
func (*Match) exprNode()     {}
func (*Block) exprNode()     {}
func (*TupleExpr) exprNode() {}

// Pattern is a match pattern.
type Pattern interface {
	Position() diag.Pos
	patternNode()
}

type WildcardPattern struct {
	Pos diag.Pos
}

type VarPattern struct {
	Name string
	Pos  diag.Pos
}

type LitPattern struct {
	Lit *Lit
}

// CtorPattern matches a constructor. HasArgs distinguishes `None` from
// `None()`.
type CtorPattern struct {
	Name    *QualName
	Args    []Pattern
	HasArgs bool
	Pos     diag.Pos
}

type TuplePattern struct {
	Elems []Pattern
	Pos   diag.Pos
}

type UnitPattern struct {
	Pos diag.Pos
}

func (p *WildcardPattern) Position() diag.Pos { return p.Pos }
func (p *VarPattern) Position() diag.Pos      { return p.Pos }
func (p *LitPattern) Position() diag.Pos      { return p.Lit.Pos }
func (p *CtorPattern) Position() diag.Pos     { return p.Pos }
func (p *TuplePattern) Position() diag.Pos    { return p.Pos }
func (p *UnitPattern) Position() diag.Pos     { return p.Pos }

func (*WildcardPattern) patternNode() {}
func (*VarPattern) patternNode()      {}
func (*LitPattern) patternNode()      {}
func (*CtorPattern) patternNode()     {}
func (*TuplePattern) patternNode()    {}
func (*UnitPattern) patternNode()     {}
