// Package mir defines the Morphir Intermediate Representation of one
// compilation unit and its pickled byte format.
//
// A Module is produced by the front end from exactly one unit. Every name it
// mentions is resolved: locals are Variables, top-level values are
// fully-qualified References and data constructors are fully-qualified
// Constructors. Every expression carries its solved type. A Module is never
// mutated after it is produced.
package mir

// FQName is a fully-qualified name: the declaring module plus the local name.
type FQName struct {
	Module string
	Name   string
}

func (n FQName) String() string { return n.Module + ":" + n.Name }

// Pos is the source position of a declaration.
type Pos struct {
	Line int
	Col  int
}

// Type is a solved type.
type Type interface{ mirType() }

// TRef is a named type applied to arguments, e.g. morphir.sdk:List[Int].
type TRef struct {
	Name FQName
	Args []Type
}

// TVar is a declared type parameter.
type TVar struct {
	Name string
}

// TFunc is an uncurried function type.
type TFunc struct {
	Params []Type
	Result Type
}

// TTuple is a tuple of two or more elements.
type TTuple struct {
	Elems []Type
}

// TUnit is the unit type.
type TUnit struct{}

func (*TRef) mirType()   {}
func (*TVar) mirType()   {}
func (*TFunc) mirType()  {}
func (*TTuple) mirType() {}
func (*TUnit) mirType()  {}

// TypeKind distinguishes type declarations.
type TypeKind int

const (
	TypeAlias TypeKind = iota
	TypeRecord
	TypeEnum
)

func (k TypeKind) String() string {
	switch k {
	case TypeAlias:
		return "alias"
	case TypeRecord:
		return "record"
	case TypeEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// FieldDef is a named, typed record field or constructor argument.
type FieldDef struct {
	Name string
	Type Type
}

// Case is one constructor of an enum.
type Case struct {
	Name   string
	Fields []FieldDef
}

// TypeDecl declares a type. Alias is set for aliases (already expanded),
// Fields for records and Cases for enums.
type TypeDecl struct {
	Name   string
	Params []string
	Kind   TypeKind
	Alias  Type
	Fields []FieldDef
	Cases  []Case
	Pos    Pos
}

// ValueKind distinguishes def from val.
type ValueKind int

const (
	ValueDef ValueKind = iota
	ValueVal
)

func (k ValueKind) String() string {
	if k == ValueVal {
		return "val"
	}
	return "def"
}

// Param is a named parameter.
type Param struct {
	Name string
	Type Type
}

// ValueDecl declares a top-level value.
type ValueDecl struct {
	Name       string
	Kind       ValueKind
	TypeParams []string
	Params     []Param
	Result     Type
	Body       Expr
	Pos        Pos
}

// Module is the program graph of one compilation unit.
type Module struct {
	Name         string
	Unit         string
	SourceDigest string
	Types        []TypeDecl
	Values       []ValueDecl
}

// FQ qualifies a local name with the module name.
func (m *Module) FQ(name string) FQName { return FQName{Module: m.Name, Name: name} }

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
}

// Expr is a typed expression.
type Expr interface {
	TypeOf() Type
	mirExpr()
}

type Literal struct {
	Type  Type
	Value Lit
}

type UnitValue struct {
	Type Type
}

type Variable struct {
	Type Type
	Name string
}

type Reference struct {
	Type Type
	Name FQName
}

type Constructor struct {
	Type Type
	Name FQName
}

type Apply struct {
	Type Type
	Fn   Expr
	Args []Expr
}

type Lambda struct {
	Type   Type
	Params []Param
	Body   Expr
}

type Let struct {
	Type  Type
	Name  string
	Value Expr
	Body  Expr
}

type IfThenElse struct {
	Type Type
	Cond Expr
	Then Expr
	Else Expr
}

// MatchCase is one arm of a PatternMatch. Guard is nil when absent.
type MatchCase struct {
	Pattern Pattern
	Guard   Expr
	Body    Expr
}

type PatternMatch struct {
	Type    Type
	Subject Expr
	Cases   []MatchCase
}

type Field struct {
	Type    Type
	Subject Expr
	Name    string
}

type Tuple struct {
	Type  Type
	Elems []Expr
}

type ListValue struct {
	Type  Type
	Elems []Expr
}

func (e *Literal) TypeOf() Type      { return e.Type }
func (e *UnitValue) TypeOf() Type    { return e.Type }
func (e *Variable) TypeOf() Type     { return e.Type }
func (e *Reference) TypeOf() Type    { return e.Type }
func (e *Constructor) TypeOf() Type  { return e.Type }
func (e *Apply) TypeOf() Type        { return e.Type }
func (e *Lambda) TypeOf() Type       { return e.Type }
func (e *Let) TypeOf() Type          { return e.Type }
func (e *IfThenElse) TypeOf() Type   { return e.Type }
func (e *PatternMatch) TypeOf() Type { return e.Type }
func (e *Field) TypeOf() Type        { return e.Type }
func (e *Tuple) TypeOf() Type        { return e.Type }
func (e *ListValue) TypeOf() Type    { return e.Type }

func (*Literal) mirExpr()      {}
func (*UnitValue) mirExpr()    {}
func (*Variable) mirExpr()     {}
func (*Reference) mirExpr()    {}
func (*Constructor) mirExpr()  {}
func (*Apply) mirExpr()        {}
func (*Lambda) mirExpr()       {}
func (*Let) mirExpr()          {}
func (*IfThenElse) mirExpr()   {}
func (*PatternMatch) mirExpr() {}
func (*Field) mirExpr()        {}
func (*Tuple) mirExpr()        {}
func (*ListValue) mirExpr()    {}

// Pattern is a match pattern.
type Pattern interface{ mirPattern() }

type PWildcard struct{}

type PVar struct {
	Name string
}

type PLiteral struct {
	Value Lit
}

type PConstructor struct {
	Name FQName
	Args []Pattern
}

type PTuple struct {
	Elems []Pattern
}

type PUnit struct{}

func (*PWildcard) mirPattern()    {}
func (*PVar) mirPattern()         {}
func (*PLiteral) mirPattern()     {}
func (*PConstructor) mirPattern() {}
func (*PTuple) mirPattern()       {}
func (*PUnit) mirPattern()        {}
