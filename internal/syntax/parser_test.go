package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finos/morphir-scala/internal/diag"
)

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	f, diags := Parse(src)
	require.Empty(t, diags, "unexpected diagnostics: %v", diags)
	require.NotNil(t, f)
	return f
}

// =============================================================================
// Declarations
// =============================================================================

func TestParseEmptyFile(t *testing.T) {
	f := mustParse(t, "")
	assert.Nil(t, f.Package)
	assert.Empty(t, f.Imports)
	assert.Empty(t, f.Decls)
}

func TestParsePackageAndImports(t *testing.T) {
	f := mustParse(t, `
package finance.rates
import finance.money.Amount
import finance.money.{Currency, convert}
import morphir.sdk._
`)
	require.NotNil(t, f.Package)
	assert.Equal(t, "finance.rates", f.Package.String())

	require.Len(t, f.Imports, 3)
	assert.Equal(t, "finance.money", f.Imports[0].Module)
	assert.Equal(t, "Amount", f.Imports[0].Names[0].Name)
	assert.Equal(t, "finance.money", f.Imports[1].Module)
	require.Len(t, f.Imports[1].Names, 2)
	assert.Equal(t, "convert", f.Imports[1].Names[1].Name)
	assert.Equal(t, "morphir.sdk", f.Imports[2].Module)
	assert.True(t, f.Imports[2].Wildcard)
}

func TestParseDecls(t *testing.T) {
	f := mustParse(t, `
type Rate = Float
final case class Point(x: Int, y: Int)
enum Shape[A] {
  case Circle(r: A)
  case Square(side: A)
  case Empty
}
val origin: Point = Point(0, 0)
def id[A](a: A): A = a
`)
	require.Len(t, f.Decls, 5)

	alias := f.Decls[0].(*TypeAlias)
	assert.Equal(t, "Rate", alias.Name)
	assert.Equal(t, "Float", alias.Type.(*TypeName).Name.String())

	cc := f.Decls[1].(*CaseClass)
	assert.Equal(t, "Point", cc.Name)
	require.Len(t, cc.Fields, 2)
	assert.Equal(t, "y", cc.Fields[1].Name)

	enum := f.Decls[2].(*EnumDecl)
	assert.Equal(t, "Shape", enum.Name)
	require.Len(t, enum.TypeParams, 1)
	require.Len(t, enum.Cases, 3)
	assert.True(t, enum.Cases[0].HasFields)
	assert.False(t, enum.Cases[2].HasFields)

	val := f.Decls[3].(*ValDecl)
	assert.Equal(t, "origin", val.Name)
	call := val.Body.(*Call)
	assert.Equal(t, "Point", call.Fn.(*IdentExpr).Name)
	assert.Len(t, call.Args, 2)

	def := f.Decls[4].(*DefDecl)
	assert.Equal(t, "id", def.Name)
	assert.Equal(t, "A", def.TypeParams[0].Name)
	assert.Equal(t, diag.Pos{Line: 10, Col: 5, Offset: def.Pos.Offset}, def.Pos)
}

func TestParseEnumCommaCases(t *testing.T) {
	f := mustParse(t, "enum Color { case Red, Green, Blue }")
	enum := f.Decls[0].(*EnumDecl)
	var names []string
	for _, c := range enum.Cases {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Red", "Green", "Blue"}, names)
}

// =============================================================================
// Types
// =============================================================================

func TestParseTypes(t *testing.T) {
	f := mustParse(t, `
val a: (Int, String) => Boolean = f
val b: Int => Int => Int = g
val c: (Int, List[String]) = t
val d: () => Unit = h
val e: (Int) = 1
`)
	fa := f.Decls[0].(*ValDecl).Type.(*FuncType)
	assert.Len(t, fa.Params, 2)
	assert.Equal(t, "Boolean", fa.Result.(*TypeName).Name.String())

	fb := f.Decls[1].(*ValDecl).Type.(*FuncType)
	require.Len(t, fb.Params, 1)
	_, rightAssoc := fb.Result.(*FuncType)
	assert.True(t, rightAssoc, "=> must be right associative")

	tc := f.Decls[2].(*ValDecl).Type.(*TupleType)
	require.Len(t, tc.Elems, 2)
	assert.Len(t, tc.Elems[1].(*TypeName).Args, 1)

	fd := f.Decls[3].(*ValDecl).Type.(*FuncType)
	assert.Empty(t, fd.Params)

	_, grouped := f.Decls[4].(*ValDecl).Type.(*TypeName)
	assert.True(t, grouped, "a single parenthesized type is a grouping")
}

// =============================================================================
// Expressions
// =============================================================================

func body(t *testing.T, src string) Expr {
	t.Helper()
	f := mustParse(t, "val v: Int = "+src)
	return f.Decls[0].(*ValDecl).Body
}

func TestParsePrecedence(t *testing.T) {
	e := body(t, "1 + 2 * 3 == 7 && !done || x")
	or := e.(*Binary)
	assert.Equal(t, OrOr, or.Op)
	and := or.X.(*Binary)
	assert.Equal(t, AndAnd, and.Op)
	eq := and.X.(*Binary)
	assert.Equal(t, EqEq, eq.Op)
	plus := eq.X.(*Binary)
	assert.Equal(t, Plus, plus.Op)
	assert.Equal(t, Star, plus.Y.(*Binary).Op)
	assert.Equal(t, Bang, and.Y.(*Unary).Op)
}

func TestParseLeftAssociative(t *testing.T) {
	e := body(t, "a - b - c")
	outer := e.(*Binary)
	assert.Equal(t, "c", outer.Y.(*IdentExpr).Name)
	assert.Equal(t, "a", outer.X.(*Binary).X.(*IdentExpr).Name)
}

func TestParseNegativeLiteralFolds(t *testing.T) {
	assert.Equal(t, int64(-5), body(t, "-5").(*Lit).Int)
	_, isUnary := body(t, "-x").(*Unary)
	assert.True(t, isUnary)
}

func TestParseLambdas(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		params []string
		typed  []bool
	}{
		{"bare ident", "x => x", []string{"x"}, []bool{false}},
		{"parenthesized", "(a, b) => a", []string{"a", "b"}, []bool{false, false}},
		{"annotated", "(a: Int, b) => a", []string{"a", "b"}, []bool{true, false}},
		{"no params", "() => 1", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lam := body(t, tt.src).(*Lambda)
			var names []string
			var typed []bool
			for _, p := range lam.Params {
				names = append(names, p.Name)
				typed = append(typed, p.Type != nil)
			}
			assert.Equal(t, tt.params, names)
			assert.Equal(t, tt.typed, typed)
		})
	}
}

func TestParseParenBacktracking(t *testing.T) {
	_, isTuple := body(t, "(a, b)").(*TupleExpr)
	assert.True(t, isTuple)

	_, isBinary := body(t, "(a + b)").(*Binary)
	assert.True(t, isBinary)

	_, isUnit := body(t, "()").(*UnitLit)
	assert.True(t, isUnit)

	call := body(t, "map(xs, (x: Int) => x * 2)").(*Call)
	_, isLambda := call.Args[1].(*Lambda)
	assert.True(t, isLambda)
}

func TestParseIfBlockAndSelect(t *testing.T) {
	e := body(t, "if (p.x > 0) { val y = p.x; y * 2 } else t._1")
	ifx := e.(*If)
	cond := ifx.Cond.(*Binary)
	assert.Equal(t, "x", cond.X.(*Select).Name)

	blk := ifx.Then.(*Block)
	require.Len(t, blk.Vals, 1)
	assert.Equal(t, "y", blk.Vals[0].Name)
	assert.Nil(t, blk.Vals[0].Type)

	assert.Equal(t, "_1", ifx.Else.(*Select).Name)
}

func TestParseMatch(t *testing.T) {
	e := body(t, `s match {
  case Circle(r) if r > 0 => r
  case Shape.Square(_) => 1
  case Empty => 0
  case (a, -1) => a
  case "x" => 2
  case n => n
}`)
	m := e.(*Match)
	require.Len(t, m.Cases, 6)

	c0 := m.Cases[0].Pattern.(*CtorPattern)
	assert.Equal(t, "Circle", c0.Name.String())
	assert.True(t, c0.HasArgs)
	assert.IsType(t, &VarPattern{}, c0.Args[0])
	assert.NotNil(t, m.Cases[0].Guard)

	c1 := m.Cases[1].Pattern.(*CtorPattern)
	assert.Equal(t, []string{"Shape", "Square"}, c1.Name.Parts)
	assert.IsType(t, &WildcardPattern{}, c1.Args[0])

	c2 := m.Cases[2].Pattern.(*CtorPattern)
	assert.False(t, c2.HasArgs)

	tp := m.Cases[3].Pattern.(*TuplePattern)
	assert.Equal(t, int64(-1), tp.Elems[1].(*LitPattern).Lit.Int)

	assert.Equal(t, "x", m.Cases[4].Pattern.(*LitPattern).Lit.Str)
	assert.Equal(t, "n", m.Cases[5].Pattern.(*VarPattern).Name)
}

// =============================================================================
// Errors and recovery
// =============================================================================

func TestParseErrorsRecoverPerDeclaration(t *testing.T) {
	src := `
val a: Int = 1 +
def f(x: Int): Int = { val y = ; y }
val ok: Int = 3
enum E { case }
`
	f, diags := Parse(src)
	require.True(t, diags.HasErrors())
	assert.Len(t, diags, 3, "one error per broken declaration: %v", diags)
	for _, d := range diags {
		assert.Equal(t, diag.KindParse, d.Kind)
	}

	var names []string
	for _, d := range f.Decls {
		names = append(names, d.DeclName())
	}
	assert.Equal(t, []string{"ok"}, names)
}

func TestParseErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"stray expression", "1 + 2", diag.CodeExpectedDecl},
		{"missing type", "val x = 1", diag.CodeUnexpectedToken},
		{"empty match", "val x: Int = y match { }", diag.CodeEmptyMatch},
		{"bad pattern", "val x: Int = y match { case => 1 }", diag.CodeBadPattern},
		{"late package", "val x: Int = 1\npackage p", diag.CodeExpectedDecl},
		{"lexical error", "val x: Int = @", diag.CodeUnexpectedChar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := Parse(tt.src)
			require.NotEmpty(t, diags)
			assert.Equal(t, tt.code, diags[0].Code)
		})
	}
}
