package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finos/morphir-scala/internal/canon"
	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/source"
)

func mkUnit(index int, id, text string) source.Unit {
	return source.Unit{
		ID:     id,
		Index:  index,
		Text:   text,
		Digest: canon.Digest(canon.DomainSource, []byte(text)),
	}
}

func mustCompile(t *testing.T, text string) (*mir.Module, diag.List) {
	t.Helper()
	m, diags := CompileUnit(mkUnit(0, source.SnippetID, text))
	require.False(t, diags.HasErrors(), "unexpected errors:\n%v", diags)
	require.NotNil(t, m)
	return m, diags
}

// checkAll runs the two compile rounds over several units, the way a
// directory build does.
func checkAll(t *testing.T, units ...source.Unit) ([]*mir.Module, []diag.List) {
	t.Helper()
	parsed := make([]*Parsed, len(units))
	diags := make([]diag.List, len(units))
	for i, u := range units {
		parsed[i], diags[i] = Parse(u)
		require.NotNil(t, parsed[i], "unit %s failed to parse: %v", u.ID, diags[i])
	}

	ix, idxErrs := BuildIndex(parsed)
	mods := make([]*mir.Module, len(units))
	for i, p := range parsed {
		if errs := idxErrs[p.Unit.Index]; len(errs) > 0 {
			diags[i] = append(diags[i], errs...)
			continue
		}
		var more diag.List
		mods[i], more = Check(p, ix)
		diags[i] = append(diags[i], more...)
	}
	return mods, diags
}

// =============================================================================
// Well-typed programs
// =============================================================================

func TestCompileFunctionsAndOperators(t *testing.T) {
	m, diags := mustCompile(t, `
package demo

def add1(x: Int): Int = x + 1
val greeting: String = "hi" ++ "!"
def isSmall(x: Int): Boolean = x < 10 && !(x == 0)
`)
	assert.Empty(t, diags)
	assert.Equal(t, `module demo (unit snippet)
def add1(x: Int): Int = (apply add x 1)
val greeting: String = (apply append "hi" "!")
def isSmall(x: Int): Boolean = (apply and (apply lessThan x 10) (apply not (apply equal x 0)))
`, mir.Print(m))

	body := m.Values[0].Body.(*mir.Apply)
	assert.Equal(t, "(Int, Int) => Int", mir.TypeString(body.Fn.TypeOf()))
	assert.Equal(t, "demo", m.Name)
	assert.Equal(t, source.SnippetID, m.Unit)
	assert.Equal(t, canon.Digest(canon.DomainSource, []byte(`
package demo

def add1(x: Int): Int = x + 1
val greeting: String = "hi" ++ "!"
def isSmall(x: Int): Boolean = x < 10 && !(x == 0)
`)), m.SourceDigest)
}

func TestCompileModuleNameFromUnit(t *testing.T) {
	m, _ := CompileUnit(mkUnit(0, "finance/rates.scala", "val one: Int = 1"))
	require.NotNil(t, m)
	assert.Equal(t, "finance.rates", m.Name)
	assert.Equal(t, "finance/rates.scala", m.Unit)
}

func TestCompileGenericCallsAndLambdas(t *testing.T) {
	m, _ := mustCompile(t, `
def total(xs: List[Int]): Int = foldLeft(xs, 0, (acc, x) => acc + x)
def names(xs: List[Int]): List[String] = map(xs, x => intToString(x))
def evens(xs: List[Int]): List[Int] = filter(xs, (x: Int) => x % 2 == 0)
def ident[A](a: A): A = a
def twice(): Int = ident(ident(2))
`)
	assert.Equal(t, `module snippet (unit snippet)
def total(xs: List[Int]): Int = (apply foldLeft xs 0 (lambda (acc: Int, x: Int) (apply add acc x)))
def names(xs: List[Int]): List[String] = (apply map xs (lambda (x: Int) (apply intToString x)))
def evens(xs: List[Int]): List[Int] = (apply filter xs (lambda (x: Int) (apply equal (apply modBy x 2) 0)))
def ident[A](a: A): A = a
def twice(): Int = (apply snippet:ident (apply snippet:ident 2))
`, mir.Print(m))

	fold := m.Values[0].Body.(*mir.Apply)
	assert.Equal(t, "(List[Int], Int, (Int, Int) => Int) => Int", mir.TypeString(fold.Fn.TypeOf()))
	outer := m.Values[4].Body.(*mir.Apply).Fn
	assert.Equal(t, "(Int) => Int", mir.TypeString(outer.TypeOf()))
}

func TestCompileRecordsAndBlocks(t *testing.T) {
	m, _ := mustCompile(t, `
case class Point(x: Int, y: Int)
def origin(): Point = Point(0, 0)
def sumXY(p: Point): Int = p.x + p.y
def scaled(a: Int): Int = {
  val b = a * 2
  val c: Int = b + 1
  c
}
def swap(t: (Int, String)): (String, Int) = (t._2, t._1)
def points(): List[Point] = List(origin(), Point(1, 2))
`)
	assert.Equal(t, `module snippet (unit snippet)
record Point(x: Int, y: Int)
def origin(): snippet:Point = (apply #snippet:Point 0 0)
def sumXY(p: snippet:Point): Int = (apply add (field p x) (field p y))
def scaled(a: Int): Int = (let b (apply multiply a 2) (let c (apply add b 1) c))
def swap(t: (Int, String)): (String, Int) = (tuple (field t _2) (field t _1))
def points(): List[snippet:Point] = (list (apply snippet:origin) (apply #snippet:Point 1 2))
`, mir.Print(m))
}

func TestCompileEnumsAndMatch(t *testing.T) {
	m, diags := mustCompile(t, `
package shapes

enum Shape {
  case Circle(r: Float)
  case Square(side: Float)
  case Empty
}

def area(s: Shape): Float = s match {
  case Circle(r) => r * r * 3.14
  case Square(x) => x * x
  case Shape.Empty => 0.0
}

def orZero(o: Option[Int]): Int = o match {
  case Some(v) if v > 0 => v
  case _ => 0
}
`)
	assert.Empty(t, diags)
	assert.Equal(t, `module shapes (unit snippet)
enum Shape { Circle(r: Float) | Square(side: Float) | Empty }
def area(s: shapes:Shape): Float = (match s (case #shapes:Circle(r) (apply multiply (apply multiply r r) 3.14)) (case #shapes:Square(x) (apply multiply x x)) (case #shapes:Empty 0.0))
def orZero(o: Option[Int]): Int = (match o (case #Some(v) if (apply greaterThan v 0) v) (case _ 0))
`, mir.Print(m))
}

func TestCompileAliasesAreExpanded(t *testing.T) {
	m, _ := mustCompile(t, `
type Amount = Float
type Pair[A] = (A, A)
def double(a: Amount): Amount = a * 2.0
def both(p: Pair[Amount]): Amount = p._1 + p._2
`)
	assert.Equal(t, `module snippet (unit snippet)
type Amount = Float
type Pair[A] = (A, A)
def double(a: Float): Float = (apply multiply a 2.0)
def both(p: (Float, Float)): Float = (apply add (field p _1) (field p _2))
`, mir.Print(m))
}

func TestNonExhaustiveMatchWarns(t *testing.T) {
	m, diags := mustCompile(t, `
enum Color { case Red; case Green; case Blue }
def name(c: Color): String = c match {
  case Red => "red"
  case Green if true => "green"
}
`)
	require.NotNil(t, m)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.CodeNonExhaustive, diags[0].Code)
	assert.Equal(t, diag.SeverityWarning, diags[0].Severity)
	assert.Equal(t, "match on Color is not exhaustive: missing Green, Blue", diags[0].Message)
	assert.Equal(t, source.SnippetID, diags[0].Unit)
}

func TestCompileIsDeterministic(t *testing.T) {
	text := `
enum Tree[A] {
  case Leaf
  case Node(left: Tree[A], value: A, right: Tree[A])
}
def size[A](t: Tree[A]): Int = t match {
  case Leaf => 0
  case Node(l, _, r) => size(l) + 1 + size(r)
}
`
	a, _ := mustCompile(t, text)
	b, _ := mustCompile(t, text)
	assert.True(t, mir.Equal(a, b), mir.Diff(a, b))

	ab, err := mir.Encode(a)
	require.NoError(t, err)
	bb, err := mir.Encode(b)
	require.NoError(t, err)
	assert.Equal(t, ab, bb)
}

func TestCompiledModulesRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"operators", `
package demo
def add1(x: Int): Int = x + 1
val greeting: String = "hi" ++ "!"
def isSmall(x: Int): Boolean = x < 10 && !(x == 0)
def half(x: Float): Float = if (x > 1.0) x / 2.0 else x
`},
		{"generics and lambdas", `
def total(xs: List[Int]): Int = foldLeft(xs, 0, (acc, x) => acc + x)
def names(xs: List[Int]): List[String] = map(xs, x => intToString(x))
def ident[A](a: A): A = a
def twice(): Int = ident(ident(2))
`},
		{"records and blocks", `
case class Point(x: Int, y: Int)
def origin(): Point = Point(0, 0)
def scaled(a: Int): Int = {
  val b = a * 2
  b + 1
}
def swap(t: (Int, String)): (String, Int) = (t._2, t._1)
def points(): List[Point] = List(origin(), Point(1, 2))
`},
		{"enums and matches", `
package shapes
enum Shape {
  case Circle(r: Float)
  case Square(side: Float)
  case Empty
}
def area(s: Shape): Float = s match {
  case Circle(r) => r * r * 3.14
  case Square(x) => x * x
  case Shape.Empty => 0.0
}
def label(p: (Int, String)): Int = p match {
  case (0, "zero") => 0
  case (n, _) => n
}
`},
		{"generic enum", `
enum Tree[A] {
  case Leaf
  case Node(left: Tree[A], value: A, right: Tree[A])
}
type Forest[A] = List[Tree[A]]
def size[A](t: Tree[A]): Int = t match {
  case Leaf => 0
  case Node(l, _, r) => size(l) + 1 + size(r)
}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := mustCompile(t, tt.src)

			data, err := mir.Encode(m)
			require.NoError(t, err)
			back, err := mir.Decode(data)
			require.NoError(t, err)
			assert.True(t, mir.Equal(m, back), mir.Diff(m, back))
		})
	}
}

// =============================================================================
// Diagnostics
// =============================================================================

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		codes []string
	}{
		{"unknown name", `def f(): Int = y`, []string{diag.CodeUnknownName}},
		{"mismatch", `def f(): Int = "s"`, []string{diag.CodeTypeMismatch}},
		{"arg count", "def f(x: Int): Int = x\ndef g(): Int = f(1, 2)", []string{diag.CodeArgCount}},
		{"not a function", `def f(): Int = 1(2)`, []string{diag.CodeNotFunction}},
		{"unknown field", "case class P(x: Int)\ndef f(p: P): Int = p.z", []string{diag.CodeUnknownField}},
		{"lambda param type", `def f(): Int = { val g = (x) => x; 1 }`, []string{diag.CodeLambdaParamType}},
		{"cannot infer", `def f(): Int = { val xs = List(); 1 }`, []string{diag.CodeCannotInfer}},
		{"condition", `def f(): Int = if (1) 2 else 3`, []string{diag.CodeConditionType}},
		{"guard", `def f(x: Int): Int = x match { case y if y => 1; case _ => 0 }`, []string{diag.CodeConditionType}},
		{"pattern arity", `def f(o: Option[Int]): Int = o match { case Some(a, b) => a; case None => 0 }`, []string{diag.CodePatternArity}},
		{"operand type", `def f(): Boolean = true < false`, []string{diag.CodeOperandType}},
		{"unknown type", `def f(x: Money): Int = 1`, []string{diag.CodeUnknownType}},
		{"type arg count", `def f(x: List): Int = 1`, []string{diag.CodeTypeArgCount}},
		{"alias cycle", "type A = B\ntype B = A", []string{diag.CodeAliasCycle, diag.CodeAliasCycle}},
		{"unknown ctor", `def f(o: Option[Int]): Int = o match { case Nope => 0 }`, []string{diag.CodeUnknownCtor}},
		{"unknown enum case", "enum E { case A }\ndef f(): E = E.B", []string{diag.CodeUnknownCtor}},
		{"duplicate def", "def f(): Int = 1\ndef f(): Int = 2", []string{diag.CodeDuplicateName}},
		{"duplicate param", `def f(x: Int, x: Int): Int = x`, []string{diag.CodeDuplicateName}},
		{"duplicate block val", `def f(): Int = { val a = 1; val a = 2; a }`, []string{diag.CodeDuplicateName}},
		{"unknown module", "import nowhere.thing\nval x: Int = 1", []string{diag.CodeUnknownModule}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, diags := CompileUnit(mkUnit(0, source.SnippetID, tt.src))
			assert.Nil(t, m)
			assert.Equal(t, tt.codes, diags.Codes(), "diagnostics:\n%v", diags)
			for _, d := range diags {
				assert.Equal(t, diag.KindType, d.Kind)
				assert.Equal(t, source.SnippetID, d.Unit)
			}
		})
	}
}

func TestMismatchMessage(t *testing.T) {
	_, diags := CompileUnit(mkUnit(0, source.SnippetID, `def f(): Int = "s"`))
	require.Len(t, diags, 1)
	assert.Equal(t, "type mismatch: expected Int, found String", diags[0].Message)
	assert.Equal(t, diag.PhaseTypeCheck, diags[0].Phase)
	assert.Equal(t, 1, diags[0].Pos.Line)
	assert.Equal(t, 16, diags[0].Pos.Col)
}

func TestSyntaxErrorsStopBeforeChecking(t *testing.T) {
	p, diags := Parse(mkUnit(0, "broken.scala", "def f(: Int = 1"))
	assert.Nil(t, p)
	require.NotEmpty(t, diags)
	assert.Equal(t, diag.KindParse, diags[0].Kind)
	assert.Equal(t, "broken.scala", diags[0].Unit)
}

// =============================================================================
// Modules and imports
// =============================================================================

const ratesSrc = `
package finance.rates

type Rate = Float
enum Currency { case USD; case EUR }
def convert(amount: Float, rate: Rate): Float = amount * rate
`

func TestImportsAcrossUnits(t *testing.T) {
	mods, diags := checkAll(t,
		mkUnit(0, "finance/rates.scala", ratesSrc),
		mkUnit(1, "app.scala", `
import finance.rates.{convert, Currency}

def price(c: Currency): Float = c match {
  case USD => convert(10.0, 1.0)
  case EUR => finance.rates.convert(10.0, 0.9)
}
`),
	)
	require.Empty(t, diags[0])
	require.Empty(t, diags[1])
	assert.Equal(t, `module app (unit app.scala)
def price(c: finance.rates:Currency): Float = (match c (case #finance.rates:USD (apply finance.rates:convert 10.0 1.0)) (case #finance.rates:EUR (apply finance.rates:convert 10.0 0.9)))
`, mir.Print(mods[1]))
}

func TestWildcardImport(t *testing.T) {
	mods, diags := checkAll(t,
		mkUnit(0, "finance/rates.scala", ratesSrc),
		mkUnit(1, "app.scala", `
import finance.rates._
def fee(): Rate = convert(1.0, 0.5)
val home: Currency = EUR
`),
	)
	require.Empty(t, diags[1])
	assert.Equal(t, `module app (unit app.scala)
def fee(): Float = (apply finance.rates:convert 1.0 0.5)
val home: finance.rates:Currency = #finance.rates:EUR
`, mir.Print(mods[1]))
}

func TestImportErrors(t *testing.T) {
	_, diags := checkAll(t,
		mkUnit(0, "finance/rates.scala", ratesSrc),
		mkUnit(1, "app.scala", "import finance.rates.{convert, missing}\nval x: Int = 1"),
	)
	assert.Equal(t, []string{diag.CodeUnknownImport}, diags[1].Codes())
	assert.Equal(t, "module finance.rates does not declare missing", diags[1][0].Message)
}

func TestDuplicateModuleFailsLaterUnit(t *testing.T) {
	mods, diags := checkAll(t,
		mkUnit(0, "a.scala", "package shared\nval x: Int = 1"),
		mkUnit(1, "b.scala", "package shared\nval y: Int = 2"),
	)
	assert.NotNil(t, mods[0])
	assert.Nil(t, mods[1])
	assert.Empty(t, diags[0])
	assert.Equal(t, []string{diag.CodeDuplicateModule}, diags[1].Codes())
	assert.Equal(t, "b.scala", diags[1][0].Unit)
}

func TestFailingUnitDoesNotBreakImporters(t *testing.T) {
	mods, diags := checkAll(t,
		mkUnit(0, "lib.scala", "package lib\ndef f(x: Int): Int = \"not an int\""),
		mkUnit(1, "app.scala", "import lib.f\nval y: Int = f(1)"),
	)
	assert.Nil(t, mods[0])
	assert.Equal(t, []string{diag.CodeTypeMismatch}, diags[0].Codes())
	assert.NotNil(t, mods[1])
	assert.Empty(t, diags[1])
}

func TestBrokenForeignSignatureIsReported(t *testing.T) {
	_, diags := checkAll(t,
		mkUnit(0, "lib.scala", "package lib\ndef f(x: Missing): Int = 1"),
		mkUnit(1, "app.scala", "import lib.f\nval y: Int = f(1)"),
	)
	assert.Equal(t, []string{diag.CodeUnknownType}, diags[0].Codes())
	assert.Equal(t, []string{diag.CodeUnknownType}, diags[1].Codes())
}

func TestAliasCycleAcrossModules(t *testing.T) {
	_, diags := checkAll(t,
		mkUnit(0, "a.scala", "package a\nimport b.B\ntype A = List[B]"),
		mkUnit(1, "b.scala", "package b\nimport a.A\ntype B = A"),
	)
	require.Equal(t, []string{diag.CodeAliasCycle}, diags[0].Codes())
	assert.Equal(t, "type alias A refers to itself: A -> b.B -> A", diags[0][0].Message)
	assert.Equal(t, []string{diag.CodeAliasCycle}, diags[1].Codes())
}

func TestIndexModules(t *testing.T) {
	p1, _ := Parse(mkUnit(1, "z.scala", "val z: Int = 1"))
	p0, _ := Parse(mkUnit(0, "a.scala", "package morphir.sdk\nval a: Int = 1"))
	ix, errs := BuildIndex([]*Parsed{p1, nil, p0})
	assert.Equal(t, []string{"z"}, ix.Modules())
	assert.True(t, ix.Has("z"))
	assert.Equal(t, []string{diag.CodeDuplicateModule}, errs[0].Codes())
	assert.Equal(t, "module name morphir.sdk is reserved", errs[0][0].Message)
}
