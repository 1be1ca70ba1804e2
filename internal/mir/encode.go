package mir

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/finos/morphir-scala/internal/canon"
)

// Node tags. Every node is written as a msgpack array whose first element is
// its tag. Tags are part of the on-disk contract and must never be reused.
const (
	tagTRef   = 1
	tagTVar   = 2
	tagTFunc  = 3
	tagTTuple = 4
	tagTUnit  = 5

	tagLiteral      = 16
	tagUnitValue    = 17
	tagVariable     = 18
	tagReference    = 19
	tagConstructor  = 20
	tagApply        = 21
	tagLambda       = 22
	tagLet          = 23
	tagIfThenElse   = 24
	tagPatternMatch = 25
	tagField        = 26
	tagTuple        = 27
	tagListValue    = 28

	tagLitBool   = 32
	tagLitInt    = 33
	tagLitFloat  = 34
	tagLitString = 35

	tagPWildcard    = 48
	tagPVar         = 49
	tagPLiteral     = 50
	tagPConstructor = 51
	tagPTuple       = 52
	tagPUnit        = 53

	tagTypeDecl  = 64
	tagValueDecl = 65
	tagModule    = 80
)

// TrailerSize is the length of the SHA-256 checksum closing every file.
const TrailerSize = 32

// Encode pickles a module.
//
// Layout:
//
//	magic   "MIR\x00"
//	header  ["morphir-mir", schema version, flags]
//	body    module node
//	trailer SHA-256 of everything before it, domain "morphir/mir/v1"
//
// The body contains no msgpack maps, so the bytes are fully determined by
// the graph: equal modules always encode to equal bytes.
func Encode(m *Module) ([]byte, error) {
	if m == nil {
		return nil, &EncodeError{Node: "module", Message: "module is nil"}
	}
	var buf bytes.Buffer
	buf.WriteString(Magic)

	e := &encoder{enc: msgpack.NewEncoder(&buf)}
	e.array(3)
	e.str(FormatName)
	e.uint(SchemaVersion)
	e.uint(FlagsNone)
	e.module(m)
	if e.err != nil {
		return nil, e.err
	}

	sum := canon.Sum(canon.DomainMIR, buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

// encoder keeps the first error and ignores writes after it.
type encoder struct {
	enc  *msgpack.Encoder
	decl string
	err  error
}

func (e *encoder) fail(node, format string, args ...any) {
	if e.err == nil {
		e.err = &EncodeError{Decl: e.decl, Node: node, Message: fmt.Sprintf(format, args...)}
	}
}

func (e *encoder) check(err error) {
	if err != nil && e.err == nil {
		e.err = &EncodeError{Decl: e.decl, Node: "msgpack", Message: "write failed", Err: err}
	}
}

func (e *encoder) array(n int) {
	if e.err == nil {
		e.check(e.enc.EncodeArrayLen(n))
	}
}

func (e *encoder) str(s string) {
	if e.err == nil {
		e.check(e.enc.EncodeString(s))
	}
}

func (e *encoder) uint(n uint64) {
	if e.err == nil {
		e.check(e.enc.EncodeUint(n))
	}
}

func (e *encoder) int(n int64) {
	if e.err == nil {
		e.check(e.enc.EncodeInt(n))
	}
}

func (e *encoder) strs(ss []string) {
	e.array(len(ss))
	for _, s := range ss {
		e.str(s)
	}
}

func (e *encoder) module(m *Module) {
	e.array(6)
	e.uint(tagModule)
	e.str(m.Name)
	e.str(m.Unit)
	e.str(m.SourceDigest)
	e.array(len(m.Types))
	for i := range m.Types {
		e.typeDecl(&m.Types[i])
	}
	e.array(len(m.Values))
	for i := range m.Values {
		e.valueDecl(&m.Values[i])
	}
}

func (e *encoder) typeDecl(d *TypeDecl) {
	e.decl = d.Name
	e.array(7)
	e.uint(tagTypeDecl)
	e.str(d.Name)
	e.strs(d.Params)
	e.uint(uint64(d.Kind))
	switch d.Kind {
	case TypeAlias:
		e.typ(d.Alias)
	case TypeRecord:
		e.fields(d.Fields)
	case TypeEnum:
		e.array(len(d.Cases))
		for _, c := range d.Cases {
			e.array(2)
			e.str(c.Name)
			e.fields(c.Fields)
		}
	default:
		e.fail("type declaration", "unknown type kind %d", int(d.Kind))
	}
	e.pos(d.Pos)
}

func (e *encoder) fields(fs []FieldDef) {
	e.array(len(fs))
	for _, f := range fs {
		e.array(2)
		e.str(f.Name)
		e.typ(f.Type)
	}
}

func (e *encoder) params(ps []Param) {
	e.array(len(ps))
	for _, p := range ps {
		e.array(2)
		e.str(p.Name)
		e.typ(p.Type)
	}
}

func (e *encoder) pos(p Pos) {
	e.int(int64(p.Line))
	e.int(int64(p.Col))
}

func (e *encoder) valueDecl(d *ValueDecl) {
	e.decl = d.Name
	e.array(9)
	e.uint(tagValueDecl)
	e.str(d.Name)
	e.uint(uint64(d.Kind))
	e.strs(d.TypeParams)
	e.params(d.Params)
	e.typ(d.Result)
	e.expr(d.Body)
	e.pos(d.Pos)
}

func (e *encoder) name(n FQName) {
	e.str(n.Module)
	e.str(n.Name)
}

func (e *encoder) typ(t Type) {
	switch t := t.(type) {
	case *TRef:
		e.array(4)
		e.uint(tagTRef)
		e.name(t.Name)
		e.types(t.Args)
	case *TVar:
		e.array(2)
		e.uint(tagTVar)
		e.str(t.Name)
	case *TFunc:
		e.array(3)
		e.uint(tagTFunc)
		e.types(t.Params)
		e.typ(t.Result)
	case *TTuple:
		e.array(2)
		e.uint(tagTTuple)
		e.types(t.Elems)
	case *TUnit:
		e.array(1)
		e.uint(tagTUnit)
	case nil:
		e.fail("type", "missing type")
	default:
		e.fail("type", "unsupported type node %T", t)
	}
}

func (e *encoder) types(ts []Type) {
	e.array(len(ts))
	for _, t := range ts {
		e.typ(t)
	}
}

func (e *encoder) lit(l Lit) {
	e.array(2)
	switch l.Kind {
	case LitBool:
		e.uint(tagLitBool)
		if e.err == nil {
			e.check(e.enc.EncodeBool(l.Bool))
		}
	case LitInt:
		e.uint(tagLitInt)
		e.int(l.Int)
	case LitFloat:
		e.uint(tagLitFloat)
		if e.err == nil {
			e.check(e.enc.EncodeFloat64(l.Float))
		}
	case LitString:
		e.uint(tagLitString)
		e.str(l.Str)
	default:
		e.fail("literal", "unknown literal kind %d", int(l.Kind))
	}
}

func (e *encoder) exprs(es []Expr) {
	e.array(len(es))
	for _, x := range es {
		e.expr(x)
	}
}

func (e *encoder) expr(x Expr) {
	switch x := x.(type) {
	case *Literal:
		e.array(3)
		e.uint(tagLiteral)
		e.typ(x.Type)
		e.lit(x.Value)
	case *UnitValue:
		e.array(2)
		e.uint(tagUnitValue)
		e.typ(x.Type)
	case *Variable:
		e.array(3)
		e.uint(tagVariable)
		e.typ(x.Type)
		e.str(x.Name)
	case *Reference:
		e.array(4)
		e.uint(tagReference)
		e.typ(x.Type)
		e.name(x.Name)
	case *Constructor:
		e.array(4)
		e.uint(tagConstructor)
		e.typ(x.Type)
		e.name(x.Name)
	case *Apply:
		e.array(4)
		e.uint(tagApply)
		e.typ(x.Type)
		e.expr(x.Fn)
		e.exprs(x.Args)
	case *Lambda:
		e.array(4)
		e.uint(tagLambda)
		e.typ(x.Type)
		e.params(x.Params)
		e.expr(x.Body)
	case *Let:
		e.array(5)
		e.uint(tagLet)
		e.typ(x.Type)
		e.str(x.Name)
		e.expr(x.Value)
		e.expr(x.Body)
	case *IfThenElse:
		e.array(5)
		e.uint(tagIfThenElse)
		e.typ(x.Type)
		e.expr(x.Cond)
		e.expr(x.Then)
		e.expr(x.Else)
	case *PatternMatch:
		e.array(4)
		e.uint(tagPatternMatch)
		e.typ(x.Type)
		e.expr(x.Subject)
		e.array(len(x.Cases))
		for _, c := range x.Cases {
			if c.Guard != nil {
				e.fail("pattern guard", "schema version %d has no representation for guards", SchemaVersion)
				return
			}
			e.array(2)
			e.pattern(c.Pattern)
			e.expr(c.Body)
		}
	case *Field:
		e.array(4)
		e.uint(tagField)
		e.typ(x.Type)
		e.expr(x.Subject)
		e.str(x.Name)
	case *Tuple:
		e.array(3)
		e.uint(tagTuple)
		e.typ(x.Type)
		e.exprs(x.Elems)
	case *ListValue:
		e.array(3)
		e.uint(tagListValue)
		e.typ(x.Type)
		e.exprs(x.Elems)
	case nil:
		e.fail("expression", "missing expression")
	default:
		e.fail("expression", "unsupported expression node %T", x)
	}
}

func (e *encoder) pattern(p Pattern) {
	switch p := p.(type) {
	case *PWildcard:
		e.array(1)
		e.uint(tagPWildcard)
	case *PVar:
		e.array(2)
		e.uint(tagPVar)
		e.str(p.Name)
	case *PLiteral:
		e.array(2)
		e.uint(tagPLiteral)
		e.lit(p.Value)
	case *PConstructor:
		e.array(4)
		e.uint(tagPConstructor)
		e.name(p.Name)
		e.array(len(p.Args))
		for _, a := range p.Args {
			e.pattern(a)
		}
	case *PTuple:
		e.array(2)
		e.uint(tagPTuple)
		e.array(len(p.Elems))
		for _, el := range p.Elems {
			e.pattern(el)
		}
	case *PUnit:
		e.array(1)
		e.uint(tagPUnit)
	case nil:
		e.fail("pattern", "missing pattern")
	default:
		e.fail("pattern", "unsupported pattern node %T", p)
	}
}
