package mir

import (
	"bytes"
	"crypto/subtle"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/finos/morphir-scala/internal/canon"
)

// Decode reads a pickled module. It verifies the magic, the checksum and
// the schema version before decoding the body, and rejects unknown node
// tags and trailing bytes.
func Decode(data []byte) (*Module, error) {
	if len(data) < len(Magic)+TrailerSize {
		return nil, &DecodeError{Message: fmt.Sprintf("truncated file (%d bytes)", len(data))}
	}
	if string(data[:len(Magic)]) != Magic {
		return nil, &DecodeError{Message: "bad magic, not a MIR file"}
	}
	payload := data[:len(data)-TrailerSize]
	want := canon.Sum(canon.DomainMIR, payload)
	if subtle.ConstantTimeCompare(want[:], data[len(data)-TrailerSize:]) != 1 {
		return nil, &DecodeError{Offset: len(payload), Message: "checksum mismatch"}
	}

	r := bytes.NewReader(payload[len(Magic):])
	d := &decoder{dec: msgpack.NewDecoder(r), r: r, base: len(Magic)}

	if n := d.array(); d.err == nil && n != 3 {
		d.fail("header has %d fields, want 3", n)
	}
	if name := d.str(); d.err == nil && name != FormatName {
		d.fail("format %q is not %q", name, FormatName)
	}
	if v := d.uint(); d.err == nil && v != SchemaVersion {
		d.fail("unsupported schema version %d", v)
	}
	d.uint() // flags
	m := d.module()
	if d.err != nil {
		return nil, d.err
	}
	if r.Len() != 0 {
		return nil, &DecodeError{Offset: d.offset(), Message: fmt.Sprintf("%d trailing bytes after module", r.Len())}
	}
	return m, nil
}

// decoder keeps the first error; reads after it return zero values.
type decoder struct {
	dec  *msgpack.Decoder
	r    *bytes.Reader
	base int
	err  error
}

func (d *decoder) offset() int {
	return d.base + int(d.r.Size()) - d.r.Len()
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = &DecodeError{Offset: d.offset(), Message: fmt.Sprintf(format, args...)}
	}
}

func (d *decoder) wrap(what string, err error) {
	if err != nil && d.err == nil {
		d.err = &DecodeError{Offset: d.offset(), Message: "reading " + what, Err: err}
	}
}

func (d *decoder) array() int {
	if d.err != nil {
		return 0
	}
	n, err := d.dec.DecodeArrayLen()
	d.wrap("array", err)
	if d.err != nil {
		return 0
	}
	if n < 0 {
		d.fail("unexpected nil array")
		return 0
	}
	// Every element takes at least one byte, so a longer array cannot be
	// well formed. Checked before any caller allocates n elements.
	if n > d.r.Len() {
		d.fail("array of %d elements exceeds the %d remaining bytes", n, d.r.Len())
		return 0
	}
	return n
}

func (d *decoder) str() string {
	if d.err != nil {
		return ""
	}
	s, err := d.dec.DecodeString()
	d.wrap("string", err)
	return s
}

func (d *decoder) uint() uint64 {
	if d.err != nil {
		return 0
	}
	n, err := d.dec.DecodeUint64()
	d.wrap("unsigned integer", err)
	return n
}

func (d *decoder) int() int64 {
	if d.err != nil {
		return 0
	}
	n, err := d.dec.DecodeInt64()
	d.wrap("integer", err)
	return n
}

// node reads the array header and tag of a node and checks the field count.
func (d *decoder) node(want map[uint64]int) uint64 {
	n := d.array()
	if d.err != nil {
		return 0
	}
	if n == 0 {
		d.fail("empty node")
		return 0
	}
	tag := d.uint()
	if d.err != nil {
		return 0
	}
	size, ok := want[tag]
	if !ok {
		d.fail("unknown node tag %d", tag)
		return 0
	}
	if n != size {
		d.fail("node tag %d has %d fields, want %d", tag, n, size)
		return 0
	}
	return tag
}

func (d *decoder) strs() []string {
	n := d.array()
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = d.str()
	}
	return out
}

func (d *decoder) pair(what string) {
	if n := d.array(); d.err == nil && n != 2 {
		d.fail("%s has %d fields, want 2", what, n)
	}
}

var moduleTags = map[uint64]int{tagModule: 6}

func (d *decoder) module() *Module {
	if d.node(moduleTags) == 0 {
		return nil
	}
	m := &Module{Name: d.str(), Unit: d.str(), SourceDigest: d.str()}
	if n := d.array(); n > 0 {
		m.Types = make([]TypeDecl, n)
		for i := range m.Types {
			d.typeDecl(&m.Types[i])
		}
	}
	if n := d.array(); n > 0 {
		m.Values = make([]ValueDecl, n)
		for i := range m.Values {
			d.valueDecl(&m.Values[i])
		}
	}
	return m
}

var typeDeclTags = map[uint64]int{tagTypeDecl: 7}

func (d *decoder) typeDecl(td *TypeDecl) {
	if d.node(typeDeclTags) == 0 {
		return
	}
	td.Name = d.str()
	td.Params = d.strs()
	td.Kind = TypeKind(d.uint())
	switch td.Kind {
	case TypeAlias:
		td.Alias = d.typ()
	case TypeRecord:
		td.Fields = d.fields()
	case TypeEnum:
		if n := d.array(); n > 0 {
			td.Cases = make([]Case, n)
			for i := range td.Cases {
				d.pair("enum case")
				td.Cases[i] = Case{Name: d.str(), Fields: d.fields()}
			}
		}
	default:
		d.fail("unknown type kind %d", int(td.Kind))
	}
	td.Pos = d.pos()
}

func (d *decoder) fields() []FieldDef {
	n := d.array()
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]FieldDef, n)
	for i := range out {
		d.pair("field")
		out[i] = FieldDef{Name: d.str(), Type: d.typ()}
	}
	return out
}

func (d *decoder) params() []Param {
	n := d.array()
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]Param, n)
	for i := range out {
		d.pair("parameter")
		out[i] = Param{Name: d.str(), Type: d.typ()}
	}
	return out
}

func (d *decoder) pos() Pos {
	return Pos{Line: int(d.int()), Col: int(d.int())}
}

var valueDeclTags = map[uint64]int{tagValueDecl: 9}

func (d *decoder) valueDecl(vd *ValueDecl) {
	if d.node(valueDeclTags) == 0 {
		return
	}
	vd.Name = d.str()
	vd.Kind = ValueKind(d.uint())
	if vd.Kind != ValueDef && vd.Kind != ValueVal {
		d.fail("unknown value kind %d", int(vd.Kind))
	}
	vd.TypeParams = d.strs()
	vd.Params = d.params()
	vd.Result = d.typ()
	vd.Body = d.expr()
	vd.Pos = d.pos()
}

func (d *decoder) name() FQName {
	return FQName{Module: d.str(), Name: d.str()}
}

var typeTags = map[uint64]int{
	tagTRef:   4,
	tagTVar:   2,
	tagTFunc:  3,
	tagTTuple: 2,
	tagTUnit:  1,
}

func (d *decoder) typ() Type {
	switch d.node(typeTags) {
	case tagTRef:
		return &TRef{Name: d.name(), Args: d.types()}
	case tagTVar:
		return &TVar{Name: d.str()}
	case tagTFunc:
		return &TFunc{Params: d.types(), Result: d.typ()}
	case tagTTuple:
		return &TTuple{Elems: d.types()}
	case tagTUnit:
		return &TUnit{}
	}
	return nil
}

func (d *decoder) types() []Type {
	n := d.array()
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]Type, n)
	for i := range out {
		out[i] = d.typ()
	}
	return out
}

var litTags = map[uint64]int{
	tagLitBool:   2,
	tagLitInt:    2,
	tagLitFloat:  2,
	tagLitString: 2,
}

func (d *decoder) lit() Lit {
	switch d.node(litTags) {
	case tagLitBool:
		if d.err != nil {
			return Lit{}
		}
		b, err := d.dec.DecodeBool()
		d.wrap("bool", err)
		return Lit{Kind: LitBool, Bool: b}
	case tagLitInt:
		return Lit{Kind: LitInt, Int: d.int()}
	case tagLitFloat:
		if d.err != nil {
			return Lit{}
		}
		f, err := d.dec.DecodeFloat64()
		d.wrap("float", err)
		return Lit{Kind: LitFloat, Float: f}
	case tagLitString:
		return Lit{Kind: LitString, Str: d.str()}
	}
	return Lit{}
}

var exprTags = map[uint64]int{
	tagLiteral:      3,
	tagUnitValue:    2,
	tagVariable:     3,
	tagReference:    4,
	tagConstructor:  4,
	tagApply:        4,
	tagLambda:       4,
	tagLet:          5,
	tagIfThenElse:   5,
	tagPatternMatch: 4,
	tagField:        4,
	tagTuple:        3,
	tagListValue:    3,
}

func (d *decoder) expr() Expr {
	switch d.node(exprTags) {
	case tagLiteral:
		return &Literal{Type: d.typ(), Value: d.lit()}
	case tagUnitValue:
		return &UnitValue{Type: d.typ()}
	case tagVariable:
		return &Variable{Type: d.typ(), Name: d.str()}
	case tagReference:
		return &Reference{Type: d.typ(), Name: d.name()}
	case tagConstructor:
		return &Constructor{Type: d.typ(), Name: d.name()}
	case tagApply:
		return &Apply{Type: d.typ(), Fn: d.expr(), Args: d.exprs()}
	case tagLambda:
		return &Lambda{Type: d.typ(), Params: d.params(), Body: d.expr()}
	case tagLet:
		return &Let{Type: d.typ(), Name: d.str(), Value: d.expr(), Body: d.expr()}
	case tagIfThenElse:
		return &IfThenElse{Type: d.typ(), Cond: d.expr(), Then: d.expr(), Else: d.expr()}
	case tagPatternMatch:
		pm := &PatternMatch{Type: d.typ(), Subject: d.expr()}
		if n := d.array(); n > 0 {
			pm.Cases = make([]MatchCase, n)
			for i := range pm.Cases {
				d.pair("match case")
				pm.Cases[i] = MatchCase{Pattern: d.pattern(), Body: d.expr()}
			}
		}
		return pm
	case tagField:
		return &Field{Type: d.typ(), Subject: d.expr(), Name: d.str()}
	case tagTuple:
		return &Tuple{Type: d.typ(), Elems: d.exprs()}
	case tagListValue:
		return &ListValue{Type: d.typ(), Elems: d.exprs()}
	}
	return nil
}

func (d *decoder) exprs() []Expr {
	n := d.array()
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]Expr, n)
	for i := range out {
		out[i] = d.expr()
	}
	return out
}

var patternTags = map[uint64]int{
	tagPWildcard:    1,
	tagPVar:         2,
	tagPLiteral:     2,
	tagPConstructor: 4,
	tagPTuple:       2,
	tagPUnit:        1,
}

func (d *decoder) pattern() Pattern {
	switch d.node(patternTags) {
	case tagPWildcard:
		return &PWildcard{}
	case tagPVar:
		return &PVar{Name: d.str()}
	case tagPLiteral:
		return &PLiteral{Value: d.lit()}
	case tagPConstructor:
		return &PConstructor{Name: d.name(), Args: d.patterns()}
	case tagPTuple:
		return &PTuple{Elems: d.patterns()}
	case tagPUnit:
		return &PUnit{}
	}
	return nil
}

func (d *decoder) patterns() []Pattern {
	n := d.array()
	if d.err != nil || n == 0 {
		return nil
	}
	out := make([]Pattern, n)
	for i := range out {
		out[i] = d.pattern()
	}
	return out
}
