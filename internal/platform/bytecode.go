package platform

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Bytecode container constants.
const (
	BytecodeMagic   = "MBC\x00"
	BytecodeFormat  = "morphir-bytecode"
	BytecodeVersion = 1
)

// Op is a stack machine instruction.
type Op uint8

const (
	OpConst       Op = iota + 1 // push constants[A]
	OpLoad                      // push local slot A
	OpStore                     // pop into local slot A
	OpGlobal                    // push the top-level value named by constants[A]
	OpCtor                      // pop B arguments, push constructor constants[A] applied to them
	OpCall                      // pop A arguments and a function, push the result
	OpClosure                   // pop B captured values, push a closure over function A
	OpJump                      // continue at A
	OpJumpIfFalse               // pop a Boolean, continue at A when false
	OpMatch                     // pop a value, test pattern constants[A], bind its slots, push the outcome
	OpField                     // pop a record or tuple, push its field named by constants[A]
	OpTuple                     // pop A values, push a tuple
	OpList                      // pop A values, push a list
	OpUnit                      // push unit
	OpRet                       // return the top of the stack
	OpPop                       // discard the top of the stack
	OpFail                      // abort: no match arm applied
)

var opNames = map[Op]string{
	OpConst:       "CONST",
	OpLoad:        "LOAD",
	OpStore:       "STORE",
	OpGlobal:      "GLOBAL",
	OpCtor:        "CTOR",
	OpCall:        "CALL",
	OpClosure:     "CLOSURE",
	OpJump:        "JUMP",
	OpJumpIfFalse: "JUMP_IF_FALSE",
	OpMatch:       "MATCH",
	OpField:       "FIELD",
	OpTuple:       "TUPLE",
	OpList:        "LIST",
	OpUnit:        "UNIT",
	OpRet:         "RET",
	OpPop:         "POP",
	OpFail:        "FAIL",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// Instr is one instruction with up to two operands.
type Instr struct {
	Op   Op
	A, B int
}

// ConstKind classifies a constant pool entry.
type ConstKind uint8

const (
	ConstInt ConstKind = iota + 1
	ConstFloat
	ConstString
	ConstBool
	ConstGlobal
	ConstCtor
	ConstField
	ConstPattern
)

var constNames = map[ConstKind]string{
	ConstInt:     "int",
	ConstFloat:   "float",
	ConstString:  "string",
	ConstBool:    "bool",
	ConstGlobal:  "global",
	ConstCtor:    "ctor",
	ConstField:   "field",
	ConstPattern: "pattern",
}

func (k ConstKind) String() string {
	if s, ok := constNames[k]; ok {
		return s
	}
	return fmt.Sprintf("const(%d)", uint8(k))
}

// Constant is a constant pool entry. Str holds names for globals,
// constructors and fields.
type Constant struct {
	Kind    ConstKind
	Int     int64
	Float   float64
	Str     string
	Bool    bool
	Pattern *Pattern
}

// PatKind classifies a compiled pattern.
type PatKind uint8

const (
	PatAny PatKind = iota
	PatBind
	PatConst
	PatCtor
	PatTuple
	PatUnit
)

// Pattern is a compiled match pattern. Ref is the bound slot for PatBind and
// a constant index for PatConst and PatCtor.
type Pattern struct {
	Kind PatKind
	Ref  int
	Args []*Pattern
}

// Function is one compiled function. Top-level vals have arity zero; lifted
// lambdas take their captured values as leading parameters.
type Function struct {
	Name   string
	Arity  int
	Locals int
	Code   []Instr
}

// Program is the bytecode of one module.
type Program struct {
	Constants []Constant
	Functions []*Function
}

// EncodeProgram serializes a program: magic followed by the msgpack array
// ["morphir-bytecode", version, constants, functions]. No maps are used, so
// equal programs encode to equal bytes.
func EncodeProgram(p *Program) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(BytecodeMagic)
	enc := msgpack.NewEncoder(&buf)

	w := &writer{enc: enc}
	w.array(4)
	w.str(BytecodeFormat)
	w.int(BytecodeVersion)
	w.array(len(p.Constants))
	for _, c := range p.Constants {
		w.constant(c)
	}
	w.array(len(p.Functions))
	for _, f := range p.Functions {
		w.array(4)
		w.str(f.Name)
		w.int(int64(f.Arity))
		w.int(int64(f.Locals))
		w.array(len(f.Code))
		for _, in := range f.Code {
			w.array(3)
			w.int(int64(in.Op))
			w.int(int64(in.A))
			w.int(int64(in.B))
		}
	}
	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}

type writer struct {
	enc *msgpack.Encoder
	err error
}

func (w *writer) array(n int) {
	if w.err == nil {
		w.err = w.enc.EncodeArrayLen(n)
	}
}

func (w *writer) str(s string) {
	if w.err == nil {
		w.err = w.enc.EncodeString(s)
	}
}

func (w *writer) int(n int64) {
	if w.err == nil {
		w.err = w.enc.EncodeInt(n)
	}
}

func (w *writer) constant(c Constant) {
	w.array(2)
	w.int(int64(c.Kind))
	switch c.Kind {
	case ConstInt:
		w.int(c.Int)
	case ConstFloat:
		if w.err == nil {
			w.err = w.enc.EncodeFloat64(c.Float)
		}
	case ConstBool:
		if w.err == nil {
			w.err = w.enc.EncodeBool(c.Bool)
		}
	case ConstPattern:
		w.pattern(c.Pattern)
	default:
		w.str(c.Str)
	}
}

func (w *writer) pattern(p *Pattern) {
	w.array(3)
	w.int(int64(p.Kind))
	w.int(int64(p.Ref))
	w.array(len(p.Args))
	for _, a := range p.Args {
		w.pattern(a)
	}
}

// DecodeProgram parses bytes produced by EncodeProgram.
func DecodeProgram(data []byte) (*Program, error) {
	if len(data) < len(BytecodeMagic) || string(data[:len(BytecodeMagic)]) != BytecodeMagic {
		return nil, errors.New("not a bytecode file: bad magic")
	}
	r := bytes.NewReader(data[len(BytecodeMagic):])
	rd := &reader{dec: msgpack.NewDecoder(r)}

	if n := rd.array(); n != 4 && rd.err == nil {
		return nil, fmt.Errorf("bytecode header: expected 4 elements, found %d", n)
	}
	if f := rd.str(); f != BytecodeFormat && rd.err == nil {
		return nil, fmt.Errorf("bytecode header: unknown format %q", f)
	}
	if v := rd.int(); v != BytecodeVersion && rd.err == nil {
		return nil, fmt.Errorf("bytecode header: unsupported version %d", v)
	}

	p := &Program{}
	for range rd.array() {
		p.Constants = append(p.Constants, rd.constant())
	}
	for range rd.array() {
		f := &Function{}
		rd.expect(4)
		f.Name = rd.str()
		f.Arity = int(rd.int())
		f.Locals = int(rd.int())
		for range rd.array() {
			rd.expect(3)
			f.Code = append(f.Code, Instr{Op: Op(rd.int()), A: int(rd.int()), B: int(rd.int())})
		}
		p.Functions = append(p.Functions, f)
	}
	if rd.err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", rd.err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("decode bytecode: %d trailing bytes", r.Len())
	}
	return p, nil
}

type reader struct {
	dec *msgpack.Decoder
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
	}
}

func (r *reader) array() int {
	if r.err != nil {
		return 0
	}
	n, err := r.dec.DecodeArrayLen()
	if err != nil {
		r.fail(err)
		return 0
	}
	if n < 0 {
		r.fail(errors.New("unexpected nil array"))
		return 0
	}
	return n
}

func (r *reader) expect(n int) {
	if got := r.array(); got != n && r.err == nil {
		r.fail(fmt.Errorf("expected array of %d, found %d", n, got))
	}
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	s, err := r.dec.DecodeString()
	if err != nil {
		r.fail(err)
	}
	return s
}

func (r *reader) int() int64 {
	if r.err != nil {
		return 0
	}
	n, err := r.dec.DecodeInt64()
	if err != nil {
		r.fail(err)
	}
	return n
}

func (r *reader) constant() Constant {
	r.expect(2)
	c := Constant{Kind: ConstKind(r.int())}
	if r.err != nil {
		return c
	}
	var err error
	switch c.Kind {
	case ConstInt:
		c.Int = r.int()
	case ConstFloat:
		c.Float, err = r.dec.DecodeFloat64()
	case ConstBool:
		c.Bool, err = r.dec.DecodeBool()
	case ConstPattern:
		c.Pattern = r.pattern()
	case ConstString, ConstGlobal, ConstCtor, ConstField:
		c.Str = r.str()
	default:
		err = fmt.Errorf("unknown constant kind %d", c.Kind)
	}
	if err != nil {
		r.fail(err)
	}
	return c
}

func (r *reader) pattern() *Pattern {
	r.expect(3)
	p := &Pattern{Kind: PatKind(r.int()), Ref: int(r.int())}
	for range r.array() {
		p.Args = append(p.Args, r.pattern())
	}
	return p
}
