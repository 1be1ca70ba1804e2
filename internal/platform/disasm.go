package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble decodes a bytecode file and renders it as text.
func Disassemble(data []byte) (string, error) {
	p, err := DecodeProgram(data)
	if err != nil {
		return "", err
	}
	return Listing(p), nil
}

// Listing renders a program: the constant pool, then every function with
// one instruction per line.
func Listing(p *Program) string {
	var b strings.Builder
	b.WriteString("constants:\n")
	for i, c := range p.Constants {
		fmt.Fprintf(&b, "  #%d %s %s\n", i, c.Kind, constString(p, c))
	}
	for i, f := range p.Functions {
		fmt.Fprintf(&b, "function %d %s (arity %d, locals %d):\n", i, f.Name, f.Arity, f.Locals)
		for pc, in := range f.Code {
			fmt.Fprintf(&b, "  %04d %s\n", pc, instrString(p, in))
		}
	}
	return b.String()
}

func instrString(p *Program, in Instr) string {
	switch in.Op {
	case OpConst, OpGlobal, OpField, OpMatch:
		return fmt.Sprintf("%s #%d", in.Op, in.A) + comment(p, in.A)
	case OpCtor:
		return fmt.Sprintf("%s #%d %d", in.Op, in.A, in.B) + comment(p, in.A)
	case OpClosure:
		s := fmt.Sprintf("%s %d %d", in.Op, in.A, in.B)
		if in.A >= 0 && in.A < len(p.Functions) {
			s += "  ; " + p.Functions[in.A].Name
		}
		return s
	case OpLoad, OpStore, OpCall, OpTuple, OpList:
		return fmt.Sprintf("%s %d", in.Op, in.A)
	case OpJump, OpJumpIfFalse:
		return fmt.Sprintf("%s %04d", in.Op, in.A)
	}
	return in.Op.String()
}

func comment(p *Program, k int) string {
	if k < 0 || k >= len(p.Constants) {
		return "  ; <bad constant>"
	}
	return "  ; " + constString(p, p.Constants[k])
}

func constString(p *Program, c Constant) string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstPattern:
		if c.Pattern == nil {
			return "<nil>"
		}
		return patternString(p, c.Pattern)
	}
	return c.Str
}

func patternString(p *Program, pat *Pattern) string {
	switch pat.Kind {
	case PatAny:
		return "_"
	case PatBind:
		return "$" + strconv.Itoa(pat.Ref)
	case PatUnit:
		return "()"
	case PatConst:
		if pat.Ref >= 0 && pat.Ref < len(p.Constants) {
			return constString(p, p.Constants[pat.Ref])
		}
		return "<bad constant>"
	case PatTuple:
		return "(" + patternArgs(p, pat.Args) + ")"
	case PatCtor:
		name := "<bad constant>"
		if pat.Ref >= 0 && pat.Ref < len(p.Constants) {
			name = p.Constants[pat.Ref].Str
		}
		if len(pat.Args) == 0 {
			return name
		}
		return name + "(" + patternArgs(p, pat.Args) + ")"
	}
	return fmt.Sprintf("<pattern %d>", pat.Kind)
}

func patternArgs(p *Program, args []*Pattern) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = patternString(p, a)
	}
	return strings.Join(parts, ", ")
}
