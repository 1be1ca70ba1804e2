package mir

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders a module as stable, human-readable text: one line per
// declaration, expressions as s-expressions. Builtin types from the SDK
// module are shown by their short name.
func Print(m *Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s (unit %s)\n", m.Name, m.Unit)
	for _, td := range m.Types {
		b.WriteString(typeDeclString(&td))
		b.WriteByte('\n')
	}
	for _, vd := range m.Values {
		b.WriteString(valueDeclString(&vd))
		b.WriteByte('\n')
	}
	return b.String()
}

func typeParamsString(ps []string) string {
	if len(ps) == 0 {
		return ""
	}
	return "[" + strings.Join(ps, ", ") + "]"
}

func fieldsString(fs []FieldDef) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Name + ": " + TypeString(f.Type)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func typeDeclString(td *TypeDecl) string {
	head := td.Name + typeParamsString(td.Params)
	switch td.Kind {
	case TypeAlias:
		return "type " + head + " = " + TypeString(td.Alias)
	case TypeRecord:
		return "record " + head + fieldsString(td.Fields)
	case TypeEnum:
		cases := make([]string, len(td.Cases))
		for i, c := range td.Cases {
			cases[i] = c.Name
			if len(c.Fields) > 0 {
				cases[i] += fieldsString(c.Fields)
			}
		}
		return "enum " + head + " { " + strings.Join(cases, " | ") + " }"
	}
	return "unknown " + head
}

func valueDeclString(vd *ValueDecl) string {
	var b strings.Builder
	b.WriteString(vd.Kind.String())
	b.WriteByte(' ')
	b.WriteString(vd.Name)
	b.WriteString(typeParamsString(vd.TypeParams))
	if vd.Kind == ValueDef {
		parts := make([]string, len(vd.Params))
		for i, p := range vd.Params {
			parts[i] = p.Name + ": " + TypeString(p.Type)
		}
		b.WriteString("(" + strings.Join(parts, ", ") + ")")
	}
	b.WriteString(": ")
	b.WriteString(TypeString(vd.Result))
	b.WriteString(" = ")
	b.WriteString(ExprString(vd.Body))
	return b.String()
}

// NameString renders a name, dropping the module for SDK names.
func NameString(n FQName) string {
	if n.Module == SDKModule {
		return n.Name
	}
	return n.String()
}

// TypeString renders a type.
func TypeString(t Type) string {
	switch t := t.(type) {
	case *TRef:
		s := NameString(t.Name)
		if len(t.Args) > 0 {
			s += "[" + typeList(t.Args) + "]"
		}
		return s
	case *TVar:
		return t.Name
	case *TFunc:
		return "(" + typeList(t.Params) + ") => " + TypeString(t.Result)
	case *TTuple:
		return "(" + typeList(t.Elems) + ")"
	case *TUnit:
		return "Unit"
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("<%T>", t)
}

func typeList(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = TypeString(t)
	}
	return strings.Join(parts, ", ")
}

// LitText renders a literal the way it would be written in source.
func LitText(l Lit) string {
	switch l.Kind {
	case LitBool:
		return strconv.FormatBool(l.Bool)
	case LitInt:
		return strconv.FormatInt(l.Int, 10)
	case LitFloat:
		s := strconv.FormatFloat(l.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		return s
	case LitString:
		return strconv.Quote(l.Str)
	}
	return "?"
}

// ExprString renders an expression as an s-expression.
func ExprString(x Expr) string {
	switch x := x.(type) {
	case *Literal:
		return LitText(x.Value)
	case *UnitValue:
		return "()"
	case *Variable:
		return x.Name
	case *Reference:
		return NameString(x.Name)
	case *Constructor:
		return "#" + NameString(x.Name)
	case *Apply:
		return "(apply " + ExprString(x.Fn) + exprList(x.Args) + ")"
	case *Lambda:
		parts := make([]string, len(x.Params))
		for i, p := range x.Params {
			parts[i] = p.Name + ": " + TypeString(p.Type)
		}
		return "(lambda (" + strings.Join(parts, ", ") + ") " + ExprString(x.Body) + ")"
	case *Let:
		return "(let " + x.Name + " " + ExprString(x.Value) + " " + ExprString(x.Body) + ")"
	case *IfThenElse:
		return "(if " + ExprString(x.Cond) + " " + ExprString(x.Then) + " " + ExprString(x.Else) + ")"
	case *PatternMatch:
		var b strings.Builder
		b.WriteString("(match ")
		b.WriteString(ExprString(x.Subject))
		for _, c := range x.Cases {
			b.WriteString(" (case ")
			b.WriteString(PatternString(c.Pattern))
			if c.Guard != nil {
				b.WriteString(" if ")
				b.WriteString(ExprString(c.Guard))
			}
			b.WriteByte(' ')
			b.WriteString(ExprString(c.Body))
			b.WriteByte(')')
		}
		b.WriteByte(')')
		return b.String()
	case *Field:
		return "(field " + ExprString(x.Subject) + " " + x.Name + ")"
	case *Tuple:
		return "(tuple" + exprList(x.Elems) + ")"
	case *ListValue:
		return "(list" + exprList(x.Elems) + ")"
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("<%T>", x)
}

func exprList(xs []Expr) string {
	var b strings.Builder
	for _, x := range xs {
		b.WriteByte(' ')
		b.WriteString(ExprString(x))
	}
	return b.String()
}

// PatternString renders a pattern.
func PatternString(p Pattern) string {
	switch p := p.(type) {
	case *PWildcard:
		return "_"
	case *PVar:
		return p.Name
	case *PLiteral:
		return LitText(p.Value)
	case *PConstructor:
		s := "#" + NameString(p.Name)
		if len(p.Args) > 0 {
			s += "(" + patternList(p.Args) + ")"
		}
		return s
	case *PTuple:
		return "(" + patternList(p.Elems) + ")"
	case *PUnit:
		return "()"
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("<%T>", p)
}

func patternList(ps []Pattern) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = PatternString(p)
	}
	return strings.Join(parts, ", ")
}
