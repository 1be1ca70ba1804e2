package platform

import (
	"github.com/finos/morphir-scala/internal/canon"
	"github.com/finos/morphir-scala/internal/mir"
)

// Debug file identity.
const (
	DebugFormat  = "morphir-debug"
	DebugVersion = 1
)

// DebugInfo builds the debug document of a lowered module: the position of
// every declaration and the shape of every function. It is serialized as
// canonical JSON.
func DebugInfo(m *mir.Module, p *Program) canon.Object {
	decls := canon.Array{}
	for _, td := range m.Types {
		decls = append(decls, canon.ObjectOf(
			canon.P("name", canon.String(td.Name)),
			canon.P("kind", canon.String(td.Kind.String())),
			canon.P("line", canon.Int(td.Pos.Line)),
			canon.P("col", canon.Int(td.Pos.Col)),
		))
	}
	for i, vd := range m.Values {
		decls = append(decls, canon.ObjectOf(
			canon.P("name", canon.String(vd.Name)),
			canon.P("kind", canon.String(vd.Kind.String())),
			canon.P("line", canon.Int(vd.Pos.Line)),
			canon.P("col", canon.Int(vd.Pos.Col)),
			canon.P("function", canon.Int(i)),
		))
	}

	fns := canon.Array{}
	for i, f := range p.Functions {
		fns = append(fns, canon.ObjectOf(
			canon.P("index", canon.Int(i)),
			canon.P("name", canon.String(f.Name)),
			canon.P("arity", canon.Int(f.Arity)),
			canon.P("locals", canon.Int(f.Locals)),
			canon.P("instructions", canon.Int(len(f.Code))),
		))
	}

	return canon.ObjectOf(
		canon.P("format", canon.String(DebugFormat)),
		canon.P("version", canon.Int(DebugVersion)),
		canon.P("module", canon.String(m.Name)),
		canon.P("unit", canon.String(m.Unit)),
		canon.P("sourceDigest", canon.String(m.SourceDigest)),
		canon.P("constants", canon.Int(len(p.Constants))),
		canon.P("decls", decls),
		canon.P("functions", fns),
	)
}
