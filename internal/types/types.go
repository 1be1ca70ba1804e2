// Package types holds the type representation used during checking:
// solved types plus unification meta variables, and conversion to the
// solved mir types once checking is complete.
package types

import (
	"fmt"
	"strings"

	"github.com/finos/morphir-scala/internal/mir"
)

// Type is a type under checking.
type Type interface{ typ() }

// Con is a named type constructor applied to arguments.
type Con struct {
	Name mir.FQName
	Args []Type
}

// Var is a rigid type parameter of the declaration being checked.
type Var struct {
	Name string
}

// Func is an uncurried function type.
type Func struct {
	Params []Type
	Result Type
}

// Tuple has two or more elements.
type Tuple struct {
	Elems []Type
}

// Unit is the unit type.
type Unit struct{}

// Meta is a unification variable, solved by a Subst.
type Meta struct {
	ID int
}

func (*Con) typ()   {}
func (*Var) typ()   {}
func (*Func) typ()  {}
func (*Tuple) typ() {}
func (*Unit) typ()  {}
func (*Meta) typ()  {}

func sdk(name string, args ...Type) *Con {
	return &Con{Name: mir.FQName{Module: mir.SDKModule, Name: name}, Args: args}
}

// Builtin types.
var (
	Int     Type = sdk("Int")
	Float   Type = sdk("Float")
	String  Type = sdk("String")
	Boolean Type = sdk("Boolean")
	UnitT   Type = &Unit{}
)

// List builds List[elem].
func List(elem Type) Type { return sdk("List", elem) }

// Option builds Option[elem].
func Option(elem Type) Type { return sdk("Option", elem) }

// IsCon reports whether t is the named SDK or user type constructor.
func IsCon(t Type, name mir.FQName) bool {
	c, ok := t.(*Con)
	return ok && c.Name == name
}

// IsSDK reports whether t is the SDK type with the given name.
func IsSDK(t Type, name string) bool {
	return IsCon(t, mir.FQName{Module: mir.SDKModule, Name: name})
}

// Show renders a type for diagnostics.
func Show(t Type) string {
	switch t := t.(type) {
	case *Con:
		s := t.Name.Name
		if len(t.Args) > 0 {
			s += "[" + showList(t.Args) + "]"
		}
		return s
	case *Var:
		return t.Name
	case *Func:
		if len(t.Params) == 1 {
			if _, isFunc := t.Params[0].(*Func); !isFunc {
				return Show(t.Params[0]) + " => " + Show(t.Result)
			}
		}
		return "(" + showList(t.Params) + ") => " + Show(t.Result)
	case *Tuple:
		return "(" + showList(t.Elems) + ")"
	case *Unit:
		return "Unit"
	case *Meta:
		return fmt.Sprintf("?%d", t.ID)
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("<%T>", t)
}

func showList(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = Show(t)
	}
	return strings.Join(parts, ", ")
}

// Substitute replaces type parameters by name.
func Substitute(t Type, env map[string]Type) Type {
	if len(env) == 0 {
		return t
	}
	switch t := t.(type) {
	case *Var:
		if r, ok := env[t.Name]; ok {
			return r
		}
		return t
	case *Con:
		if len(t.Args) == 0 {
			return t
		}
		return &Con{Name: t.Name, Args: substituteAll(t.Args, env)}
	case *Func:
		return &Func{Params: substituteAll(t.Params, env), Result: Substitute(t.Result, env)}
	case *Tuple:
		return &Tuple{Elems: substituteAll(t.Elems, env)}
	}
	return t
}

func substituteAll(ts []Type, env map[string]Type) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = Substitute(t, env)
	}
	return out
}

// FromMIR converts a solved mir type.
func FromMIR(t mir.Type) Type {
	switch t := t.(type) {
	case *mir.TRef:
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = FromMIR(a)
		}
		if len(args) == 0 {
			args = nil
		}
		return &Con{Name: t.Name, Args: args}
	case *mir.TVar:
		return &Var{Name: t.Name}
	case *mir.TFunc:
		params := make([]Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = FromMIR(p)
		}
		return &Func{Params: params, Result: FromMIR(t.Result)}
	case *mir.TTuple:
		elems := make([]Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = FromMIR(e)
		}
		return &Tuple{Elems: elems}
	}
	return UnitT
}
