package compiler

import (
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/types"
)

func sdkName(name string) mir.FQName {
	return mir.FQName{Module: mir.SDKModule, Name: name}
}

var (
	tvA = &types.Var{Name: "A"}
	tvB = &types.Var{Name: "B"}
)

func fn(result types.Type, params ...types.Type) types.Type {
	return &types.Func{Params: params, Result: result}
}

// preludeTypes are always in scope, behind user declarations and imports.
var preludeTypes = map[string]*typeInfo{
	"Int":     {name: sdkName("Int"), builtin: true},
	"Float":   {name: sdkName("Float"), builtin: true},
	"String":  {name: sdkName("String"), builtin: true},
	"Boolean": {name: sdkName("Boolean"), builtin: true},
	"Unit":    {name: sdkName("Unit"), builtin: true},
	"List":    {name: sdkName("List"), params: []string{"A"}, builtin: true},
	"Option": {
		name:   sdkName("Option"),
		kind:   mir.TypeEnum,
		params: []string{"A"},
		cases: []caseInfo{
			{name: "Some", fields: []field{{name: "value", typ: tvA}}, hasFields: true},
			{name: "None"},
		},
	},
}

// preludeValues are the SDK functions and constructors visible by default.
// List(...) is not listed: it is variadic and handled by the checker.
var preludeValues = map[string]*valueSym{
	"Some": {name: sdkName("Some"), params: []string{"A"}, typ: fn(types.Option(tvA), tvA), ctor: true, owner: sdkName("Option")},
	"None": {name: sdkName("None"), params: []string{"A"}, typ: types.Option(tvA), ctor: true, owner: sdkName("Option")},

	"map":         {name: sdkName("map"), params: []string{"A", "B"}, typ: fn(types.List(tvB), types.List(tvA), fn(tvB, tvA))},
	"filter":      {name: sdkName("filter"), params: []string{"A"}, typ: fn(types.List(tvA), types.List(tvA), fn(types.Boolean, tvA))},
	"foldLeft":    {name: sdkName("foldLeft"), params: []string{"A", "B"}, typ: fn(tvB, types.List(tvA), tvB, fn(tvB, tvB, tvA))},
	"length":      {name: sdkName("length"), params: []string{"A"}, typ: fn(types.Int, types.List(tvA))},
	"isEmpty":     {name: sdkName("isEmpty"), params: []string{"A"}, typ: fn(types.Boolean, types.List(tvA))},
	"getOrElse":   {name: sdkName("getOrElse"), params: []string{"A"}, typ: fn(tvA, types.Option(tvA), tvA)},
	"intToString": {name: sdkName("intToString"), typ: fn(types.String, types.Int)},
	"toFloat":     {name: sdkName("toFloat"), typ: fn(types.Float, types.Int)},
	"abs":         {name: sdkName("abs"), typ: fn(types.Int, types.Int)},
	"min":         {name: sdkName("min"), typ: fn(types.Int, types.Int, types.Int)},
	"max":         {name: sdkName("max"), typ: fn(types.Int, types.Int, types.Int)},
}

// listName is the variadic list builder.
const listName = "List"
