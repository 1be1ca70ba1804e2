package compiler

import (
	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/mir"
	"github.com/finos/morphir-scala/internal/syntax"
	"github.com/finos/morphir-scala/internal/types"
)

type opClass int

const (
	opArith opClass = iota
	opAppend
	opCompare
	opEqual
	opLogic
)

type operator struct {
	name  string
	class opClass
}

// binaryOps maps each infix operator to the SDK function it lowers to.
var binaryOps = map[syntax.TokenKind]operator{
	syntax.Plus:     {"add", opArith},
	syntax.Minus:    {"subtract", opArith},
	syntax.Star:     {"multiply", opArith},
	syntax.Slash:    {"divide", opArith},
	syntax.Percent:  {"modBy", opArith},
	syntax.PlusPlus: {"append", opAppend},
	syntax.EqEq:     {"equal", opEqual},
	syntax.NotEq:    {"notEqual", opEqual},
	syntax.Lt:       {"lessThan", opCompare},
	syntax.LtEq:     {"lessThanOrEqual", opCompare},
	syntax.Gt:       {"greaterThan", opCompare},
	syntax.GtEq:     {"greaterThanOrEqual", opCompare},
	syntax.AndAnd:   {"and", opLogic},
	syntax.OrOr:     {"or", opLogic},
}

// accepts reports whether an operand type is valid for the operator class.
// Unsolved operands are accepted; they are reported as uninferable later.
func (c *checker) accepts(class opClass, t types.Type) bool {
	t = c.s.Resolve(t)
	if _, ok := t.(*types.Meta); ok {
		if class == opLogic {
			return c.s.Unify(types.Boolean, t) == nil
		}
		return true
	}
	switch class {
	case opArith:
		return types.IsSDK(t, "Int") || types.IsSDK(t, "Float")
	case opAppend:
		return types.IsSDK(t, "String") || types.IsSDK(t, "List")
	case opCompare:
		return types.IsSDK(t, "Int") || types.IsSDK(t, "Float") || types.IsSDK(t, "String")
	case opLogic:
		return types.IsSDK(t, "Boolean")
	}
	return true
}

func (c *checker) binary(e *syntax.Binary, locals *env) (mir.Expr, types.Type) {
	op := binaryOps[e.Op]
	x, xt := c.infer(e.X, locals)
	y := c.check(e.Y, xt, locals)

	if !c.accepts(op.class, xt) {
		c.typeErr(e.Pos, diag.CodeOperandType, "operator %s is not defined for %s", e.Op, types.Show(c.s.Apply(xt)))
		return c.placeholder()
	}

	result := xt
	if op.class != opArith && op.class != opAppend {
		result = types.Boolean
	}
	return c.applyOp(op.name, e.Pos, xt, result, x, y)
}

func (c *checker) unary(e *syntax.Unary, locals *env) (mir.Expr, types.Type) {
	x, xt := c.infer(e.X, locals)
	name, class := "negate", opArith
	if e.Op == syntax.Bang {
		name, class = "not", opLogic
	}
	if !c.accepts(class, xt) {
		c.typeErr(e.Pos, diag.CodeOperandType, "operator %s is not defined for %s", e.Op, types.Show(c.s.Apply(xt)))
		return c.placeholder()
	}
	return c.applyOp(name, e.Pos, xt, xt, x)
}

// applyOp builds the application of an SDK operator function. Every operand
// has the operand type; the reference carries the monomorphic type it is
// used at.
func (c *checker) applyOp(name string, pos diag.Pos, operand, result types.Type, args ...mir.Expr) (mir.Expr, types.Type) {
	params := make([]types.Type, len(args))
	for i := range args {
		params[i] = operand
	}
	ref := &mir.Reference{Name: sdkName(name)}
	c.typed(&types.Func{Params: params, Result: result}, pos, &ref.Type)
	n := &mir.Apply{Fn: ref, Args: args}
	c.typed(result, pos, &n.Type)
	return n, result
}
