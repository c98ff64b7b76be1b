// Package exprmod provides the expr command, which evaluates arithmetic and
// logical expressions written in HCL expression syntax.
//
//	expr {2 * pi * 3}
//	expr {max(1, 7, 3) > 5}   ;# 1
//
// The variables e and pi are predefined. Integral results print without a
// fraction and booleans print as 1 or 0.
package exprmod

import (
	"context"
	"math"
	"math/big"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/wippyai/pickle-host/command"
	"github.com/wippyai/pickle-host/errors"
	"github.com/wippyai/pickle-host/module"
)

// Name is the module and command name.
const Name = "expr"

// Kind is the expr module kind.
type Kind struct {
	ctx *hcl.EvalContext
}

// New returns the expr module.
func New() *Kind {
	return &Kind{ctx: &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"e":  cty.NumberFloatVal(math.E),
			"pi": cty.NumberFloatVal(math.Pi),
		},
		Functions: map[string]function.Function{
			"abs":    stdlib.AbsoluteFunc,
			"ceil":   stdlib.CeilFunc,
			"floor":  stdlib.FloorFunc,
			"log":    stdlib.LogFunc,
			"max":    stdlib.MaxFunc,
			"min":    stdlib.MinFunc,
			"pow":    stdlib.PowFunc,
			"signum": stdlib.SignumFunc,
		},
	}}
}

// Name implements module.Kind.
func (k *Kind) Name() string { return Name }

// Cleanup implements module.Cleaner.
func (k *Kind) Cleanup(context.Context, module.Handle) error { return nil }

// Register implements module.Kind.
func (k *Kind) Register(m *module.Module) error {
	return m.RegisterCommands(command.Fixed{Name: Name, Usage: "expression", Min: 1, Max: 1, Run: k.eval})
}

// Eval evaluates src and renders the result.
func (k *Kind) Eval(src string) (string, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "expr", hcl.InitialPos)
	if diags.HasErrors() {
		return "", diags
	}
	v, diags := expr.Value(k.ctx)
	if diags.HasErrors() {
		return "", diags
	}
	return render(v)
}

func (k *Kind) eval(_ context.Context, c *command.Call) (string, error) {
	out, err := k.Eval(c.Args[0])
	if err != nil {
		return "", errors.New(errors.PhaseCommand, errors.KindInvalidArgument).
			Command(c.Path...).Token(c.Args[0]).Detail("invalid expression").Cause(err).Build()
	}
	return out, nil
}

func render(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", errUnrepresentable
	}
	switch v.Type() {
	case cty.Number:
		return number(v.AsBigFloat()), nil
	case cty.Bool:
		return command.Bool(v.True()), nil
	case cty.String:
		return v.AsString(), nil
	default:
		return "", errUnrepresentable
	}
}

var errUnrepresentable = errors.New(errors.PhaseCommand, errors.KindInvalidArgument).
	Detail("result is not a number, boolean or string").Build()

func number(f *big.Float) string {
	if f.IsInf() {
		if f.Sign() < 0 {
			return "-Inf"
		}
		return "Inf"
	}
	if f.IsInt() {
		i, _ := f.Int(nil)
		return i.String()
	}
	x, _ := f.Float64()
	return strconv.FormatFloat(x, 'g', -1, 64)
}
