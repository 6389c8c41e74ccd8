package intrinsic

import (
	"strings"

	"github.com/lyzr/wkflws/pkg/jsonpath"
	"github.com/lyzr/wkflws/pkg/wkerrors"
	"github.com/shopspring/decimal"
)

// Interpreter tree-walks an intrinsic-function AST against an
// Environment, resolving JSONPath variables and dispatching to
// registered built-ins.
type Interpreter struct {
	Env *Environment
}

// NewInterpreter creates an interpreter bound to the given input and
// context roots.
func NewInterpreter(funcInput, context interface{}) *Interpreter {
	return &Interpreter{Env: &Environment{FuncInput: funcInput, Context: context}}
}

// Eval evaluates a single intrinsic-function source string end to end:
// scan, parse, interpret.
func Eval(src string, funcInput, context interface{}) (interface{}, error) {
	tokens, err := Scan(src)
	if err != nil {
		return nil, err
	}
	expr, err := ParseExpr(tokens)
	if err != nil {
		return nil, err
	}
	return NewInterpreter(funcInput, context).Eval(expr)
}

// Eval visits expr and returns its runtime value.
func (it *Interpreter) Eval(expr Expr) (interface{}, error) {
	switch e := expr.(type) {
	case *Literal:
		return e.Value, nil
	case *Grouping:
		return it.Eval(e.Inner)
	case *Unary:
		return it.evalUnary(e)
	case *Binary:
		return it.evalBinary(e)
	case *Variable:
		return it.evalVariable(e)
	case *Call:
		return it.evalCall(e)
	}
	return nil, &wkerrors.RuntimeError{Msg: "unknown expression node"}
}

func (it *Interpreter) evalUnary(e *Unary) (interface{}, error) {
	right, err := it.Eval(e.Right)
	if err != nil {
		return nil, err
	}
	num, ok := right.(decimal.Decimal)
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: e.Op.Lexeme, Msg: "operand must be a number"}
	}
	return num.Neg(), nil
}

func (it *Interpreter) evalBinary(e *Binary) (interface{}, error) {
	left, err := it.Eval(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := it.Eval(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Op.Kind {
	case Plus:
		if ln, lok := left.(decimal.Decimal); lok {
			if rn, rok := right.(decimal.Decimal); rok {
				return ln.Add(rn), nil
			}
		}
		if ls, lok := left.(string); lok {
			if rs, rok := right.(string); rok {
				return ls + rs, nil
			}
		}
		return nil, &wkerrors.RuntimeError{Lexeme: e.Op.Lexeme, Msg: "'+' requires two numbers or two strings"}
	case Minus, Star, Slash:
		ln, lok := left.(decimal.Decimal)
		rn, rok := right.(decimal.Decimal)
		if !lok || !rok {
			return nil, &wkerrors.RuntimeError{Lexeme: e.Op.Lexeme, Msg: "operands must be numbers"}
		}
		switch e.Op.Kind {
		case Minus:
			return ln.Sub(rn), nil
		case Star:
			return ln.Mul(rn), nil
		case Slash:
			if rn.IsZero() {
				return nil, &wkerrors.RuntimeError{Lexeme: e.Op.Lexeme, Msg: "division by zero"}
			}
			return ln.DivRound(rn, 16), nil
		}
	}
	return nil, &wkerrors.RuntimeError{Lexeme: e.Op.Lexeme, Msg: "unsupported operator"}
}

func (it *Interpreter) evalVariable(e *Variable) (interface{}, error) {
	name := e.Name.Lexeme
	if strings.HasPrefix(name, "$") {
		root := it.Env.FuncInput
		if strings.HasPrefix(name, "$$") {
			root = it.Env.Context
		}
		val, err := jsonpath.Get(root, name)
		if err != nil {
			return nil, &wkerrors.RuntimeError{Lexeme: name, Msg: err.Error()}
		}
		return val, nil
	}
	c, ok := Lookup(name)
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: name, Msg: "undefined name"}
	}
	return c, nil
}

func (it *Interpreter) evalCall(e *Call) (interface{}, error) {
	calleeVal, err := it.Eval(e.Callee)
	if err != nil {
		return nil, err
	}
	callable, ok := calleeVal.(Callable)
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: e.Paren.Lexeme, Msg: "callee is not callable"}
	}
	args := make([]interface{}, len(e.Arguments))
	for i, a := range e.Arguments {
		v, err := it.Eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if arity := callable.Arity(); arity != nil && *arity != len(args) {
		return nil, &wkerrors.RuntimeError{Lexeme: e.Paren.Lexeme, Msg: "wrong number of arguments"}
	}
	return callable.Call(it, args)
}
