package intrinsic

import (
	"fmt"
	"strings"

	"github.com/lyzr/wkflws/pkg/wkerrors"
	"github.com/shopspring/decimal"
)

func init() {
	// Encode decimals as JSON numbers, not quoted strings, so a number
	// re-marshaled by any package that imports this one decodes back as
	// a number (and so as decimal.Decimal) rather than as a string.
	decimal.MarshalJSONWithoutQuotes = true

	must(Register("States.Format", &builtinFunc{name: "States.Format", fn: builtinFormat}))
	must(Register("States.StringToJson", &builtinFunc{name: "States.StringToJson", arity: fixedArity(1), fn: builtinStringToJSON}))
	must(Register("States.JsonToString", &builtinFunc{name: "States.JsonToString", arity: fixedArity(1), fn: builtinJSONToString}))
	must(Register("States.Array", &builtinFunc{name: "States.Array", fn: builtinArray}))
	must(Register("Array.Append", &builtinFunc{name: "Array.Append", fn: builtinArrayAppend}))
	must(Register("Array.Join", &builtinFunc{name: "Array.Join", arity: fixedArity(2), fn: builtinArrayJoin}))
	must(Register("String.Trim", &builtinFunc{name: "String.Trim", arity: fixedArity(1), fn: builtinStringTrim}))
	must(Register("Cast.ToNumber", &builtinFunc{name: "Cast.ToNumber", arity: fixedArity(1), fn: builtinCastToNumber}))
	must(Register("Format.Currency", &builtinFunc{name: "Format.Currency", arity: fixedArity(2), fn: builtinFormatCurrency}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func builtinFormat(_ *Interpreter, args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, &wkerrors.RuntimeError{Lexeme: "States.Format", Msg: "requires at least a template argument"}
	}
	tmpl, ok := args[0].(string)
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: "States.Format", Msg: "template must be a string"}
	}
	rest := args[1:]
	var buf strings.Builder
	argIdx := 0
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] == '{' && i+1 < len(tmpl) && tmpl[i+1] == '}' {
			if argIdx >= len(rest) {
				return nil, &wkerrors.RuntimeError{Lexeme: "States.Format", Msg: "not enough arguments for placeholders"}
			}
			buf.WriteString(Stringify(rest[argIdx]))
			argIdx++
			i++
			continue
		}
		buf.WriteByte(tmpl[i])
	}
	return buf.String(), nil
}

func builtinStringToJSON(_ *Interpreter, args []interface{}) (interface{}, error) {
	s, ok := args[0].(string)
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: "States.StringToJson", Msg: "argument must be a string"}
	}
	v, err := ParseJSON(s)
	if err != nil {
		return nil, &wkerrors.RuntimeError{Lexeme: "States.StringToJson", Msg: "invalid JSON: " + err.Error()}
	}
	return v, nil
}

func builtinJSONToString(_ *Interpreter, args []interface{}) (interface{}, error) {
	b, err := CanonicalJSON(args[0])
	if err != nil {
		return nil, &wkerrors.RuntimeError{Lexeme: "States.JsonToString", Msg: err.Error()}
	}
	return string(b), nil
}

func builtinArray(_ *Interpreter, args []interface{}) (interface{}, error) {
	out := make([]interface{}, len(args))
	copy(out, args)
	return out, nil
}

func builtinArrayAppend(_ *Interpreter, args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, &wkerrors.RuntimeError{Lexeme: "Array.Append", Msg: "requires at least the array argument"}
	}
	arr, ok := args[0].([]interface{})
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: "Array.Append", Msg: "first argument must be an array"}
	}
	out := append(append([]interface{}{}, arr...), args[1:]...)
	return out, nil
}

func builtinArrayJoin(_ *Interpreter, args []interface{}) (interface{}, error) {
	sep, ok := args[0].(string)
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: "Array.Join", Msg: "separator must be a string"}
	}
	arr, ok := args[1].([]interface{})
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: "Array.Join", Msg: "second argument must be an array"}
	}
	parts := make([]string, len(arr))
	for i, v := range arr {
		parts[i] = Stringify(v)
	}
	return strings.Join(parts, sep), nil
}

func builtinStringTrim(_ *Interpreter, args []interface{}) (interface{}, error) {
	s, ok := args[0].(string)
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: "String.Trim", Msg: "argument must be a string"}
	}
	return strings.TrimSpace(s), nil
}

func builtinCastToNumber(_ *Interpreter, args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, &wkerrors.RuntimeError{Lexeme: "Cast.ToNumber", Msg: "not a number: " + v}
		}
		return d, nil
	default:
		return nil, &wkerrors.RuntimeError{Lexeme: "Cast.ToNumber", Msg: "argument must be a string"}
	}
}

func builtinFormatCurrency(_ *Interpreter, args []interface{}) (interface{}, error) {
	amount, ok := args[0].(decimal.Decimal)
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: "Format.Currency", Msg: "amount must be a number"}
	}
	code, ok := args[1].(string)
	if !ok {
		return nil, &wkerrors.RuntimeError{Lexeme: "Format.Currency", Msg: "currency code must be a string"}
	}
	rounded := amount.Round(2)
	switch code {
	case "USD", "$":
		return fmt.Sprintf("$%s", rounded.StringFixed(2)), nil
	default:
		return fmt.Sprintf("%s %s", rounded.StringFixed(2), code), nil
	}
}
