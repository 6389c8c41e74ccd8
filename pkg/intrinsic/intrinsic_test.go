package intrinsic

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalSrc(t *testing.T, src string, input interface{}) interface{} {
	t.Helper()
	v, err := Eval(src, input, nil)
	require.NoError(t, err)
	return v
}

func TestTokenOffsetsMonotonic(t *testing.T) {
	tokens, err := Scan("States.Format('Hello, {}', $.name) + 1")
	require.NoError(t, err)
	for i := 1; i < len(tokens); i++ {
		assert.GreaterOrEqual(t, tokens[i].Start, tokens[i-1].Start)
	}
}

func TestArithmeticPrecedence(t *testing.T) {
	v := evalSrc(t, "1 + 2 * 3", nil)
	d := v.(decimal.Decimal)
	assert.True(t, d.Equal(decimal.NewFromInt(7)))
}

func TestUnaryBindsTighterThanStar(t *testing.T) {
	v := evalSrc(t, "-2 * 3", nil)
	d := v.(decimal.Decimal)
	assert.True(t, d.Equal(decimal.NewFromInt(-6)))
}

func TestStringConcatenation(t *testing.T) {
	v := evalSrc(t, "'a' + 'b'", nil)
	assert.Equal(t, "ab", v)
}

func TestMismatchedPlusIsRuntimeError(t *testing.T) {
	_, err := Eval("'a' + 1", nil, nil)
	require.Error(t, err)
}

func TestStatesFormat(t *testing.T) {
	v := evalSrc(t, "States.Format('Hello, {}', $.name)", map[string]interface{}{"name": "world"})
	assert.Equal(t, "Hello, world", v)
}

func TestArithmeticOnInputField(t *testing.T) {
	v := evalSrc(t, "$.price * 0.1", map[string]interface{}{"price": decimal.NewFromInt(100)})
	d := v.(decimal.Decimal)
	assert.True(t, d.Equal(decimal.NewFromInt(10)))
}

func TestJsonRoundTrip(t *testing.T) {
	value := map[string]interface{}{"a": decimal.NewFromInt(1), "b": "two"}
	encoded, err := CanonicalJSON(value)
	require.NoError(t, err)

	roundTripped := evalSrc(t, "States.JsonToString(States.StringToJson($.s))", map[string]interface{}{"s": string(encoded)})
	assert.Equal(t, string(encoded), roundTripped)
}

func TestArrayJoin(t *testing.T) {
	v := evalSrc(t, "Array.Join(',', States.Array('a','b','c'))", nil)
	assert.Equal(t, "a,b,c", v)
}

func TestFormatCurrency(t *testing.T) {
	v := evalSrc(t, "Format.Currency(Cast.ToNumber('10.999'), 'USD')", nil)
	assert.Equal(t, "$11.00", v)
}

func TestDottedBuiltinNameFlattens(t *testing.T) {
	tokens, err := Scan("States.Format('x')")
	require.NoError(t, err)
	expr, err := ParseExpr(tokens)
	require.NoError(t, err)
	call, ok := expr.(*Call)
	require.True(t, ok)
	v, ok := call.Callee.(*Variable)
	require.True(t, ok)
	assert.Equal(t, "States.Format", v.Name.Lexeme)
}

func TestRegistryRejectsDuplicateAndDollarPrefixed(t *testing.T) {
	err := Register("States.Format", &builtinFunc{fn: builtinFormat})
	require.Error(t, err)

	err = Register("$Bad", &builtinFunc{fn: builtinFormat})
	require.Error(t, err)
}

func TestUnterminatedStringIsScanError(t *testing.T) {
	_, err := Scan("'unterminated")
	require.Error(t, err)
}

func TestUnterminatedSelectorIsScanError(t *testing.T) {
	_, err := Scan("$.a[0")
	require.Error(t, err)
}

func TestTooManyArgumentsIsParseError(t *testing.T) {
	src := callWithArgs(256)
	tokens, err := Scan(src)
	require.NoError(t, err)
	_, err = ParseExpr(tokens)
	require.Error(t, err)
}

func TestBoundaryArgumentCountIsParseError(t *testing.T) {
	src := callWithArgs(255)
	tokens, err := Scan(src)
	require.NoError(t, err)
	_, err = ParseExpr(tokens)
	require.Error(t, err)
}

func TestMaxArgumentCountIsAccepted(t *testing.T) {
	src := callWithArgs(254)
	tokens, err := Scan(src)
	require.NoError(t, err)
	_, err = ParseExpr(tokens)
	require.NoError(t, err)
}

func callWithArgs(n int) string {
	src := "States.Format("
	for i := 0; i < n; i++ {
		if i > 0 {
			src += ","
		}
		src += "'x'"
	}
	src += ")"
	return src
}
