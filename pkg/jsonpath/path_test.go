package jsonpath

import (
	"testing"

	"github.com/lyzr/wkflws/pkg/wkerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSliceAlwaysReturnsList(t *testing.T) {
	data := map[string]interface{}{"a": []interface{}{1.0, 2.0, 3.0, 4.0, 5.0}}

	got, err := Get(data, "$.a[-2:]")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{4.0, 5.0}, got)

	single := map[string]interface{}{"s1": []interface{}{"p"}}
	got, err = Get(single, "$.s1[-6:]")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"p"}, got)
}

func TestGetScalarAndObjectPassthrough(t *testing.T) {
	data := map[string]interface{}{
		"x": 1.0,
		"a": []interface{}{1.0, 2.0, 3.0},
		"o": map[string]interface{}{"y": 2.0},
	}

	got, err := Get(data, "$.x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = Get(data, "$.a")
	require.NoError(t, err)
	assert.Equal(t, data["a"], got)

	got, err = Get(data, "$.o")
	require.NoError(t, err)
	assert.Equal(t, data["o"], got)
}

func TestGetPathNotFound(t *testing.T) {
	data := map[string]interface{}{"x": 1.0}
	_, err := Get(data, "$.missing")
	require.Error(t, err)
	var pnf *wkerrors.PathNotFound
	require.ErrorAs(t, err, &pnf)
}

func TestGetWildcardYieldsList(t *testing.T) {
	data := map[string]interface{}{"a": []interface{}{1.0, 2.0, 3.0}}
	got, err := Get(data, "$.a[*]")
	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{1.0, 2.0, 3.0}, got)
}

func TestSetAddsMissingFieldWithoutMutatingInput(t *testing.T) {
	data := map[string]interface{}{"x": 1.0}
	out, err := Set(data, map[string]interface{}{"y": 2.0}, "$.r", true)
	require.NoError(t, err)

	m := out.(map[string]interface{})
	assert.Equal(t, 1.0, m["x"])
	assert.Equal(t, map[string]interface{}{"y": 2.0}, m["r"])

	// original is untouched
	_, hasR := data["r"]
	assert.False(t, hasR)
}

func TestSetNestedPath(t *testing.T) {
	data := map[string]interface{}{}
	out, err := Set(data, "value", "$.a.b.c", true)
	require.NoError(t, err)

	m := out.(map[string]interface{})
	a := m["a"].(map[string]interface{})
	b := a["b"].(map[string]interface{})
	assert.Equal(t, "value", b["c"])
}

func TestSetRejectsContextRoot(t *testing.T) {
	_, err := Set(map[string]interface{}{}, 1, "$$.a", true)
	require.Error(t, err)
}
