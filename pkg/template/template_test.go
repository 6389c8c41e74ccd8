package template

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateIntrinsicField(t *testing.T) {
	tmpl := map[string]interface{}{"msg.$": "States.Format('Hello, {}', $.name)"}
	input := map[string]interface{}{"name": "world"}

	out, err := Evaluate(tmpl, input, nil, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", out["msg"])
}

func TestEvaluatePlainPathField(t *testing.T) {
	tmpl := map[string]interface{}{"total.$": "$.price"}
	input := map[string]interface{}{"price": decimal.NewFromInt(100)}

	out, err := Evaluate(tmpl, input, nil, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, decimal.NewFromInt(100), out["total"])
}

func TestEvaluatePassthroughAndRecursion(t *testing.T) {
	tmpl := map[string]interface{}{
		"static": "value",
		"nested": map[string]interface{}{
			"inner.$": "$.x",
		},
		"arr": []interface{}{1, 2, 3},
	}
	input := map[string]interface{}{"x": "y"}

	out, err := Evaluate(tmpl, input, nil, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "value", out["static"])
	assert.Equal(t, []interface{}{1, 2, 3}, out["arr"])
	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, "y", nested["inner"])
}

func TestLegacyDoubleDollarAgainstStateDefinition(t *testing.T) {
	tmpl := map[string]interface{}{"resource.$": "$$.Resource"}
	stateDef := map[string]interface{}{"Resource": "task://echo"}

	out, err := Evaluate(tmpl, nil, stateDef, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "task://echo", out["resource"])
}
