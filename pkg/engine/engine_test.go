package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/wkflws/pkg/intrinsic"
	"github.com/lyzr/wkflws/pkg/workflow"
)

// stubExecutor returns a fixed JSON payload for every Task invocation,
// recording every input it is handed.
type stubExecutor struct {
	output   string
	lastArgs [][]byte
}

func (s *stubExecutor) Execute(ctx context.Context, stateName string, exec *Execution, serializedInput, serializedContext []byte, traceContext map[string]string) ([]byte, error) {
	s.lastArgs = append(s.lastArgs, serializedInput)
	return []byte(s.output), nil
}

func mustParse(t *testing.T, doc string) *workflow.Definition {
	t.Helper()
	def, err := workflow.ParseDefinition([]byte(doc))
	require.NoError(t, err)
	return def
}

func TestScenarioPassThrough(t *testing.T) {
	def := mustParse(t, `{"StartAt":"A","States":{"A":{"Type":"Pass","End":true}}}`)
	input, err := intrinsic.ParseJSON(`{"x":1}`)
	require.NoError(t, err)

	exec, err := New("e1", "wf1", def, input, nil, &stubExecutor{}, DefaultOptions())
	require.NoError(t, err)

	out, err := exec.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestScenarioTaskThenNext(t *testing.T) {
	def := mustParse(t, `{
		"StartAt":"A",
		"States":{
			"A":{"Type":"Task","Resource":"task://one","ResultPath":"$.r","Next":"B"},
			"B":{"Type":"Pass","End":true}
		}
	}`)
	input, err := intrinsic.ParseJSON(`{"x":1}`)
	require.NoError(t, err)

	exec, err := New("e1", "wf1", def, input, nil, &stubExecutor{output: `{"y":2}`}, DefaultOptions())
	require.NoError(t, err)

	out, err := exec.Start(context.Background())
	require.NoError(t, err)

	want, err := intrinsic.ParseJSON(`{"x":1,"r":{"y":2}}`)
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestScenarioChoice(t *testing.T) {
	doc := `{
		"StartAt":"A",
		"States":{
			"A":{"Type":"Choice","Choices":[{"Variable":"$.n","NumericGreaterThanEquals":10,"Next":"Big"}],"Default":"Small"},
			"Big":{"Type":"Pass","Result":{"label":"big"},"End":true},
			"Small":{"Type":"Pass","Result":{"label":"small"},"End":true}
		}
	}`
	def := mustParse(t, doc)

	bigInput, err := intrinsic.ParseJSON(`{"n":12}`)
	require.NoError(t, err)
	exec, err := New("e1", "wf1", def, bigInput, nil, &stubExecutor{}, DefaultOptions())
	require.NoError(t, err)
	out, err := exec.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "big", out.(map[string]interface{})["label"])

	smallInput, err := intrinsic.ParseJSON(`{"n":3}`)
	require.NoError(t, err)
	exec, err = New("e2", "wf1", def, smallInput, nil, &stubExecutor{}, DefaultOptions())
	require.NoError(t, err)
	out, err = exec.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "small", out.(map[string]interface{})["label"])

	exec, err = New("e3", "wf1", def, map[string]interface{}{}, nil, &stubExecutor{}, DefaultOptions())
	require.NoError(t, err)
	_, err = exec.Start(context.Background())
	require.Error(t, err)
}

func TestScenarioPayloadTemplateWithIntrinsic(t *testing.T) {
	def := mustParse(t, `{
		"StartAt":"A",
		"States":{
			"A":{"Type":"Task","Resource":"task://echo","Parameters":{"msg.$":"States.Format('Hello, {}', $.name)"},"ResultPath":"$.out","End":true}
		}
	}`)
	input, err := intrinsic.ParseJSON(`{"name":"world"}`)
	require.NoError(t, err)

	exec := &stubExecutor{output: `{"echoed":true}`}
	execution, err := New("e1", "wf1", def, input, nil, exec, DefaultOptions())
	require.NoError(t, err)

	_, err = execution.Start(context.Background())
	require.NoError(t, err)
	require.Len(t, exec.lastArgs, 1)
	assert.JSONEq(t, `{"msg":"Hello, world"}`, string(exec.lastArgs[0]))
}

func TestScenarioArithmeticIntrinsic(t *testing.T) {
	def := mustParse(t, `{
		"StartAt":"A",
		"States":{
			"A":{"Type":"Pass","Result":{"total.$":"$.price * 0.1"},"End":true}
		}
	}`)
	input := map[string]interface{}{"price": decimal.NewFromInt(100)}

	exec, err := New("e1", "wf1", def, input, nil, &stubExecutor{}, DefaultOptions())
	require.NoError(t, err)

	out, err := exec.Start(context.Background())
	require.NoError(t, err)
	total := out.(map[string]interface{})["total"].(decimal.Decimal)
	assert.True(t, total.Equal(decimal.NewFromInt(10)))
}

func TestTaskExecutorErrorSwallowedByDefault(t *testing.T) {
	def := mustParse(t, `{
		"StartAt":"A",
		"States":{"A":{"Type":"Task","Resource":"task://broken","ResultPath":"$.r","End":true}}
	}`)
	exec, err := New("e1", "wf1", def, map[string]interface{}{}, nil, &erroringExecutor{}, DefaultOptions())
	require.NoError(t, err)

	out, err := exec.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, out.(map[string]interface{})["r"])
}

func TestTaskExecutorErrorFatalWhenConfigured(t *testing.T) {
	def := mustParse(t, `{
		"StartAt":"A",
		"States":{"A":{"Type":"Task","Resource":"task://broken","ResultPath":"$.r","End":true}}
	}`)
	opts := DefaultOptions()
	opts.FailOnTaskError = true
	exec, err := New("e1", "wf1", def, map[string]interface{}{}, nil, &erroringExecutor{}, opts)
	require.NoError(t, err)

	_, err = exec.Start(context.Background())
	require.Error(t, err)
}

type erroringExecutor struct{}

func (erroringExecutor) Execute(ctx context.Context, stateName string, exec *Execution, serializedInput, serializedContext []byte, traceContext map[string]string) ([]byte, error) {
	return nil, assertErr{"boom"}
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
