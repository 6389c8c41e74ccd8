package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/wkflws/pkg/engine"
	"github.com/lyzr/wkflws/pkg/workflow"
)

func newTestExecution(t *testing.T, resource string) *engine.Execution {
	t.Helper()
	def, err := workflow.ParseDefinition([]byte(`{
		"StartAt":"A",
		"States":{"A":{"Type":"Task","Resource":"` + resource + `","End":true}}
	}`))
	require.NoError(t, err)

	exec, err := engine.New("e1", "wf1", def, map[string]interface{}{}, nil, stubNoop{}, engine.DefaultOptions())
	require.NoError(t, err)
	return exec
}

type stubNoop struct{}

func (stubNoop) Execute(ctx context.Context, stateName string, ex *engine.Execution, in, c []byte, tc map[string]string) ([]byte, error) {
	return []byte("{}"), nil
}

func TestSubprocessExecuteSuccess(t *testing.T) {
	ex := newTestExecution(t, "/bin/echo")
	sp := NewSubprocess(nil, nil)

	out, err := sp.Execute(context.Background(), "A", ex, []byte(`{"x":1}`), []byte(`{}`), nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), `{"x":1}`)
}

func TestSubprocessExecuteNonZeroExit(t *testing.T) {
	ex := newTestExecution(t, "/bin/false")
	sp := NewSubprocess(nil, nil)

	_, err := sp.Execute(context.Background(), "A", ex, []byte(`{}`), []byte(`{}`), nil)
	require.Error(t, err)
}

func TestSubprocessExecuteMissingResource(t *testing.T) {
	def, err := workflow.ParseDefinition([]byte(`{"StartAt":"A","States":{"A":{"Type":"Pass","End":true}}}`))
	require.NoError(t, err)
	exec, err := engine.New("e1", "wf1", def, map[string]interface{}{}, nil, stubNoop{}, engine.DefaultOptions())
	require.NoError(t, err)

	sp := NewSubprocess(nil, nil)
	_, err = sp.Execute(context.Background(), "A", exec, []byte(`{}`), []byte(`{}`), nil)
	require.Error(t, err)
}
