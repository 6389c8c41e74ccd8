package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/wkflws/pkg/event"
	"github.com/lyzr/wkflws/pkg/lookup"
)

type stubLookup struct {
	workflows []lookup.WorkflowExecutionData
	err       error
}

func (s *stubLookup) GetWorkflows(ctx context.Context, initialNodeID string, evt event.Event) ([]lookup.WorkflowExecutionData, error) {
	return s.workflows, s.err
}

func TestSendEventInlineStartsMatchingWorkflows(t *testing.T) {
	var mu sync.Mutex
	started := []string{}

	d := &Dispatcher{
		Lookup: &stubLookup{workflows: []lookup.WorkflowExecutionData{
			{WorkflowID: "wf-1"}, {WorkflowID: "wf-2"},
		}},
		Process: func(ctx context.Context, evt event.Event) (string, interface{}, error) {
			return "trigger.node", evt.Data, nil
		},
		Start: func(ctx context.Context, wf lookup.WorkflowExecutionData, input interface{}) error {
			mu.Lock()
			started = append(started, wf.WorkflowID)
			mu.Unlock()
			return nil
		},
	}

	require.NoError(t, d.SendEvent(context.Background(), event.Event{Identifier: "evt-1", Data: map[string]interface{}{"a": 1}}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(started) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.ElementsMatch(t, []string{"wf-1", "wf-2"}, started)
	mu.Unlock()
}

func TestSendEventInlineNoMatchDoesNothing(t *testing.T) {
	d := &Dispatcher{
		Lookup: &stubLookup{workflows: nil},
		Process: func(ctx context.Context, evt event.Event) (string, interface{}, error) {
			return "trigger.node", nil, nil
		},
		Start: func(ctx context.Context, wf lookup.WorkflowExecutionData, input interface{}) error {
			t.Fatal("Start should not be called when no workflows match")
			return nil
		},
	}

	require.NoError(t, d.SendEvent(context.Background(), event.Event{Identifier: "evt-1"}))
}

func TestSendEventProcessFuncErrorPropagates(t *testing.T) {
	d := &Dispatcher{
		Lookup: &stubLookup{},
		Process: func(ctx context.Context, evt event.Event) (string, interface{}, error) {
			return "", nil, errors.New("boom")
		},
		Start: func(ctx context.Context, wf lookup.WorkflowExecutionData, input interface{}) error {
			t.Fatal("Start should not be called")
			return nil
		},
	}

	err := d.SendEvent(context.Background(), event.Event{})
	require.Error(t, err)
}

func TestSendEventEmptyNodeIDSkipsLookup(t *testing.T) {
	d := &Dispatcher{
		Lookup: &stubLookup{err: errors.New("should not be called")},
		Process: func(ctx context.Context, evt event.Event) (string, interface{}, error) {
			return "", nil, nil
		},
		Start: func(ctx context.Context, wf lookup.WorkflowExecutionData, input interface{}) error {
			t.Fatal("Start should not be called")
			return nil
		},
	}

	require.NoError(t, d.SendEvent(context.Background(), event.Event{}))
}
