package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/wkflws/pkg/event"
	"github.com/lyzr/wkflws/pkg/workflow"
)

type fakeCacheStore struct {
	data map[string]string
	gets int
	sets int
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{data: make(map[string]string)}
}

func (f *fakeCacheStore) Get(ctx context.Context, key string) (string, error) {
	f.gets++
	v, ok := f.data[key]
	if !ok {
		return "", fmt.Errorf("miss")
	}
	return v, nil
}

func (f *fakeCacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.sets++
	f.data[key] = value
	return nil
}

type countingLookup struct {
	calls int
	data  []WorkflowExecutionData
}

func (c *countingLookup) GetWorkflows(ctx context.Context, initialNodeID string, evt event.Event) ([]WorkflowExecutionData, error) {
	c.calls++
	return c.data, nil
}

func TestCachedServesSecondCallFromCache(t *testing.T) {
	inner := &countingLookup{data: []WorkflowExecutionData{
		{WorkflowID: "wf-1", WorkflowDefinition: &workflow.Definition{StartAt: "A", States: map[string]*workflow.State{"A": {Type: workflow.Pass, End: true}}}},
	}}
	store := newFakeCacheStore()
	cached := NewCached(inner, store, time.Minute)

	first, err := cached.GetWorkflows(context.Background(), "node.a", event.Event{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, store.sets)

	second, err := cached.GetWorkflows(context.Background(), "node.a", event.Event{})
	require.NoError(t, err)
	assert.Equal(t, "wf-1", second[0].WorkflowID)
	assert.Equal(t, 1, inner.calls, "second call should be served from cache, not inner")
}

func TestCachedFallsThroughOnMiss(t *testing.T) {
	inner := &countingLookup{data: nil}
	store := newFakeCacheStore()
	cached := NewCached(inner, store, time.Minute)

	out, err := cached.GetWorkflows(context.Background(), "node.b", event.Event{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedRoundTripsDefinition(t *testing.T) {
	def := &workflow.Definition{StartAt: "A", States: map[string]*workflow.State{"A": {Type: workflow.Pass, End: true}}}
	raw, err := json.Marshal([]WorkflowExecutionData{{WorkflowID: "wf-2", WorkflowDefinition: def}})
	require.NoError(t, err)

	store := newFakeCacheStore()
	store.data["wkflws:lookup:node.c"] = string(raw)
	inner := &countingLookup{}
	cached := NewCached(inner, store, time.Minute)

	out, err := cached.GetWorkflows(context.Background(), "node.c", event.Event{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "wf-2", out[0].WorkflowID)
	assert.Equal(t, 0, inner.calls, "pre-populated cache entry should short-circuit inner")
}
