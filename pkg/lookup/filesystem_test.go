package lookup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/wkflws/pkg/event"
)

func TestFilesystemLookupMatchesByStartResource(t *testing.T) {
	dir := t.TempDir()
	asl := `{
		"StartAt":"A",
		"States":{
			"A":{"Type":"Task","Resource":"wkflws_slack.on_message","Next":"B"},
			"B":{"Type":"Pass","End":true}
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wf.asl"), []byte(asl), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.json"), []byte(`{"wkflws_slack":{"token":"xoxb"}}`), 0o644))

	l, err := NewFilesystemLookup(dir, nil)
	require.NoError(t, err)

	matches, err := l.GetWorkflows(context.Background(), "wkflws_slack.on_message", event.Event{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "A", matches[0].WorkflowDefinition.StartAt)
	assert.Equal(t, map[string]interface{}{"token": "xoxb"}, matches[0].StateContext["A"])
}

func TestFilesystemLookupNoMatch(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFilesystemLookup(dir, nil)
	require.NoError(t, err)

	matches, err := l.GetWorkflows(context.Background(), "nothing.here", event.Event{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}
