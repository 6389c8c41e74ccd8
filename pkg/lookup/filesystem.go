package lookup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lyzr/wkflws/common/logger"
	"github.com/lyzr/wkflws/pkg/event"
	"github.com/lyzr/wkflws/pkg/workflow"
)

type fsWorkflow struct {
	identifier string
	definition *workflow.Definition
}

// FilesystemLookup walks a directory for ".asl" workflow definitions
// at construction time and indexes them by the Resource of their
// StartAt state, so an incoming trigger node identifier resolves
// directly to the workflows it should start. Credentials are loaded
// once from a sibling credentials.json keyed by node identifier
// (the Resource's dotted-path prefix before the first ".").
//
// This mirrors a quick way to exercise the engine locally; it is not a
// production-grade secret store.
type FilesystemLookup struct {
	mu          sync.RWMutex
	byTrigger   map[string][]fsWorkflow
	credentials map[string]map[string]interface{}
	log         *logger.Logger
}

// NewFilesystemLookup walks root for *.asl files and loads
// root/credentials.json (if present; its absence is not an error).
func NewFilesystemLookup(root string, log *logger.Logger) (*FilesystemLookup, error) {
	l := &FilesystemLookup{
		byTrigger:   make(map[string][]fsWorkflow),
		credentials: make(map[string]map[string]interface{}),
		log:         log,
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".asl" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			if log != nil {
				log.Warn("failed to read workflow file", "path", path, "error", err)
			}
			return nil
		}
		def, err := workflow.ParseDefinition(raw)
		if err != nil {
			if log != nil {
				log.Error("failed to parse workflow file", "path", path, "error", err)
			}
			return nil
		}
		start, ok := def.States[def.StartAt]
		if !ok || start.Resource == "" {
			if log != nil {
				log.Warn("workflow has no Resource on its StartAt state, skipping", "path", path)
			}
			return nil
		}
		sum := md5.Sum([]byte(path))
		l.byTrigger[start.Resource] = append(l.byTrigger[start.Resource], fsWorkflow{
			identifier: hex.EncodeToString(sum[:]),
			definition: def,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	credPath := filepath.Join(root, "credentials.json")
	if raw, err := os.ReadFile(credPath); err == nil {
		if jsonErr := json.Unmarshal(raw, &l.credentials); jsonErr != nil {
			return nil, jsonErr
		}
	}

	return l, nil
}

// GetWorkflows returns every workflow whose StartAt state's Resource
// matches initialNodeID.
func (l *FilesystemLookup) GetWorkflows(ctx context.Context, initialNodeID string, _ event.Event) ([]WorkflowExecutionData, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matches := l.byTrigger[initialNodeID]
	if len(matches) == 0 {
		return nil, nil
	}

	out := make([]WorkflowExecutionData, 0, len(matches))
	for _, wf := range matches {
		out = append(out, WorkflowExecutionData{
			WorkflowID:         wf.identifier,
			WorkflowDefinition: wf.definition,
			StateContext:       l.stateContext(wf.definition),
		})
	}
	return out, nil
}

func (l *FilesystemLookup) stateContext(def *workflow.Definition) map[string]interface{} {
	ctx := make(map[string]interface{}, len(def.States))
	for name, st := range def.States {
		if st.Resource == "" {
			continue
		}
		nodeID := strings.SplitN(st.Resource, ".", 2)[0]
		if creds, ok := l.credentials[nodeID]; ok {
			ctx[name] = creds
		} else {
			ctx[name] = map[string]interface{}{}
		}
	}
	return ctx
}
