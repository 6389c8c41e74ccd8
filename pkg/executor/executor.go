// Package executor adapts the workflow engine's TaskExecutor contract
// to concrete backends: an external subprocess per Task invocation, or
// a Redis-queued remote worker using a completion-signal handshake.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/lyzr/wkflws/common/logger"
	"github.com/lyzr/wkflws/pkg/engine"
	"github.com/lyzr/wkflws/pkg/wkerrors"
)

// DefaultTimeout is the per-task timeout the executor contract
// recommends enforcing when the caller does not override it.
const DefaultTimeout = 5 * time.Minute

// Subprocess invokes a Task's Resource as an external binary. Resource
// is split on whitespace into argv tokens; the executor appends the
// serialized input, serialized context, and (if tracing is enabled) a
// serialized trace-context map as the remaining positional arguments.
type Subprocess struct {
	Timeout time.Duration
	Env     []string // environment passed to the child as given, unfiltered; when empty the child inherits this process's environment
	Log     *logger.Logger
}

// NewSubprocess constructs a Subprocess executor with the recommended
// default timeout.
func NewSubprocess(log *logger.Logger, env []string) *Subprocess {
	return &Subprocess{Timeout: DefaultTimeout, Env: env, Log: log}
}

var _ engine.TaskExecutor = (*Subprocess)(nil)

// Execute runs the resource binary and returns its stdout as the
// serialized output. A non-zero exit surfaces as StateError carrying
// captured stderr. On timeout the child is killed and a StateError is
// still returned rather than a bare context error.
func (s *Subprocess) Execute(ctx context.Context, stateName string, ex *engine.Execution, serializedInput, serializedContext []byte, traceContext map[string]string) ([]byte, error) {
	st, ok := ex.Definition.States[stateName]
	if !ok || st.Resource == "" {
		return nil, &wkerrors.StateError{State: stateName, Msg: "state has no Resource to invoke"}
	}
	tokens := strings.Fields(st.Resource)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, tokens[1:]...)
	args = append(args, string(serializedInput), string(serializedContext))
	if traceContext != nil {
		tc, err := json.Marshal(traceContext)
		if err != nil {
			return nil, &wkerrors.StateError{State: stateName, Msg: "failed to serialize trace context"}
		}
		args = append(args, string(tc))
	}

	cmd := exec.CommandContext(runCtx, tokens[0], args...)
	if len(s.Env) > 0 {
		cmd.Env = s.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if s.Log != nil {
			s.Log.Warn("task resource exited non-zero", "state", stateName, "resource", st.Resource, "error", err)
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, &wkerrors.StateError{State: stateName, Stderr: stderr.String(), Msg: "task exceeded timeout"}
		}
		return nil, &wkerrors.StateError{State: stateName, Stderr: stderr.String(), Msg: err.Error()}
	}

	return stdout.Bytes(), nil
}
