package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lyzr/wkflws/common/logger"
	"github.com/lyzr/wkflws/pkg/engine"
	"github.com/lyzr/wkflws/pkg/wkerrors"
)

// jobQueueKey is the single list remote workers BLPop jobs from, shared
// by every resource; completionKeyPrefix namespaces the per-job reply list.
const (
	jobQueueKey          = "wkflws:task_jobs"
	completionKeyPrefix  = "wkflws:task_completions:"
	completionPollWindow = 2 * time.Second
)

// remoteJob is the envelope pushed onto the job queue.
type remoteJob struct {
	JobID             string            `json:"job_id"`
	StateName         string            `json:"state_name"`
	Resource          string            `json:"resource"`
	SerializedInput   json.RawMessage   `json:"input"`
	SerializedContext json.RawMessage   `json:"context"`
	TraceContext      map[string]string `json:"trace_context,omitempty"`
}

// remoteCompletion is the envelope a worker pushes back, mirroring the
// teacher's completion-signal shape (version, status, result/metadata).
type remoteCompletion struct {
	Version string          `json:"version"`
	JobID   string          `json:"job_id"`
	Status  string          `json:"status"` // "completed" or "failed"
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Remote dispatches Task resources to out-of-process workers over a
// Redis list pair: push the job, block-pop the completion.
type Remote struct {
	redis   *redis.Client
	timeout time.Duration
	log     *logger.Logger
}

// NewRemote constructs a Redis-backed remote executor.
func NewRemote(client *redis.Client, timeout time.Duration, log *logger.Logger) *Remote {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{redis: client, timeout: timeout, log: log}
}

var _ engine.TaskExecutor = (*Remote)(nil)

// Execute pushes a job envelope and waits on the per-job completion
// list until the job's result arrives or the timeout elapses.
func (r *Remote) Execute(ctx context.Context, stateName string, ex *engine.Execution, serializedInput, serializedContext []byte, traceContext map[string]string) ([]byte, error) {
	st, ok := ex.Definition.States[stateName]
	if !ok || st.Resource == "" {
		return nil, &wkerrors.StateError{State: stateName, Msg: "state has no Resource to invoke"}
	}

	jobID := uuid.NewString()
	job := remoteJob{
		JobID:             jobID,
		StateName:         stateName,
		Resource:          st.Resource,
		SerializedInput:   json.RawMessage(serializedInput),
		SerializedContext: json.RawMessage(serializedContext),
		TraceContext:      traceContext,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, &wkerrors.StateError{State: stateName, Msg: "failed to serialize remote job"}
	}

	if err := r.redis.RPush(ctx, jobQueueKey, payload).Err(); err != nil {
		return nil, &wkerrors.StateError{State: stateName, Msg: fmt.Sprintf("failed to enqueue remote job: %v", err)}
	}

	completionKey := completionKeyPrefix + jobID
	deadline := time.Now().Add(r.timeout)

	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		window := completionPollWindow
		if remaining < window {
			window = remaining
		}
		result, err := r.redis.BLPop(ctx, window, completionKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, &wkerrors.StateError{State: stateName, Msg: fmt.Sprintf("waiting for remote completion: %v", err)}
		}
		if len(result) < 2 {
			continue
		}
		return r.decodeCompletion(stateName, result[1])
	}

	return nil, &wkerrors.StateError{State: stateName, Msg: "task exceeded timeout waiting for remote completion"}
}

func (r *Remote) decodeCompletion(stateName, raw string) ([]byte, error) {
	var completion remoteCompletion
	if err := json.Unmarshal([]byte(raw), &completion); err != nil {
		return nil, &wkerrors.StateError{State: stateName, Msg: "remote completion is not valid JSON"}
	}
	if completion.Status != "completed" {
		if r.log != nil {
			r.log.Warn("remote task failed", "state", stateName, "job_id", completion.JobID, "error", completion.Error)
		}
		return nil, &wkerrors.StateError{State: stateName, Msg: completion.Error}
	}
	if len(completion.Result) == 0 {
		return []byte("{}"), nil
	}
	return completion.Result, nil
}
