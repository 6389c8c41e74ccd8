// Package engine drives a workflow definition through its states:
// input shaping, per-type execution, output shaping, and transition
// selection, per the component this repository calls the workflow
// execution driver.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lyzr/wkflws/pkg/intrinsic"
	"github.com/lyzr/wkflws/pkg/jsonpath"
	"github.com/lyzr/wkflws/pkg/template"
	"github.com/lyzr/wkflws/pkg/tracing"
	"github.com/lyzr/wkflws/pkg/wkerrors"
	"github.com/lyzr/wkflws/pkg/workflow"
)

// TaskExecutor runs a Task state's resource and returns its serialized
// JSON output. Implementations may be in-process, subprocess-based, or
// remote; see pkg/executor for concrete adapters.
type TaskExecutor interface {
	Execute(ctx context.Context, stateName string, exec *Execution, serializedInput, serializedContext []byte, traceContext map[string]string) ([]byte, error)
}

// Options tunes driver behavior along the axes the source
// implementation leaves as open questions.
type Options struct {
	// FailOnTaskError makes a StateError from the executor fatal to the
	// execution. When false (default, matching legacy behavior) the
	// driver logs the failure and continues with an empty object.
	FailOnTaskError bool
	Template        template.Options
	Logger          *slog.Logger
}

// DefaultOptions matches the legacy behavior documented in the design
// notes: swallow task errors, keep the legacy "$$." quirk.
func DefaultOptions() Options {
	return Options{
		FailOnTaskError: false,
		Template:        template.DefaultOptions(),
		Logger:          slog.Default(),
	}
}

// Execution is the unit of running state for one workflow instance.
type Execution struct {
	ExecutionID      string
	WorkflowID       string
	Definition       *workflow.Definition
	OriginalInput    interface{}
	StateContext     map[string]interface{}
	StartTime        time.Time
	CurrentStateName string // empty until Start is called

	opts     Options
	executor TaskExecutor
}

// New constructs an Execution ready to Start. The definition is cloned
// so later mutation by the driver (e.g. a future Resource rewrite)
// cannot leak back into a cached definition held by the lookup layer.
func New(executionID, workflowID string, def *workflow.Definition, originalInput interface{}, stateContext map[string]interface{}, executor TaskExecutor, opts Options) (*Execution, error) {
	clone, err := def.Clone()
	if err != nil {
		return nil, &wkerrors.ExecutionError{Msg: "failed to clone workflow definition", Err: err}
	}
	if stateContext == nil {
		stateContext = map[string]interface{}{}
	}
	return &Execution{
		ExecutionID:   executionID,
		WorkflowID:    workflowID,
		Definition:    clone,
		OriginalInput: originalInput,
		StateContext:  stateContext,
		StartTime:     time.Now(),
		opts:          opts,
		executor:      executor,
	}, nil
}

// Start begins execution at the definition's StartAt state and runs to
// completion (an End state, or a fatal error).
func (e *Execution) Start(ctx context.Context) (interface{}, error) {
	return e.executeState(ctx, e.Definition.StartAt, e.OriginalInput)
}

// executeState runs one state and recurses into its transition target.
func (e *Execution) executeState(ctx context.Context, name string, input interface{}) (interface{}, error) {
	st, ok := e.Definition.States[name]
	if !ok {
		return nil, &wkerrors.StateNotFound{Name: name}
	}
	e.CurrentStateName = name
	enteredAt := time.Now()

	effectiveInput, err := e.processInput(st, input)
	if err != nil {
		return nil, err
	}

	if st.Type == workflow.Choice {
		next, err := workflow.SelectNext(st, effectiveInput, e.buildTaskContext(name, enteredAt))
		if err != nil {
			return nil, err
		}
		if next == "" {
			return nil, &wkerrors.ExecutionError{State: name, Msg: "no Choice rule matched and no Default given"}
		}
		return e.executeState(ctx, next, effectiveInput)
	}

	rawOutput, err := e.runState(ctx, st, name, effectiveInput, enteredAt)
	if err != nil {
		return nil, err
	}

	finalOutput, err := e.processOutput(st, name, input, effectiveInput, rawOutput)
	if err != nil {
		return nil, err
	}

	if st.End {
		return finalOutput, nil
	}
	if st.Next == "" {
		return nil, &wkerrors.ExecutionError{State: name, Msg: "state is neither End nor has a Next"}
	}
	return e.executeState(ctx, st.Next, finalOutput)
}

// processInput applies InputPath (currently a passthrough, matching
// the "TODO" behavior documented upstream) and evaluates Parameters as
// a payload template against the raw input.
func (e *Execution) processInput(st *workflow.State, input interface{}) (interface{}, error) {
	effective := input
	// InputPath: passthrough. See design notes: not yet implemented
	// upstream either; kept as an explicit no-op rather than silently
	// dropped so a future InputPath implementation has one call site.
	_ = st.InputPath

	if st.Parameters == nil {
		return effective, nil
	}
	stateDef, err := stateToMap(st)
	if err != nil {
		return nil, &wkerrors.ExecutionError{Msg: "failed to render state definition for template evaluation", Err: err}
	}
	out, err := template.Evaluate(st.Parameters, effective, stateDef, nil, e.opts.Template)
	if err != nil {
		return nil, &wkerrors.ExecutionError{Msg: "Parameters evaluation failed", Err: err}
	}
	return out, nil
}

// runState executes a state per its Type, returning its raw (pre
// output-shaping) result. Choice states are handled by the caller
// before reaching here.
func (e *Execution) runState(ctx context.Context, st *workflow.State, name string, effectiveInput interface{}, enteredAt time.Time) (interface{}, error) {
	switch st.Type {
	case workflow.Task:
		return e.runTask(ctx, st, name, effectiveInput, enteredAt)
	case workflow.Pass:
		return e.runPass(st, effectiveInput)
	default:
		return nil, &wkerrors.ExecutionError{State: name, Msg: "unsupported state Type: " + string(st.Type)}
	}
}

func (e *Execution) runTask(ctx context.Context, st *workflow.State, name string, effectiveInput interface{}, enteredAt time.Time) (interface{}, error) {
	serializedInput, err := intrinsic.CanonicalJSON(effectiveInput)
	if err != nil {
		return nil, &wkerrors.ExecutionError{State: name, Msg: "failed to serialize task input", Err: err}
	}
	taskCtx := e.buildTaskContext(name, enteredAt)
	serializedCtx, err := json.Marshal(taskCtx)
	if err != nil {
		return nil, &wkerrors.ExecutionError{State: name, Msg: "failed to serialize task context", Err: err}
	}

	traceContext := tracing.InjectMetadata(ctx, nil)
	if len(traceContext) == 0 {
		// Tracing is disabled (or no span is active): pass no trace context.
		traceContext = nil
	}
	raw, execErr := e.executor.Execute(ctx, name, e, serializedInput, serializedCtx, traceContext)
	if execErr != nil {
		stateErr := &wkerrors.StateError{State: name, Msg: execErr.Error()}
		if e.opts.FailOnTaskError {
			return nil, stateErr
		}
		if e.opts.Logger != nil {
			e.opts.Logger.Warn("task executor failed, continuing with empty output", "state", name, "error", execErr)
		}
		return map[string]interface{}{}, nil
	}

	out, err := intrinsic.ParseJSON(string(raw))
	if err != nil {
		stateErr := &wkerrors.StateError{State: name, Msg: "executor output is not valid JSON"}
		if e.opts.FailOnTaskError {
			return nil, stateErr
		}
		if e.opts.Logger != nil {
			e.opts.Logger.Warn("task executor output did not parse as JSON, continuing with empty output", "state", name, "error", err)
		}
		return map[string]interface{}{}, nil
	}
	return out, nil
}

func (e *Execution) runPass(st *workflow.State, effectiveInput interface{}) (interface{}, error) {
	if st.Result == nil {
		return effectiveInput, nil
	}
	tmpl, ok := st.Result.(map[string]interface{})
	if !ok {
		// Result is a literal (not a template object): pass it through
		// unshaped.
		return st.Result, nil
	}
	stateDef, err := stateToMap(st)
	if err != nil {
		return nil, &wkerrors.ExecutionError{Msg: "failed to render state definition for template evaluation", Err: err}
	}
	return template.Evaluate(tmpl, effectiveInput, stateDef, nil, e.opts.Template)
}

// processOutput applies ResultSelector, ResultPath, and OutputPath in
// that order. Not invoked for Choice states, which transition directly.
func (e *Execution) processOutput(st *workflow.State, name string, originalInput, effectiveInput, rawOutput interface{}) (interface{}, error) {
	output := rawOutput

	if st.ResultSelector != nil {
		selected, err := e.applyResultSelector(st, effectiveInput, output)
		if err != nil {
			return nil, err
		}
		output = selected
	}

	if st.ResultPath != nil {
		merged, err := jsonpath.Set(originalInput, output, *st.ResultPath, true)
		if err != nil {
			return nil, &wkerrors.ExecutionError{State: name, Msg: "failed to apply ResultPath", Err: err}
		}
		output = merged
	}

	if st.OutputPath != nil {
		v, err := jsonpath.Get(output, *st.OutputPath)
		if err != nil {
			return nil, &wkerrors.ExecutionError{State: name, Msg: "failed to apply OutputPath", Err: err}
		}
		output = v
	}

	return output, nil
}

// applyResultSelector evaluates ResultSelector as a payload template
// when the output is an object; the legacy escape hatch applies it as
// a raw JSONPath string against the output for non-object results.
func (e *Execution) applyResultSelector(st *workflow.State, effectiveInput, output interface{}) (interface{}, error) {
	if _, isObject := output.(map[string]interface{}); isObject {
		stateDef, err := stateToMap(st)
		if err != nil {
			return nil, &wkerrors.ExecutionError{Msg: "failed to render state definition for template evaluation", Err: err}
		}
		return template.Evaluate(st.ResultSelector, effectiveInput, stateDef, nil, e.opts.Template)
	}

	// Legacy escape hatch: ResultSelector carries a single "legacy_path"
	// style string field, a gjson path evaluated against the raw output
	// rather than a payload template. Predates the object-keyed form and
	// survives for non-object (scalar/array) task results it can't express.
	for _, v := range st.ResultSelector {
		s, ok := v.(string)
		if !ok {
			continue
		}
		raw, err := json.Marshal(output)
		if err != nil {
			return nil, &wkerrors.ExecutionError{Msg: "failed to marshal output for legacy ResultSelector", Err: err}
		}
		result := gjson.GetBytes(raw, s)
		if !result.Exists() {
			return nil, &wkerrors.ExecutionError{Msg: "legacy ResultSelector path not found: " + s}
		}
		return result.Value(), nil
	}
	return output, nil
}

// stateToMap re-encodes st as a generic map for the "$$." legacy
// template escape hatch. Decoded with json.Number enabled and
// normalized back to decimal.Decimal so a number embedded in the
// state's own Parameters/Result survives this round trip the same way
// it does everywhere else, instead of reverting to float64.
func stateToMap(st *workflow.State) (map[string]interface{}, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return intrinsic.NormalizeDecoded(m).(map[string]interface{}), nil
}
