// Package template evaluates ASL payload templates: JSON objects whose
// ".$" suffixed keys are resolved by JSONPath reference or by
// interpreting their value as an intrinsic-function source string.
package template

import (
	"strings"

	"github.com/lyzr/wkflws/pkg/intrinsic"
	"github.com/lyzr/wkflws/pkg/jsonpath"
	"github.com/lyzr/wkflws/pkg/wkerrors"
)

// Options controls evaluation behavior that preserves a legacy quirk:
// a ".$" value starting with "$$." is evaluated against the current
// state definition rather than a separately supplied context object.
type Options struct {
	// LegacyDollarDollarAsStateDefinition keeps the historical (almost
	// certainly buggy) behavior of resolving a top-level "$$." value
	// against StateDefinition instead of TaskContext. Defaults to true;
	// set false to use TaskContext instead.
	LegacyDollarDollarAsStateDefinition bool
}

// DefaultOptions preserves the legacy "$$." → StateDefinition behavior.
func DefaultOptions() Options {
	return Options{LegacyDollarDollarAsStateDefinition: true}
}

// Evaluate walks tmpl recursively. StateInput is the input `.$` field
// values ending in a single "$" resolve against. StateDefinition is
// the raw state object from the workflow definition, used by the
// legacy "$$." escape hatch. TaskContext is the Execution/Workflow/
// State/Task context object intrinsic expressions see as "$$…".
func Evaluate(tmpl map[string]interface{}, stateInput, stateDefinition, taskContext interface{}, opts Options) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(tmpl))
	for key, value := range tmpl {
		if strings.HasSuffix(key, ".$") {
			newKey := strings.TrimSuffix(key, ".$")
			resolved, err := resolveDollarField(value, stateInput, stateDefinition, taskContext, opts)
			if err != nil {
				return nil, err
			}
			out[newKey] = resolved
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			resolvedNested, err := Evaluate(nested, stateInput, stateDefinition, taskContext, opts)
			if err != nil {
				return nil, err
			}
			out[key] = resolvedNested
			continue
		}
		out[key] = value
	}
	return out, nil
}

func resolveDollarField(value interface{}, stateInput, stateDefinition, taskContext interface{}, opts Options) (interface{}, error) {
	str, ok := value.(string)
	if !ok {
		return nil, &wkerrors.ExecutionError{Msg: "payload template \".$\" field value must be a string"}
	}

	switch {
	case strings.HasPrefix(str, "$$"):
		root := taskContext
		if opts.LegacyDollarDollarAsStateDefinition {
			root = stateDefinition
		}
		// Legacy behavior strips exactly one leading "$" before
		// resolving, per the source implementation this preserves.
		path := strings.TrimPrefix(str, "$")
		v, err := jsonpath.Get(root, path)
		if err != nil {
			return nil, &wkerrors.ExecutionError{Msg: "payload template path resolution failed", Err: err}
		}
		return v, nil
	case strings.HasPrefix(str, "$"):
		v, err := jsonpath.Get(stateInput, str)
		if err != nil {
			// A value that scans to more than one token (e.g.
			// "$.price * 0.1") is an intrinsic expression over the
			// input rather than a single path.
			if toks, scanErr := intrinsic.Scan(str); scanErr == nil && len(toks) > 2 {
				v, err = intrinsic.Eval(str, stateInput, taskContext)
				if err != nil {
					return nil, &wkerrors.ExecutionError{Msg: "intrinsic-function evaluation failed", Err: err}
				}
				return v, nil
			}
			return nil, &wkerrors.ExecutionError{Msg: "payload template path resolution failed", Err: err}
		}
		return v, nil
	default:
		v, err := intrinsic.Eval(str, stateInput, taskContext)
		if err != nil {
			return nil, &wkerrors.ExecutionError{Msg: "intrinsic-function evaluation failed", Err: err}
		}
		return v, nil
	}
}
