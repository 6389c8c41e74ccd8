package engine

import "time"

// buildTaskContext assembles the Execution/Workflow/State/Task context
// object handed to a task executor alongside its input.
func (e *Execution) buildTaskContext(stateName string, enteredAt time.Time) map[string]interface{} {
	workflowName := ""
	if e.Definition != nil {
		workflowName = e.Definition.Comment
	}

	taskNamespace := map[string]interface{}{}
	if sc, ok := e.StateContext[stateName]; ok && sc != nil {
		if m, ok := sc.(map[string]interface{}); ok {
			taskNamespace = m
		} else {
			taskNamespace = map[string]interface{}{"value": sc}
		}
	}

	return map[string]interface{}{
		"Execution": map[string]interface{}{
			"Id":        e.ExecutionID,
			"Input":     e.OriginalInput,
			"StartTime": e.StartTime.Format(time.RFC3339Nano),
		},
		"Workflow": map[string]interface{}{
			"Id":   e.WorkflowID,
			"Name": workflowName,
		},
		"State": map[string]interface{}{
			"Name":        stateName,
			"EnteredTime": enteredAt.Format(time.RFC3339Nano),
			"RetryCount":  0,
		},
		"Task": taskNamespace,
	}
}
