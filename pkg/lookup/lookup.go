// Package lookup defines the workflow lookup contract: given the
// identifier of the state a trigger node is bound to and the event
// that fired, return the workflow executions it should start.
package lookup

import (
	"context"

	"github.com/lyzr/wkflws/pkg/event"
	"github.com/lyzr/wkflws/pkg/workflow"
)

// WorkflowExecutionData is one workflow bound to the firing event,
// ready to be handed to engine.New.
type WorkflowExecutionData struct {
	WorkflowID         string
	WorkflowDefinition *workflow.Definition
	StateContext       map[string]interface{}
}

// Lookup resolves a trigger-node identifier and an event to zero or
// more workflow executions. Implementations may filter by event shape.
type Lookup interface {
	GetWorkflows(ctx context.Context, initialNodeID string, evt event.Event) ([]WorkflowExecutionData, error)
}
