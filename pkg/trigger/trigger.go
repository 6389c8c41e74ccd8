// Package trigger dispatches incoming events to workflow executions,
// either inline in this process or through a Kafka event bus, and
// provides the webhook listener and rate limiter used to front them.
package trigger

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lyzr/wkflws/common/logger"
	"github.com/lyzr/wkflws/pkg/event"
	"github.com/lyzr/wkflws/pkg/lookup"
	"github.com/lyzr/wkflws/pkg/tracing"
)

// ProcessFunc inspects an incoming event and decides which trigger
// node identifier should start a workflow, along with the input to
// hand that workflow. An empty identifier means "do nothing".
type ProcessFunc func(ctx context.Context, evt event.Event) (initialNodeID string, workflowInput interface{}, err error)

// StartWorkflow is invoked once per matching workflow definition. The
// dispatcher does not construct engine.Execution values itself so that
// pkg/trigger never needs to import pkg/engine.
type StartWorkflow func(ctx context.Context, wf lookup.WorkflowExecutionData, input interface{}) error

// Dispatcher routes events either to a Kafka topic (decoupled
// listener/processor across process boundaries) or, when no topic is
// configured, directly to matching workflows in this process.
type Dispatcher struct {
	ClientIdentifier string
	KafkaTopic       string
	Producer         *Producer // nil (or an empty KafkaTopic) disables Kafka; events are processed inline.
	Lookup           lookup.Lookup
	Process          ProcessFunc
	Start            StartWorkflow
	Log              *logger.Logger
}

// SendEvent publishes evt to the event bus, or — when Kafka is not
// configured — resolves and starts matching workflows inline.
func (d *Dispatcher) SendEvent(ctx context.Context, evt event.Event) error {
	tracer := otel.Tracer("wkflws/trigger")
	ctx, span := tracer.Start(ctx, "trigger.SendEvent")
	defer span.End()

	evt.Metadata = tracing.InjectMetadata(ctx, evt.Metadata)

	if d.Producer != nil && d.KafkaTopic != "" {
		span.SetAttributes(attribute.String("event_process.method", "kafka"))
		key := evt.Identifier
		if key == "" {
			key = "unkeyed"
		}
		return d.Producer.Produce(ctx, d.KafkaTopic, key, evt)
	}

	span.SetAttributes(attribute.String("event_process.method", "inline"))
	return d.processInline(ctx, evt)
}

func (d *Dispatcher) processInline(ctx context.Context, evt event.Event) error {
	initialNodeID, workflowInput, err := d.Process(ctx, evt)
	if err != nil {
		return fmt.Errorf("process event: %w", err)
	}
	if initialNodeID == "" {
		return nil
	}

	workflows, err := d.Lookup.GetWorkflows(ctx, initialNodeID, evt)
	if err != nil {
		return fmt.Errorf("lookup workflows for %s: %w", initialNodeID, err)
	}
	if len(workflows) == 0 {
		if d.Log != nil {
			d.Log.Warn("no workflows matched trigger node", "node_id", initialNodeID)
		}
		return nil
	}

	for _, wf := range workflows {
		wf := wf
		go func() {
			spanCtx := trace.ContextWithSpan(context.Background(), trace.SpanFromContext(ctx))
			if err := d.Start(spanCtx, wf, workflowInput); err != nil && d.Log != nil {
				d.Log.Error("workflow execution failed", "workflow_id", wf.WorkflowID, "error", err)
			}
		}()
	}
	return nil
}
