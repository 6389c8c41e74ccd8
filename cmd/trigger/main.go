// Command trigger runs the HTTP-facing side of the event pipeline: a
// webhook listener that turns inbound requests into events, and a
// processor that consumes those events (inline or off Kafka) and
// starts the workflows they match.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/lyzr/wkflws/common/bootstrap"
	"github.com/lyzr/wkflws/pkg/engine"
	"github.com/lyzr/wkflws/pkg/event"
	"github.com/lyzr/wkflws/pkg/executor"
	"github.com/lyzr/wkflws/pkg/intrinsic"
	"github.com/lyzr/wkflws/pkg/lookup"
	"github.com/lyzr/wkflws/pkg/trigger"
)

func main() {
	root := &cobra.Command{
		Use:   "trigger",
		Short: "Run the wkflws event listener and processor",
	}

	var listenAddr string
	startListener := &cobra.Command{
		Use:   "start-listener",
		Short: "Start the webhook HTTP listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListener(cmd.Context(), listenAddr)
		},
	}
	startListener.Flags().StringVar(&listenAddr, "addr", ":8000", "address to listen on")
	root.AddCommand(startListener)

	startProcessor := &cobra.Command{
		Use:   "start-processor",
		Short: "Start the Kafka event processor (fails if Kafka is unconfigured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessor(cmd.Context())
		},
	}
	root.AddCommand(startProcessor)

	var publishFile, publishNodeID string
	publish := &cobra.Command{
		Use:   "publish",
		Short: "Publish a JSON payload file as an event for a trigger node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), publishNodeID, publishFile)
		},
	}
	publish.Flags().StringVar(&publishFile, "file", "", "path to a JSON payload file")
	publish.Flags().StringVar(&publishNodeID, "node", "", "trigger node identifier to publish for")
	_ = publish.MarkFlagRequired("file")
	_ = publish.MarkFlagRequired("node")
	root.AddCommand(publish)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newDispatcher wires a Dispatcher whose inline path starts workflows
// through pkg/engine, selecting the Subprocess or Remote task executor
// named by Config.Executor.Backend.
func newDispatcher(components *bootstrap.Components) *trigger.Dispatcher {
	cfg := components.Config

	var taskExecutor engine.TaskExecutor
	switch cfg.Executor.Backend {
	case "remote":
		taskExecutor = executor.NewRemote(components.Redis, cfg.Executor.Timeout, components.Logger)
	default:
		taskExecutor = executor.NewSubprocess(components.Logger, os.Environ())
	}

	var producer *trigger.Producer
	if cfg.Kafka.Enabled() {
		var sasl *trigger.SASLConfig
		if cfg.Kafka.Username != "" {
			sasl = &trigger.SASLConfig{Username: cfg.Kafka.Username, Password: cfg.Kafka.Password}
		}
		producer = trigger.NewProducer(cfg.Kafka.Brokers(), sasl, components.Logger)
	}

	return &trigger.Dispatcher{
		ClientIdentifier: cfg.Service.Name,
		KafkaTopic:       cfg.Kafka.Topic,
		Producer:         producer,
		Lookup:           components.Lookup,
		Process:          processEvent,
		Start:            startWorkflowFunc(taskExecutor, components),
		Log:              components.Logger,
	}
}

// processEvent reads the trigger node identifier from the event's
// "node_id" metadata entry (set from the URL path segment by the
// webhook route, or from --node by publish), and passes the decoded
// body through as workflow input unchanged.
func processEvent(ctx context.Context, evt event.Event) (string, interface{}, error) {
	nodeID, ok := evt.Metadata["node_id"]
	if !ok || nodeID == "" {
		return "", nil, fmt.Errorf("event missing node_id metadata")
	}
	return nodeID, evt.Data, nil
}

func startWorkflowFunc(taskExecutor engine.TaskExecutor, components *bootstrap.Components) trigger.StartWorkflow {
	return func(ctx context.Context, wf lookup.WorkflowExecutionData, input interface{}) error {
		executionID := uuid.NewString()
		exec, err := engine.New(executionID, wf.WorkflowID, wf.WorkflowDefinition, input, wf.StateContext, taskExecutor, engine.DefaultOptions())
		if err != nil {
			return fmt.Errorf("construct execution: %w", err)
		}
		_, err = exec.Start(ctx)
		return err
	}
}

func runListener(ctx context.Context, addr string) error {
	components, err := bootstrap.Setup(ctx, "wkflws-trigger")
	if err != nil {
		return err
	}
	defer components.Shutdown(ctx)

	dispatcher := newDispatcher(components)

	routes := []trigger.Route{
		{
			Methods: []string{http.MethodPost},
			Path:    "/webhook/:node_id",
			Handler: func(c echo.Context) (*event.Event, error) {
				body, err := trigger.ReadBody(c)
				if err != nil {
					return nil, fmt.Errorf("read request body: %w", err)
				}
				var data interface{}
				if len(body) > 0 {
					data, err = intrinsic.ParseJSON(string(body))
					if err != nil {
						return nil, fmt.Errorf("decode request body: %w", err)
					}
				}
				evt := event.Event{
					Identifier: c.Response().Header().Get(echo.HeaderXRequestID),
					Data:       data,
				}
				evt = evt.WithMetadata("node_id", c.Param("node_id"))
				return &evt, nil
			},
		},
	}

	rl := trigger.RateLimit{
		Limiter:   trigger.NewRateLimiter(components.Redis),
		Limit:     components.Config.RateLimit.Limit,
		WindowSec: components.Config.RateLimit.WindowSecs,
	}
	webhook := trigger.NewWebhook(dispatcher, routes, rl, components.Logger)
	components.Logger.Info("starting webhook listener", "addr", addr)
	return webhook.Start(ctx, addr)
}

func runProcessor(ctx context.Context) error {
	components, err := bootstrap.Setup(ctx, "wkflws-trigger")
	if err != nil {
		return err
	}
	defer components.Shutdown(ctx)

	cfg := components.Config
	if !cfg.Kafka.Enabled() {
		components.Logger.Error("no Kafka host configured; processing happens inline in the listener")
		return fmt.Errorf("kafka host is undefined")
	}

	dispatcher := newDispatcher(components)
	// Consumed events start their workflows here; they are not republished.
	dispatcher.Producer = nil

	var sasl *trigger.SASLConfig
	if cfg.Kafka.Username != "" {
		sasl = &trigger.SASLConfig{Username: cfg.Kafka.Username, Password: cfg.Kafka.Password}
	}

	consumer := trigger.NewConsumer(cfg.Kafka.Brokers(), cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup, sasl, dispatcher.SendEvent, components.Logger)
	defer consumer.Close()

	components.Logger.Info("starting event processor", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.ConsumerGroup)
	return consumer.Run(ctx)
}

func runPublish(ctx context.Context, nodeID, filename string) error {
	components, err := bootstrap.Setup(ctx, "wkflws-trigger", bootstrap.WithoutRedis())
	if err != nil {
		return err
	}
	defer components.Shutdown(ctx)

	raw, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read payload file: %w", err)
	}
	data, err := intrinsic.ParseJSON(string(raw))
	if err != nil {
		return fmt.Errorf("decode payload file: %w", err)
	}

	dispatcher := newDispatcher(components)
	evt := event.Event{Identifier: uuid.NewString(), Data: data}.WithMetadata("node_id", nodeID)

	if err := dispatcher.SendEvent(ctx, evt); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
