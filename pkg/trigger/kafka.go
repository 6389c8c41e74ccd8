package trigger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/lyzr/wkflws/common/logger"
	"github.com/lyzr/wkflws/pkg/event"
)

// Producer publishes events onto the Kafka event bus that decouples a
// listener (e.g. the webhook HTTP front end) from its processor.
type Producer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewProducer prepares a writer for brokers; the topic is chosen per
// message in Produce. sasl may be nil to connect without authentication.
func NewProducer(brokers []string, sasl *SASLConfig, log *logger.Logger) *Producer {
	transport := &kafka.Transport{}
	if sasl != nil {
		transport.SASL = sasl.mechanism()
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:      kafka.TCP(brokers...),
			Balancer:  &kafka.LeastBytes{},
			Transport: transport,
		},
		log: log,
	}
}

// Produce serializes evt as JSON and publishes it to topic, keyed by
// key so related events land on the same partition.
func (p *Producer) Produce(ctx context.Context, topic, key string, evt event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish event to topic %s: %w", topic, err)
	}
	if p.log != nil {
		p.log.Debug("published event", "topic", topic, "key", key)
	}
	return nil
}

// Close flushes and disconnects the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads events back off the Kafka event bus and hands each to
// process, which resolves and starts the matching workflows.
type Consumer struct {
	reader  *kafka.Reader
	process func(ctx context.Context, evt event.Event) error
	log     *logger.Logger
}

// NewConsumer subscribes client to topic under consumerGroup. process
// is invoked once per message; it should resolve and start workflows
// (mirroring Dispatcher.processInline) rather than publish again.
func NewConsumer(brokers []string, topic, consumerGroup string, sasl *SASLConfig, process func(context.Context, event.Event) error, log *logger.Logger) *Consumer {
	dialer := &kafka.Dialer{}
	if sasl != nil {
		dialer.SASLMechanism = sasl.mechanism()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: consumerGroup,
			Dialer:  dialer,
		}),
		process: process,
		log:     log,
	}
}

// Run polls until ctx is canceled, decoding each message as an event
// and invoking process. A decode failure logs and skips the message
// rather than aborting the loop.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		evt, err := event.Decode(msg.Value)
		if err != nil {
			if c.log != nil {
				c.log.Error("discarding malformed event", "topic", msg.Topic, "error", err)
			}
			continue
		}
		if evt.Identifier == "" && len(msg.Key) > 0 {
			evt.Identifier = string(msg.Key)
		}

		if err := c.process(ctx, evt); err != nil && c.log != nil {
			c.log.Error("event processing failed", "topic", msg.Topic, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset: %w", err)
		}
	}
}

// Close disconnects the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// SASLConfig carries PLAIN SASL credentials for a Kafka connection.
type SASLConfig struct {
	Username string
	Password string
}

func (s *SASLConfig) mechanism() plain.Mechanism {
	return plain.Mechanism{Username: s.Username, Password: s.Password}
}
