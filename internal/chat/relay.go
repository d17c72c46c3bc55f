package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/porterhq/porter-core/internal/event"
	"github.com/porterhq/porter-core/internal/infrastructure/mqtt"
)

// Broker is the interface the relay needs from the MQTT client.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Bus is the interface the relay needs from the event bus.
type Bus interface {
	Enqueue(ev event.Event)
}

// Logger is the minimal logging interface the relay needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Relay implements Notifier over MQTT and feeds operator commands into
// the bus.
type Relay struct {
	broker Broker
	bus    Bus
	qos    byte
	logger Logger
	topics mqtt.Topics
}

// NewRelay creates a chat relay.
func NewRelay(broker Broker, bus Bus, qos byte, logger Logger) *Relay {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Relay{
		broker: broker,
		bus:    bus,
		qos:    qos,
		logger: logger,
	}
}

// Start subscribes to the inbound command topic. Call once after the
// broker connection is up.
func (r *Relay) Start() error {
	if err := r.broker.Subscribe(r.topics.ChatCommand(), r.qos, r.handleCommand); err != nil {
		return fmt.Errorf("subscribing to chat commands: %w", err)
	}
	r.logger.Info("chat relay started", "command_topic", r.topics.ChatCommand())
	return nil
}

// commandFrame mirrors the device wire frame shape so operators and
// devices speak the same dialect.
type commandFrame struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
}

// handleCommand turns one inbound command message into a chat-origin bus
// event. Malformed or unknown commands are logged and dropped; the
// subscription stays healthy.
func (r *Relay) handleCommand(topic string, payload []byte) error {
	var frame commandFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		r.logger.Warn("malformed chat command dropped", "topic", topic, "error", err)
		return nil
	}

	t, err := event.ParseType(frame.EventType)
	if err != nil {
		r.logger.Warn("unknown chat command dropped", "event_type", frame.EventType)
		return nil
	}

	r.bus.Enqueue(event.New(t, event.OriginChat, frame.Data))
	return nil
}

// Notify sends a plain-text notification to the operator.
func (r *Relay) Notify(_ context.Context, text string) error {
	return r.publish(r.topics.ChatNotification(), map[string]any{
		"text": text,
	})
}

// SendImages forwards saved image paths to the operator.
func (r *Relay) SendImages(_ context.Context, paths []string) error {
	return r.publish(r.topics.ChatImage(), map[string]any{
		"paths": paths,
	})
}

// PromptAccess asks the operator for an access decision.
func (r *Relay) PromptAccess(_ context.Context, text string) error {
	return r.publish(r.topics.ChatPrompt(), map[string]any{
		"text":    text,
		"actions": []string{string(event.TypeGrantAccess), string(event.TypeDenyAccess)},
	})
}

// NotifyFailure reports a failed interactive command.
func (r *Relay) NotifyFailure(_ context.Context, text string) error {
	return r.publish(r.topics.ChatNotification(), map[string]any{
		"text":  text,
		"level": "error",
	})
}

func (r *Relay) publish(topic string, body map[string]any) error {
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding chat message: %w", err)
	}
	if err := r.broker.Publish(topic, payload, r.qos, false); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}
	return nil
}

var _ Notifier = (*Relay)(nil)
