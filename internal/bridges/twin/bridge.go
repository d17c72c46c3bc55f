package twin

import (
	"fmt"
	"strings"

	"github.com/porterhq/porter-core/internal/event"
	"github.com/porterhq/porter-core/internal/infrastructure/mqtt"
	"github.com/porterhq/porter-core/internal/state"
)

// Broker is the interface the bridge needs from the MQTT client.
type Broker interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Bus is the interface the bridge needs from the event bus.
type Bus interface {
	Enqueue(ev event.Event)
}

// Logger is the minimal logging interface the bridge needs.
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

// twinned maps twin topic device names to their state store field and
// value parser. Only the gate and the light are exposed to the voice
// assistant.
var twinned = map[string]state.Field{
	"gate":  state.FieldGate,
	"light": state.FieldLight,
}

// Bridge mirrors fixture state to the voice assistant and feeds its
// commands into the bus.
type Bridge struct {
	broker Broker
	bus    Bus
	store  *state.Store
	qos    byte
	logger Logger
	topics mqtt.Topics
}

// New creates a twin bridge.
func New(broker Broker, bus Bus, store *state.Store, qos byte, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		broker: broker,
		bus:    bus,
		store:  store,
		qos:    qos,
		logger: logger,
	}
}

// Start publishes the current fixture positions to the retained state
// topics and subscribes to inbound set commands. Call once after the
// broker connection is up.
func (b *Bridge) Start() error {
	for device, field := range twinned {
		if err := b.Mirror(device, b.store.Get(field)); err != nil {
			return err
		}
	}

	if err := b.broker.Subscribe(b.topics.AllTwinSets(), b.qos, b.handleSet); err != nil {
		return fmt.Errorf("subscribing to twin set commands: %w", err)
	}

	b.logger.Info("twin bridge started", "set_topic", b.topics.AllTwinSets())
	return nil
}

// Mirror publishes a fixture's position to its retained twin state topic.
func (b *Bridge) Mirror(device, value string) error {
	if _, ok := twinned[device]; !ok {
		return nil
	}
	topic := b.topics.TwinState(device)
	if err := b.broker.PublishRetained(topic, []byte(value)); err != nil {
		return fmt.Errorf("mirroring %s state: %w", device, err)
	}
	b.logger.Debug("twin state mirrored", "device", device, "value", value)
	return nil
}

// MirrorField mirrors a state store field if it is twinned. Fields
// outside the twin set are ignored, so this can sit directly on the
// store's change feed.
func (b *Bridge) MirrorField(field state.Field, value string) {
	for device, f := range twinned {
		if f == field {
			if err := b.Mirror(device, value); err != nil {
				b.logger.Warn("twin mirror failed", "device", device, "error", err)
			}
			return
		}
	}
}

// handleSet turns one voice command into a voice-origin change_state
// event. Unknown devices and invalid values are logged and dropped.
func (b *Bridge) handleSet(topic string, payload []byte) error {
	device, ok := deviceFromSetTopic(topic)
	if !ok {
		b.logger.Warn("twin set on unexpected topic dropped", "topic", topic)
		return nil
	}
	field, ok := twinned[device]
	if !ok {
		b.logger.Warn("twin set for unknown device dropped", "device", device)
		return nil
	}

	value := strings.TrimSpace(string(payload))
	// The actual state change happens only when the device confirms; here
	// we just refuse values the field can never hold.
	if state.Validate(field, value) != nil {
		b.logger.Warn("twin set with invalid value dropped",
			"device", device,
			"value", value,
		)
		return nil
	}

	b.bus.Enqueue(event.New(event.TypeChangeState, event.OriginVoice, map[string]any{
		"device": device,
		"state":  value,
	}))
	return nil
}

// deviceFromSetTopic extracts the device segment of porter/twin/{device}/set.
func deviceFromSetTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "porter" || parts[1] != "twin" || parts[3] != "set" {
		return "", false
	}
	return parts[2], true
}
