package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/porterhq/porter-core/internal/event"
)

// Identity names one edge device. The set is closed.
type Identity string

const (
	IdentityCamera     Identity = "camera"
	IdentityController Identity = "controller"
)

// ParseIdentity validates a device name from an init frame.
func ParseIdentity(s string) (Identity, error) {
	switch Identity(s) {
	case IdentityCamera, IdentityController:
		return Identity(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownIdentity, s)
	}
}

// Frame is the structured text frame exchanged with devices.
type Frame struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
}

// rawPrefixes maps raw binary frame prefixes to the event type each
// synthesizes. The payload after the colon becomes the event's "data"
// field, byte for byte.
var rawPrefixes = map[string]event.EventType{
	"AUDIO": event.TypeAudioChunk,
	"IMAGE": event.TypeImageData,
}

// parseRawFrame splits a binary frame into its prefix-selected event type
// and payload. Returns false for frames with no recognized prefix.
func parseRawFrame(data []byte) (event.EventType, []byte, bool) {
	prefix, payload, found := bytes.Cut(data, []byte(":"))
	if !found {
		return "", nil, false
	}
	t, ok := rawPrefixes[string(prefix)]
	if !ok {
		return "", nil, false
	}
	return t, payload, true
}

// encodeFrame serializes an outbound structured frame.
func encodeFrame(eventType string, data map[string]any) ([]byte, error) {
	out, err := json.Marshal(Frame{EventType: eventType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return out, nil
}
