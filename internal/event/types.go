package event

import (
	"github.com/google/uuid"
)

// EventType identifies what an event describes. The set is closed:
// dispatch is a total function over these values and nothing else.
type EventType string

const (
	TypeInit                        EventType = "init"
	TypeChangeState                 EventType = "change_state"
	TypeMotionDetected              EventType = "motion_detected"
	TypePersonDetected              EventType = "person_detected"
	TypeCaptureImage                EventType = "capture_image"
	TypeImageData                   EventType = "image_data"
	TypeAudioChunk                  EventType = "audio_chunk"
	TypeStartAudio                  EventType = "start_audio"
	TypeStopAudio                   EventType = "stop_audio"
	TypeGrantAccess                 EventType = "grant_access"
	TypeDenyAccess                  EventType = "deny_access"
	TypeResetDevice                 EventType = "reset_device"
	TypeEnrollFingerprint           EventType = "enroll_fingerprint"
	TypeFingerprintEnrolled         EventType = "fingerprint_enrolled"
	TypeFingerprintEnrollmentFailed EventType = "fingerprint_enrollment_failed"
	TypeMotionEnable                EventType = "motion_enable"
	TypeChangeServer                EventType = "change_server"
)

// validTypes is the closed enumeration. Membership checks go through
// this map rather than string comparison chains.
var validTypes = map[EventType]struct{}{
	TypeInit:                        {},
	TypeChangeState:                 {},
	TypeMotionDetected:              {},
	TypePersonDetected:              {},
	TypeCaptureImage:                {},
	TypeImageData:                   {},
	TypeAudioChunk:                  {},
	TypeStartAudio:                  {},
	TypeStopAudio:                   {},
	TypeGrantAccess:                 {},
	TypeDenyAccess:                  {},
	TypeResetDevice:                 {},
	TypeEnrollFingerprint:           {},
	TypeFingerprintEnrolled:         {},
	TypeFingerprintEnrollmentFailed: {},
	TypeMotionEnable:                {},
	TypeChangeServer:                {},
}

// Valid reports whether t is a member of the closed type enumeration.
func (t EventType) Valid() bool {
	_, ok := validTypes[t]
	return ok
}

// ParseType converts a wire string into an EventType.
//
// Returns:
//   - EventType: the parsed type on success
//   - error: ErrUnknownType if s is outside the closed enumeration
func ParseType(s string) (EventType, error) {
	t := EventType(s)
	if !t.Valid() {
		return "", ErrUnknownType
	}
	return t, nil
}

// Origin identifies which actor produced an event.
type Origin string

const (
	OriginDevice Origin = "device"
	OriginChat   Origin = "chat"
	OriginVoice  Origin = "voice"
)

// Event is the unit of work flowing through the bus.
//
// Events are immutable once created: producers build them via New and
// never mutate Data after enqueue. The bus owns an event until it is
// dispatched to exactly one handler invocation.
type Event struct {
	// ID uniquely identifies this event for log correlation.
	ID string

	// Type selects the handler; drawn from the closed enumeration.
	Type EventType

	// Origin records which actor produced the event.
	Origin Origin

	// Data is the opaque payload. Raw binary payloads (image bytes,
	// audio chunks) travel under the "data" key as []byte.
	Data map[string]any
}

// New creates an event with a fresh UUID.
func New(t EventType, origin Origin, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:     uuid.NewString(),
		Type:   t,
		Origin: origin,
		Data:   data,
	}
}

// Str returns the string value stored under key, or "" if absent or
// not a string. Handlers use it to read payload fields without
// repeating type assertions.
func (e Event) Str(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Bytes returns the []byte value stored under key, or nil.
func (e Event) Bytes(key string) []byte {
	b, _ := e.Data[key].([]byte)
	return b
}
