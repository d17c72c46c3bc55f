package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Field names one slot in the store. The set is closed; Set validates
// against an explicit field table rather than reflecting over struct
// members.
type Field string

const (
	FieldGate                Field = "gate"
	FieldLight               Field = "light"
	FieldCameraConnected     Field = "camera_connected"
	FieldControllerConnected Field = "controller_connected"
	FieldMotionActive        Field = "motion_active"
	FieldPersonConfirmed     Field = "person_confirmed"
	FieldSuppression         Field = "suppression"
)

// Canonical fixture positions.
const (
	GateOpen   = "open"
	GateClosed = "closed"
	LightOn    = "on"
	LightOff   = "off"
)

// WaitResult tags the outcome of a timed wait.
type WaitResult int

const (
	// Signaled means the field was set while the waiter was waiting.
	Signaled WaitResult = iota
	// TimedOut means the timeout (or cancellation) won the race.
	TimedOut
)

func (r WaitResult) String() string {
	if r == Signaled {
		return "signaled"
	}
	return "timed-out"
}

// parsers maps each field to its validating normalizer. A parser returns
// the canonical stored value or ErrInvalidValue.
var parsers = map[Field]func(string) (string, error){
	FieldGate:                oneOf(GateOpen, GateClosed),
	FieldLight:               oneOf(LightOn, LightOff),
	FieldCameraConnected:     oneOf("true", "false"),
	FieldControllerConnected: oneOf("true", "false"),
	FieldMotionActive:        oneOf("true", "false"),
	FieldPersonConfirmed:     oneOf("true", "false"),
	FieldSuppression:         oneOf("true", "false"),
}

func oneOf(allowed ...string) func(string) (string, error) {
	return func(v string) (string, error) {
		for _, a := range allowed {
			if v == a {
				return v, nil
			}
		}
		return "", fmt.Errorf("%w: %q", ErrInvalidValue, v)
	}
}

// Validate checks a value against a field's parser without touching any
// store. Used where a value must be vetted before the real state change
// is allowed to happen (e.g. inbound voice commands).
func Validate(field Field, value string) error {
	parse, ok := parsers[field]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	_, err := parse(value)
	return err
}

// ChangeFunc observes every successful Set. Called outside the store lock,
// after waiters have been signaled.
type ChangeFunc func(field Field, value string)

// Store holds the hub's shared view of the physical world.
//
// Thread Safety: all methods are safe for concurrent use. Mutation and
// waiter wakeup are atomic under one mutex; a Set never interleaves with
// a Wait registration on the same field.
type Store struct {
	mu       sync.Mutex
	values   map[Field]string
	signals  map[Field]chan struct{}
	onChange ChangeFunc
}

// NewStore creates a store with every field at its startup value: gate
// closed, light off, both devices disconnected, no motion, no person,
// suppression clear.
func NewStore() *Store {
	s := &Store{
		values: map[Field]string{
			FieldGate:                GateClosed,
			FieldLight:               LightOff,
			FieldCameraConnected:     "false",
			FieldControllerConnected: "false",
			FieldMotionActive:        "false",
			FieldPersonConfirmed:     "false",
			FieldSuppression:         "false",
		},
		signals: make(map[Field]chan struct{}, len(parsers)),
	}
	for f := range parsers {
		s.signals[f] = make(chan struct{})
	}
	return s
}

// SetOnChange installs the change observer. Call once during startup,
// before any mutation traffic.
func (s *Store) SetOnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Set validates and stores a field value, then wakes every current waiter
// on that field by closing its signal channel and installing a fresh one.
//
// Every successful Set signals, including sets that repeat the current
// value; devices re-reporting an unchanged position still count as
// evidence for waiters.
//
// Returns:
//   - error: ErrUnknownField or ErrInvalidValue; nil on success
func (s *Store) Set(field Field, value string) error {
	parse, ok := parsers[field]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	canonical, err := parse(value)
	if err != nil {
		return fmt.Errorf("field %q: %w", field, err)
	}

	s.mu.Lock()
	s.values[field] = canonical
	close(s.signals[field])
	s.signals[field] = make(chan struct{})
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(field, canonical)
	}
	return nil
}

// SetBool stores a boolean field.
func (s *Store) SetBool(field Field, v bool) error {
	if v {
		return s.Set(field, "true")
	}
	return s.Set(field, "false")
}

// Get returns the current value of a field, or "" for an unknown field.
func (s *Store) Get(field Field) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[field]
}

// GetBool returns a boolean field's value. Unknown fields read false.
func (s *Store) GetBool(field Field) bool {
	return s.Get(field) == "true"
}

// Gate returns the current gate position.
func (s *Store) Gate() string { return s.Get(FieldGate) }

// Light returns the current light state.
func (s *Store) Light() string { return s.Get(FieldLight) }

// Snapshot returns a copy of all fields, for status reporting.
func (s *Store) Snapshot() map[Field]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Field]string, len(s.values))
	for f, v := range s.values {
		out[f] = v
	}
	return out
}

// Watch captures the field's current signal channel. Any Set on the
// field after the capture closes the channel. Capturing before taking an
// action and passing the channel to WaitOn afterwards closes the gap in
// which a Wait started after the action would miss the signal. Returns
// nil for an unknown field.
func (s *Store) Watch(field Field) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals[field]
}

// WaitOn blocks on a signal channel previously captured with Watch until
// it fires, the timeout expires, or ctx is cancelled. As with Wait, a nil
// channel and cancellation both report TimedOut: no evidence either way.
func (s *Store) WaitOn(ctx context.Context, ch <-chan struct{}, timeout time.Duration) WaitResult {
	if ch == nil {
		return TimedOut
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return Signaled
	case <-timer.C:
		return TimedOut
	case <-ctx.Done():
		return TimedOut
	}
}

// Wait blocks until the field is next set, the timeout expires, or ctx is
// cancelled. Strictly edge-triggered: only a Set that happens after Wait
// begins counts; the current value is irrelevant. Cancellation reports
// TimedOut, because to the caller both mean the same thing: no evidence.
func (s *Store) Wait(ctx context.Context, field Field, timeout time.Duration) WaitResult {
	return s.WaitOn(ctx, s.Watch(field), timeout)
}
