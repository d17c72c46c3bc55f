package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EventType
		wantErr bool
	}{
		{name: "init", input: "init", want: TypeInit},
		{name: "motion detected", input: "motion_detected", want: TypeMotionDetected},
		{name: "change state", input: "change_state", want: TypeChangeState},
		{name: "fingerprint failure", input: "fingerprint_enrollment_failed", want: TypeFingerprintEnrollmentFailed},
		{name: "unknown type", input: "self_destruct", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "case sensitive", input: "INIT", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownType) {
					t.Errorf("ParseType(%q) error = %v, want ErrUnknownType", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseType(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEventPayloadAccessors(t *testing.T) {
	ev := New(TypeImageData, OriginDevice, map[string]any{
		"device": "camera",
		"data":   []byte{0xff, 0xd8},
	})

	if ev.ID == "" {
		t.Error("New() should assign an ID")
	}
	if got := ev.Str("device"); got != "camera" {
		t.Errorf("Str(device) = %q, want %q", got, "camera")
	}
	if got := ev.Str("missing"); got != "" {
		t.Errorf("Str(missing) = %q, want empty", got)
	}
	if got := ev.Bytes("data"); len(got) != 2 {
		t.Errorf("Bytes(data) length = %d, want 2", len(got))
	}
	if got := ev.Bytes("device"); got != nil {
		t.Errorf("Bytes on string field = %v, want nil", got)
	}
}

func TestBusRegister(t *testing.T) {
	bus := NewBus(10, time.Second, nil)
	noop := func(context.Context, Event) {}

	if err := bus.Register(TypeMotionDetected, noop); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	if err := bus.Register(TypeMotionDetected, noop); !errors.Is(err, ErrHandlerRegistered) {
		t.Errorf("duplicate Register() error = %v, want ErrHandlerRegistered", err)
	}
	if err := bus.Register(EventType("bogus"), noop); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Register(bogus) error = %v, want ErrUnknownType", err)
	}
}

func TestBusDispatchExactlyOnce(t *testing.T) {
	bus := NewBus(100, time.Second, nil)

	var count atomic.Int64
	if err := bus.Register(TypeMotionDetected, func(_ context.Context, _ Event) {
		count.Add(1)
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	listenDone := make(chan struct{})
	go func() {
		_ = bus.Listen(ctx)
		close(listenDone)
	}()

	const n = 50
	for i := 0; i < n; i++ {
		bus.Enqueue(New(TypeMotionDetected, OriginDevice, nil))
	}

	deadline := time.After(2 * time.Second)
	for count.Load() < n {
		select {
		case <-deadline:
			t.Fatalf("dispatched %d events, want %d", count.Load(), n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-listenDone

	if got := count.Load(); got != n {
		t.Errorf("dispatch count = %d, want exactly %d", got, n)
	}
	if got := bus.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d, want 0", got)
	}
}

func TestBusEnqueueNonBlockingWhenFull(t *testing.T) {
	// No listener: the queue saturates and stays saturated.
	bus := NewBus(5, time.Second, nil)

	for j := 0; j < 5; j++ {
		bus.Enqueue(New(TypeAudioChunk, OriginDevice, nil))
	}

	done := make(chan struct{})
	go func() {
		for k := 0; k < 3; k++ {
			bus.Enqueue(New(TypeAudioChunk, OriginDevice, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a saturated queue")
	}

	if got := bus.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
}

func TestBusSlowHandlerDoesNotBlockIntake(t *testing.T) {
	bus := NewBus(10, time.Second, nil)

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	if err := bus.Register(TypeCaptureImage, func(_ context.Context, _ Event) {
		defer wg.Done()
		<-release
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	fastDone := make(chan struct{})
	if err := bus.Register(TypeMotionDetected, func(_ context.Context, _ Event) {
		close(fastDone)
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	listenDone := make(chan struct{})
	go func() {
		_ = bus.Listen(ctx)
		close(listenDone)
	}()

	// Slow handler first; the later event must still dispatch and complete.
	bus.Enqueue(New(TypeCaptureImage, OriginDevice, nil))
	bus.Enqueue(New(TypeMotionDetected, OriginDevice, nil))

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("fast handler blocked behind a slow one")
	}

	close(release)
	wg.Wait()
	cancel()
	<-listenDone
}

func TestBusShutdownDrainsQueuedEvents(t *testing.T) {
	bus := NewBus(10, 50*time.Millisecond, nil)

	handled := make(chan struct{}, 10)
	if err := bus.Register(TypeAudioChunk, func(_ context.Context, _ Event) {
		handled <- struct{}{}
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	// Queue events before Listen ever runs, with the context already
	// cancelled. Listen must shed them as drops, not dispatch them.
	for k := 0; k < 3; k++ {
		bus.Enqueue(New(TypeAudioChunk, OriginDevice, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bus.Listen(ctx); err != nil {
		t.Fatalf("Listen() error: %v", err)
	}

	if got := bus.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3 for events shed at shutdown", got)
	}
	select {
	case <-handled:
		t.Error("queued event dispatched after cancellation")
	default:
	}
}

func TestBusShutdownWaitsThenCancels(t *testing.T) {
	bus := NewBus(10, 50*time.Millisecond, nil)

	sawCancel := make(chan struct{})
	if err := bus.Register(TypeStartAudio, func(ctx context.Context, _ Event) {
		<-ctx.Done()
		close(sawCancel)
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	listenDone := make(chan struct{})
	go func() {
		_ = bus.Listen(ctx)
		close(listenDone)
	}()

	bus.Enqueue(New(TypeStartAudio, OriginDevice, nil))
	time.Sleep(20 * time.Millisecond)

	cancel()

	select {
	case <-listenDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after grace expiry")
	}

	select {
	case <-sawCancel:
	case <-time.After(time.Second):
		t.Fatal("in-flight handler never saw cancellation")
	}

	// New events after shutdown are dropped, not dispatched.
	before := bus.Dropped()
	bus.Enqueue(New(TypeStartAudio, OriginDevice, nil))
	if got := bus.Dropped(); got != before+1 {
		t.Errorf("Dropped() after shutdown = %d, want %d", got, before+1)
	}
}
