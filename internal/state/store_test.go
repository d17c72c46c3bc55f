package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSetValidation(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		value   string
		wantErr error
	}{
		{name: "gate open", field: FieldGate, value: "open"},
		{name: "gate closed", field: FieldGate, value: "closed"},
		{name: "gate invalid", field: FieldGate, value: "ajar", wantErr: ErrInvalidValue},
		{name: "light on", field: FieldLight, value: "on"},
		{name: "light invalid", field: FieldLight, value: "open", wantErr: ErrInvalidValue},
		{name: "bool field", field: FieldMotionActive, value: "true"},
		{name: "bool invalid", field: FieldMotionActive, value: "yes", wantErr: ErrInvalidValue},
		{name: "unknown field", field: Field("thermostat"), value: "on", wantErr: ErrUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			err := s.Set(tt.field, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Set(%q, %q) error = %v, want %v", tt.field, tt.value, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set(%q, %q) unexpected error: %v", tt.field, tt.value, err)
			}
			if got := s.Get(tt.field); got != tt.value {
				t.Errorf("Get(%q) = %q, want %q", tt.field, got, tt.value)
			}
		})
	}
}

func TestStartupDefaults(t *testing.T) {
	s := NewStore()

	if got := s.Gate(); got != GateClosed {
		t.Errorf("Gate() = %q, want %q", got, GateClosed)
	}
	if got := s.Light(); got != LightOff {
		t.Errorf("Light() = %q, want %q", got, LightOff)
	}
	if s.GetBool(FieldCameraConnected) {
		t.Error("camera should start disconnected")
	}
	if s.GetBool(FieldSuppression) {
		t.Error("suppression should start clear")
	}
}

func TestWaitSignaled(t *testing.T) {
	s := NewStore()

	results := make(chan WaitResult, 1)
	ready := make(chan struct{})
	go func() {
		close(ready)
		results <- s.Wait(context.Background(), FieldPersonConfirmed, 2*time.Second)
	}()

	<-ready
	time.Sleep(10 * time.Millisecond) // let the waiter register
	if err := s.SetBool(FieldPersonConfirmed, true); err != nil {
		t.Fatalf("SetBool() error: %v", err)
	}

	select {
	case got := <-results:
		if got != Signaled {
			t.Errorf("Wait() = %v, want Signaled", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() never returned")
	}
}

func TestWatchCapturesSignalBeforeWait(t *testing.T) {
	s := NewStore()

	// A Set between the capture and the WaitOn must still be observed.
	// This is the whole point of splitting capture from wait.
	ch := s.Watch(FieldGate)
	if err := s.Set(FieldGate, GateOpen); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if got := s.WaitOn(context.Background(), ch, 100*time.Millisecond); got != Signaled {
		t.Errorf("WaitOn() = %v, want Signaled", got)
	}
}

func TestWaitOnNilChannel(t *testing.T) {
	s := NewStore()

	start := time.Now()
	if got := s.WaitOn(context.Background(), nil, 50*time.Millisecond); got != TimedOut {
		t.Errorf("WaitOn(nil) = %v, want TimedOut", got)
	}
	if time.Since(start) > 40*time.Millisecond {
		t.Error("WaitOn(nil) should return immediately")
	}
}

func TestWaitTimesOut(t *testing.T) {
	s := NewStore()

	start := time.Now()
	got := s.Wait(context.Background(), FieldMotionActive, 30*time.Millisecond)
	elapsed := time.Since(start)

	if got != TimedOut {
		t.Errorf("Wait() = %v, want TimedOut", got)
	}
	if elapsed < 30*time.Millisecond {
		t.Errorf("Wait() returned after %v, before the timeout", elapsed)
	}
}

func TestWaitIsEdgeTriggered(t *testing.T) {
	s := NewStore()

	// A set that happens before the wait starts must not satisfy it.
	if err := s.SetBool(FieldPersonConfirmed, true); err != nil {
		t.Fatalf("SetBool() error: %v", err)
	}

	if got := s.Wait(context.Background(), FieldPersonConfirmed, 30*time.Millisecond); got != TimedOut {
		t.Errorf("Wait() after prior set = %v, want TimedOut (edge-triggered)", got)
	}
}

func TestWaitRepeatedSetSignalsEachWaiter(t *testing.T) {
	s := NewStore()

	// Re-reporting the same value still signals: devices confirm commands
	// by reporting their position, changed or not.
	if err := s.Set(FieldGate, GateClosed); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	done := make(chan WaitResult, 1)
	go func() {
		done <- s.Wait(context.Background(), FieldGate, 2*time.Second)
	}()
	time.Sleep(10 * time.Millisecond)

	if err := s.Set(FieldGate, GateClosed); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if got := <-done; got != Signaled {
		t.Errorf("Wait() = %v, want Signaled on unchanged re-report", got)
	}
}

func TestWaitCancelledContext(t *testing.T) {
	s := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan WaitResult, 1)
	go func() {
		done <- s.Wait(ctx, FieldGate, 5*time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case got := <-done:
		if got != TimedOut {
			t.Errorf("Wait() on cancellation = %v, want TimedOut", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() ignored context cancellation")
	}
}

func TestConcurrentWaitersAllWake(t *testing.T) {
	s := NewStore()

	const waiters = 10
	var wg sync.WaitGroup
	results := make(chan WaitResult, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Wait(context.Background(), FieldMotionActive, 2*time.Second)
		}()
	}
	time.Sleep(20 * time.Millisecond)

	if err := s.SetBool(FieldMotionActive, true); err != nil {
		t.Fatalf("SetBool() error: %v", err)
	}
	wg.Wait()
	close(results)

	for got := range results {
		if got != Signaled {
			t.Errorf("waiter result = %v, want Signaled", got)
		}
	}
}

func TestOnChangeObserver(t *testing.T) {
	s := NewStore()

	var mu sync.Mutex
	var seen []string
	s.SetOnChange(func(f Field, v string) {
		mu.Lock()
		seen = append(seen, string(f)+"="+v)
		mu.Unlock()
	})

	if err := s.Set(FieldGate, GateOpen); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := s.Set(FieldLight, LightOn); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "gate=open" || seen[1] != "light=on" {
		t.Errorf("observer saw %v, want [gate=open light=on]", seen)
	}
}

func TestSnapshot(t *testing.T) {
	s := NewStore()
	if err := s.Set(FieldGate, GateOpen); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	snap := s.Snapshot()
	if snap[FieldGate] != GateOpen {
		t.Errorf("Snapshot gate = %q, want %q", snap[FieldGate], GateOpen)
	}

	// Snapshot is a copy, not a view.
	snap[FieldGate] = GateClosed
	if got := s.Gate(); got != GateOpen {
		t.Errorf("mutating snapshot changed store: Gate() = %q", got)
	}
}
