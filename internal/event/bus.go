package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is the minimal logging interface the bus needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Handler processes one dispatched event. The context is cancelled when
// the bus force-cancels stragglers at shutdown; handlers that wait must
// select on ctx.Done and unwind cleanly.
type Handler func(ctx context.Context, ev Event)

// Bus is the single-ingress event queue with concurrent per-event dispatch.
//
// Producers call Enqueue from any goroutine; one Listen goroutine dequeues
// in FIFO order and spawns a tracked goroutine per event. Handler execution
// across distinct events is therefore unordered once dispatched; the bus
// trades cross-event ordering for liveness so a slow handler never stalls
// intake.
//
// Thread Safety: Enqueue and Register are safe for concurrent use.
// Listen must be called exactly once.
type Bus struct {
	queue   chan Event
	logger  Logger
	grace   time.Duration
	dropped atomic.Int64

	mu       sync.RWMutex
	handlers map[EventType]Handler
	closed   bool

	// handlerCtx outlives the Listen context so in-flight handlers get
	// the shutdown grace period before being cancelled.
	handlerCtx     context.Context
	cancelInFlight context.CancelFunc
	wg             sync.WaitGroup
}

// NewBus creates a bus with the given ingress queue capacity and shutdown
// grace period.
//
// Parameters:
//   - queueSize: Ingress channel capacity; Enqueue drops when full
//   - grace: How long shutdown waits for in-flight handlers before cancelling
//   - logger: Logger instance (nil for no logging)
func NewBus(queueSize int, grace time.Duration, logger Logger) *Bus {
	if logger == nil {
		logger = noopLogger{}
	}
	handlerCtx, cancel := context.WithCancel(context.Background())
	return &Bus{
		queue:          make(chan Event, queueSize),
		logger:         logger,
		grace:          grace,
		handlers:       make(map[EventType]Handler),
		handlerCtx:     handlerCtx,
		cancelInFlight: cancel,
	}
}

// Register binds a handler to an event type.
//
// Returns:
//   - error: ErrUnknownType if t is outside the closed enumeration,
//     ErrHandlerRegistered if t already has a handler
func (b *Bus) Register(t EventType, h Handler) error {
	if !t.Valid() {
		return ErrUnknownType
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[t]; exists {
		return ErrHandlerRegistered
	}
	b.handlers[t] = h
	return nil
}

// Enqueue submits an event for dispatch. Non-blocking and best-effort:
// if the ingress queue is saturated, or the bus has begun shutdown, the
// event is dropped and logged. The caller never blocks and never errors.
func (b *Bus) Enqueue(ev Event) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		b.dropped.Add(1)
		b.logger.Warn("event dropped, bus shutting down",
			"event_id", ev.ID,
			"event_type", ev.Type,
		)
		return
	}

	select {
	case b.queue <- ev:
	default:
		b.dropped.Add(1)
		b.logger.Warn("event dropped, ingress queue full",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"capacity", cap(b.queue),
		)
	}
}

// Listen dequeues and dispatches events until ctx is cancelled, then runs
// the bounded shutdown sequence: stop accepting new events, wait up to the
// grace period for in-flight handlers, cancel stragglers, and drain.
//
// Always returns nil; cancellation is the normal exit path.
func (b *Bus) Listen(ctx context.Context) error {
	b.logger.Info("event bus listening", "queue_capacity", cap(b.queue))

	for {
		// Cancellation takes priority over a ready queue; once the caller
		// has asked us to stop, remaining queued events are shed, not run.
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		case ev := <-b.queue:
			b.dispatch(ev)
		}
	}
}

// dispatch spawns a tracked goroutine running the handler registered for
// the event's type. Unregistered or unknown types are ignored.
func (b *Bus) dispatch(ev Event) {
	b.mu.RLock()
	handler, ok := b.handlers[ev.Type]
	b.mu.RUnlock()

	if !ok {
		b.logger.Debug("no handler for event type, ignoring",
			"event_id", ev.ID,
			"event_type", ev.Type,
		)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked",
					"event_id", ev.ID,
					"event_type", ev.Type,
					"panic", r,
				)
			}
		}()

		handler(b.handlerCtx, ev)
	}()
}

// shutdown stops intake, waits for in-flight handlers up to the grace
// period, then force-cancels whatever remains.
func (b *Bus) shutdown() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.drainQueue()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped, all handlers finished")
	case <-time.After(b.grace):
		b.logger.Warn("shutdown grace expired, cancelling in-flight handlers",
			"grace", b.grace,
		)
		b.cancelInFlight()
		<-done
		b.logger.Info("event bus stopped after forced cancellation")
	}

	b.cancelInFlight()
}

// drainQueue discards whatever is still sitting in the ingress queue
// once shutdown begins. Every shed event is logged and counted, the
// same contract Enqueue honors when the queue is full.
func (b *Bus) drainQueue() {
	for {
		select {
		case ev := <-b.queue:
			b.dropped.Add(1)
			b.logger.Warn("queued event discarded at shutdown",
				"event_id", ev.ID,
				"event_type", ev.Type,
			)
		default:
			return
		}
	}
}

// Dropped returns the number of events dropped since startup.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
