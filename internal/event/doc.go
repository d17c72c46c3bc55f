// Package event implements the hub's single-ingress event bus.
//
// Every actor (device gateway, chat relay, voice twin bridge) funnels its
// activity through the bus as Event values drawn from a closed type
// enumeration. The bus dequeues in FIFO order and dispatches each event to
// its registered handler on an independent goroutine, so a handler that
// waits tens of seconds never blocks intake of later events.
//
// Enqueue is non-blocking and best-effort: when the ingress queue is
// saturated the event is dropped and logged, and the caller never blocks.
//
// Shutdown is bounded: the bus stops accepting new events, waits for
// in-flight handlers up to a grace period, then cancels stragglers.
package event
