// Package state implements the hub's observable shared state store.
//
// The store is a process-lifetime singleton created at startup and passed
// explicitly to every component that reads or mutates it. Each field
// belongs to a closed set (gate, light, device connectivity, motion,
// person confirmation, notification suppression) and carries an
// edge-triggered change signal: mutating a field and waking its waiters
// happen atomically under one lock.
//
// Wait is strictly edge-triggered with one-shot consumption. A waiter
// observes only sets that happen after it starts waiting; a set with no
// waiter present is not latched. Waits race the signal against a timeout
// and return a tagged result, never an error. Timeout means "no evidence
// arrived", which callers treat as an ordinary outcome.
package state
