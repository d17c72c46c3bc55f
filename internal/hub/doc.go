// Package hub wires the event bus to every other component: it owns the
// dispatch table mapping each event type to its handler and implements
// the behavior that spans components.
//
// That includes cross-device state synchronization. A device-origin state
// report updates the store, is journaled, and notifies the human unless a
// human-initiated command is already pending (the suppression flag). A
// chat- or voice-origin command raises suppression, forwards the command
// to the controller, awaits the device's confirming report with a
// timeout, and always clears the flag; a timeout yields a failure notice
// instead of a silent hang.
//
// The hub also carries the device maintenance commands (reset, motion
// enable/disable, server change), fingerprint enrollment, and the
// start/stop audio session flow.
package hub
