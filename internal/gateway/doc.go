// Package gateway implements the device wire-protocol server.
//
// Edge devices (the camera unit and the gate/light controller) hold
// persistent WebSocket connections to the hub. The first structured frame
// on a new connection must be an init naming a device identity from the
// closed set; the gateway binds identity to connection, flips that
// device's connectivity in the state store, and from then on translates
// inbound frames into bus events.
//
// Two frame shapes exist on the wire:
//
//   - Structured (text): {"event_type": "...", "data": {...}}. Malformed
//     JSON or an unknown type is logged and dropped; the connection
//     stays open.
//   - Raw (binary): an ASCII prefix, a colon, then the payload, e.g.
//     AUDIO:<pcm bytes> or IMAGE:<jpeg bytes>. The prefix selects the
//     synthesized event type; the payload rides along unmodified.
//
// A device reconnecting supersedes its previous registration. Disconnect
// side effects (unbinding, connectivity flip) run exactly once per
// connection regardless of how it ended, and never undo a newer
// registration. Reconnection is the device's responsibility.
package gateway
