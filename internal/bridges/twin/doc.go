// Package twin mirrors the gate and light to the voice-assistant bridge
// as MQTT device twins.
//
// The hub publishes each fixture's position to a retained state topic
// (porter/twin/{device}/state) so the voice assistant always sees the
// current value, even across its own restarts. Commands arrive on the
// matching set topics and enter the bus as voice-origin change_state
// events; the hub's cross-device sync handles them exactly like a chat
// command.
package twin
