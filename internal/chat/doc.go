// Package chat relays hub activity to the human operator and carries
// their commands back in.
//
// The hub never talks to a chat provider directly; it publishes
// notifications, image references and access prompts to the porter/chat
// MQTT topics, and a thin provider-specific adapter (outside this
// process) bridges those to whatever front-end the operator uses.
// Commands flow the other way on porter/chat/command using the same
// {"event_type", "data"} frame shape as the device wire protocol, and
// enter the bus with chat origin.
package chat
