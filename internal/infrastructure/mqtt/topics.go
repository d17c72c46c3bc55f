package mqtt

import "fmt"

// Topic prefixes for the Porter MQTT namespace.
//
// Chat topics carry the operator-facing relay; twin topics mirror device
// state to the voice-assistant bridge; system topics carry hub status.
const (
	// TopicPrefixChat is the base for chat front-end relay topics.
	TopicPrefixChat = "porter/chat"

	// TopicPrefixTwin is the base for voice-bridge device twin topics.
	TopicPrefixTwin = "porter/twin"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "porter/system"
)

// Topics provides builders for Porter MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// ChatNotification returns the topic for plain-text notifications to the human.
//
// Example: porter/chat/notification
func (Topics) ChatNotification() string {
	return fmt.Sprintf("%s/notification", TopicPrefixChat)
}

// ChatImage returns the topic for image attachment references (saved paths).
//
// Example: porter/chat/image
func (Topics) ChatImage() string {
	return fmt.Sprintf("%s/image", TopicPrefixChat)
}

// ChatPrompt returns the topic for access-control prompts.
//
// Example: porter/chat/prompt
func (Topics) ChatPrompt() string {
	return fmt.Sprintf("%s/prompt", TopicPrefixChat)
}

// ChatCommand returns the topic carrying human commands back into the hub
// (access decisions, state changes, device maintenance commands).
//
// Example: porter/chat/command
func (Topics) ChatCommand() string {
	return fmt.Sprintf("%s/command", TopicPrefixChat)
}

// TwinState returns the retained state topic for a twinned device.
//
// Example: porter/twin/gate/state
func (Topics) TwinState(device string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixTwin, device)
}

// TwinSet returns the topic the voice bridge publishes set commands on.
//
// Example: porter/twin/gate/set
func (Topics) TwinSet(device string) string {
	return fmt.Sprintf("%s/%s/set", TopicPrefixTwin, device)
}

// AllTwinSets returns a pattern matching set commands for all twinned devices.
//
// Pattern: porter/twin/+/set
func (Topics) AllTwinSets() string {
	return fmt.Sprintf("%s/+/set", TopicPrefixTwin)
}

// SystemStatus returns the hub status topic (also used for the LWT).
//
// Example: porter/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
