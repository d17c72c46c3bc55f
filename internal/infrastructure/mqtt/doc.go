// Package mqtt provides MQTT client connectivity for Porter Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Porter uses MQTT for its two out-of-process collaborators: the chat
// front-end (notifications out, human commands in) and the voice-assistant
// bridge (device-twin state mirroring). The broker decouples the hub from
// both UIs.
//
//	Chat front-end ↔ MQTT Broker ↔ Porter Core ↔ MQTT Broker ↔ Voice bridge
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.ChatCommand(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(payload)
//	    })
//
//	client.Publish(mqtt.Topics{}.TwinState("gate"), []byte(`{"state":"open"}`), 1, true)
package mqtt
