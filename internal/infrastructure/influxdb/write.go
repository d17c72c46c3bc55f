package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteConnectivity records a device connectivity flip.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - device: Logical device identity (e.g., "camera", "controller")
//   - connected: The new connectivity state
func (c *Client) WriteConnectivity(device string, connected bool) {
	if !c.IsConnected() {
		return
	}

	value := 0.0
	if connected {
		value = 1.0
	}

	point := write.NewPoint(
		"connectivity",
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"connected": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDecision records the outcome of one presence decision cycle.
//
// Parameters:
//   - outcome: Cycle outcome (e.g., "confirmed_with_face", "no_person")
//   - positives: Positive-image count at the end of the cycle
//   - duration: Wall time from the triggering event to the outcome
func (c *Client) WriteDecision(outcome string, positives int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"decision",
		map[string]string{
			"outcome": outcome,
		},
		map[string]interface{}{
			"positives":   positives,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteStateChange records a gate or light transition.
//
// Parameters:
//   - device: The logical fixture ("gate" or "light")
//   - state: The new position ("open", "closed", "on", "off")
//   - source: Who initiated the change ("device", "chat", "voice")
func (c *Client) WriteStateChange(device, state, source string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"state_change",
		map[string]string{
			"device": device,
			"source": source,
		},
		map[string]interface{}{
			"state": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
