// Package influxdb provides optional time-series telemetry for Porter Core.
//
// When enabled, the hub records device connectivity flips and presence
// decision outcomes as InfluxDB points. Writes are batched and
// non-blocking; a write failure is logged and never affects the event
// flow. The rest of the hub treats a nil *Client as "telemetry disabled".
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteConnectivity("camera", true)
//	client.WriteDecision("confirmed_with_face", 3, 8*time.Second)
package influxdb
