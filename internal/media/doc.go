// Package media persists captured images and recorded audio under the
// configured media directory, and owns the fingerprint enrollment counter.
//
// Layout under the root:
//
//	images/                   captured stills, timestamp-named
//	audio/chat_received/      voice notes arriving from the chat front-end
//	audio/device_received/    recordings arriving from the camera unit
//	fingerprint_id            next enrollment slot, single decimal integer
//
// Filenames are derived from the capture instant at nanosecond precision,
// so concurrent saves never collide.
package media
