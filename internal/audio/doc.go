// Package audio accumulates raw audio chunks streamed by the camera unit
// and assembles them into a single recording on demand.
//
// AddChunk is a non-blocking append; the device streams at its own pace.
// GetAndReset waits a short settle delay so in-flight chunks can land,
// then drains the buffer chunk by chunk with a per-pop timeout and a hard
// chunk cap, concatenates, and fully resets the buffer. Consumption is
// at-most-once: whatever GetAndReset does not return is discarded.
//
// Encoding is delegated to the Transcoder collaborator, which hides the
// heavy codec work behind an interface the same way the face detector
// hides image analysis.
package audio
