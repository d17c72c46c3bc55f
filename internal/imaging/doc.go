// Package imaging implements the bounded image accumulation pipeline that
// sits between the camera's raw captures and the presence decision engine.
//
// Captures are pushed into a bounded Unprocessed queue (drop-and-log on
// overflow). A single lazily-started consumer pops one image at a time,
// hands it to the external face detector, and routes the result: every
// outcome lands in Processed, positive outcomes additionally land in
// Positive and bump an O(1) hit counter.
//
// The engine observes the pipeline through DequeueProcessed (one entry
// per completed detection round), Hits, and DrainPositive; Cleanup resets
// all three queues and the counter at the end of each detection cycle.
// Detection work in flight across a Cleanup completes into the fresh
// queues and is discarded by the next cycle's Cleanup.
package imaging
