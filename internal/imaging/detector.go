package imaging

import (
	"context"
	"time"
)

// Detector is the external face detection collaborator. Implementations
// are expected to be computationally heavy (a worker pool or a separate
// process); the pipeline's consumer awaits each call and must never be
// run on a latency-sensitive path.
type Detector interface {
	// Detect analyzes a still image.
	//
	// Returns:
	//   - processed: The annotated image (face boxes drawn), or the
	//     original bytes when nothing was found
	//   - found: Whether at least one face was detected
	//   - error: Detector failure; the pipeline treats this as a
	//     negative round, not a fault
	Detect(ctx context.Context, data []byte) (processed []byte, found bool, err error)
}

// Record is one detection outcome flowing through Processed and Positive.
type Record struct {
	// Data is the processed image bytes.
	Data []byte

	// FaceDetected reports the detector's verdict.
	FaceDetected bool

	// CapturedAt is when the source image entered the pipeline.
	CapturedAt time.Time

	// Path is set once the record has been persisted to the media store.
	Path string
}
