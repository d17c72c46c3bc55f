package audio

import "context"

// Format names an audio container/encoding.
type Format string

const (
	// FormatPCM is the raw sample stream the camera unit produces.
	FormatPCM Format = "pcm"
	// FormatWAV is the archival container recordings are stored in.
	FormatWAV Format = "wav"
	// FormatOgg is the compressed container voice notes arrive in.
	FormatOgg Format = "ogg"
)

// Transcoder converts between audio formats. Implementations do the
// codec work off the hot path (a worker pool or an external process);
// callers await completion through the context.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, from, to Format) ([]byte, error)
}
