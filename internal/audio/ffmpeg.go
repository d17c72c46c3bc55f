package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// FFmpegTranscoder converts between formats by piping through ffmpeg.
//
// Thread Safety: safe for concurrent use; each call spawns its own
// process.
type FFmpegTranscoder struct {
	binary     string
	sampleRate int
}

// NewFFmpegTranscoder creates a transcoder. sampleRate describes the raw
// PCM stream the camera produces (signed 16-bit little-endian, mono).
func NewFFmpegTranscoder(binary string, sampleRate int) *FFmpegTranscoder {
	return &FFmpegTranscoder{binary: binary, sampleRate: sampleRate}
}

// Transcode implements Transcoder.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, data []byte, from, to Format) ([]byte, error) {
	if from == to {
		return data, nil
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, t.inputArgs(from)...)
	args = append(args, "-i", "pipe:0")
	args = append(args, t.outputArgs(to)...)
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("transcoding %s to %s: %w (stderr: %s)",
			from, to, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// inputArgs describes the inbound stream. Raw PCM carries no header, so
// ffmpeg must be told its shape; containers are self-describing.
func (t *FFmpegTranscoder) inputArgs(from Format) []string {
	if from == FormatPCM {
		return []string{
			"-f", "s16le",
			"-ar", strconv.Itoa(t.sampleRate),
			"-ac", "1",
		}
	}
	return []string{"-f", string(from)}
}

func (t *FFmpegTranscoder) outputArgs(to Format) []string {
	if to == FormatPCM {
		return []string{
			"-f", "s16le",
			"-ar", strconv.Itoa(t.sampleRate),
			"-ac", "1",
		}
	}
	return []string{"-f", string(to)}
}
