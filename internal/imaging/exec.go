package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ExecDetector runs an external face detection helper per image.
//
// Protocol: the helper reads one JPEG on stdin and writes the annotated
// JPEG on stdout. Exit code 0 means at least one face was found, exit
// code 1 means none was, anything else is a failure.
//
// Thread Safety: safe for concurrent use; each call spawns its own
// process.
type ExecDetector struct {
	binary string
	args   []string
}

// NewExecDetector creates a detector around the given helper binary.
func NewExecDetector(binary string, args []string) *ExecDetector {
	return &ExecDetector{binary: binary, args: args}
}

const noFaceExitCode = 1

// Detect implements Detector.
func (d *ExecDetector) Detect(ctx context.Context, data []byte) ([]byte, bool, error) {
	cmd := exec.CommandContext(ctx, d.binary, d.args...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	found := err == nil
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != noFaceExitCode {
			return nil, false, fmt.Errorf("running %s: %w (stderr: %s)",
				d.binary, err, truncate(stderr.Bytes(), 256))
		}
	}

	processed := stdout.Bytes()
	if len(processed) == 0 {
		// Some helpers skip output on a miss; fall back to the original.
		processed = data
	}
	return processed, found, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
