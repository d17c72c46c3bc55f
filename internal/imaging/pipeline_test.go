package imaging

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// stubDetector flags an image positive when its payload starts with "face".
type stubDetector struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (d *stubDetector) Detect(_ context.Context, data []byte) ([]byte, bool, error) {
	d.calls.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.err != nil {
		return nil, false, d.err
	}
	return append([]byte("boxed:"), data...), bytes.HasPrefix(data, []byte("face")), nil
}

func TestPipelineDetectionFlow(t *testing.T) {
	det := &stubDetector{}
	p := NewPipeline(det, 20, 10, nil)
	ctx := context.Background()

	// Five captures, two containing a face.
	inputs := [][]byte{
		[]byte("empty-1"),
		[]byte("face-a"),
		[]byte("empty-2"),
		[]byte("face-b"),
		[]byte("empty-3"),
	}
	for _, in := range inputs {
		p.EnqueueImage(ctx, in)
	}

	// One DequeueProcessed per capture: every round lands regardless of outcome.
	positives := 0
	for range inputs {
		roundCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		rec, ok := p.DequeueProcessed(roundCtx)
		cancel()
		if !ok {
			t.Fatal("DequeueProcessed() timed out waiting for a round")
		}
		if !bytes.HasPrefix(rec.Data, []byte("boxed:")) {
			t.Errorf("record data = %q, want detector-processed bytes", rec.Data)
		}
		if rec.FaceDetected {
			positives++
		}
	}

	if positives != 2 {
		t.Errorf("positive rounds = %d, want 2", positives)
	}
	if got := p.Hits(); got != 2 {
		t.Errorf("Hits() = %d, want 2", got)
	}

	drained := p.DrainPositive()
	if len(drained) != 2 {
		t.Fatalf("DrainPositive() returned %d records, want 2", len(drained))
	}
	for _, rec := range drained {
		if !rec.FaceDetected {
			t.Error("drained record not flagged positive")
		}
	}
	if again := p.DrainPositive(); again != nil {
		t.Errorf("second DrainPositive() = %d records, want none", len(again))
	}
}

func TestPipelineDropsOnOverflow(t *testing.T) {
	// A detector that never returns keeps the consumer busy on the first
	// image, so the queue saturates.
	block := make(chan struct{})
	det := blockingDetector{release: block}
	p := NewPipeline(det, 3, 10, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		p.EnqueueImage(ctx, []byte{byte(i)})
	}
	close(block)

	// 1 in-flight + 3 queued; the other 6 were dropped without blocking.
	rounds := 0
	for {
		roundCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		_, ok := p.DequeueProcessed(roundCtx)
		cancel()
		if !ok {
			break
		}
		rounds++
		if rounds > 4 {
			t.Fatal("rounds kept arriving past the queue capacity")
		}
	}
	if rounds != 4 {
		t.Errorf("completed rounds = %d, want 4", rounds)
	}
}

type blockingDetector struct {
	release chan struct{}
}

func (d blockingDetector) Detect(ctx context.Context, data []byte) ([]byte, bool, error) {
	select {
	case <-d.release:
	case <-ctx.Done():
	}
	return data, false, nil
}

func TestPipelineDetectorErrorIsNegativeRound(t *testing.T) {
	det := &stubDetector{err: errors.New("model crashed")}
	p := NewPipeline(det, 20, 10, nil)
	ctx := context.Background()

	p.EnqueueImage(ctx, []byte("face-a"))

	roundCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	rec, ok := p.DequeueProcessed(roundCtx)
	if !ok {
		t.Fatal("DequeueProcessed() timed out; detector error must still complete the round")
	}
	if rec.FaceDetected {
		t.Error("failed detection reported a face")
	}
	if got := p.Hits(); got != 0 {
		t.Errorf("Hits() = %d, want 0", got)
	}
}

func TestPipelineCleanupResetsEverything(t *testing.T) {
	det := &stubDetector{}
	p := NewPipeline(det, 20, 10, nil)
	ctx := context.Background()

	p.EnqueueImage(ctx, []byte("face-a"))
	roundCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if _, ok := p.DequeueProcessed(roundCtx); !ok {
		cancel()
		t.Fatal("DequeueProcessed() timed out")
	}
	cancel()

	p.Cleanup()

	if got := p.Hits(); got != 0 {
		t.Errorf("Hits() after Cleanup = %d, want 0", got)
	}
	if got := p.DrainPositive(); got != nil {
		t.Errorf("DrainPositive() after Cleanup = %d records, want none", len(got))
	}

	// The pipeline keeps working across cleanups.
	p.EnqueueImage(ctx, []byte("face-b"))
	roundCtx2, cancel2 := context.WithTimeout(ctx, 2*time.Second)
	defer cancel2()
	rec, ok := p.DequeueProcessed(roundCtx2)
	if !ok {
		t.Fatal("DequeueProcessed() after Cleanup timed out")
	}
	if !rec.FaceDetected {
		t.Error("post-cleanup round lost the detection verdict")
	}
	if got := p.Hits(); got != 1 {
		t.Errorf("Hits() = %d, want 1", got)
	}
}

func TestDequeueProcessedHonorsContext(t *testing.T) {
	p := NewPipeline(&stubDetector{}, 20, 10, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, ok := p.DequeueProcessed(ctx); ok {
		t.Error("DequeueProcessed() on empty pipeline returned a record")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("DequeueProcessed() returned after %v, before the deadline", elapsed)
	}
}
