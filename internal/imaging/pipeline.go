package imaging

import (
	"context"
	"sync"
	"time"
)

// Logger is the minimal logging interface the pipeline needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type queued struct {
	data       []byte
	capturedAt time.Time
}

// Pipeline is the three-queue image accumulation pipeline.
//
// Thread Safety: all methods are safe for concurrent use. The queues are
// channels swapped wholesale by Cleanup; every swap, push, and pop of the
// channel references happens under one mutex, so a producer never sends
// on a channel Cleanup has closed.
type Pipeline struct {
	detector Detector
	logger   Logger

	mu              sync.Mutex
	unprocessed     chan queued
	processed       chan Record
	positive        chan Record
	hits            int
	consumerRunning bool

	unprocessedCap int
	processedCap   int
}

// NewPipeline creates a pipeline with the given queue capacities.
// The Positive queue shares the Processed capacity.
func NewPipeline(detector Detector, unprocessedCap, processedCap int, logger Logger) *Pipeline {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pipeline{
		detector:       detector,
		logger:         logger,
		unprocessed:    make(chan queued, unprocessedCap),
		processed:      make(chan Record, processedCap),
		positive:       make(chan Record, processedCap),
		unprocessedCap: unprocessedCap,
		processedCap:   processedCap,
	}
}

// EnqueueImage pushes a capture into the Unprocessed queue and lazily
// starts the consumer if none is running. Non-blocking; overflow drops
// the image and logs.
//
// ctx bounds the consumer's lifetime; the first EnqueueImage call's
// context is the one the consumer inherits.
func (p *Pipeline) EnqueueImage(ctx context.Context, data []byte) {
	item := queued{data: data, capturedAt: time.Now()}

	p.mu.Lock()
	enqueued := false
	select {
	case p.unprocessed <- item:
		enqueued = true
	default:
	}
	if enqueued && !p.consumerRunning {
		p.consumerRunning = true
		go p.consume(ctx)
	}
	p.mu.Unlock()

	if !enqueued {
		p.logger.Warn("image dropped, unprocessed queue full",
			"capacity", p.unprocessedCap,
		)
	}
}

// consume is the single background worker: pop, detect, route.
func (p *Pipeline) consume(ctx context.Context) {
	defer func() {
		p.mu.Lock()
		p.consumerRunning = false
		p.mu.Unlock()
	}()

	for {
		p.mu.Lock()
		ch := p.unprocessed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case item, ok := <-ch:
			if !ok {
				// Cleanup swapped the queues; pick up the fresh one.
				continue
			}
			p.detect(ctx, item)
		}
	}
}

func (p *Pipeline) detect(ctx context.Context, item queued) {
	processed, found, err := p.detector.Detect(ctx, item.data)
	if err != nil {
		// A failed round is a negative round, not a pipeline fault.
		p.logger.Warn("detector failed, recording negative round", "error", err)
		processed = item.data
		found = false
	}

	rec := Record{
		Data:         processed,
		FaceDetected: found,
		CapturedAt:   item.capturedAt,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case p.processed <- rec:
	default:
		p.logger.Warn("processed queue full, dropping round result")
	}

	if !found {
		return
	}
	p.hits++
	select {
	case p.positive <- rec:
	default:
		p.logger.Warn("positive queue full, dropping positive image")
	}
}

// DequeueProcessed blocks until one detection round completes, regardless
// of its outcome. Returns false when ctx is cancelled or expires before a
// round lands; callers treat that as "no evidence this round".
func (p *Pipeline) DequeueProcessed(ctx context.Context) (Record, bool) {
	for {
		p.mu.Lock()
		ch := p.processed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return Record{}, false
		case rec, ok := <-ch:
			if !ok {
				continue
			}
			return rec, true
		}
	}
}

// DrainPositive atomically empties the Positive queue and returns its
// contents. Non-blocking; returns nil when nothing positive is queued.
func (p *Pipeline) DrainPositive() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Record
	for {
		select {
		case rec := <-p.positive:
			out = append(out, rec)
		default:
			return out
		}
	}
}

// Hits returns the positive-detection counter for the current cycle.
func (p *Pipeline) Hits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits
}

// Cleanup replaces all three queues with empty ones and zeroes the hit
// counter. In-flight detector work finishes into the fresh queues.
func (p *Pipeline) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Drain before closing so queued-but-unprocessed items are discarded
	// rather than handed to the consumer as it unblocks.
	for len(p.unprocessed) > 0 {
		<-p.unprocessed
	}
	for len(p.processed) > 0 {
		<-p.processed
	}
	for len(p.positive) > 0 {
		<-p.positive
	}
	close(p.unprocessed)
	close(p.processed)
	close(p.positive)
	p.unprocessed = make(chan queued, p.unprocessedCap)
	p.processed = make(chan Record, p.processedCap)
	p.positive = make(chan Record, p.processedCap)
	p.hits = 0
}
