package presence

import (
	"context"
	"sync"
	"time"

	"github.com/porterhq/porter-core/internal/chat"
	"github.com/porterhq/porter-core/internal/imaging"
	"github.com/porterhq/porter-core/internal/state"
)

// Cycle outcomes, as journaled.
const (
	OutcomeConfirmedWithFace    = "confirmed_with_face"
	OutcomeConfirmedWithoutFace = "confirmed_without_face"
	OutcomeNoPerson             = "no_person"
)

// Pipeline is the interface the engine needs from the image pipeline.
type Pipeline interface {
	DequeueProcessed(ctx context.Context) (imaging.Record, bool)
	DrainPositive() []imaging.Record
	Hits() int
	Cleanup()
}

// Commander sends commands to the edge devices.
type Commander interface {
	// RequestCapture asks the camera for one still image.
	RequestCapture()

	// SendAccess forwards the human's allow/deny decision to the
	// gate controller.
	SendAccess(grant bool)
}

// MediaStore persists positive captures before they go to the human.
type MediaStore interface {
	SaveImage(data []byte) (string, error)
}

// Journal records cycle outcomes. May be nil.
type Journal interface {
	RecordDecision(ctx context.Context, outcome string, positiveCount int, duration time.Duration) error
}

// Metrics mirrors outcomes to the time series database. May be nil.
type Metrics interface {
	WriteDecision(outcome string, positives int, duration time.Duration)
}

// Logger is the minimal logging interface the engine needs.
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

// Config holds the engine's schedules and thresholds.
//
// The two thresholds are independent: the motion path demands more
// corroboration than a direct person report from the camera.
type Config struct {
	// MotionBackoff is the escalating wait schedule on the motion path.
	MotionBackoff []time.Duration

	// PersonRetry is the shorter schedule on the direct person path.
	PersonRetry []time.Duration

	// MotionThreshold is the positive-image count confirming a person
	// via motion escalation.
	MotionThreshold int

	// PersonThreshold is the positive-image count confirming a face on
	// the direct person path.
	PersonThreshold int

	// RoundTimeout bounds the wait for one detection round.
	RoundTimeout time.Duration
}

// Deps holds the engine's collaborators.
type Deps struct {
	Config    Config
	Pipeline  Pipeline
	Commander Commander
	Notifier  chat.Notifier
	Media     MediaStore
	State     *state.Store
	Journal   Journal
	Metrics   Metrics
	Logger    Logger
}

// Engine is the presence-confirmation state machine.
//
// Thread Safety: the Handle methods are safe for concurrent use; at most
// one confirmation cycle runs at a time.
type Engine struct {
	cfg       Config
	pipeline  Pipeline
	commander Commander
	notifier  chat.Notifier
	media     MediaStore
	store     *state.Store
	journal   Journal
	metrics   Metrics
	logger    Logger

	mu            sync.Mutex
	active        bool
	personPending bool
}

// NewEngine creates a presence engine.
func NewEngine(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		cfg:       deps.Config,
		pipeline:  deps.Pipeline,
		commander: deps.Commander,
		notifier:  deps.Notifier,
		media:     deps.Media,
		store:     deps.State,
		journal:   deps.Journal,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

// begin claims the single cycle slot. Returns false if a cycle is active.
func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return false
	}
	e.active = true
	e.personPending = false
	return true
}

func (e *Engine) end() {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
}

// latchPerson records a person report that landed mid-cycle. The
// person-confirmed signal only reaches a subscribed Wait; the latch
// keeps the report visible to the escalation loop when it fired during
// a detection round with no waiter listening.
func (e *Engine) latchPerson() {
	e.mu.Lock()
	e.personPending = true
	e.mu.Unlock()
}

// personReported consumes the latch.
func (e *Engine) personReported() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	reported := e.personPending
	e.personPending = false
	return reported
}

// Active reports whether a confirmation cycle is currently running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// HandleMotion runs the motion escalation path for one motion report.
// A report landing while a cycle is active is ignored; the active cycle
// is already gathering evidence.
func (e *Engine) HandleMotion(ctx context.Context) {
	if !e.begin() {
		e.logger.Debug("motion report ignored, cycle already active")
		return
	}
	defer e.end()

	start := time.Now()
	e.setField(state.FieldMotionActive, true)

	e.logger.Info("motion reported, starting confirmation cycle")
	e.commander.RequestCapture()
	e.waitRound(ctx)

	for _, backoff := range e.cfg.MotionBackoff {
		if ctx.Err() != nil {
			e.finish(ctx, OutcomeNoPerson, start)
			return
		}

		// Race the explicit person-confirmed signal against this step's
		// backoff. Signal wins: jump straight to the person path. The
		// latch covers reports that landed during the previous round,
		// when no Wait was subscribed to see the signal fire.
		if e.personReported() || e.store.Wait(ctx, state.FieldPersonConfirmed, backoff) == state.Signaled {
			e.logger.Info("person signal during motion escalation")
			e.runPersonPath(ctx, start)
			return
		}

		e.commander.RequestCapture()
		e.waitRound(ctx)

		if e.pipeline.Hits() >= e.cfg.MotionThreshold {
			e.confirmWithFace(ctx, start)
			return
		}
	}

	if e.personReported() {
		e.logger.Info("person signal during motion escalation")
		e.runPersonPath(ctx, start)
		return
	}

	// Schedule exhausted: stand down without bothering the human.
	e.logger.Info("no person confirmed after motion escalation",
		"hits", e.pipeline.Hits(),
	)
	e.finish(ctx, OutcomeNoPerson, start)
}

// HandlePerson handles a direct person report from the camera. If a
// motion cycle is already escalating, the report becomes its
// person-confirmed signal instead of a second cycle.
func (e *Engine) HandlePerson(ctx context.Context) {
	if !e.begin() {
		e.latchPerson()
		e.setField(state.FieldPersonConfirmed, true)
		return
	}
	defer e.end()

	start := time.Now()
	e.setField(state.FieldMotionActive, true)
	e.runPersonPath(ctx, start)
}

// HandleAccessDecision forwards the human's allow/deny answer to the gate
// controller. No state machine effect; the gate's own state report will
// record the outcome.
func (e *Engine) HandleAccessDecision(grant bool) {
	e.logger.Info("access decision forwarded", "granted", grant)
	e.commander.SendAccess(grant)
}

// runPersonPath confirms a detected person and hunts for a usable face
// image on the short retry schedule.
func (e *Engine) runPersonPath(ctx context.Context, start time.Time) {
	e.setField(state.FieldPersonConfirmed, true)

	e.commander.RequestCapture()
	if err := e.notifier.Notify(ctx, "Person detected at the gate."); err != nil {
		e.logger.Warn("person notification failed", "error", err)
	}
	e.waitRound(ctx)

	if e.pipeline.Hits() >= e.cfg.PersonThreshold {
		e.confirmWithFace(ctx, start)
		return
	}

	for _, delay := range e.cfg.PersonRetry {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}

		e.commander.RequestCapture()
		e.waitRound(ctx)

		if e.pipeline.Hits() >= e.cfg.PersonThreshold {
			e.confirmWithFace(ctx, start)
			return
		}
	}

	e.confirmWithoutFace(ctx, start)
}

// confirmWithFace persists and forwards every positive image, prompts for
// an access decision, and closes the cycle.
func (e *Engine) confirmWithFace(ctx context.Context, start time.Time) {
	records := e.pipeline.DrainPositive()

	paths := make([]string, 0, len(records))
	for _, rec := range records {
		path, err := e.media.SaveImage(rec.Data)
		if err != nil {
			e.logger.Error("saving positive capture failed", "error", err)
			continue
		}
		paths = append(paths, path)
	}

	if len(paths) > 0 {
		if err := e.notifier.SendImages(ctx, paths); err != nil {
			e.logger.Warn("forwarding captures failed", "error", err)
		}
	}
	if err := e.notifier.PromptAccess(ctx, "Person confirmed at the gate. Allow access?"); err != nil {
		e.logger.Warn("access prompt failed", "error", err)
	}

	e.finish(ctx, OutcomeConfirmedWithFace, start)
}

// confirmWithoutFace prompts for an access decision with no attached
// images and closes the cycle.
func (e *Engine) confirmWithoutFace(ctx context.Context, start time.Time) {
	if err := e.notifier.PromptAccess(ctx, "Person at the gate, no clear face captured. Allow access?"); err != nil {
		e.logger.Warn("access prompt failed", "error", err)
	}
	e.finish(ctx, OutcomeConfirmedWithoutFace, start)
}

// finish journals the outcome and resets the cycle's shared resources.
func (e *Engine) finish(ctx context.Context, outcome string, start time.Time) {
	positives := e.pipeline.Hits()
	duration := time.Since(start)

	e.pipeline.Cleanup()
	e.setField(state.FieldMotionActive, false)
	e.setField(state.FieldPersonConfirmed, false)

	e.logger.Info("confirmation cycle finished",
		"outcome", outcome,
		"positives", positives,
		"duration_ms", duration.Milliseconds(),
	)

	if e.journal != nil {
		if err := e.journal.RecordDecision(ctx, outcome, positives, duration); err != nil {
			e.logger.Error("journaling decision failed", "error", err)
		}
	}
	if e.metrics != nil {
		e.metrics.WriteDecision(outcome, positives, duration)
	}
}

// waitRound blocks until one detection round lands or the round timeout
// passes. A timeout is ordinary: no additional evidence this round.
func (e *Engine) waitRound(ctx context.Context) {
	roundCtx, cancel := context.WithTimeout(ctx, e.cfg.RoundTimeout)
	defer cancel()

	if _, ok := e.pipeline.DequeueProcessed(roundCtx); !ok {
		e.logger.Debug("detection round timed out")
	}
}

func (e *Engine) setField(field state.Field, v bool) {
	if err := e.store.SetBool(field, v); err != nil {
		e.logger.Error("state update failed", "field", field, "error", err)
	}
}
