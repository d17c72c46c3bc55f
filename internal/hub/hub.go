package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/porterhq/porter-core/internal/audio"
	"github.com/porterhq/porter-core/internal/chat"
	"github.com/porterhq/porter-core/internal/event"
	"github.com/porterhq/porter-core/internal/gateway"
	"github.com/porterhq/porter-core/internal/state"
)

// Gateway is the interface the hub needs from the device gateway.
type Gateway interface {
	Send(identity gateway.Identity, eventType string, data map[string]any)
}

// Engine is the interface the hub needs from the presence engine.
type Engine interface {
	HandleMotion(ctx context.Context)
	HandlePerson(ctx context.Context)
	HandleAccessDecision(grant bool)
}

// ImageSink accepts captured images for detection.
type ImageSink interface {
	EnqueueImage(ctx context.Context, data []byte)
}

// AudioAssembler drains the chunk buffer into one recording.
type AudioAssembler interface {
	AddChunk(data []byte)
	GetAndReset(ctx context.Context) []byte
}

// MediaStore persists assembled recordings and issues enrollment slots.
type MediaStore interface {
	SaveDeviceAudio(data []byte, ext string) (string, error)
	NextFingerprintID() (int, error)
}

// Journal records state transitions. May be nil.
type Journal interface {
	RecordTransition(ctx context.Context, device, stateValue, source string) error
}

// Metrics mirrors transitions to the time series database. May be nil.
type Metrics interface {
	WriteStateChange(device, state, source string)
}

// Logger is the minimal logging interface the hub needs.
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

// fixtures maps wire device names to their state store field. Only these
// appear in change_state traffic.
var fixtures = map[string]state.Field{
	"gate":  state.FieldGate,
	"light": state.FieldLight,
}

// Deps holds the hub's collaborators.
type Deps struct {
	Gateway        Gateway
	Engine         Engine
	Images         ImageSink
	Audio          AudioAssembler
	Transcoder     audio.Transcoder
	Media          MediaStore
	Notifier       chat.Notifier
	State          *state.Store
	Journal        Journal
	Metrics        Metrics
	CommandTimeout time.Duration
	Logger         Logger
}

// Hub routes bus events to the components that act on them.
type Hub struct {
	gw         Gateway
	engine     Engine
	images     ImageSink
	audio      AudioAssembler
	transcoder audio.Transcoder
	media      MediaStore
	notifier   chat.Notifier
	store      *state.Store
	journal    Journal
	metrics    Metrics
	cmdTimeout time.Duration
	logger     Logger
}

// New creates a hub.
func New(deps Deps) (*Hub, error) {
	if deps.Gateway == nil || deps.Engine == nil || deps.State == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("gateway, engine, state and notifier are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Hub{
		gw:         deps.Gateway,
		engine:     deps.Engine,
		images:     deps.Images,
		audio:      deps.Audio,
		transcoder: deps.Transcoder,
		media:      deps.Media,
		notifier:   deps.Notifier,
		store:      deps.State,
		journal:    deps.Journal,
		metrics:    deps.Metrics,
		cmdTimeout: deps.CommandTimeout,
		logger:     logger,
	}, nil
}

// Bus is the interface the hub needs to install its dispatch table.
type Bus interface {
	Register(t event.EventType, h event.Handler) error
}

// Register installs the full dispatch table on the bus. Dispatch covers
// the whole closed event type set; init never reaches the bus because
// the gateway consumes it during registration.
func (h *Hub) Register(bus Bus) error {
	table := map[event.EventType]event.Handler{
		event.TypeChangeState:                 h.handleChangeState,
		event.TypeMotionDetected:              h.handleMotionDetected,
		event.TypePersonDetected:              h.handlePersonDetected,
		event.TypeCaptureImage:                h.handleCaptureImage,
		event.TypeImageData:                   h.handleImageData,
		event.TypeAudioChunk:                  h.handleAudioChunk,
		event.TypeStartAudio:                  h.handleStartAudio,
		event.TypeStopAudio:                   h.handleStopAudio,
		event.TypeGrantAccess:                 h.handleGrantAccess,
		event.TypeDenyAccess:                  h.handleDenyAccess,
		event.TypeResetDevice:                 h.handleResetDevice,
		event.TypeEnrollFingerprint:           h.handleEnrollFingerprint,
		event.TypeFingerprintEnrolled:         h.handleFingerprintEnrolled,
		event.TypeFingerprintEnrollmentFailed: h.handleFingerprintFailed,
		event.TypeMotionEnable:                h.handleMotionEnable,
		event.TypeChangeServer:                h.handleChangeServer,
	}

	for t, handler := range table {
		if err := bus.Register(t, handler); err != nil {
			return fmt.Errorf("registering %s handler: %w", t, err)
		}
	}
	return nil
}

func (h *Hub) handleMotionDetected(ctx context.Context, _ event.Event) {
	h.engine.HandleMotion(ctx)
}

func (h *Hub) handlePersonDetected(ctx context.Context, _ event.Event) {
	h.engine.HandlePerson(ctx)
}

// handleCaptureImage forwards a manual capture request to the camera.
func (h *Hub) handleCaptureImage(_ context.Context, _ event.Event) {
	h.gw.Send(gateway.IdentityCamera, string(event.TypeCaptureImage), nil)
}

func (h *Hub) handleImageData(ctx context.Context, ev event.Event) {
	data := ev.Bytes("data")
	if len(data) == 0 {
		h.logger.Warn("image event with empty payload dropped")
		return
	}
	h.images.EnqueueImage(ctx, data)
}

func (h *Hub) handleAudioChunk(_ context.Context, ev event.Event) {
	data := ev.Bytes("data")
	if len(data) == 0 {
		return
	}
	h.audio.AddChunk(data)
}

func (h *Hub) handleGrantAccess(_ context.Context, _ event.Event) {
	h.engine.HandleAccessDecision(true)
}

func (h *Hub) handleDenyAccess(_ context.Context, _ event.Event) {
	h.engine.HandleAccessDecision(false)
}
