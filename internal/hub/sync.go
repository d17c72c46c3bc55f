package hub

import (
	"context"
	"fmt"

	"github.com/porterhq/porter-core/internal/event"
	"github.com/porterhq/porter-core/internal/gateway"
	"github.com/porterhq/porter-core/internal/state"
)

// handleChangeState implements cross-device state synchronization.
//
// Device origin: the device is reporting a transition that already
// happened. Record it, and notify the human unless they caused it.
//
// Chat or voice origin: the human (or the voice assistant) wants a
// transition. Raise suppression, forward the command, await the device's
// confirming report, clear suppression regardless of how the wait ended.
func (h *Hub) handleChangeState(ctx context.Context, ev event.Event) {
	device := ev.Str("device")
	value := ev.Str("state")

	field, ok := fixtures[device]
	if !ok {
		h.logger.Warn("state change for unknown device dropped", "device", device)
		return
	}
	if err := state.Validate(field, value); err != nil {
		h.logger.Warn("state change with invalid value dropped",
			"device", device,
			"value", value,
		)
		return
	}

	if ev.Origin == event.OriginDevice {
		h.applyDeviceReport(ctx, device, field, value)
		return
	}
	h.executeCommand(ctx, ev.Origin, device, value)
}

// applyDeviceReport records a device-reported transition.
func (h *Hub) applyDeviceReport(ctx context.Context, device string, field state.Field, value string) {
	suppressed := h.store.GetBool(state.FieldSuppression)

	if err := h.store.Set(field, value); err != nil {
		h.logger.Error("state update failed", "device", device, "error", err)
		return
	}

	h.record(ctx, device, value, string(event.OriginDevice))

	if suppressed {
		// The human asked for this; the command path reports the result.
		return
	}
	text := fmt.Sprintf("The %s is now %s.", device, value)
	if err := h.notifier.Notify(ctx, text); err != nil {
		h.logger.Warn("unprompted transition notice failed", "error", err)
	}
}

// executeCommand drives a human- or voice-initiated transition through
// the controller and waits for the device to confirm.
func (h *Hub) executeCommand(ctx context.Context, origin event.Origin, device, value string) {
	field := fixtures[device]

	if err := h.store.SetBool(state.FieldSuppression, true); err != nil {
		h.logger.Error("raising suppression failed", "error", err)
	}
	defer func() {
		if err := h.store.SetBool(state.FieldSuppression, false); err != nil {
			h.logger.Error("clearing suppression failed", "error", err)
		}
	}()

	h.logger.Info("state command forwarded",
		"device", device,
		"state", value,
		"origin", origin,
	)

	// Capture the confirmation signal before the command leaves, so a
	// device that reports back faster than we resume is still seen.
	confirm := h.store.Watch(field)
	h.gw.Send(gateway.IdentityController, string(event.TypeChangeState), map[string]any{
		"device": device,
		"state":  value,
	})

	if h.store.WaitOn(ctx, confirm, h.cmdTimeout) == state.TimedOut {
		h.logger.Warn("state command unconfirmed",
			"device", device,
			"state", value,
			"timeout", h.cmdTimeout,
		)
		text := fmt.Sprintf("The %s did not confirm the change to %s.", device, value)
		if err := h.notifier.NotifyFailure(ctx, text); err != nil {
			h.logger.Warn("failure notice failed", "error", err)
		}
		return
	}

	// The confirming report was journaled by applyDeviceReport with
	// device origin; add the command's provenance alongside it.
	h.record(ctx, device, h.store.Get(field), string(origin))
}

// record writes a transition to the journal and the metrics sink.
func (h *Hub) record(ctx context.Context, device, value, source string) {
	if h.journal != nil {
		if err := h.journal.RecordTransition(ctx, device, value, source); err != nil {
			h.logger.Error("journaling transition failed", "device", device, "error", err)
		}
	}
	if h.metrics != nil {
		h.metrics.WriteStateChange(device, value, source)
	}
}
