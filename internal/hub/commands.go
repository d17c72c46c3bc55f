package hub

import (
	"context"
	"fmt"

	"github.com/porterhq/porter-core/internal/audio"
	"github.com/porterhq/porter-core/internal/event"
	"github.com/porterhq/porter-core/internal/gateway"
)

// targetIdentity resolves the optional "device" field of a maintenance
// command; the camera is the default target.
func targetIdentity(ev event.Event) (gateway.Identity, error) {
	name := ev.Str("device")
	if name == "" {
		return gateway.IdentityCamera, nil
	}
	return gateway.ParseIdentity(name)
}

// handleResetDevice relays a reboot command to the named device.
func (h *Hub) handleResetDevice(ctx context.Context, ev event.Event) {
	identity, err := targetIdentity(ev)
	if err != nil {
		h.logger.Warn("reset for unknown device dropped", "device", ev.Str("device"))
		return
	}
	h.logger.Info("device reset requested", "device", identity)
	h.gw.Send(identity, string(event.TypeResetDevice), nil)

	text := fmt.Sprintf("Reset sent to the %s.", identity)
	if err := h.notifier.Notify(ctx, text); err != nil {
		h.logger.Warn("reset notice failed", "error", err)
	}
}

// handleMotionEnable relays motion detection on/off to the camera.
func (h *Hub) handleMotionEnable(_ context.Context, ev event.Event) {
	enabled, _ := ev.Data["enabled"].(bool)
	h.logger.Info("motion detection toggled", "enabled", enabled)
	h.gw.Send(gateway.IdentityCamera, string(event.TypeMotionEnable), map[string]any{
		"enabled": enabled,
	})
}

// handleChangeServer relays a new hub address to the named device.
func (h *Hub) handleChangeServer(_ context.Context, ev event.Event) {
	identity, err := targetIdentity(ev)
	if err != nil {
		h.logger.Warn("server change for unknown device dropped", "device", ev.Str("device"))
		return
	}
	address := ev.Str("address")
	if address == "" {
		h.logger.Warn("server change without address dropped")
		return
	}
	h.logger.Info("server change requested", "device", identity, "address", address)
	h.gw.Send(identity, string(event.TypeChangeServer), map[string]any{
		"address": address,
	})
}

// handleEnrollFingerprint allocates the next enrollment slot and starts
// enrollment on the controller.
func (h *Hub) handleEnrollFingerprint(ctx context.Context, ev event.Event) {
	if h.media == nil {
		h.logger.Warn("fingerprint enrollment unavailable, no media store")
		return
	}
	id, err := h.media.NextFingerprintID()
	if err != nil {
		h.logger.Error("allocating fingerprint slot failed", "error", err)
		if nerr := h.notifier.NotifyFailure(ctx, "Fingerprint enrollment could not start."); nerr != nil {
			h.logger.Warn("failure notice failed", "error", nerr)
		}
		return
	}

	name := ev.Str("name")
	h.logger.Info("fingerprint enrollment started", "slot", id, "name", name)
	h.gw.Send(gateway.IdentityController, string(event.TypeEnrollFingerprint), map[string]any{
		"id":   id,
		"name": name,
	})

	text := fmt.Sprintf("Enrollment slot %d ready. Place the finger on the reader.", id)
	if err := h.notifier.Notify(ctx, text); err != nil {
		h.logger.Warn("enrollment notice failed", "error", err)
	}
}

func (h *Hub) handleFingerprintEnrolled(ctx context.Context, ev event.Event) {
	h.logger.Info("fingerprint enrolled", "slot", ev.Data["id"])
	if err := h.notifier.Notify(ctx, "Fingerprint enrolled successfully."); err != nil {
		h.logger.Warn("enrollment notice failed", "error", err)
	}
}

func (h *Hub) handleFingerprintFailed(ctx context.Context, ev event.Event) {
	reason := ev.Str("reason")
	h.logger.Warn("fingerprint enrollment failed", "reason", reason)

	text := "Fingerprint enrollment failed."
	if reason != "" {
		text = fmt.Sprintf("Fingerprint enrollment failed: %s.", reason)
	}
	if err := h.notifier.NotifyFailure(ctx, text); err != nil {
		h.logger.Warn("failure notice failed", "error", err)
	}
}

// handleStartAudio tells the camera to start streaming audio chunks.
func (h *Hub) handleStartAudio(_ context.Context, _ event.Event) {
	h.logger.Info("audio session started")
	h.gw.Send(gateway.IdentityCamera, string(event.TypeStartAudio), nil)
}

// handleStopAudio stops the stream, assembles everything buffered,
// transcodes it to WAV and saves it.
func (h *Hub) handleStopAudio(ctx context.Context, _ event.Event) {
	h.gw.Send(gateway.IdentityCamera, string(event.TypeStopAudio), nil)

	raw := h.audio.GetAndReset(ctx)
	if len(raw) == 0 {
		h.logger.Info("audio session ended with no data")
		return
	}
	if h.media == nil {
		h.logger.Warn("audio session dropped, no media store", "bytes", len(raw))
		return
	}

	data := raw
	ext := string(audio.FormatPCM)
	if h.transcoder != nil {
		wav, err := h.transcoder.Transcode(ctx, raw, audio.FormatPCM, audio.FormatWAV)
		if err != nil {
			// Keep the raw stream rather than losing the recording.
			h.logger.Error("transcoding recording failed, keeping raw", "error", err)
		} else {
			data = wav
			ext = string(audio.FormatWAV)
		}
	}

	path, err := h.media.SaveDeviceAudio(data, ext)
	if err != nil {
		h.logger.Error("saving recording failed", "error", err)
		if nerr := h.notifier.NotifyFailure(ctx, "Recording could not be saved."); nerr != nil {
			h.logger.Warn("failure notice failed", "error", nerr)
		}
		return
	}

	h.logger.Info("audio session saved", "path", path, "bytes", len(data))
	text := fmt.Sprintf("Recording saved: %s", path)
	if err := h.notifier.Notify(ctx, text); err != nil {
		h.logger.Warn("recording notice failed", "error", err)
	}
}
