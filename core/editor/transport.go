// Package editor holds the per-session editing core: the track registry,
// the playback synchronization controller, and session lifecycle. The
// actual media elements live in the client player; the controller drives
// them through the Transport interface and never blocks on them.
package editor

import (
	"clipsync/logger"
	"clipsync/model"
)

// Transport is the playable handle for one track. Implementations relay
// commands to a client-side media element (or stand in for one in tests).
// Position reports the last known playback position; it may lag the real
// element between reports.
type Transport interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetMuted(muted bool) error
	SetVolume(volume float64) error
	Position() float64
	Close() error
}

// RenderSink receives the derived visual state. Rendering itself is the
// client's job; the sink only ships data.
type RenderSink interface {
	Frame(frame model.RenderFrame)
	Timeline(state model.TimelineState)
	Waveform(trackID int, samples []float64, points []model.Point)
}

// trackIDSetter is implemented by transports whose routing key follows
// the registry numbering. Removing an audio track renumbers the later
// ones, and their transports learn the new ID through this.
type trackIDSetter interface {
	SetTrackID(id int)
}

// NopSink discards all render output. Used for headless sessions and tests.
type NopSink struct{}

func (NopSink) Frame(model.RenderFrame)                {}
func (NopSink) Timeline(model.TimelineState)           {}
func (NopSink) Waveform(int, []float64, []model.Point) {}

// releaseTransport closes a playable handle. Cleanup is best-effort; a
// failing close must not take the session down.
func releaseTransport(trackID int, t Transport) {
	if t == nil {
		return
	}
	if err := t.Close(); err != nil {
		logger.Warn("transport close failed",
			logger.Int("trackId", trackID),
			logger.ErrorField(err))
	}
}
