package model

// TrackKind distinguishes the single video track from the audio tracks.
type TrackKind string

const (
	TrackKindVideo TrackKind = "video"
	TrackKindAudio TrackKind = "audio"
)

// Duration is a settable-once duration with an explicit unknown state.
// Media metadata resolves asynchronously, so "not yet known" and zero
// must not be conflated when computing the shared timeline length.
type Duration struct {
	Seconds float64 `json:"seconds"`
	Known   bool    `json:"known"`
}

// KnownDuration returns a resolved duration.
func KnownDuration(seconds float64) Duration {
	return Duration{Seconds: seconds, Known: true}
}

// UnknownDuration returns the unresolved state.
func UnknownDuration() Duration {
	return Duration{}
}

// Track represents one playable unit in an editor session.
// ID 0 is always the video track; audio tracks occupy 1..N in the order
// they were added.
type Track struct {
	ID        int       `json:"id"`
	Kind      TrackKind `json:"kind"`
	Name      string    `json:"name"`
	SourceKey string    `json:"-"` // object key of the stored clip, not exposed in the API
	Duration  Duration  `json:"duration"`
	Muted     bool      `json:"muted"`
	Ended     bool      `json:"ended"`
	Waveform  []float64 `json:"waveform,omitempty"`
}

// PlaybackState mirrors the video transport and is the single source of
// truth for the current playback position.
type PlaybackState struct {
	IsPlaying   bool    `json:"isPlaying"`
	CurrentTime float64 `json:"currentTime"`
	Volume      float64 `json:"volume"`
	IsMuted     bool    `json:"isMuted"`
}

// TimelineState is derived from the registry and the playback position.
type TimelineState struct {
	SharedDuration  float64  `json:"sharedDuration"`
	TickMarkers     []string `json:"tickMarkers"`
	PlayheadPercent float64  `json:"playheadPercent"`
}

// RenderFrame is one playhead update pushed on the redraw cycle.
type RenderFrame struct {
	CurrentTime     float64 `json:"currentTime"`
	PlayheadPercent float64 `json:"playheadPercent"`
	IsPlaying       bool    `json:"isPlaying"`
}
