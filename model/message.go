package model

import "encoding/json"

// MessageType tags a session websocket message.
type MessageType string

const (
	// Transport events reported by the client player.
	MsgTypePlay           MessageType = "play"
	MsgTypePause          MessageType = "pause"
	MsgTypeSeeked         MessageType = "seeked"
	MsgTypeEnded          MessageType = "ended"
	MsgTypeTimeUpdate     MessageType = "timeupdate"
	MsgTypeLoadedMetadata MessageType = "loadedmetadata"
	MsgTypeAudioEnded     MessageType = "audio_ended"

	// Heartbeat.
	MsgTypePing MessageType = "ping"
	MsgTypePong MessageType = "pong"

	// Transport commands issued to the client player.
	MsgTypeCmdPlay      MessageType = "cmd_play"
	MsgTypeCmdPause     MessageType = "cmd_pause"
	MsgTypeCmdSeek      MessageType = "cmd_seek"
	MsgTypeCmdSetMuted  MessageType = "cmd_set_muted"
	MsgTypeCmdSetVolume MessageType = "cmd_set_volume"
	MsgTypeCmdDispose   MessageType = "cmd_dispose"

	// Render data pushed to the client.
	MsgTypeFrame    MessageType = "frame"
	MsgTypeTimeline MessageType = "timeline"
	MsgTypeWaveform MessageType = "waveform"
	MsgTypeTracks   MessageType = "tracks"
	MsgTypeError    MessageType = "error"
)

// WSMessage is the session websocket envelope.
// TrackID is a pointer because 0 is a valid track (the video track).
type WSMessage struct {
	Type      MessageType     `json:"type"`
	TrackID   *int            `json:"trackId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// TimeUpdateData carries the video position plus the per-track audio
// positions the drift check compares against.
type TimeUpdateData struct {
	CurrentTime float64         `json:"currentTime"`
	Positions   map[int]float64 `json:"positions,omitempty"`
}

// SeekData carries a seek target in seconds.
type SeekData struct {
	Time float64 `json:"time"`
}

// MetadataData carries a resolved media duration in seconds.
type MetadataData struct {
	Duration float64 `json:"duration"`
}

// MutedData carries a mute flag.
type MutedData struct {
	Muted bool `json:"muted"`
}

// VolumeData carries a volume in [0,1].
type VolumeData struct {
	Volume float64 `json:"volume"`
}

// WaveformData carries one track's render-ready waveform band.
type WaveformData struct {
	TrackID int       `json:"trackId"`
	Points  []Point   `json:"points"`
	Samples []float64 `json:"samples"`
}

// ErrorData reports a rejected client message.
type ErrorData struct {
	Message string `json:"message"`
}

// Point is one vertex of a waveform polyline.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
