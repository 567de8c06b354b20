package editor

import (
	"fmt"
	"sync"

	"clipsync/model"
)

// FloorDurationSeconds is the minimum shared timeline length. The timeline
// never collapses below this even with zero tracks or unresolved metadata.
const FloorDurationSeconds = 60.0

// trackRecord keeps every per-track attribute in one struct so replacing
// or removing a track moves duration, mute, and ended state together.
// Parallel per-attribute slices are deliberately not used here.
type trackRecord struct {
	model.Track
	transport Transport
}

// AudioSource describes one audio track to register.
type AudioSource struct {
	Name      string
	SourceKey string
	Transport Transport
}

// AudioRef is a read-only view of one audio track handed to the
// controller. The transport reference is non-owning.
type AudioRef struct {
	ID        int
	Duration  model.Duration
	Muted     bool
	Ended     bool
	Transport Transport
}

// Registry owns the session's tracks: one optional video track (always
// ID 0) and N audio tracks (IDs 1..N, in the order they were added).
type Registry struct {
	mu    sync.RWMutex
	video *trackRecord
	audio []*trackRecord
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// AddVideo installs the video track, replacing and releasing any previous
// one. Duration resets to unknown; metadata resolves later. Returns the
// track ID, always 0.
func (r *Registry) AddVideo(name, sourceKey string, transport Transport) int {
	r.mu.Lock()
	old := r.video
	r.video = &trackRecord{
		Track: model.Track{
			ID:        0,
			Kind:      model.TrackKindVideo,
			Name:      name,
			SourceKey: sourceKey,
			Duration:  model.UnknownDuration(),
		},
		transport: transport,
	}
	r.mu.Unlock()

	if old != nil {
		releaseTransport(0, old.transport)
	}
	return 0
}

// SetAudioTracks replaces the entire audio set atomically and releases the
// previous tracks' transports. Returns the new track IDs, 1..N.
func (r *Registry) SetAudioTracks(sources []AudioSource) []int {
	records := make([]*trackRecord, len(sources))
	ids := make([]int, len(sources))
	for i, src := range sources {
		id := i + 1
		records[i] = &trackRecord{
			Track: model.Track{
				ID:        id,
				Kind:      model.TrackKindAudio,
				Name:      src.Name,
				SourceKey: src.SourceKey,
				Duration:  model.UnknownDuration(),
			},
			transport: src.Transport,
		}
		ids[i] = id
	}

	r.mu.Lock()
	old := r.audio
	r.audio = records
	r.mu.Unlock()

	for _, rec := range old {
		releaseTransport(rec.ID, rec.transport)
	}
	return ids
}

// RemoveAudioTrack removes one audio track and shifts later IDs down by
// one. The whole record moves, so mute/ended/duration stay attached to
// the track they belong to.
func (r *Registry) RemoveAudioTrack(id int) error {
	r.mu.Lock()
	idx := id - 1
	if idx < 0 || idx >= len(r.audio) {
		r.mu.Unlock()
		return fmt.Errorf("no audio track with id %d", id)
	}
	removed := r.audio[idx]
	r.audio = append(r.audio[:idx], r.audio[idx+1:]...)
	for i, rec := range r.audio {
		rec.ID = i + 1
		if s, ok := rec.transport.(trackIDSetter); ok {
			s.SetTrackID(rec.ID)
		}
	}
	r.mu.Unlock()

	releaseTransport(id, removed.transport)
	return nil
}

// ResolveDuration records a track's duration once its metadata is
// available. A second call overwrites; it never errors on repeats.
func (r *Registry) ResolveDuration(id int, seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.record(id)
	if err != nil {
		return err
	}
	rec.Duration = model.KnownDuration(seconds)
	return nil
}

// SetMuted updates a track's mute flag.
func (r *Registry) SetMuted(id int, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.record(id)
	if err != nil {
		return err
	}
	rec.Muted = muted
	return nil
}

// SetEnded updates a track's ended flag.
func (r *Registry) SetEnded(id int, ended bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.record(id)
	if err != nil {
		return err
	}
	rec.Ended = ended
	return nil
}

// SetWaveform attaches a computed amplitude summary to a track.
func (r *Registry) SetWaveform(id int, amplitudes []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.record(id)
	if err != nil {
		return err
	}
	rec.Waveform = amplitudes
	return nil
}

// SharedDuration is the timeline length: the longest known track duration,
// floored at FloorDurationSeconds. Unresolved durations do not contribute;
// they are not zero, just not known yet.
func (r *Registry) SharedDuration() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	shared := FloorDurationSeconds
	if r.video != nil && r.video.Duration.Known && r.video.Duration.Seconds > shared {
		shared = r.video.Duration.Seconds
	}
	for _, rec := range r.audio {
		if rec.Duration.Known && rec.Duration.Seconds > shared {
			shared = rec.Duration.Seconds
		}
	}
	return shared
}

// Track returns a copy of one track's state.
func (r *Registry) Track(id int) (model.Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.record(id)
	if err != nil {
		return model.Track{}, false
	}
	return rec.Track, true
}

// Snapshot returns a copy of all tracks, video first.
func (r *Registry) Snapshot() []model.Track {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracks := make([]model.Track, 0, len(r.audio)+1)
	if r.video != nil {
		tracks = append(tracks, r.video.Track)
	}
	for _, rec := range r.audio {
		tracks = append(tracks, rec.Track)
	}
	return tracks
}

// AudioRefs returns the controller's view of the audio tracks.
func (r *Registry) AudioRefs() []AudioRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]AudioRef, len(r.audio))
	for i, rec := range r.audio {
		refs[i] = AudioRef{
			ID:        rec.ID,
			Duration:  rec.Duration,
			Muted:     rec.Muted,
			Ended:     rec.Ended,
			Transport: rec.transport,
		}
	}
	return refs
}

// HasVideo reports whether a video track is loaded.
func (r *Registry) HasVideo() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.video != nil
}

// VideoTransport returns the video track's transport, or nil.
func (r *Registry) VideoTransport() Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.video == nil {
		return nil
	}
	return r.video.transport
}

// Close releases every track's transport and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	video := r.video
	audio := r.audio
	r.video = nil
	r.audio = nil
	r.mu.Unlock()

	if video != nil {
		releaseTransport(0, video.transport)
	}
	for _, rec := range audio {
		releaseTransport(rec.ID, rec.transport)
	}
}

// record looks a track up by ID. Callers hold the lock.
func (r *Registry) record(id int) (*trackRecord, error) {
	if id == 0 {
		if r.video == nil {
			return nil, fmt.Errorf("no video track loaded")
		}
		return r.video, nil
	}
	idx := id - 1
	if idx < 0 || idx >= len(r.audio) {
		return nil, fmt.Errorf("no audio track with id %d", id)
	}
	return r.audio[idx], nil
}
