package editor

import (
	"sync"

	"clipsync/model"
)

// fakeTransport records transport commands for assertions.
type fakeTransport struct {
	mu       sync.Mutex
	trackID  int
	position float64
	playing  bool
	muted    bool
	volume   float64
	closed   bool
	playErr  error
	seeks    []float64
	pauses   int
	plays    int
}

func (f *fakeTransport) SetTrackID(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackID = id
}

func (f *fakeTransport) currentTrackID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trackID
}

func (f *fakeTransport) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeTransport) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	f.playing = false
	return nil
}

func (f *fakeTransport) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
	f.position = seconds
	return nil
}

func (f *fakeTransport) SetMuted(muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
	return nil
}

func (f *fakeTransport) SetVolume(volume float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
	return nil
}

func (f *fakeTransport) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) setPosition(p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = p
}

func (f *fakeTransport) seekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seeks)
}

func (f *fakeTransport) lastSeek() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seeks) == 0 {
		return 0, false
	}
	return f.seeks[len(f.seeks)-1], true
}

func (f *fakeTransport) pauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses
}

func (f *fakeTransport) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// captureSink records render output for assertions.
type captureSink struct {
	mu        sync.Mutex
	frames    []model.RenderFrame
	timelines []model.TimelineState
	waveforms map[int][]float64
}

func newCaptureSink() *captureSink {
	return &captureSink{waveforms: make(map[int][]float64)}
}

func (s *captureSink) Frame(frame model.RenderFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *captureSink) Timeline(state model.TimelineState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timelines = append(s.timelines, state)
}

func (s *captureSink) Waveform(trackID int, samples []float64, points []model.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waveforms[trackID] = samples
}

func (s *captureSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *captureSink) timelineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timelines)
}

func (s *captureSink) lastTimeline() (model.TimelineState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timelines) == 0 {
		return model.TimelineState{}, false
	}
	return s.timelines[len(s.timelines)-1], true
}
