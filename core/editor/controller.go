package editor

import (
	"fmt"
	"sync"
	"time"

	"clipsync/core/timeline"
	"clipsync/logger"
	"clipsync/model"
)

// State names a playback state of the controller.
type State string

const (
	StateIdle    State = "idle"    // no video loaded
	StateReady   State = "ready"   // video loaded, metadata pending or resolved
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

const (
	// driftThreshold is the absolute audio/video offset that triggers a
	// resnap, in seconds.
	driftThreshold = 0.1

	// driftCheckInterval is the cadence of drift passes. Corrections run
	// when at least this much playback time has passed since the last
	// pass, so irregular timeupdate cadence cannot skip a window.
	driftCheckInterval = 0.5

	// redrawInterval drives the continuous frame emitter. Finer than any
	// timeupdate cadence so the playhead moves smoothly.
	redrawInterval = 33 * time.Millisecond
)

// Controller is the playback state machine. The video transport drives it
// through the Handle* event methods; every audio track follows. All per-
// track failures are logged and contained, never propagated.
type Controller struct {
	mu       sync.Mutex
	registry *Registry
	sink     RenderSink

	state          State
	playback       model.PlaybackState
	lastDriftCheck float64
	lastUpdateAt   time.Time

	redrawStop chan struct{}
	redrawDone chan struct{}
	closed     bool
}

// NewController creates a controller over the given registry.
func NewController(registry *Registry, sink RenderSink) *Controller {
	if sink == nil {
		sink = NopSink{}
	}
	return &Controller{
		registry: registry,
		sink:     sink,
		state:    StateIdle,
		playback: model.PlaybackState{Volume: 1},
	}
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Playback returns a copy of the playback state.
func (c *Controller) Playback() model.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playback
}

// Activate moves the controller out of Idle once a video track is loaded
// and starts the redraw cycle. Loading a replacement video while active
// keeps the controller in Ready.
func (c *Controller) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.state = StateReady
	c.playback.IsPlaying = false
	c.playback.CurrentTime = 0
	c.lastDriftCheck = 0

	if c.redrawStop == nil {
		c.redrawStop = make(chan struct{})
		c.redrawDone = make(chan struct{})
		go c.redrawLoop(c.redrawStop, c.redrawDone)
	}
}

// HandlePlay reacts to the video transport's play event. Unmuted audio
// tracks that previously ended or sit at position 0 are reset to 0, then
// started. A track that refuses to start is logged and skipped; the video
// keeps playing without it.
func (c *Controller) HandlePlay() {
	c.mu.Lock()
	if c.state == StateIdle || c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StatePlaying
	c.playback.IsPlaying = true
	c.lastUpdateAt = time.Now()
	c.mu.Unlock()

	for _, ref := range c.registry.AudioRefs() {
		if ref.Muted {
			continue
		}
		if ref.Ended || ref.Transport.Position() == 0 {
			if err := ref.Transport.Seek(0); err != nil {
				logger.Warn("audio reset failed",
					logger.Int("trackId", ref.ID),
					logger.ErrorField(err))
			}
			if err := c.registry.SetEnded(ref.ID, false); err != nil {
				logger.Warn("clear ended flag failed",
					logger.Int("trackId", ref.ID),
					logger.ErrorField(err))
			}
		}
		if err := ref.Transport.Play(); err != nil {
			// Autoplay rejection or a transient media error. The track
			// just does not play this round.
			logger.Warn("audio playback start rejected",
				logger.Int("trackId", ref.ID),
				logger.ErrorField(err))
		}
	}
}

// HandlePause reacts to the video transport's pause event. Every audio
// track is paused, muted ones included.
func (c *Controller) HandlePause() {
	c.mu.Lock()
	if c.state == StateIdle || c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StatePaused
	c.playback.IsPlaying = false
	c.mu.Unlock()

	for _, ref := range c.registry.AudioRefs() {
		if err := ref.Transport.Pause(); err != nil {
			logger.Warn("audio pause failed",
				logger.Int("trackId", ref.ID),
				logger.ErrorField(err))
		}
	}
}

// HandleEnded reacts to the video reaching its end: every audio track is
// paused and rewound to 0.
func (c *Controller) HandleEnded() {
	c.mu.Lock()
	if c.state == StateIdle || c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateEnded
	c.playback.IsPlaying = false
	c.mu.Unlock()

	for _, ref := range c.registry.AudioRefs() {
		if err := ref.Transport.Pause(); err != nil {
			logger.Warn("audio pause failed",
				logger.Int("trackId", ref.ID),
				logger.ErrorField(err))
		}
		if err := ref.Transport.Seek(0); err != nil {
			logger.Warn("audio rewind failed",
				logger.Int("trackId", ref.ID),
				logger.ErrorField(err))
		}
	}
}

// HandleSeeked reacts to the video position having moved (user drag or
// programmatic seek reported by the client).
func (c *Controller) HandleSeeked(target float64) {
	c.mu.Lock()
	if c.state == StateIdle || c.closed {
		c.mu.Unlock()
		return
	}
	c.playback.CurrentTime = target
	c.lastUpdateAt = time.Now()
	c.lastDriftCheck = target
	c.mu.Unlock()

	c.syncAudioTo(target)
}

// Seek moves the whole timeline from the shared scrubber. The caller is
// expected to clamp target to [0, sharedDuration]. The video transport is
// seeked and every audio track follows the same rule as HandleSeeked.
func (c *Controller) Seek(target float64) {
	c.mu.Lock()
	if c.state == StateIdle || c.closed {
		c.mu.Unlock()
		return
	}
	c.playback.CurrentTime = target
	c.lastUpdateAt = time.Now()
	c.lastDriftCheck = target
	c.mu.Unlock()

	if video := c.registry.VideoTransport(); video != nil {
		if err := video.Seek(target); err != nil {
			logger.Warn("video seek failed",
				logger.Float64("target", target),
				logger.ErrorField(err))
		}
	}
	c.syncAudioTo(target)
}

// syncAudioTo applies the seek policy to every audio track: seek when the
// target lies within the track's known duration, pause when it lies past
// the end (never clamp or loop), and leave tracks with unresolved
// metadata alone.
func (c *Controller) syncAudioTo(target float64) {
	for _, ref := range c.registry.AudioRefs() {
		if !ref.Duration.Known {
			continue
		}
		if target <= ref.Duration.Seconds {
			if err := ref.Transport.Seek(target); err != nil {
				logger.Warn("audio seek failed",
					logger.Int("trackId", ref.ID),
					logger.Float64("target", target),
					logger.ErrorField(err))
				continue
			}
			if ref.Ended && target < ref.Duration.Seconds {
				if err := c.registry.SetEnded(ref.ID, false); err != nil {
					logger.Warn("clear ended flag failed",
						logger.Int("trackId", ref.ID),
						logger.ErrorField(err))
				}
			}
		} else {
			if err := ref.Transport.Pause(); err != nil {
				logger.Warn("audio pause failed",
					logger.Int("trackId", ref.ID),
					logger.ErrorField(err))
			}
		}
	}
}

// HandleTimeUpdate advances the playback clock from the video transport
// and runs the drift pass roughly every driftCheckInterval seconds of
// playback. Unmuted audio tracks whose reported position has drifted more
// than driftThreshold from the video are snapped back.
func (c *Controller) HandleTimeUpdate(currentTime float64) {
	c.mu.Lock()
	if c.state == StateIdle || c.closed {
		c.mu.Unlock()
		return
	}
	c.playback.CurrentTime = currentTime
	c.lastUpdateAt = time.Now()

	runDrift := false
	if c.state == StatePlaying {
		if currentTime < c.lastDriftCheck {
			// Position jumped backwards without a seeked event; rebase.
			c.lastDriftCheck = currentTime
		} else if currentTime-c.lastDriftCheck >= driftCheckInterval {
			c.lastDriftCheck = currentTime
			runDrift = true
		}
	}
	c.mu.Unlock()

	if !runDrift {
		return
	}

	for _, ref := range c.registry.AudioRefs() {
		if ref.Muted || ref.Ended {
			continue
		}
		if ref.Duration.Known && currentTime > ref.Duration.Seconds {
			// Past this track's end; it is paused by the seek policy.
			continue
		}
		pos := ref.Transport.Position()
		drift := pos - currentTime
		if drift > driftThreshold || drift < -driftThreshold {
			logger.Debug("resnapping drifted audio track",
				logger.Int("trackId", ref.ID),
				logger.Float64("drift", drift))
			if err := ref.Transport.Seek(currentTime); err != nil {
				logger.Warn("drift correction seek failed",
					logger.Int("trackId", ref.ID),
					logger.ErrorField(err))
			}
		}
	}
}

// ResolveDuration records a track's duration and pushes the recomputed
// timeline to the render sink. For the video track this is also the
// metadata-arrived signal.
func (c *Controller) ResolveDuration(trackID int, seconds float64) error {
	if err := c.registry.ResolveDuration(trackID, seconds); err != nil {
		return err
	}

	c.mu.Lock()
	current := c.playback.CurrentTime
	c.mu.Unlock()

	c.sink.Timeline(timeline.State(current, c.registry.SharedDuration()))
	return nil
}

// HandleAudioEnded marks an audio track as having reached its own end.
// The next play transition rewinds it.
func (c *Controller) HandleAudioEnded(trackID int) {
	if err := c.registry.SetEnded(trackID, true); err != nil {
		logger.Warn("set ended flag failed",
			logger.Int("trackId", trackID),
			logger.ErrorField(err))
	}
}

// SetTrackMuted toggles one audio track's mute flag. It takes effect
// immediately in any state and only silences output; the transport keeps
// its position. The video track is refused here; SetMasterMuted owns it.
func (c *Controller) SetTrackMuted(trackID int, muted bool) error {
	if trackID == 0 {
		return fmt.Errorf("track 0 is the video track, use master mute")
	}
	if err := c.registry.SetMuted(trackID, muted); err != nil {
		return err
	}
	for _, ref := range c.registry.AudioRefs() {
		if ref.ID != trackID {
			continue
		}
		if err := ref.Transport.SetMuted(muted); err != nil {
			logger.Warn("audio mute toggle failed",
				logger.Int("trackId", trackID),
				logger.ErrorField(err))
		}
	}
	return nil
}

// SetMasterMuted mutes the video transport's output.
func (c *Controller) SetMasterMuted(muted bool) {
	c.mu.Lock()
	c.playback.IsMuted = muted
	c.mu.Unlock()

	if video := c.registry.VideoTransport(); video != nil {
		if err := video.SetMuted(muted); err != nil {
			logger.Warn("video mute toggle failed", logger.ErrorField(err))
		}
	}
}

// SetVolume sets the master volume, mirrored to the video transport.
// Values are clamped to [0,1].
func (c *Controller) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}

	c.mu.Lock()
	c.playback.Volume = volume
	c.mu.Unlock()

	if video := c.registry.VideoTransport(); video != nil {
		if err := video.SetVolume(volume); err != nil {
			logger.Warn("video volume change failed", logger.ErrorField(err))
		}
	}
}

// Timeline returns the current derived timeline state.
func (c *Controller) Timeline() model.TimelineState {
	c.mu.Lock()
	current := c.playback.CurrentTime
	c.mu.Unlock()
	return timeline.State(current, c.registry.SharedDuration())
}

// Close stops the redraw cycle and detaches the controller. Safe to call
// more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateIdle
	stop := c.redrawStop
	done := c.redrawDone
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// redrawLoop emits render frames at redrawInterval until stopped. Between
// timeupdate events the position is extrapolated from the wall clock so
// the playhead stays visually smooth under coarse event cadence.
func (c *Controller) redrawLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			estimated := c.playback.CurrentTime
			if c.playback.IsPlaying {
				estimated += time.Since(c.lastUpdateAt).Seconds()
			}
			isPlaying := c.playback.IsPlaying
			c.mu.Unlock()

			shared := c.registry.SharedDuration()
			c.sink.Frame(model.RenderFrame{
				CurrentTime:     estimated,
				PlayheadPercent: timeline.PlayheadPercent(estimated, shared),
				IsPlaying:       isPlaying,
			})

		case <-stop:
			return
		}
	}
}
