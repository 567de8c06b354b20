package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"clipsync/core/editor"
	"clipsync/core/timeline"
	"clipsync/logger"
	"clipsync/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sessionSocket is one client connection for a session. It carries
// transport events up, commands and render data down, and remembers the
// last reported per-track positions for the drift check.
type sessionSocket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	posMu     sync.RWMutex
	positions map[int]float64
}

func newSessionSocket(conn *websocket.Conn) *sessionSocket {
	return &sessionSocket{
		conn:      conn,
		positions: make(map[int]float64),
	}
}

func (s *sessionSocket) send(msg *model.WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *sessionSocket) sendData(msgType model.MessageType, trackID *int, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.send(&model.WSMessage{Type: msgType, TrackID: trackID, Data: data})
}

func (s *sessionSocket) sendError(message string) {
	s.sendData(model.MsgTypeError, nil, model.ErrorData{Message: message})
}

func (s *sessionSocket) position(trackID int) float64 {
	s.posMu.RLock()
	defer s.posMu.RUnlock()
	return s.positions[trackID]
}

func (s *sessionSocket) updatePositions(positions map[int]float64) {
	if len(positions) == 0 {
		return
	}
	s.posMu.Lock()
	for id, pos := range positions {
		s.positions[id] = pos
	}
	s.posMu.Unlock()
}

// socketRegistry maps session IDs to their attached client socket. One
// socket per session; a reconnect replaces the previous connection.
type socketRegistry struct {
	mu      sync.RWMutex
	sockets map[string]*sessionSocket
}

func newSocketRegistry() *socketRegistry {
	return &socketRegistry{sockets: make(map[string]*sessionSocket)}
}

func (r *socketRegistry) get(sessionID string) *sessionSocket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sockets[sessionID]
}

func (r *socketRegistry) attach(sessionID string, socket *sessionSocket) {
	r.mu.Lock()
	old := r.sockets[sessionID]
	r.sockets[sessionID] = socket
	r.mu.Unlock()

	if old != nil {
		old.conn.Close()
	}
}

// detach removes the socket only when it is still the current one, so a
// reconnect's replacement socket is not torn down by the old read loop.
func (r *socketRegistry) detach(sessionID string, socket *sessionSocket) {
	r.mu.Lock()
	if r.sockets[sessionID] == socket {
		delete(r.sockets, sessionID)
	}
	r.mu.Unlock()
}

// remoteTransport relays transport commands to the client's media element
// for one track. With no client attached, commands fail and the
// controller logs and moves on; positions read as 0.
type remoteTransport struct {
	sockets   *socketRegistry
	sessionID string

	mu      sync.Mutex
	trackID int
}

// SetTrackID updates the routing ID. The registry calls this when
// removing a track renumbers the ones after it, so commands keep
// addressing the element the client knows under the new ID.
func (t *remoteTransport) SetTrackID(id int) {
	t.mu.Lock()
	t.trackID = id
	t.mu.Unlock()
}

func (t *remoteTransport) id() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trackID
}

func (t *remoteTransport) socket() (*sessionSocket, error) {
	s := t.sockets.get(t.sessionID)
	if s == nil {
		return nil, fmt.Errorf("no client attached to session %s", t.sessionID)
	}
	return s, nil
}

func (t *remoteTransport) command(msgType model.MessageType, payload interface{}) error {
	s, err := t.socket()
	if err != nil {
		return err
	}
	trackID := t.id()
	if payload == nil {
		return s.send(&model.WSMessage{Type: msgType, TrackID: &trackID})
	}
	return s.sendData(msgType, &trackID, payload)
}

func (t *remoteTransport) Play() error {
	return t.command(model.MsgTypeCmdPlay, nil)
}

func (t *remoteTransport) Pause() error {
	return t.command(model.MsgTypeCmdPause, nil)
}

func (t *remoteTransport) Seek(seconds float64) error {
	return t.command(model.MsgTypeCmdSeek, model.SeekData{Time: seconds})
}

func (t *remoteTransport) SetMuted(muted bool) error {
	return t.command(model.MsgTypeCmdSetMuted, model.MutedData{Muted: muted})
}

func (t *remoteTransport) SetVolume(volume float64) error {
	return t.command(model.MsgTypeCmdSetVolume, model.VolumeData{Volume: volume})
}

func (t *remoteTransport) Position() float64 {
	s, err := t.socket()
	if err != nil {
		return 0
	}
	return s.position(t.id())
}

// Close tells the client to drop the element. Best-effort: a detached
// client has nothing to release.
func (t *remoteTransport) Close() error {
	if err := t.command(model.MsgTypeCmdDispose, nil); err != nil {
		return nil
	}
	return nil
}

// wsSink ships render output to the attached client. Output is dropped
// silently while no client is connected.
type wsSink struct {
	sockets   *socketRegistry
	sessionID string
}

func (s *wsSink) Frame(frame model.RenderFrame) {
	if socket := s.sockets.get(s.sessionID); socket != nil {
		socket.sendData(model.MsgTypeFrame, nil, frame)
	}
}

func (s *wsSink) Timeline(state model.TimelineState) {
	if socket := s.sockets.get(s.sessionID); socket != nil {
		socket.sendData(model.MsgTypeTimeline, nil, state)
	}
}

func (s *wsSink) Waveform(trackID int, samples []float64, points []model.Point) {
	if socket := s.sockets.get(s.sessionID); socket != nil {
		socket.sendData(model.MsgTypeWaveform, nil, model.WaveformData{
			TrackID: trackID,
			Points:  points,
			Samples: samples,
		})
	}
}

// SessionSocketHandler upgrades the session event socket and pumps
// transport events into the controller until the client disconnects.
func (h *APIHandler) SessionSocketHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["session_id"]

	session, ok := h.sessions.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	socket := newSessionSocket(conn)
	h.sockets.attach(sessionID, socket)
	logger.Info("client attached", logger.String("sessionId", sessionID))

	// Bring the fresh client up to date.
	socket.sendData(model.MsgTypeTracks, nil, session.Registry.Snapshot())
	socket.sendData(model.MsgTypeTimeline, nil, session.Controller.Timeline())
	for _, track := range session.Registry.Snapshot() {
		if len(track.Waveform) > 0 {
			socket.sendData(model.MsgTypeWaveform, nil, model.WaveformData{
				TrackID: track.ID,
				Points:  timeline.WaveformBand(track.Waveform, waveformCanvasWidth, waveformCanvasHeight),
				Samples: track.Waveform,
			})
		}
	}

	defer func() {
		h.sockets.detach(sessionID, socket)
		conn.Close()
		logger.Info("client detached", logger.String("sessionId", sessionID))
	}()

	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.String("sessionId", sessionID),
					logger.ErrorField(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg model.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("invalid message format",
				logger.String("sessionId", sessionID),
				logger.ErrorField(err))
			socket.sendError("invalid message format")
			continue
		}

		h.dispatchEvent(session, socket, &msg)
	}
}

// dispatchEvent routes one client event into the controller.
func (h *APIHandler) dispatchEvent(session *editor.Session, socket *sessionSocket, msg *model.WSMessage) {
	controller := session.Controller

	switch msg.Type {
	case model.MsgTypePing:
		socket.send(&model.WSMessage{Type: model.MsgTypePong})

	case model.MsgTypePlay:
		controller.HandlePlay()

	case model.MsgTypePause:
		controller.HandlePause()

	case model.MsgTypeEnded:
		controller.HandleEnded()

	case model.MsgTypeSeeked:
		var data model.SeekData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logger.Warn("bad seeked payload", logger.ErrorField(err))
			socket.sendError("bad seeked payload")
			return
		}
		controller.HandleSeeked(data.Time)

	case model.MsgTypeTimeUpdate:
		var data model.TimeUpdateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logger.Warn("bad timeupdate payload", logger.ErrorField(err))
			socket.sendError("bad timeupdate payload")
			return
		}
		socket.updatePositions(data.Positions)
		controller.HandleTimeUpdate(data.CurrentTime)

	case model.MsgTypeLoadedMetadata:
		if msg.TrackID == nil {
			logger.Warn("loadedmetadata without track id")
			socket.sendError("loadedmetadata requires a track id")
			return
		}
		var data model.MetadataData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logger.Warn("bad loadedmetadata payload", logger.ErrorField(err))
			socket.sendError("bad loadedmetadata payload")
			return
		}
		if err := controller.ResolveDuration(*msg.TrackID, data.Duration); err != nil {
			logger.Warn("duration resolve failed",
				logger.Int("trackId", *msg.TrackID),
				logger.ErrorField(err))
		}

	case model.MsgTypeAudioEnded:
		if msg.TrackID == nil {
			logger.Warn("audio_ended without track id")
			socket.sendError("audio_ended requires a track id")
			return
		}
		controller.HandleAudioEnded(*msg.TrackID)

	default:
		logger.Debug("unhandled message type", logger.String("type", string(msg.Type)))
	}
}
