package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"clipsync/cache"
	"clipsync/config"
	"clipsync/core/editor"
	"clipsync/core/timeline"
	"clipsync/core/waveform"
	"clipsync/logger"
	"clipsync/model"
	"clipsync/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Canvas dimensions the waveform bands are projected onto. The client
// scales them; only the aspect matters.
const (
	waveformCanvasWidth  = 800.0
	waveformCanvasHeight = 80.0
)

// maxUploadBytes caps one upload request.
const maxUploadBytes = 512 << 20

// APIHandler carries the shared dependencies for all HTTP handlers.
type APIHandler struct {
	cfg       *config.Config
	extractor *waveform.Extractor
	sessions  *editor.Manager
	sockets   *socketRegistry
}

// NewAPIHandler creates the handler set.
func NewAPIHandler(cfg *config.Config, extractor *waveform.Extractor, sessions *editor.Manager) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		extractor: extractor,
		sessions:  sessions,
		sockets:   newSocketRegistry(),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("response encode failed", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	sessionID := mux.Vars(r)["session_id"]
	session, ok := h.sessions.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}

// CreateSessionHandler opens a new editor session.
func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Create(func(id string) (editor.RenderSink, func()) {
		sink := &wsSink{sockets: h.sockets, sessionID: id}
		cleanup := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			storage.RemovePrefix(ctx, clipPrefix(id))
		}
		return sink, cleanup
	})

	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": session.ID})
}

// CloseSessionHandler tears a session down and releases its resources.
func (h *APIHandler) CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	if !h.sessions.Close(sessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// GetSessionHandler returns the session's tracks, playback, and timeline.
func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": session.ID,
		"state":     session.Controller.State(),
		"tracks":    session.Registry.Snapshot(),
		"playback":  session.Controller.Playback(),
		"timeline":  session.Controller.Timeline(),
	})
}

// UploadVideoHandler installs (or replaces) the session's video track.
func (h *APIHandler) UploadVideoHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	media, name, err := readUpload(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sourceKey := h.storeClip(r.Context(), session.ID, "video", name, media)
	transport := &remoteTransport{sockets: h.sockets, sessionID: session.ID, trackID: 0}
	trackID := session.Registry.AddVideo(name, sourceKey, transport)
	session.Controller.Activate()

	// No audio is decoded for the video track; the band is a placeholder
	// with the same shape and contract.
	amplitudes := waveform.VideoPlaceholder(media)
	if err := session.Registry.SetWaveform(trackID, amplitudes); err == nil {
		h.pushWaveform(session.ID, trackID, amplitudes)
	}

	go h.probeDuration(session, trackID, sourceKey, media)

	h.pushTracks(session)
	track, _ := session.Registry.Track(trackID)
	writeJSON(w, http.StatusCreated, track)
}

// UploadAudioHandler replaces the session's audio track set atomically
// with the uploaded files, in form order.
func (h *APIHandler) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no audio files in request")
		return
	}

	payloads := make([][]byte, 0, len(headers))
	sources := make([]editor.AudioSource, 0, len(headers))
	for i, header := range headers {
		media, err := readUploadHeader(header)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payloads = append(payloads, media)
		sources = append(sources, editor.AudioSource{
			Name:      header.Filename,
			SourceKey: h.storeClip(r.Context(), session.ID, "audio", header.Filename, media),
			Transport: &remoteTransport{sockets: h.sockets, sessionID: session.ID, trackID: i + 1},
		})
	}

	ids := session.Registry.SetAudioTracks(sources)
	for i, trackID := range ids {
		go h.resolveAudioWaveform(session, trackID, sources[i].SourceKey, payloads[i])
		go h.probeDuration(session, trackID, sources[i].SourceKey, payloads[i])
	}

	h.pushTracks(session)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"trackIds": ids})
}

// RemoveAudioTrackHandler removes one audio track; later tracks shift
// down by one, carrying their state with them.
func (h *APIHandler) RemoveAudioTrackHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	trackID, err := trackIDVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := session.Registry.RemoveAudioTrack(trackID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	h.pushTracks(session)
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": session.Registry.Snapshot()})
}

// MuteTrackHandler toggles one audio track's mute flag.
func (h *APIHandler) MuteTrackHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	trackID, err := trackIDVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if trackID < 1 {
		writeError(w, http.StatusBadRequest, "track id must address an audio track")
		return
	}

	var data model.MutedData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mute payload")
		return
	}
	if err := session.Controller.SetTrackMuted(trackID, data.Muted); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"trackId": trackID, "muted": data.Muted})
}

// MasterMuteHandler mutes the video output.
func (h *APIHandler) MasterMuteHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var data model.MutedData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mute payload")
		return
	}
	session.Controller.SetMasterMuted(data.Muted)
	writeJSON(w, http.StatusOK, session.Controller.Playback())
}

// VolumeHandler sets the master volume.
func (h *APIHandler) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var data model.VolumeData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid volume payload")
		return
	}
	session.Controller.SetVolume(data.Volume)
	writeJSON(w, http.StatusOK, session.Controller.Playback())
}

// SeekHandler moves the shared scrubber. The target is clamped to
// [0, sharedDuration] here; the controller forwards it as-is.
func (h *APIHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var data model.SeekData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid seek payload")
		return
	}

	target := data.Time
	if target < 0 {
		target = 0
	}
	if shared := session.Registry.SharedDuration(); target > shared {
		target = shared
	}

	session.Controller.Seek(target)
	writeJSON(w, http.StatusOK, session.Controller.Playback())
}

// TimelineHandler returns the derived timeline state.
func (h *APIHandler) TimelineHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Controller.Timeline())
}

// resolveAudioWaveform computes (or fetches from cache) a track's
// amplitude summary and pushes it to the client. Runs off the request
// goroutine; by then the track may already be replaced, so the source
// key is re-checked before storing.
func (h *APIHandler) resolveAudioWaveform(session *editor.Session, trackID int, sourceKey string, media []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	contentKey := waveform.ContentKey(media)
	amplitudes, _ := cache.GetWaveform(ctx, contentKey)
	if amplitudes == nil {
		amplitudes = h.extractor.Extract(ctx, media)
		cache.SetWaveform(ctx, contentKey, amplitudes)
	}

	track, ok := session.Registry.Track(trackID)
	if !ok || track.SourceKey != sourceKey {
		return
	}
	if err := session.Registry.SetWaveform(trackID, amplitudes); err != nil {
		return
	}
	h.pushWaveform(session.ID, trackID, amplitudes)
}

// probeDuration resolves a track's duration server-side. The client's
// loadedmetadata event resolves it too; whichever lands first wins and a
// later overwrite is harmless.
func (h *APIHandler) probeDuration(session *editor.Session, trackID int, sourceKey string, media []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	seconds, err := h.extractor.ProbeDuration(ctx, media)
	if err != nil {
		logger.Debug("server-side duration probe failed",
			logger.Int("trackId", trackID),
			logger.ErrorField(err))
		return
	}

	track, ok := session.Registry.Track(trackID)
	if !ok || track.SourceKey != sourceKey {
		return
	}
	if err := session.Controller.ResolveDuration(trackID, seconds); err != nil {
		logger.Debug("duration resolve failed",
			logger.Int("trackId", trackID),
			logger.ErrorField(err))
	}
}

// storeClip uploads the clip bytes for later retrieval. Storage being
// down only costs durability, not editor function.
func (h *APIHandler) storeClip(ctx context.Context, sessionID, kind, name string, media []byte) string {
	key := fmt.Sprintf("%s%s/%s-%s", clipPrefix(sessionID), kind, uuid.NewString(), name)
	if err := storage.PutClip(ctx, key, media, "application/octet-stream"); err != nil {
		logger.Warn("clip store failed",
			logger.String("key", key),
			logger.ErrorField(err))
	}
	return key
}

func (h *APIHandler) pushWaveform(sessionID string, trackID int, amplitudes []float64) {
	sink := &wsSink{sockets: h.sockets, sessionID: sessionID}
	sink.Waveform(trackID, amplitudes, timeline.WaveformBand(amplitudes, waveformCanvasWidth, waveformCanvasHeight))
}

func (h *APIHandler) pushTracks(session *editor.Session) {
	if socket := h.sockets.get(session.ID); socket != nil {
		socket.sendData(model.MsgTypeTracks, nil, session.Registry.Snapshot())
	}
}

func clipPrefix(sessionID string) string {
	return fmt.Sprintf("sessions/%s/", sessionID)
}

func trackIDVar(r *http.Request) (int, error) {
	var trackID int
	if _, err := fmt.Sscanf(mux.Vars(r)["track_id"], "%d", &trackID); err != nil {
		return 0, fmt.Errorf("invalid track id")
	}
	return trackID, nil
}

func readUpload(r *http.Request, field string) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("invalid multipart form")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("missing %q upload", field)
	}
	defer file.Close()

	media, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(media) == 0 {
		return nil, "", fmt.Errorf("empty upload")
	}
	return media, header.Filename, nil
}

func readUploadHeader(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	media, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", header.Filename, err)
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("empty upload %s", header.Filename)
	}
	return media, nil
}
