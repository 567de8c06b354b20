package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clipsync/core/editor"
	"clipsync/model"

	"github.com/gorilla/websocket"
)

// newSocketPair upgrades a real websocket connection and returns the
// server-side session socket together with the client end.
func newSocketPair(t *testing.T) (*sessionSocket, *websocket.Conn) {
	t.Helper()

	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	conn := <-serverConns
	t.Cleanup(func() { conn.Close() })
	return newSessionSocket(conn), client
}

func readMessage(t *testing.T, client *websocket.Conn) model.WSMessage {
	t.Helper()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var msg model.WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return msg
}

func TestTransportRoutingFollowsRenumbering(t *testing.T) {
	socket, client := newSocketPair(t)
	sockets := newSocketRegistry()
	sockets.attach("sess", socket)

	newTransport := func(id int) *remoteTransport {
		return &remoteTransport{sockets: sockets, sessionID: "sess", trackID: id}
	}
	reg := editor.NewRegistry()
	reg.SetAudioTracks([]editor.AudioSource{
		{Name: "a", Transport: newTransport(1)},
		{Name: "b", Transport: newTransport(2)},
		{Name: "c", Transport: newTransport(3)},
	})
	if err := reg.RemoveAudioTrack(1); err != nil {
		t.Fatal(err)
	}

	// The old track 2 is exposed as ID 1 now; its commands must carry the
	// ID the client was given in the renumbered tracks snapshot.
	refs := reg.AudioRefs()
	if err := refs[0].Transport.SetMuted(true); err != nil {
		t.Fatal(err)
	}
	msg := readMessage(t, client)
	if msg.Type != model.MsgTypeCmdSetMuted {
		t.Fatalf("message type = %q, want %q", msg.Type, model.MsgTypeCmdSetMuted)
	}
	if msg.TrackID == nil || *msg.TrackID != 1 {
		t.Errorf("command addressed track %v, want 1", msg.TrackID)
	}

	// Position reads follow the renumbering too: the old track 3 reads the
	// position the client reports for ID 2.
	socket.updatePositions(map[int]float64{2: 7.5})
	if got := refs[1].Transport.Position(); got != 7.5 {
		t.Errorf("shifted track position = %v, want 7.5", got)
	}
}

func TestDispatchRejectsBadPayloadWithError(t *testing.T) {
	socket, client := newSocketPair(t)

	h := &APIHandler{}
	session := editor.NewManager().Create(nil)
	t.Cleanup(session.Close)

	h.dispatchEvent(session, socket, &model.WSMessage{
		Type: model.MsgTypeSeeked,
		Data: json.RawMessage(`{`),
	})

	msg := readMessage(t, client)
	if msg.Type != model.MsgTypeError {
		t.Fatalf("message type = %q, want %q", msg.Type, model.MsgTypeError)
	}
	var data model.ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if data.Message == "" {
		t.Error("error payload has no message")
	}
}

func TestDispatchRejectsAudioEndedWithoutTrackID(t *testing.T) {
	socket, client := newSocketPair(t)

	h := &APIHandler{}
	session := editor.NewManager().Create(nil)
	t.Cleanup(session.Close)

	h.dispatchEvent(session, socket, &model.WSMessage{Type: model.MsgTypeAudioEnded})

	msg := readMessage(t, client)
	if msg.Type != model.MsgTypeError {
		t.Fatalf("message type = %q, want %q", msg.Type, model.MsgTypeError)
	}
}
