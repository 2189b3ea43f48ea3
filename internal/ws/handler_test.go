package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/myselfprincee/vido-backend/internal/chat"
	"github.com/myselfprincee/vido-backend/internal/coordinator"
	"github.com/myselfprincee/vido-backend/internal/registry"
	"github.com/myselfprincee/vido-backend/internal/relay"
	"github.com/myselfprincee/vido-backend/internal/room"
	"github.com/myselfprincee/vido-backend/pkg/types"
)

type noopRoomStore struct{}

func (noopRoomStore) ResolveRoomID(ctx context.Context, code string) (int64, error) { return 1, nil }
func (noopRoomStore) IsRoomCreator(ctx context.Context, code, caller string) (bool, error) {
	return false, nil
}
func (noopRoomStore) CreateRoom(ctx context.Context, room *types.Room) error { return nil }
func (noopRoomStore) HealthCheck(ctx context.Context) error                  { return nil }
func (noopRoomStore) Close() error                                           { return nil }

func newTestServer(t *testing.T, opts coordinator.Options) (*coordinator.Coordinator, *httptest.Server) {
	coord := coordinator.NewCoordinator(
		registry.NewRegistry(),
		room.NewIndex(),
		relay.NewRelay(),
		chat.NewBuffer(),
		noopRoomStore{},
		opts,
	)
	handler := NewHandler(coord, 30*time.Second, 60*time.Second)

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)
	return coord, server
}

func dial(t *testing.T, serverURL, resumeID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http")
	if resumeID != "" {
		url += "?resume=" + resumeID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads one envelope with a deadline so a missing frame fails the
// test instead of hanging it.
func readFrame(t *testing.T, conn *websocket.Conn) types.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	var frame types.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Failed to decode frame: %v", err)
	}
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	raw, _ := json.Marshal(types.Frame{Event: event, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}
}

func waitForStat(t *testing.T, coord *coordinator.Coordinator, key string, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for coord.Stats()[key] != want {
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for %s=%d, stats=%v", key, want, coord.Stats())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHandler_ConnectAndJoin(t *testing.T) {
	coord, server := newTestServer(t, coordinator.Options{})

	client := dial(t, server.URL, "")
	waitForStat(t, coord, "live_connections", 1)

	sendFrame(t, client, types.EventJoinRoom, types.JoinRoomPayload{
		RoomCode:    "ROOM1",
		DisplayName: "Alice",
	})

	frame := readFrame(t, client)
	if frame.Event != types.EventExistingParticipants {
		t.Fatalf("Expected existing-participants, got %q", frame.Event)
	}
	var payload types.ExistingParticipantsPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if len(payload.Participants) != 0 {
		t.Errorf("Expected an empty room, got %d participants", len(payload.Participants))
	}

	waitForStat(t, coord, "active_rooms", 1)
}

func TestHandler_TwoClientsSeeEachOther(t *testing.T) {
	coord, server := newTestServer(t, coordinator.Options{})

	a := dial(t, server.URL, "")
	b := dial(t, server.URL, "")
	waitForStat(t, coord, "live_connections", 2)

	sendFrame(t, a, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Alice"})
	if frame := readFrame(t, a); frame.Event != types.EventExistingParticipants {
		t.Fatalf("Expected snapshot for first joiner, got %q", frame.Event)
	}

	sendFrame(t, b, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Bob"})

	bFrame := readFrame(t, b)
	if bFrame.Event != types.EventExistingParticipants {
		t.Fatalf("Expected snapshot for second joiner, got %q", bFrame.Event)
	}
	var snapshot types.ExistingParticipantsPayload
	if err := json.Unmarshal(bFrame.Data, &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if len(snapshot.Participants) != 1 || snapshot.Participants[0].Identity.Name != "Alice" {
		t.Errorf("Expected Bob to see Alice, got %+v", snapshot.Participants)
	}

	aFrame := readFrame(t, a)
	if aFrame.Event != types.EventPeerJoined {
		t.Fatalf("Expected peer-joined for first client, got %q", aFrame.Event)
	}
	var joined types.PeerJoinedPayload
	if err := json.Unmarshal(aFrame.Data, &joined); err != nil {
		t.Fatalf("Failed to decode peer-joined: %v", err)
	}
	if joined.Identity.Name != "Bob" {
		t.Errorf("Expected Bob to be announced, got %+v", joined.Identity)
	}
}

func TestHandler_DisconnectNotifiesRoom(t *testing.T) {
	coord, server := newTestServer(t, coordinator.Options{})

	a := dial(t, server.URL, "")
	b := dial(t, server.URL, "")
	waitForStat(t, coord, "live_connections", 2)

	sendFrame(t, a, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Alice"})
	readFrame(t, a) // snapshot
	sendFrame(t, b, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Bob"})
	readFrame(t, b) // snapshot
	readFrame(t, a) // peer-joined

	b.Close()

	frame := readFrame(t, a)
	if frame.Event != types.EventPeerLeft {
		t.Fatalf("Expected peer-left, got %q", frame.Event)
	}
	var payload types.PeerLeftPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("Failed to decode peer-left: %v", err)
	}
	if payload.Reason != types.LeftReasonDisconnected {
		t.Errorf("Expected disconnected reason, got %q", payload.Reason)
	}
	if payload.Identity.Name != "Bob" {
		t.Errorf("Expected Bob's identity, got %+v", payload.Identity)
	}
}

func TestHandler_MalformedFrameKeepsConnectionAlive(t *testing.T) {
	coord, server := newTestServer(t, coordinator.Options{})

	client := dial(t, server.URL, "")
	waitForStat(t, coord, "live_connections", 1)

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{not json`)); err != nil {
		t.Fatalf("Failed to send garbage: %v", err)
	}

	// The connection survives; a valid join still works.
	sendFrame(t, client, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Alice"})
	if frame := readFrame(t, client); frame.Event != types.EventExistingParticipants {
		t.Fatalf("Expected join after garbage to succeed, got %q", frame.Event)
	}
}

func TestHandler_ResumeWithinGraceWindow(t *testing.T) {
	coord, server := newTestServer(t, coordinator.Options{GraceWindow: time.Hour})

	a := dial(t, server.URL, "")
	b := dial(t, server.URL, "")
	waitForStat(t, coord, "live_connections", 2)

	sendFrame(t, a, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Alice"})
	readFrame(t, a)
	sendFrame(t, b, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Bob"})
	readFrame(t, b)
	joined := readFrame(t, a)

	var announce types.PeerJoinedPayload
	if err := json.Unmarshal(joined.Data, &announce); err != nil {
		t.Fatalf("Failed to decode peer-joined: %v", err)
	}
	bobID := announce.ConnectionID

	b.Close()
	waitForStat(t, coord, "suspended_connections", 1)

	// Reconnect with the old id; membership carries over so Bob can chat
	// without re-joining, and nobody saw a peer-left.
	b2 := dial(t, server.URL, bobID)
	waitForStat(t, coord, "suspended_connections", 0)

	sendFrame(t, b2, types.EventChatMessage, types.ChatMessagePayload{RoomCode: "ROOM1", Text: "back"})

	frame := readFrame(t, a)
	if frame.Event != types.EventChatMessage {
		t.Fatalf("Expected resumed client's chat, got %q", frame.Event)
	}
	var msg types.ChatBroadcastPayload
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("Failed to decode chat: %v", err)
	}
	if msg.SenderID != bobID || msg.Text != "back" {
		t.Errorf("Unexpected chat payload: %+v", msg)
	}
}

func TestHandler_ResumeUnknownIDStartsFresh(t *testing.T) {
	coord, server := newTestServer(t, coordinator.Options{GraceWindow: time.Hour})

	client := dial(t, server.URL, "stale-id")
	waitForStat(t, coord, "live_connections", 1)

	// No suspension pending, so the connection starts fresh and must join
	// before chatting.
	sendFrame(t, client, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Alice"})
	if frame := readFrame(t, client); frame.Event != types.EventExistingParticipants {
		t.Fatalf("Expected a fresh join flow, got %q", frame.Event)
	}

	// A second joiner's snapshot reveals the first client's id; the ignored
	// resume parameter must not have become its identity.
	observer := dial(t, server.URL, "")
	sendFrame(t, observer, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Olive"})

	frame := readFrame(t, observer)
	var snapshot types.ExistingParticipantsPayload
	if err := json.Unmarshal(frame.Data, &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if len(snapshot.Participants) != 1 {
		t.Fatalf("Expected one participant, got %+v", snapshot.Participants)
	}
	if snapshot.Participants[0].ConnectionID == "stale-id" {
		t.Error("Expected a minted id, got the client-supplied resume id")
	}
}

func TestHandler_ResumeLiveIDDoesNotCaptureTraffic(t *testing.T) {
	coord, server := newTestServer(t, coordinator.Options{GraceWindow: time.Hour})

	alice := dial(t, server.URL, "")
	bob := dial(t, server.URL, "")
	waitForStat(t, coord, "live_connections", 2)

	sendFrame(t, alice, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Alice"})
	readFrame(t, alice) // snapshot

	sendFrame(t, bob, types.EventJoinRoom, types.JoinRoomPayload{RoomCode: "ROOM1", DisplayName: "Bob"})
	snap := readFrame(t, bob)
	readFrame(t, alice) // peer-joined

	// Any room member learns the others' broadcast ids from its snapshot.
	var snapshot types.ExistingParticipantsPayload
	if err := json.Unmarshal(snap.Data, &snapshot); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if len(snapshot.Participants) != 1 {
		t.Fatalf("Expected one participant, got %+v", snapshot.Participants)
	}
	aliceID := snapshot.Participants[0].ConnectionID

	// Redialing with a live peer's id must yield a fresh connection, never
	// Alice's transport slot.
	intruder := dial(t, server.URL, aliceID)
	waitForStat(t, coord, "live_connections", 3)

	// Signaling addressed to Alice still reaches Alice.
	sendFrame(t, bob, types.EventSignalOffer, types.SignalPayload{
		TargetConnectionID: aliceID,
		SDP:                json.RawMessage(`{"type":"offer"}`),
	})
	frame := readFrame(t, alice)
	if frame.Event != types.EventOffer {
		t.Fatalf("Expected Alice to receive the offer, got %q", frame.Event)
	}

	// The redialed connection saw none of it.
	_ = intruder.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := intruder.ReadMessage(); err == nil {
		t.Error("Expected no frames on the connection that redialed with a live id")
	}
}
