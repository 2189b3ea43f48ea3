package types

import (
	"encoding/json"
	"time"
)

// Inbound event names as sent by clients over the signaling socket.
const (
	EventJoinRoom     = "join-room"
	EventChatMessage  = "chat-message"
	EventSignalOffer  = "signal-offer"
	EventSignalAnswer = "signal-answer"
	EventSignalICE    = "signal-ice"
	EventKickUser     = "kick-user"
)

// Outbound event names emitted by the coordinator.
const (
	EventPeerJoined           = "peer-joined"
	EventExistingParticipants = "existing-participants"
	EventOffer                = "offer"
	EventAnswer               = "answer"
	EventICECandidate         = "ice-candidate"
	EventKickError            = "kick-error"
	EventKicked               = "kicked"
	EventPeerLeft             = "peer-left"
	EventModeratorChanged     = "moderator-changed"
)

// Peer-left reasons.
const (
	LeftReasonKicked       = "kicked"
	LeftReasonDisconnected = "disconnected"
)

// Frame is the wire envelope for every message in either direction.
// Data stays raw on the inbound path so a bad payload for one event
// never affects decoding of the envelope itself.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutFrame pairs an event name with an already-typed payload for sending.
type OutFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Identity is the per-connection identity record owned by the registry.
// Moderator is derived state, mutated on promotion.
type Identity struct {
	Name      string `json:"name"`
	ContactID string `json:"contactId,omitempty"`
	AvatarRef string `json:"avatarRef,omitempty"`
	Moderator bool   `json:"moderator"`
}

// PlaceholderIdentity is the display fallback for a peer whose identity
// record is momentarily missing. Callers opt into it explicitly.
func PlaceholderIdentity() Identity {
	return Identity{Name: "Unknown", Moderator: false}
}

// ChatRecord is a durability-pending chat message. ID and CreatedAt are
// assigned server-side at enqueue time.
type ChatRecord struct {
	ID         string    `json:"id"`
	RoomCode   string    `json:"room_code"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// Room is the durable room row managed by the RoomStore collaborator.
// The in-memory coordinator never touches this type on its hot path.
type Room struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Inbound payloads.

type JoinRoomPayload struct {
	RoomCode       string `json:"roomCode"`
	CallerIdentity string `json:"callerIdentity"`
	DisplayName    string `json:"displayName"`
	AvatarRef      string `json:"avatarRef,omitempty"`
}

type ChatMessagePayload struct {
	RoomCode    string `json:"roomCode"`
	Text        string `json:"text"`
	DisplayName string `json:"displayName"`
}

// SignalPayload covers offer, answer and ICE events. SDP and Candidate are
// forwarded opaquely; the relay never interprets them.
type SignalPayload struct {
	TargetConnectionID string          `json:"targetConnectionId"`
	SDP                json.RawMessage `json:"sdp,omitempty"`
	Candidate          json.RawMessage `json:"candidate,omitempty"`
}

type KickUserPayload struct {
	RoomCode           string `json:"roomCode"`
	TargetConnectionID string `json:"targetConnectionId"`
}

// Outbound payloads.

type Participant struct {
	ConnectionID string   `json:"connectionId"`
	Identity     Identity `json:"identity"`
}

type PeerJoinedPayload struct {
	ConnectionID string   `json:"connectionId"`
	Identity     Identity `json:"identity"`
}

type ExistingParticipantsPayload struct {
	Participants []Participant `json:"participants"`
}

// SignalOutPayload is the forwarded signal augmented with sender identity.
type SignalOutPayload struct {
	SenderConnectionID string          `json:"senderConnectionId"`
	SenderIdentity     Identity        `json:"senderIdentity"`
	SDP                json.RawMessage `json:"sdp,omitempty"`
	Candidate          json.RawMessage `json:"candidate,omitempty"`
}

type ChatBroadcastPayload struct {
	MessageID  string    `json:"messageId"`
	RoomCode   string    `json:"roomCode"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

type KickErrorPayload struct {
	Message string `json:"message"`
}

type KickedPayload struct {
	Message  string `json:"message"`
	KickedBy string `json:"kickedBy"`
}

type PeerLeftPayload struct {
	ConnectionID string   `json:"connectionId"`
	Reason       string   `json:"reason"`
	Identity     Identity `json:"identity"`
}

type ModeratorChangedPayload struct {
	NewModeratorID   string `json:"newModeratorId"`
	NewModeratorName string `json:"newModeratorName"`
}
