package coordinator

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/myselfprincee/vido-backend/internal/chat"
	"github.com/myselfprincee/vido-backend/internal/registry"
	"github.com/myselfprincee/vido-backend/internal/relay"
	"github.com/myselfprincee/vido-backend/internal/room"
	"github.com/myselfprincee/vido-backend/pkg/interfaces"
	"github.com/myselfprincee/vido-backend/pkg/types"
)

// Coordinator owns the per-connection lifecycle and composes the registry,
// room index, relay and chat buffer behind a single mutex. All room-state
// mutation is serialized here; the component-level locks below it only
// guard reads issued outside the lifecycle paths (API stats, flusher).
// Deliveries are captured under the lock but written after release, so a
// stalled peer's write buffer never blocks the coordinator.
type Coordinator struct {
	mu        sync.Mutex
	peers     map[string]interfaces.Peer // connectionID -> live transport
	suspended map[string]*time.Timer     // connectionID -> grace expiry

	registry  *registry.Registry
	rooms     *room.Index
	relay     *relay.Relay
	buffer    *chat.Buffer
	roomStore interfaces.RoomStore
	limiter   *RateLimiter

	graceWindow time.Duration
}

// Options tunes lifecycle behavior.
type Options struct {
	// GraceWindow retains a connection's room memberships across a brief
	// transport interruption before declaring it disconnected. 0 disables.
	GraceWindow time.Duration

	// ChatRateLimit caps chat messages per connection per minute. 0 disables.
	ChatRateLimit int
}

// NewCoordinator wires the coordinator over its owned components.
func NewCoordinator(reg *registry.Registry, rooms *room.Index, rel *relay.Relay, buffer *chat.Buffer, roomStore interfaces.RoomStore, opts Options) *Coordinator {
	return &Coordinator{
		peers:       make(map[string]interfaces.Peer),
		suspended:   make(map[string]*time.Timer),
		registry:    reg,
		rooms:       rooms,
		relay:       rel,
		buffer:      buffer,
		roomStore:   roomStore,
		limiter:     NewRateLimiter(opts.ChatRateLimit),
		graceWindow: opts.GraceWindow,
	}
}

// outFrame is one broadcast captured under the state lock for delivery
// after release.
type outFrame struct {
	peers   []interfaces.Peer
	event   string
	payload interface{}
}

func (c *Coordinator) flush(frames []outFrame) {
	for _, f := range frames {
		c.relay.Broadcast(f.peers, "", f.event, f.payload)
	}
}

// Connect registers a freshly established transport. No room membership
// yet. An id already live or suspended is refused; connection ids are
// minted by the transport layer and never collide, so a collision means
// the caller is trying to adopt someone else's id.
func (c *Coordinator) Connect(peer interfaces.Peer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := peer.ID()
	if _, live := c.peers[id]; live {
		log.Printf("Connection refused, id already live: id=%s", id)
		return false
	}
	if _, pending := c.suspended[id]; pending {
		log.Printf("Connection refused, id is suspended: id=%s", id)
		return false
	}

	c.peers[id] = peer
	c.registry.Register(id)
	log.Printf("Connection established: id=%s", id)
	return true
}

// ClaimSuspension atomically claims a pending suspension. Once claimed the
// grace timer is stopped and the id belongs to the caller, who must follow
// up with Reattach. Returns false when the id has no suspension pending.
func (c *Coordinator) ClaimSuspension(connectionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer, ok := c.suspended[connectionID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(c.suspended, connectionID)
	return true
}

// Reattach binds a new transport to a connection id whose suspension the
// caller claimed. Membership and identity carry over unchanged, so no join
// broadcast fires.
func (c *Coordinator) Reattach(peer interfaces.Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.peers[peer.ID()] = peer
	log.Printf("Connection resumed within grace window: id=%s", peer.ID())
}

// Resume reattaches a new transport to a suspended connection id within the
// grace window. The peer must already carry connectionID as its id. Returns
// false when the id has no pending suspension.
func (c *Coordinator) Resume(connectionID string, peer interfaces.Peer) bool {
	if !c.ClaimSuspension(connectionID) {
		return false
	}
	c.Reattach(peer)
	return true
}

// HandleFrame dispatches one inbound event. A malformed payload is logged
// and dropped; it never affects other connections or the coordinator.
func (c *Coordinator) HandleFrame(ctx context.Context, connectionID string, frame types.Frame) {
	var err error

	switch frame.Event {
	case types.EventJoinRoom:
		var p types.JoinRoomPayload
		if err = json.Unmarshal(frame.Data, &p); err == nil {
			err = c.Join(ctx, connectionID, p)
		}
	case types.EventChatMessage:
		var p types.ChatMessagePayload
		if err = json.Unmarshal(frame.Data, &p); err == nil {
			err = c.Chat(connectionID, p)
		}
	case types.EventSignalOffer:
		err = c.signal(connectionID, types.EventOffer, frame.Data)
	case types.EventSignalAnswer:
		err = c.signal(connectionID, types.EventAnswer, frame.Data)
	case types.EventSignalICE:
		err = c.signal(connectionID, types.EventICECandidate, frame.Data)
	case types.EventKickUser:
		var p types.KickUserPayload
		if err = json.Unmarshal(frame.Data, &p); err == nil {
			err = c.Kick(connectionID, p)
		}
	default:
		err = types.ErrInvalidEvent
	}

	if err != nil {
		log.Printf("Event dropped: event=%s conn=%s err=%v", frame.Event, connectionID, err)
	}
}

// Join resolves the caller's creator status, records identity, updates the
// membership index and only then replies with the participant snapshot and
// announces the joiner. The index update strictly precedes capturing the
// snapshot and the broadcast audience, so the two can never disagree about
// membership; the actual writes happen after the lock is released.
func (c *Coordinator) Join(ctx context.Context, connectionID string, payload types.JoinRoomPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	// Collaborator I/O stays outside the state lock.
	isCreator := false
	if c.roomStore != nil && payload.CallerIdentity != "" {
		var err error
		isCreator, err = c.roomStore.IsRoomCreator(ctx, payload.RoomCode, payload.CallerIdentity)
		if err != nil {
			log.Printf("Creator check failed, continuing as non-creator: room=%s err=%v", payload.RoomCode, err)
			isCreator = false
		}
	}

	c.mu.Lock()

	joiner, exists := c.peers[connectionID]
	if !exists {
		c.mu.Unlock()
		return ErrNotConnected
	}

	alreadyMember := c.rooms.IsMember(payload.RoomCode, connectionID)

	identity := types.Identity{
		Name:      payload.DisplayName,
		ContactID: payload.CallerIdentity,
		AvatarRef: payload.AvatarRef,
	}
	if prev, ok := c.registry.Get(connectionID); ok {
		identity.Moderator = prev.Moderator
	}
	c.registry.SetIdentity(connectionID, identity)

	c.rooms.Join(payload.RoomCode, connectionID)

	// First verified creator to join an unmoderated room wins; an incumbent
	// moderator is never displaced.
	if isCreator && c.rooms.AssignModerator(payload.RoomCode, connectionID) {
		identity.Moderator = true
		c.registry.SetModerator(connectionID, true)
		log.Printf("Moderator assigned: room=%s conn=%s", payload.RoomCode, connectionID)
	}

	// A re-join of the same room refreshes identity only; announcing the
	// member again would duplicate it on every peer.
	if alreadyMember {
		c.mu.Unlock()
		return nil
	}

	members := c.rooms.Members(payload.RoomCode)
	participants := make([]types.Participant, 0, len(members)-1)
	for _, memberID := range members {
		if memberID == connectionID {
			continue
		}
		participants = append(participants, types.Participant{
			ConnectionID: memberID,
			Identity:     c.registry.GetOrPlaceholder(memberID),
		})
	}
	audience := c.peersOfLocked(payload.RoomCode)

	c.mu.Unlock()

	c.relay.Send(joiner, types.EventExistingParticipants, types.ExistingParticipantsPayload{
		Participants: participants,
	})
	c.relay.Broadcast(audience, connectionID, types.EventPeerJoined, types.PeerJoinedPayload{
		ConnectionID: connectionID,
		Identity:     identity,
	})

	log.Printf("Joined room: room=%s conn=%s name=%s moderator=%t",
		payload.RoomCode, connectionID, identity.Name, identity.Moderator)
	return nil
}

// Chat buffers the message for persistence and broadcasts it to every other
// current room member. Broadcast and durability are decoupled; a later
// flush failure never claws the message back.
func (c *Coordinator) Chat(connectionID string, payload types.ChatMessagePayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	if !c.limiter.Allow(connectionID) {
		return ErrRateLimited
	}

	c.mu.Lock()

	if !c.rooms.IsMember(payload.RoomCode, connectionID) {
		c.mu.Unlock()
		return ErrNotInRoom
	}

	record := c.buffer.Enqueue(payload.RoomCode, connectionID, payload.DisplayName, payload.Text)
	audience := c.peersOfLocked(payload.RoomCode)

	c.mu.Unlock()

	c.relay.Broadcast(audience, connectionID, types.EventChatMessage, types.ChatBroadcastPayload{
		MessageID:  record.ID,
		RoomCode:   record.RoomCode,
		SenderID:   record.SenderID,
		SenderName: record.SenderName,
		Text:       record.Text,
		Timestamp:  record.CreatedAt,
	})
	return nil
}

// signal forwards a directed offer/answer/ICE event to its target, augmented
// with the sender's known identity. A missing target is a silent drop.
func (c *Coordinator) signal(connectionID, outEvent string, data json.RawMessage) error {
	var payload types.SignalPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	target := c.peers[payload.TargetConnectionID]
	sender := c.registry.GetOrPlaceholder(connectionID)
	c.mu.Unlock()

	c.relay.Forward(target, outEvent, types.SignalOutPayload{
		SenderConnectionID: connectionID,
		SenderIdentity:     sender,
		SDP:                payload.SDP,
		Candidate:          payload.Candidate,
	})
	return nil
}

// Kick removes a target from a room on a moderator's request. Authorization
// failures are reported back to the requester as kick-error, never silently.
func (c *Coordinator) Kick(connectionID string, payload types.KickUserPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	c.mu.Lock()

	requester := c.peers[connectionID]

	if !c.rooms.IsModerator(payload.RoomCode, connectionID) {
		c.mu.Unlock()
		c.relay.Send(requester, types.EventKickError, types.KickErrorPayload{
			Message: "not authorized: only the moderator can remove participants",
		})
		return ErrNotModerator
	}
	if payload.TargetConnectionID == connectionID {
		c.mu.Unlock()
		c.relay.Send(requester, types.EventKickError, types.KickErrorPayload{
			Message: "cannot kick yourself",
		})
		return ErrSelfKick
	}
	if !c.rooms.IsMember(payload.RoomCode, payload.TargetConnectionID) {
		c.mu.Unlock()
		c.relay.Send(requester, types.EventKickError, types.KickErrorPayload{
			Message: "target is not in the room",
		})
		return ErrTargetNotInRoom
	}

	// Capture the target's transport and identity before removal; the
	// transport survives the kick and still receives the notification.
	targetPeer := c.peers[payload.TargetConnectionID]
	targetIdentity := c.registry.GetOrPlaceholder(payload.TargetConnectionID)
	requesterIdentity := c.registry.GetOrPlaceholder(connectionID)

	c.rooms.Leave(payload.RoomCode, payload.TargetConnectionID)
	c.registry.Remove(payload.TargetConnectionID)

	audience := c.peersOfLocked(payload.RoomCode)

	c.mu.Unlock()

	c.relay.Send(targetPeer, types.EventKicked, types.KickedPayload{
		Message:  "you have been removed from the room",
		KickedBy: requesterIdentity.Name,
	})
	c.relay.Broadcast(audience, "", types.EventPeerLeft, types.PeerLeftPayload{
		ConnectionID: payload.TargetConnectionID,
		Reason:       types.LeftReasonKicked,
		Identity:     targetIdentity,
	})

	log.Printf("Kicked from room: room=%s target=%s by=%s",
		payload.RoomCode, payload.TargetConnectionID, connectionID)
	return nil
}

// Disconnecting handles abrupt transport loss. With a grace window
// configured, a connection that belongs to at least one room is suspended
// instead of finalized, giving the client a chance to resume; otherwise the
// disconnect runs immediately.
func (c *Coordinator) Disconnecting(connectionID string) {
	c.mu.Lock()

	if _, exists := c.peers[connectionID]; !exists {
		c.mu.Unlock()
		return
	}
	delete(c.peers, connectionID)

	if c.graceWindow > 0 && len(c.rooms.RoomsOf(connectionID)) > 0 {
		if _, pending := c.suspended[connectionID]; !pending {
			c.suspended[connectionID] = time.AfterFunc(c.graceWindow, func() {
				c.expireSuspension(connectionID)
			})
			log.Printf("Connection suspended for grace window: id=%s window=%s", connectionID, c.graceWindow)
			c.mu.Unlock()
			return
		}
	}

	frames := c.finalizeDisconnectLocked(connectionID)
	c.mu.Unlock()
	c.flush(frames)
}

// expireSuspension runs the full disconnect for a connection whose grace
// window lapsed without a resume.
func (c *Coordinator) expireSuspension(connectionID string) {
	c.mu.Lock()

	if _, pending := c.suspended[connectionID]; !pending {
		c.mu.Unlock()
		return // resumed in the meantime
	}
	delete(c.suspended, connectionID)

	frames := c.finalizeDisconnectLocked(connectionID)
	c.mu.Unlock()
	c.flush(frames)
}

// finalizeDisconnectLocked processes every room membership of the departing
// connection, then removes its registry entry. Membership processing needs
// the last-known identity, so registry removal comes last. Broadcasts are
// returned for the caller to deliver after releasing the lock.
func (c *Coordinator) finalizeDisconnectLocked(connectionID string) []outFrame {
	identity := c.registry.GetOrPlaceholder(connectionID)

	var frames []outFrame
	for _, roomCode := range c.rooms.RoomsOf(connectionID) {
		wasModerator := c.rooms.IsModerator(roomCode, connectionID)
		c.rooms.Leave(roomCode, connectionID)

		if wasModerator {
			if successor, ok := c.rooms.PromoteSuccessor(roomCode); ok {
				c.registry.SetModerator(successor, true)
				frames = append(frames, outFrame{
					peers: c.peersOfLocked(roomCode),
					event: types.EventModeratorChanged,
					payload: types.ModeratorChangedPayload{
						NewModeratorID:   successor,
						NewModeratorName: c.registry.GetOrPlaceholder(successor).Name,
					},
				})
				log.Printf("Moderator failover: room=%s successor=%s", roomCode, successor)
			}
		}

		frames = append(frames, outFrame{
			peers: c.peersOfLocked(roomCode),
			event: types.EventPeerLeft,
			payload: types.PeerLeftPayload{
				ConnectionID: connectionID,
				Reason:       types.LeftReasonDisconnected,
				Identity:     identity,
			},
		})
	}

	c.limiter.Remove(connectionID)
	c.registry.Remove(connectionID)
	log.Printf("Connection closed: id=%s", connectionID)
	return frames
}

// peersOfLocked maps a room's membership to live transports. Suspended
// members have no transport and are skipped. Callers must hold c.mu.
func (c *Coordinator) peersOfLocked(roomCode string) []interfaces.Peer {
	members := c.rooms.Members(roomCode)
	peers := make([]interfaces.Peer, 0, len(members))
	for _, memberID := range members {
		if peer, live := c.peers[memberID]; live {
			peers = append(peers, peer)
		}
	}
	return peers
}

// Stats reports coordinator state for the health endpoint.
func (c *Coordinator) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]int{
		"live_connections":      len(c.peers),
		"suspended_connections": len(c.suspended),
		"active_rooms":          c.rooms.Count(),
		"pending_chat":          c.buffer.Len(),
	}
}
