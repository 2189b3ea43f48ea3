package relay

import (
	"log"

	"github.com/myselfprincee/vido-backend/pkg/interfaces"
	"github.com/myselfprincee/vido-backend/pkg/types"
)

// Relay is pure delivery. It forwards payloads unchanged apart from sender
// identity augmentation, at most once, with no retry and no queueing beyond
// each peer's own write buffer. Recipient resolution is the coordinator's
// job; the relay only writes to the peers it is handed.
type Relay struct{}

// NewRelay creates a relay.
func NewRelay() *Relay {
	return &Relay{}
}

// Forward delivers a directed signaling event to exactly one target. A nil
// target means the connection is already gone; the message is dropped
// silently per the at-most-once contract.
func (r *Relay) Forward(target interfaces.Peer, event string, payload types.SignalOutPayload) {
	if target == nil {
		return
	}
	if err := target.WriteJSON(types.OutFrame{Event: event, Data: payload}); err != nil {
		log.Printf("Signal delivery failed: event=%s target=%s err=%v", event, target.ID(), err)
	}
}

// Broadcast delivers an event to every peer in the slice except the one with
// excludeID. Delivery continues past individual write failures so one slow
// or dead peer never blocks the rest of the room.
func (r *Relay) Broadcast(peers []interfaces.Peer, excludeID, event string, payload interface{}) {
	frame := types.OutFrame{Event: event, Data: payload}
	for _, peer := range peers {
		if peer == nil || peer.ID() == excludeID {
			continue
		}
		if err := peer.WriteJSON(frame); err != nil {
			log.Printf("Broadcast delivery failed: event=%s peer=%s err=%v", event, peer.ID(), err)
		}
	}
}

// Send delivers an event to a single peer, used for replies addressed to the
// requester (participant snapshots, kick errors).
func (r *Relay) Send(peer interfaces.Peer, event string, payload interface{}) {
	if peer == nil {
		return
	}
	if err := peer.WriteJSON(types.OutFrame{Event: event, Data: payload}); err != nil {
		log.Printf("Send failed: event=%s peer=%s err=%v", event, peer.ID(), err)
	}
}
