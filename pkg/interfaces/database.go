package interfaces

import (
	"context"

	"github.com/myselfprincee/vido-backend/pkg/types"
)

// RoomStore resolves room codes against durable room records. The signaling
// core consumes this as an external collaborator; it never owns room rows.
type RoomStore interface {
	// ResolveRoomID maps a shareable room code to its durable id.
	// Returns ErrRoomNotFound when the code is unknown.
	ResolveRoomID(ctx context.Context, code string) (int64, error)

	// IsRoomCreator reports whether the externally-verified caller identity
	// matches the room's creator. The match is case-insensitive.
	IsRoomCreator(ctx context.Context, code, callerIdentity string) (bool, error)

	// CreateRoom inserts a new room row for a freshly generated code.
	CreateRoom(ctx context.Context, room *types.Room) error

	// HealthCheck verifies store connectivity.
	HealthCheck(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// ChatStore persists chat history in batches. Durability is best-effort;
// callers drop failed batches rather than retry.
type ChatStore interface {
	// PersistChatBatch durably stores one flush cycle's records. RoomID must
	// already be resolved for every record handed in.
	PersistChatBatch(ctx context.Context, records []PersistedChat) error

	// GetRoomHistory returns persisted chat for a room in chronological order.
	GetRoomHistory(ctx context.Context, roomID int64) ([]*types.ChatRecord, error)
}

// PersistedChat pairs a buffered record with its resolved durable room id.
type PersistedChat struct {
	Record *types.ChatRecord
	RoomID int64
}
