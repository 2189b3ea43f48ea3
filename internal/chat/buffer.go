package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/myselfprincee/vido-backend/pkg/types"
)

// Buffer holds durability-pending chat records between flush cycles.
// Enqueue is safe to call concurrently with an in-flight flush: Swap
// exchanges the whole pending slice atomically, so records enqueued during
// a flush land in the next cycle, never in the current one and never lost.
type Buffer struct {
	mu      sync.Mutex
	pending []*types.ChatRecord
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Enqueue appends a chat message to the pending set, assigning the
// server-side message id and timestamp. Returns the stored record so the
// relay can broadcast exactly what will be persisted.
func (b *Buffer) Enqueue(roomCode, senderID, senderName, text string) *types.ChatRecord {
	record := &types.ChatRecord{
		ID:         uuid.New().String(),
		RoomCode:   roomCode,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		CreatedAt:  time.Now(),
	}

	b.mu.Lock()
	b.pending = append(b.pending, record)
	b.mu.Unlock()

	return record
}

// Swap takes the entire pending set and leaves an empty one behind. The
// caller owns the returned slice outright.
func (b *Buffer) Swap() []*types.ChatRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := b.pending
	b.pending = nil
	return records
}

// Len returns the current pending count, for stats reporting.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending)
}
