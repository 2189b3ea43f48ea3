package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/myselfprincee/vido-backend/pkg/interfaces"
)

// Flusher drains the buffer into the durable store on a fixed period,
// decoupled from the relay hot path. Persistence is best-effort: a record
// whose room code cannot be resolved is dropped with a warning, and a failed
// batch write drops the whole cycle. Nothing here retries or backpressures.
type Flusher struct {
	buffer    *Buffer
	roomStore interfaces.RoomStore
	chatStore interfaces.ChatStore
	interval  time.Duration

	// roomCode -> durable id, populated lazily, never invalidated within the
	// process lifetime. Only the flush path touches it.
	idCache map[string]int64

	running  bool
	shutdown chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewFlusher creates a flusher draining buffer into the given stores.
func NewFlusher(buffer *Buffer, roomStore interfaces.RoomStore, chatStore interfaces.ChatStore, interval time.Duration) *Flusher {
	return &Flusher{
		buffer:    buffer,
		roomStore: roomStore,
		chatStore: chatStore,
		interval:  interval,
		idCache:   make(map[string]int64),
		shutdown:  make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrFlusherAlreadyRunning
	}
	f.running = true
	f.mu.Unlock()

	f.wg.Add(1)
	go f.run(ctx)

	return nil
}

// Stop halts the loop and runs one final flush so records buffered since the
// last tick are not abandoned at shutdown.
func (f *Flusher) Stop() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return ErrFlusherNotRunning
	}
	f.running = false
	f.mu.Unlock()

	close(f.shutdown)
	f.wg.Wait()

	f.Flush(context.Background())
	return nil
}

// run is the fixed-period flush loop.
func (f *Flusher) run(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Flush(ctx)
		case <-f.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Flush swaps out the pending set and persists it as one batched write.
// Records are removed from the pending set regardless of outcome.
func (f *Flusher) Flush(ctx context.Context) {
	records := f.buffer.Swap()
	if len(records) == 0 {
		return
	}

	batch := make([]interfaces.PersistedChat, 0, len(records))
	for _, record := range records {
		roomID, ok := f.resolveRoomID(ctx, record.RoomCode)
		if !ok {
			log.Printf("WARNING: dropping chat message, room code unresolved: room=%s message=%s",
				record.RoomCode, record.ID)
			continue
		}
		batch = append(batch, interfaces.PersistedChat{Record: record, RoomID: roomID})
	}

	if len(batch) == 0 {
		return
	}

	if err := f.chatStore.PersistChatBatch(ctx, batch); err != nil {
		log.Printf("Chat batch persist failed, dropping %d messages: %v", len(batch), err)
		return
	}
	log.Printf("Flushed %d chat messages", len(batch))
}

// resolveRoomID looks up the durable room id, querying the store only on
// cache miss. Room codes are unique for the process lifetime so a cached id
// never goes stale.
func (f *Flusher) resolveRoomID(ctx context.Context, code string) (int64, bool) {
	if id, hit := f.idCache[code]; hit {
		return id, true
	}

	id, err := f.roomStore.ResolveRoomID(ctx, code)
	if err != nil {
		return 0, false
	}
	f.idCache[code] = id
	return id, true
}
