package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "github.com/myselfprincee/vido-backend/pkg/database"
	"github.com/myselfprincee/vido-backend/pkg/interfaces"
	"github.com/myselfprincee/vido-backend/pkg/types"
)

// Manager is the SQLite-backed RoomStore and ChatStore. Writes funnel
// through a single goroutine so the WAL never sees two writers; reads run
// concurrently on the pool.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

// writeOperation represents one queued database write.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies pragmas and starts the writer.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine. A failed
// write is retried once after a short backoff.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion.
func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("database manager is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("database manager is shutting down")
	}
}

// CreateRoom inserts a room row and backfills the generated durable id.
func (m *Manager) CreateRoom(ctx context.Context, room *types.Room) error {
	return m.executeWrite(func(db *sql.DB) error {
		result, err := db.ExecContext(ctx,
			`INSERT INTO rooms (code, created_by, created_at) VALUES (?, ?, ?)`,
			room.Code, room.CreatedBy, room.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert room: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read room id: %w", err)
		}
		room.ID = id
		return nil
	})
}

// ResolveRoomID maps a room code to its durable id.
func (m *Manager) ResolveRoomID(ctx context.Context, code string) (int64, error) {
	var id int64
	err := m.db.QueryRowContext(ctx, `SELECT id FROM rooms WHERE code = ?`, code).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, interfaces.ErrRoomNotFound
		}
		return 0, fmt.Errorf("failed to resolve room code: %w", err)
	}
	return id, nil
}

// IsRoomCreator reports whether the caller identity matches the room
// creator, case-insensitively. An unknown room is simply not created by the
// caller.
func (m *Manager) IsRoomCreator(ctx context.Context, code, callerIdentity string) (bool, error) {
	var createdBy string
	err := m.db.QueryRowContext(ctx, `SELECT created_by FROM rooms WHERE code = ?`, code).Scan(&createdBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to query room creator: %w", err)
	}
	return strings.EqualFold(createdBy, callerIdentity), nil
}

// PersistChatBatch stores one flush cycle's records in a single
// transaction. The batch either lands whole or not at all; the caller drops
// it on failure.
func (m *Manager) PersistChatBatch(ctx context.Context, records []interfaces.PersistedChat) error {
	if len(records) == 0 {
		return nil
	}

	return m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chat_messages (id, room_id, sender_id, sender_name, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare chat insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, item := range records {
			r := item.Record
			if _, err = stmt.ExecContext(ctx, r.ID, item.RoomID, r.SenderID, r.SenderName, r.Text, r.CreatedAt); err != nil {
				return fmt.Errorf("failed to insert chat message %s: %w", r.ID, err)
			}
		}

		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit chat batch: %w", err)
		}
		return nil
	})
}

// GetRoomHistory returns a room's persisted chat in chronological order.
func (m *Manager) GetRoomHistory(ctx context.Context, roomID int64) ([]*types.ChatRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT m.id, r.code, m.sender_id, m.sender_name, m.content, m.created_at
		FROM chat_messages m
		JOIN rooms r ON r.id = m.room_id
		WHERE m.room_id = ?
		ORDER BY m.created_at ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query room history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*types.ChatRecord
	for rows.Next() {
		var record types.ChatRecord
		err := rows.Scan(
			&record.ID,
			&record.RoomCode,
			&record.SenderID,
			&record.SenderName,
			&record.Text,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		records = append(records, &record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat rows: %w", err)
	}

	return records, nil
}

// HealthCheck validates database connectivity.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rooms").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// GetDB returns the underlying connection for migrations.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close shuts down the store.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
