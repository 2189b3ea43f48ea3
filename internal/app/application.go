package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/myselfprincee/vido-backend/internal/api"
	"github.com/myselfprincee/vido-backend/internal/chat"
	"github.com/myselfprincee/vido-backend/internal/config"
	"github.com/myselfprincee/vido-backend/internal/coordinator"
	"github.com/myselfprincee/vido-backend/internal/database"
	"github.com/myselfprincee/vido-backend/internal/registry"
	"github.com/myselfprincee/vido-backend/internal/relay"
	"github.com/myselfprincee/vido-backend/internal/room"
	"github.com/myselfprincee/vido-backend/internal/ws"
	pkgdatabase "github.com/myselfprincee/vido-backend/pkg/database"
)

// Application wires all signaling components together.
// Initialization follows strict dependency order:
// Database → Registry/Rooms/Relay/Buffer → Coordinator → Flusher → API → HTTP
type Application struct {
	config      *config.Config
	dbManager   *database.Manager
	registry    *registry.Registry
	rooms       *room.Index
	coordinator *coordinator.Coordinator
	flusher     *chat.Flusher
	apiServer   *api.Server
	httpServer  *http.Server
}

// NewApplication creates the application with all components initialized.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	migrationManager := pkgdatabase.NewMigrationManager(dbManager.GetDB())
	if err := migrationManager.ApplyMigrations(); err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	log.Println("Database migrations applied successfully")

	validator := pkgdatabase.NewSchemaValidator(dbManager.GetDB())
	if err := validator.ValidateTablesExist(); err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if err := validator.ValidateIndexes(); err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	reg := registry.NewRegistry()
	rooms := room.NewIndex()
	rel := relay.NewRelay()
	buffer := chat.NewBuffer()

	coord := coordinator.NewCoordinator(reg, rooms, rel, buffer, dbManager, coordinator.Options{
		GraceWindow:   cfg.Signaling.GraceWindow,
		ChatRateLimit: cfg.Signaling.ChatRateLimit,
	})

	flusher := chat.NewFlusher(buffer, dbManager, dbManager, cfg.Signaling.FlushInterval)

	apiServer := api.NewServer(dbManager, dbManager, coord)

	wsHandler := ws.NewHandler(coord, cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		dbManager:   dbManager,
		registry:    reg,
		rooms:       rooms,
		coordinator: coord,
		flusher:     flusher,
		apiServer:   apiServer,
		httpServer:  httpServer,
	}, nil
}

// Start begins application execution. The chat flusher starts before the
// HTTP server so no accepted connection can enqueue into a dead buffer.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting vido signaling server on %s", app.httpServer.Addr)

	if err := app.flusher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chat flusher: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.flusher.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Signaling server started successfully")
		return nil
	case <-ctx.Done():
		app.flusher.Stop()
		return ctx.Err()
	}
}

// Stop gracefully shuts down the application in reverse dependency order:
// HTTP → Flusher (final flush) → Database.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down signaling server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.flusher.Stop(); err != nil {
		log.Printf("Chat flusher shutdown error: %v", err)
	}

	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("Signaling server shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
