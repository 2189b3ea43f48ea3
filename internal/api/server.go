package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/myselfprincee/vido-backend/pkg/interfaces"
	"github.com/myselfprincee/vido-backend/pkg/types"
)

// Stats exposes coordinator counters without coupling to its implementation.
type Stats interface {
	Stats() map[string]int
}

// Server is the thin HTTP surface around the signaling core: room creation,
// chat history and health. No business logic beyond request shaping.
type Server struct {
	roomStore interfaces.RoomStore
	chatStore interfaces.ChatStore
	stats     Stats
	router    *http.ServeMux
}

// NewServer creates the API server and sets up routing.
func NewServer(roomStore interfaces.RoomStore, chatStore interfaces.ChatStore, stats Stats) *Server {
	s := &Server{
		roomStore: roomStore,
		chatStore: chatStore,
		stats:     stats,
		router:    http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/rooms", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRooms))))
	s.router.Handle("/api/rooms/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRoomByCode))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createRoom(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRoomByCode(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		s.sendError(w, "Room code required", http.StatusBadRequest)
		return
	}
	code := parts[0]

	switch {
	case r.Method == http.MethodGet && len(parts) > 1 && parts[1] == "history":
		s.roomHistory(w, r, code)
	case r.Method == http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Not found", http.StatusNotFound)
	}
}

// Request/Response types for JSON serialization.

type CreateRoomRequest struct {
	CreatorIdentity string `json:"creator_identity"`
}

type CreateRoomResponse struct {
	Room *types.Room `json:"room"`
}

type RoomHistoryResponse struct {
	RoomCode string              `json:"room_code"`
	Messages []*types.ChatRecord `json:"messages"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// createRoom mints a shareable code and persists the room row. Codes are
// retried on the off chance of a uniqueness collision.
func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.CreatorIdentity == "" {
		s.sendError(w, "Creator identity is required", http.StatusBadRequest)
		return
	}

	var room *types.Room
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		room = &types.Room{
			Code:      generateRoomCode(),
			CreatedBy: req.CreatorIdentity,
			CreatedAt: time.Now(),
		}
		if err = s.roomStore.CreateRoom(r.Context(), room); err == nil {
			break
		}
	}
	if err != nil {
		s.sendError(w, "Failed to create room", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(CreateRoomResponse{Room: room})
}

// roomHistory returns the persisted chat for a room code.
func (s *Server) roomHistory(w http.ResponseWriter, r *http.Request, code string) {
	if !types.IsValidRoomCode(code) {
		s.sendError(w, "Invalid room code", http.StatusBadRequest)
		return
	}

	roomID, err := s.roomStore.ResolveRoomID(r.Context(), code)
	if err != nil {
		if err == interfaces.ErrRoomNotFound {
			s.sendError(w, "Room not found", http.StatusNotFound)
		} else {
			s.sendError(w, "Failed to resolve room", http.StatusInternalServerError)
		}
		return
	}

	messages, err := s.chatStore.GetRoomHistory(r.Context(), roomID)
	if err != nil {
		s.sendError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(RoomHistoryResponse{RoomCode: code, Messages: messages})
}

// healthCheck reports store connectivity and coordinator counters.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if err := s.roomStore.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	var connections map[string]int
	if s.stats != nil {
		connections = s.stats.Stats()
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: connections,
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		next.ServeHTTP(w, r)
	})
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateRoomCode mints a 6-character shareable code. The ambiguous
// characters 0/O/1/I are excluded from the alphabet.
func generateRoomCode() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
