package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/myselfprincee/vido-backend/internal/config"
)

// freePort grabs an ephemeral port for the test server.
func freePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find a free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	return cfg
}

func TestApplication_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = 0

	if _, err := NewApplication(cfg); err == nil {
		t.Error("Expected invalid configuration to be rejected")
	}
}

func TestApplication_Lifecycle(t *testing.T) {
	app, err := NewApplication(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to create application: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Failed to start application: %v", err)
	}

	// The health endpoint answers end to end: HTTP, store and coordinator
	// are all wired.
	resp, err := http.Get(fmt.Sprintf("http://%s/health", app.GetAddr()))
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", resp.StatusCode)
	}

	var health struct {
		Status      string         `json:"status"`
		Connections map[string]int `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Expected healthy status, got %q", health.Status)
	}
	if _, ok := health.Connections["live_connections"]; !ok {
		t.Errorf("Expected coordinator stats, got %+v", health.Connections)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(shutdownCtx); err != nil {
		t.Errorf("Failed to stop application: %v", err)
	}
}

func TestApplication_CreateRoomEndToEnd(t *testing.T) {
	app, err := NewApplication(testConfig(t))
	if err != nil {
		t.Fatalf("Failed to create application: %v", err)
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start application: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(ctx)
	}()

	resp, err := http.Post(
		fmt.Sprintf("http://%s/api/rooms", app.GetAddr()),
		"application/json",
		strings.NewReader(`{"creator_identity": "alice@example.com"}`),
	)
	if err != nil {
		t.Fatalf("Create room request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	var created struct {
		Room struct {
			ID   int64  `json:"id"`
			Code string `json:"code"`
		} `json:"room"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.Room.ID == 0 || created.Room.Code == "" {
		t.Errorf("Expected a persisted room, got %+v", created.Room)
	}

	// The new room's history starts empty.
	historyResp, err := http.Get(fmt.Sprintf("http://%s/api/rooms/%s/history", app.GetAddr(), created.Room.Code))
	if err != nil {
		t.Fatalf("History request failed: %v", err)
	}
	defer historyResp.Body.Close()

	if historyResp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for history, got %d", historyResp.StatusCode)
	}
}
