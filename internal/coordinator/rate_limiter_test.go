package coordinator

import "testing"

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("conn-1") {
			t.Fatalf("Expected message %d within the limit to be allowed", i+1)
		}
	}
	if rl.Allow("conn-1") {
		t.Error("Expected message over the limit to be rejected")
	}

	// Limits are per connection.
	if !rl.Allow("conn-2") {
		t.Error("Expected a fresh connection to be allowed")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0)

	for i := 0; i < 1000; i++ {
		if !rl.Allow("conn-1") {
			t.Fatal("Expected disabled limiter to allow everything")
		}
	}
}

func TestRateLimiter_Remove(t *testing.T) {
	rl := NewRateLimiter(1)

	rl.Allow("conn-1")
	if rl.Allow("conn-1") {
		t.Fatal("Expected second message to be rejected")
	}

	rl.Remove("conn-1")
	if !rl.Allow("conn-1") {
		t.Error("Expected a removed connection to start a fresh window")
	}
}
