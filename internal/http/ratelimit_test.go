package http

import (
	"fmt"
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d within the limit was denied", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("request 61 within the window should be denied")
	}

	// Other clients keep their own budget
	if !rl.allow("10.0.0.2") {
		t.Fatal("a different client must not share the exhausted budget")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 61; i++ {
		rl.allow("10.0.0.1")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("expected the client to be over the limit")
	}

	// Age the window instead of sleeping through it
	rl.mu.Lock()
	rl.clients["10.0.0.1"].lastRequest = time.Now().Add(-2 * time.Minute)
	rl.mu.Unlock()

	if !rl.allow("10.0.0.1") {
		t.Fatal("counter should reset once the window has passed")
	}
}

func TestRateLimiterCleanupRemovesStaleEntries(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 5; i++ {
		rl.allow(fmt.Sprintf("10.0.0.%d", i))
	}
	rl.allow("10.0.1.1")

	rl.mu.Lock()
	for i := 0; i < 5; i++ {
		rl.clients[fmt.Sprintf("10.0.0.%d", i)].lastRequest = time.Now().Add(-11 * time.Minute)
	}
	rl.mu.Unlock()

	rl.cleanupStaleEntries()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.clients) != 1 {
		t.Fatalf("expected 1 entry after cleanup, got %d", len(rl.clients))
	}
	if _, ok := rl.clients["10.0.1.1"]; !ok {
		t.Fatal("recent entry should survive cleanup")
	}
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := newRateLimiter()
	rl.stop()
	rl.stop()
}
