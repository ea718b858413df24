package conversation

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("student-1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("student-1") {
		t.Error("request over the limit should be denied")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1, time.Minute)

	if !rl.Allow("student-a") {
		t.Error("first request for student-a should pass")
	}
	if !rl.Allow("student-b") {
		t.Error("student-b should not be affected by student-a")
	}
	if rl.Allow("student-a") {
		t.Error("second request for student-a should be denied")
	}
}

func TestRateLimiterCloseStopsEviction(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1, time.Minute)

	rl.Close()
	rl.Close() // idempotent

	select {
	case <-rl.done:
	case <-time.After(time.Second):
		t.Fatal("done channel should be closed after Close")
	}

	if !rl.Allow("student-1") {
		t.Error("Allow should still work after Close")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1, 30*time.Millisecond)

	if !rl.Allow("student-1") {
		t.Fatal("first request should pass")
	}
	if rl.Allow("student-1") {
		t.Fatal("second immediate request should be denied")
	}

	time.Sleep(50 * time.Millisecond)
	if !rl.Allow("student-1") {
		t.Error("request after the window should pass")
	}
}
