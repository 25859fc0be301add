package costs

import (
	"testing"
	"time"
)

func TestTryConsume_UnlimitedWhenZero(t *testing.T) {
	rl := NewRateLimiter(time.Minute)
	for i := 0; i < 100; i++ {
		if !rl.TryConsume("alice", 0) {
			t.Fatalf("rateLimitRPM=0 should always allow, failed on request %d", i)
		}
	}
}

func TestTryConsume_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.TryConsume("bob", 3) {
			t.Fatalf("request %d should be allowed under limit 3", i)
		}
	}
	if rl.TryConsume("bob", 3) {
		t.Error("4th request should be blocked under limit 3")
	}
}

func TestTryConsume_SlidingWindowExpires(t *testing.T) {
	rl := NewRateLimiter(time.Minute)
	fakeNow := time.Now()
	rl.nowFunc = func() time.Time { return fakeNow }

	for i := 0; i < 2; i++ {
		if !rl.TryConsume("carol", 2) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.TryConsume("carol", 2) {
		t.Fatal("3rd request within window should be blocked")
	}

	fakeNow = fakeNow.Add(2 * time.Minute)
	if !rl.TryConsume("carol", 2) {
		t.Error("request after window expiry should be allowed again")
	}
}

func TestTryConsume_PerSenderIsolation(t *testing.T) {
	rl := NewRateLimiter(time.Minute)
	rl.TryConsume("dave", 1)
	if !rl.TryConsume("erin", 1) {
		t.Error("a different sender should have its own independent bucket")
	}
}
