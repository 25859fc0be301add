package costs

import (
	"container/list"
	"sync"
	"time"
)

// maxTrackedSenders bounds the RateLimiter's sender map via LRU eviction.
const maxTrackedSenders = 10_000

// RateLimiter implements a sliding-window request limiter.
// golang.org/x/time/rate's token-bucket model was considered and dropped
// in favor of an exact, reconstructible window of request timestamps
// rather than a refill approximation (see DESIGN.md).
type RateLimiter struct {
	mu sync.Mutex
	window time.Duration
	buckets map[string]*list.Element
	order *list.List // front = most recently used
	nowFunc func() time.Time
}

type bucketEntry struct {
	senderID string
	timestamps []time.Time
}

// NewRateLimiter constructs a RateLimiter with the given sliding-window
// duration (typically 60s, since rate_limit is expressed as requests/min).
func NewRateLimiter(window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		window: window,
		buckets: map[string]*list.Element{},
		order: list.New(),
		nowFunc: time.Now,
	}
}

// TryConsume reports whether senderID may issue one more request under
// rateLimitRPM (requests per window). rateLimitRPM == 0 means unlimited.
func (rl *RateLimiter) TryConsume(senderID string, rateLimitRPM int) bool {
	if rateLimitRPM <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	el, ok := rl.buckets[senderID]
	var entry *bucketEntry
	if ok {
		rl.order.MoveToFront(el)
		entry = el.Value.(*bucketEntry)
	} else {
		entry = &bucketEntry{senderID: senderID}
		el = rl.order.PushFront(entry)
		rl.buckets[senderID] = el
		rl.evictLocked()
	}

	cutoff := now.Add(-rl.window)
	kept := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	entry.timestamps = kept

	if len(entry.timestamps) >= rateLimitRPM {
		return false
	}
	entry.timestamps = append(entry.timestamps, now)
	return true
}

func (rl *RateLimiter) evictLocked() {
	for len(rl.buckets) > maxTrackedSenders {
		oldest := rl.order.Back()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*bucketEntry)
		delete(rl.buckets, entry.senderID)
		rl.order.Remove(oldest)
	}
}
