// ABOUTME: Per-user rate limiting for post creation built on golang.org/x/time/rate.
// ABOUTME: Each user gets a token bucket refilled evenly across one minute; idle buckets are evicted.
package posts

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleAfter is how long a bucket must go untouched before it is dropped. A
// bucket refills completely within a minute, so a dropped bucket and a new
// one behave the same.
const idleAfter = time.Minute

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserLimiter tracks one token bucket per active user ID.
type UserLimiter struct {
	buckets   map[string]*userBucket
	mu        sync.Mutex
	rate      rate.Limit
	burst     int
	lastSweep time.Time
}

// NewUserLimiter allows perMinute events per user per minute. A non-positive
// perMinute disables limiting.
func NewUserLimiter(perMinute int) *UserLimiter {
	l := &UserLimiter{buckets: make(map[string]*userBucket)}
	if perMinute <= 0 {
		l.rate = rate.Inf
		return l
	}
	l.rate = rate.Every(time.Minute / time.Duration(perMinute))
	l.burst = perMinute
	return l
}

// Allow reports whether userID may act now, consuming a token if so.
func (l *UserLimiter) Allow(userID string) bool {
	return l.AllowAt(userID, time.Now())
}

// AllowAt is Allow evaluated at the given instant.
func (l *UserLimiter) AllowAt(userID string, now time.Time) bool {
	if l.rate == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= idleAfter {
		l.sweepLocked(now)
	}
	b, ok := l.buckets[userID]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Active returns the number of users currently holding a bucket.
func (l *UserLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *UserLimiter) sweepLocked(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) >= idleAfter {
			delete(l.buckets, id)
		}
	}
	l.lastSweep = now
}
