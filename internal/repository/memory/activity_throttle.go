package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// ActivityThrottle remembers which sessions had their broadcaster activity
// written recently, so a chatty broadcaster does not write on every frame.
type ActivityThrottle struct {
	cache    *cache.Cache
	interval time.Duration
}

func NewActivityThrottle(interval time.Duration) *ActivityThrottle {
	return &ActivityThrottle{
		cache:    cache.New(interval, 10*interval+time.Minute),
		interval: interval,
	}
}

// Allow reports whether the caller should touch sessionId now. It returns
// true at most once per interval per session.
func (t *ActivityThrottle) Allow(sessionId string) bool {
	if t.interval <= 0 {
		return true
	}
	return t.cache.Add(sessionId, struct{}{}, t.interval) == nil
}

func (t *ActivityThrottle) Forget(sessionId string) {
	t.cache.Delete(sessionId)
}
