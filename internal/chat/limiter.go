package chat

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long a sender's bucket is kept after its last request.
const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per sender. Idle buckets are swept
// so arbitrary sender names cannot grow the map forever.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	rps       float64
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{
		m:         make(map[string]*limiterEntry),
		rps:       rps,
		burst:     burst,
		idle:      limiterIdle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) >= p.idle {
		p.sweep(now)
	}

	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

// sweep drops buckets unused for longer than idle. Caller holds mu.
func (p *limiterPool) sweep(now time.Time) {
	for k, e := range p.m {
		if now.Sub(e.lastSeen) >= p.idle {
			delete(p.m, k)
		}
	}
	p.lastSweep = now
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// Allow reports whether key may proceed. A nil pool allows everything.
func (p *limiterPool) Allow(key string) bool {
	if p == nil {
		return true
	}
	return p.get(key).Allow()
}
